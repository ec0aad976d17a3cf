package gameloop_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/annelo/ghosttag/internal/gameloop"
)

type countingSystem struct {
	inited bool
	ticks  int
	total  time.Duration
	deps   gameloop.Dependencies
}

func (c *countingSystem) Name() string { return "counter" }

func (c *countingSystem) Init(deps gameloop.Dependencies) error {
	c.inited = true
	c.deps = deps
	return nil
}

func (c *countingSystem) Tick(ctx context.Context, dt time.Duration) {
	c.ticks++
	c.total += dt
}

func TestLoop_StepRunsSystemsInOrder(t *testing.T) {
	var order []string
	a := gameloop.SystemFunc{ID: "a", Fn: func(context.Context, time.Duration) { order = append(order, "a") }}
	b := gameloop.SystemFunc{ID: "b", Fn: func(context.Context, time.Duration) { order = append(order, "b") }}
	c := &countingSystem{}

	l := gameloop.NewLoop(time.Millisecond, nil, false, a, b, c)
	assert.True(t, c.inited)
	assert.NotNil(t, c.deps.Logger)

	l.Step(context.Background(), 16*time.Millisecond)
	l.Step(context.Background(), 17*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "a", "b"}, order)
	assert.Equal(t, 2, c.ticks)
	assert.Equal(t, 33*time.Millisecond, c.total)
}

func TestLoop_RecoversPanicsUnlessStrict(t *testing.T) {
	boom := gameloop.SystemFunc{ID: "boom", Fn: func(context.Context, time.Duration) { panic("boom") }}
	after := &countingSystem{}

	l := gameloop.NewLoop(time.Millisecond, nil, false, boom, after)
	assert.NotPanics(t, func() { l.Step(context.Background(), time.Millisecond) })
	assert.Equal(t, 1, after.ticks, "later systems still run")

	strict := gameloop.NewLoop(time.Millisecond, nil, true, boom)
	assert.Panics(t, func() { strict.Step(context.Background(), time.Millisecond) })
}

func TestLoop_RunStops(t *testing.T) {
	c := &countingSystem{}
	l := gameloop.NewLoop(time.Millisecond, nil, false, c)

	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	c.deps.Stop()
	c.deps.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Positive(t, c.ticks)
}
