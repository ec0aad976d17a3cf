package registry_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/ghosttag/internal/gameloop"
	"github.com/annelo/ghosttag/internal/registry"
)

func TestRegistry_HooksAndCommands(t *testing.T) {
	reg := registry.New()

	var got []interface{}
	reg.RegisterHook(registry.HookTagged, func(args ...interface{}) { got = args })
	reg.Fire(registry.HookTagged, "a", "b")
	assert.Equal(t, []interface{}{"a", "b"}, got)
	reg.Fire(registry.HookRoundReset) // no handlers, no-op

	reg.RegisterCommand("echo", "echo args", func(args []string) (string, error) {
		return strings.Join(args, " ") + "\n", nil
	})
	out, err := reg.RunCommand("  echo hello   world ")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)

	out, err = reg.RunCommand("")
	assert.NoError(t, err)
	assert.Empty(t, out)

	_, err = reg.RunCommand("nope")
	assert.ErrorIs(t, err, registry.ErrUnknownCommand)

	reg.RegisterCommand("echo", "replaced", func([]string) (string, error) { return "x", nil })
	require.Len(t, reg.Commands(), 1)
	assert.Equal(t, "echo - replaced\n", reg.Help())
}

func TestRegistry_MarkCoreAndClear(t *testing.T) {
	reg := registry.New()
	noop := gameloop.SystemFunc{ID: "noop", Fn: func(context.Context, time.Duration) {}}
	reg.RegisterGameSystem(noop)
	reg.RegisterHook(registry.HookPeerJoined, func(...interface{}) {})
	reg.RegisterCommand("core", "", func([]string) (string, error) { return "", nil })
	reg.MarkCore()

	reg.RegisterGameSystem(noop)
	reg.RegisterHook(registry.HookPeerLeft, func(...interface{}) {})
	reg.RegisterCommand("extra", "", func([]string) (string, error) { return "", nil })
	assert.Len(t, reg.GameSystems(), 2)
	assert.Len(t, reg.Commands(), 2)

	reg.ClearExtensions()
	assert.Len(t, reg.GameSystems(), 1)
	assert.Len(t, reg.Commands(), 1)
	assert.Len(t, reg.Hooks(registry.HookPeerJoined), 1)
	assert.Empty(t, reg.Hooks(registry.HookPeerLeft))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := registry.New()
	const N = 100
	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.RegisterHook(registry.HookStateChanged, func(...interface{}) {})
		}()
		go func() {
			defer wg.Done()
			reg.Fire(registry.HookStateChanged)
		}()
	}
	wg.Wait()
	assert.Len(t, reg.Hooks(registry.HookStateChanged), N)
}
