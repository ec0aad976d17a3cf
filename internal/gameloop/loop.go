// Package gameloop крутит кадры клиента и вызывает зарегистрированные системы.
package gameloop

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Loop: главный цикл, вызывающий Tick всех зарегистрированных систем.
type Loop struct {
	systems []System
	tickDur time.Duration
	logger  *zap.SugaredLogger
	// strict: паника системы не перехватывается
	strict bool
	stop   chan struct{}
}

// NewLoop создаёт цикл с заданной длительностью кадра.
func NewLoop(tick time.Duration, logger *zap.SugaredLogger, strict bool, systems ...System) *Loop {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	l := &Loop{systems: systems, tickDur: tick, logger: logger, strict: strict, stop: make(chan struct{})}
	deps := Dependencies{Logger: logger, Stop: l.Stop}
	// Инициализируем все системы
	for _, s := range systems {
		if err := s.Init(deps); err != nil {
			logger.Warnf("[GameLoop] init %s error: %v", s.Name(), err)
		}
	}
	return l
}

// Stop просит цикл завершиться; повторные вызовы безопасны.
func (l *Loop) Stop() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
}

// Run запускает цикл до отмены ctx или вызова Stop.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.tickDur)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case t := <-ticker.C:
			dt := t.Sub(last)
			last = t
			l.Step(ctx, dt)
		case <-l.stop:
			l.logger.Debug("[GameLoop] stopped")
			return
		case <-ctx.Done():
			l.logger.Debug("[GameLoop] stopped")
			return
		}
	}
}

// Step runs every system once with dt. Tests drive the loop through it.
func (l *Loop) Step(ctx context.Context, dt time.Duration) {
	for _, s := range l.systems {
		l.tick(ctx, s, dt)
	}
}

func (l *Loop) tick(ctx context.Context, sys System, dt time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			if l.strict {
				panic(fmt.Sprintf("[GameLoop] panic in %s: %v", sys.Name(), r))
			}
			l.logger.Errorf("[GameLoop] panic in %s: %v", sys.Name(), r)
		}
	}()
	sys.Tick(ctx, dt)
}
