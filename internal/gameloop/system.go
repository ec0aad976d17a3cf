package gameloop

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// System описывает логику, выполняемую каждый кадр цикла.
type System interface {
	// Init вызывается один раз перед запуском цикла.
	Init(deps Dependencies) error
	// Tick вызывается каждый кадр с реальной длительностью кадра.
	Tick(ctx context.Context, dt time.Duration)
	// Name возвращает читаемое имя системы.
	Name() string
}

// Dependencies передаются системам при инициализации.
type Dependencies struct {
	Logger *zap.SugaredLogger
	// Stop завершает цикл после текущего кадра.
	Stop func()
}

// SystemFunc adapts a plain function to System.
type SystemFunc struct {
	ID string
	Fn func(ctx context.Context, dt time.Duration)
}

func (s SystemFunc) Name() string { return s.ID }

func (s SystemFunc) Init(Dependencies) error { return nil }

func (s SystemFunc) Tick(ctx context.Context, dt time.Duration) { s.Fn(ctx, dt) }
