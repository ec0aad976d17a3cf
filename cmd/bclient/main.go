package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/ghosttag/internal/arena"
	"github.com/annelo/ghosttag/internal/bot"
	"github.com/annelo/ghosttag/internal/config"
	"github.com/annelo/ghosttag/internal/gameloop"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/lifecycle"
	"github.com/annelo/ghosttag/internal/logging"
	"github.com/annelo/ghosttag/internal/registry"
	"github.com/annelo/ghosttag/internal/transport"
	"github.com/annelo/ghosttag/internal/transport/grpcrelay"
	"github.com/annelo/ghosttag/internal/transport/memory"
)

var (
	configPath   = flag.String("config", "ghosttag.yaml", "Путь к YAML-конфигу")
	serverAddr   = flag.String("addr", "", "gRPC адрес релея (по умолчанию из конфига)")
	clientsCount = flag.Int("n", 4, "Количество ботов")
	duration     = flag.Duration("duration", 30*time.Second, "Длительность теста")
	roomName     = flag.String("room", "bots", "Комната ботов")
	offline      = flag.Bool("offline", false, "Без релея: боты в одном процессе через память")
	seed         = flag.Int64("seed", 0, "Сид ботов (0 = случайный)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	if *serverAddr != "" {
		cfg.Relay.Addr = *serverAddr
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatalf("Не удалось создать логгер: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Infof("Запускаем bClient: %d ботов, комната %s, %s", *clientsCount, *roomName, *duration)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signalChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	var hub *memory.Hub
	if *offline {
		hub = memory.NewHub(cfg.Relay.RoomCapacity)
	}
	stats := &tagStats{}

	var wg sync.WaitGroup
	for i := 0; i < *clientsCount; i++ {
		var tr transport.Transport
		if hub != nil {
			tr = hub.NewPeer()
		} else {
			tr = grpcrelay.New(grpcrelay.Options{Addr: cfg.Relay.Addr, Logger: logger.Named("transport")})
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runBot(ctx, id, cfg, tr, stats, logger.With("bot", id))
		}(i)
		// первый бот создаёт комнату, остальные входят чуть позже
		if i == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}

	wg.Wait()
	logger.Infof("bClient завершил работу: %d передач водящего", stats.get())
}

type tagStats struct {
	mu   sync.Mutex
	tags int
}

func (s *tagStats) add() {
	s.mu.Lock()
	s.tags++
	s.mu.Unlock()
}

func (s *tagStats) get() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags
}

// runBot ведёт одного бота до отмены ctx.
func runBot(ctx context.Context, id int, cfg config.Config, tr transport.Transport, stats *tagStats, logger *zap.SugaredLogger) {
	rnd := rand.New(rand.NewSource(*seed + int64(id)))
	spawn := freeSpawn(cfg.Arena, cfg.Tuning.PlayerRadius, rnd)

	hooks := registry.New()
	hooks.RegisterHook(registry.HookTagged, func(args ...interface{}) {
		logger.Debugf("tagger is now %v", args[0])
		if id == 0 {
			stats.add()
		}
	})
	ctrl := lifecycle.New(lifecycle.Options{
		Config:    cfg,
		Transport: tr,
		Hooks:     hooks,
		Spawn:     &spawn,
		Rand:      rnd,
		Logger:    logger,
	})
	if err := ctrl.Connect(fmt.Sprintf("bot-%d", id)); err != nil {
		logger.Errorf("connect error: %v", err)
		return
	}

	b := bot.New(*seed+int64(id), bot.DefaultParams())
	var sinceJoin time.Duration
	step := gameloop.SystemFunc{ID: "bot", Fn: func(_ context.Context, dt time.Duration) {
		var view arena.View
		if a := ctrl.Arena(); a != nil {
			view = a.View()
		}
		ctrl.Update(dt, b.Steer(dt, view))

		if ctrl.State() != lifecycle.InLobby {
			return
		}
		// повторяем вход, пока первый бот не создал комнату
		sinceJoin += dt
		if sinceJoin < 500*time.Millisecond {
			return
		}
		sinceJoin = 0
		var err error
		if id == 0 {
			err = ctrl.CreateRoom(*roomName)
		} else {
			err = ctrl.JoinRoom(*roomName)
		}
		if err != nil {
			logger.Warnf("room request error: %v", err)
		}
	}}
	loop := gameloop.NewLoop(cfg.FrameDelta(), logger, cfg.Strict, step)
	loop.Run(ctx)

	if ctrl.State() != lifecycle.Disconnected {
		_ = ctrl.Disconnect()
	}
}

// freeSpawn выбирает случайную точку вне стен.
func freeSpawn(a config.ArenaConfig, radius float64, rnd *rand.Rand) geom.Vec2 {
	walls := arena.Layout(a)
	for i := 0; i < 100; i++ {
		p := geom.V(rnd.Float64()*a.Width, rnd.Float64()*a.Height)
		if arena.Free(walls, p, radius) {
			return p
		}
	}
	x, y := a.Spawn()
	return geom.V(x, y)
}
