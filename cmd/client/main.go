package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nsf/termbox-go"
	"go.uber.org/zap"

	"github.com/annelo/ghosttag/internal/config"
	"github.com/annelo/ghosttag/internal/gameloop"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/lifecycle"
	"github.com/annelo/ghosttag/internal/logging"
	"github.com/annelo/ghosttag/internal/movement"
	"github.com/annelo/ghosttag/internal/registry"
	"github.com/annelo/ghosttag/internal/transport/grpcrelay"
)

var (
	configPath = flag.String("config", "ghosttag.yaml", "Путь к YAML-конфигу")
	serverAddr = flag.String("server", "", "Адрес релея (по умолчанию из конфига)")
	playerName = flag.String("name", "", "Имя игрока")
	roomName   = flag.String("room", "", "Комната: войти, а если её нет, создать")
	logPath    = flag.String("log", "ghosttag-client.log", "Файл лога")
	debugMode  = flag.Bool("debug", false, "Режим отладки (показать подробную информацию)")
)

// keyHold: терминал не сообщает об отпускании клавиш, поэтому нажатие
// считается удерживаемым столько времени
const keyHold = 150 * time.Millisecond

// inputState накапливает ввод из горутины termbox.
type inputState struct {
	mu          sync.Mutex
	axis        geom.Vec2
	heldUntil   time.Time
	transparent bool
	quit        bool
}

func (s *inputState) press(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.axis = geom.V(dx, dy)
	s.heldUntil = time.Now().Add(keyHold)
}

func (s *inputState) toggleTransparent() {
	s.mu.Lock()
	s.transparent = !s.transparent
	s.mu.Unlock()
}

func (s *inputState) current(now time.Time) (movement.Input, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := movement.Input{WantsTransparent: s.transparent}
	if now.Before(s.heldUntil) {
		in.Axis = s.axis
	}
	return in, s.quit
}

// messages хранит последние строки для нижней панели.
type messages struct {
	mu    sync.Mutex
	lines []string
}

func (m *messages) add(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append([]string{fmt.Sprintf(format, args...)}, m.lines...)
	if len(m.lines) > 5 {
		m.lines = m.lines[:5]
	}
}

func (m *messages) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

func main() {
	// Парсим флаги командной строки
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	if *serverAddr != "" {
		cfg.Relay.Addr = *serverAddr
	}
	if *playerName != "" {
		cfg.Player.Name = *playerName
	}
	if *debugMode {
		cfg.Debug = true
	}

	logger, err := logging.ToFile(*logPath, cfg.Debug)
	if err != nil {
		log.Fatalf("Не удалось открыть лог %s: %v", *logPath, err)
	}
	defer func() { _ = logger.Sync() }()

	// Инициализируем терминал
	if err := termbox.Init(); err != nil {
		log.Fatalf("Не удалось инициализировать терминал: %v", err)
	}
	defer termbox.Close()

	msgs := &messages{}
	msgs.add("Подключение к %s...", cfg.Relay.Addr)

	hooks := registry.New()
	registerHooks(hooks, msgs)

	tr := grpcrelay.New(grpcrelay.Options{Addr: cfg.Relay.Addr, Logger: logger.Named("transport")})
	ctrl := lifecycle.New(lifecycle.Options{
		Config:    cfg,
		Transport: tr,
		Hooks:     hooks,
		Logger:    logger.Named("lifecycle"),
	})
	if err := ctrl.Connect(cfg.Player.Name); err != nil {
		termbox.Close()
		log.Fatalf("Ошибка при подключении: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Обрабатываем сигналы для корректного завершения
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signalChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	input := &inputState{}
	go processInput(input)

	hooks.RegisterGameSystem(&sessionSystem{ctrl: ctrl, input: input, room: *roomName, msgs: msgs})
	hooks.RegisterGameSystem(gameloop.SystemFunc{ID: "render", Fn: func(context.Context, time.Duration) {
		render(ctrl, msgs)
	}})
	loop := gameloop.NewLoop(cfg.FrameDelta(), logger.Named("loop"), cfg.Strict, hooks.GameSystems()...)
	loop.Run(ctx)

	if ctrl.State() != lifecycle.Disconnected {
		_ = ctrl.Disconnect()
	}
	termbox.Interrupt()
	logger.Info("Клиент завершает работу")
}

// sessionSystem drives the controller: auto-joins the room from the flags,
// feeds input frames and stops the loop on quit or disconnect.
type sessionSystem struct {
	ctrl   *lifecycle.Controller
	input  *inputState
	room   string
	msgs   *messages
	logger *zap.SugaredLogger
	stop   func()

	triedJoin   bool
	triedCreate bool
}

func (s *sessionSystem) Name() string { return "session" }

func (s *sessionSystem) Init(deps gameloop.Dependencies) error {
	s.logger = deps.Logger
	s.stop = deps.Stop
	return nil
}

func (s *sessionSystem) Tick(ctx context.Context, dt time.Duration) {
	in, quit := s.input.current(time.Now())
	if quit {
		s.stop()
		return
	}
	s.ctrl.Update(dt, in)

	switch s.ctrl.State() {
	case lifecycle.InLobby:
		// сначала пробуем войти, при отказе создаём комнату сами
		switch {
		case s.room != "" && !s.triedJoin:
			s.triedJoin = true
			s.report(s.ctrl.JoinRoom(s.room))
		case !s.triedCreate:
			if err := s.ctrl.LastError(); err != nil && s.triedJoin {
				s.msgs.add("Комната %s: %v", s.room, err)
			}
			s.triedCreate = true
			s.report(s.ctrl.CreateRoom(s.room))
		}
	case lifecycle.Disconnected:
		if err := s.ctrl.LastError(); err != nil {
			s.logger.Warnf("Disconnected: %v", err)
		}
		s.stop()
	}
}

func (s *sessionSystem) report(err error) {
	if err != nil {
		s.msgs.add("Ошибка: %v", err)
	}
}

// registerHooks выводит события комнаты в нижнюю панель.
func registerHooks(hooks *registry.Registry, msgs *messages) {
	hooks.RegisterHook(registry.HookStateChanged, func(args ...interface{}) {
		msgs.add("Состояние: %v -> %v", args[0], args[1])
	})
	hooks.RegisterHook(registry.HookPeerJoined, func(args ...interface{}) {
		msgs.add("Игрок %v вошёл", args[0])
	})
	hooks.RegisterHook(registry.HookPeerLeft, func(args ...interface{}) {
		msgs.add("Игрок %v вышел, хост %v", args[0], args[1])
	})
	hooks.RegisterHook(registry.HookTagged, func(args ...interface{}) {
		msgs.add("Теперь водит %v", args[0])
	})
	hooks.RegisterHook(registry.HookRoundReset, func(args ...interface{}) {
		msgs.add("Новый раунд")
	})
}

// processInput обрабатывает ввод с клавиатуры
func processInput(s *inputState) {
	for {
		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			switch ev.Key {
			case termbox.KeyEsc, termbox.KeyCtrlC:
				s.mu.Lock()
				s.quit = true
				s.mu.Unlock()
				return
			case termbox.KeyArrowUp:
				s.press(0, -1)
			case termbox.KeyArrowDown:
				s.press(0, 1)
			case termbox.KeyArrowLeft:
				s.press(-1, 0)
			case termbox.KeyArrowRight:
				s.press(1, 0)
			case termbox.KeySpace:
				s.toggleTransparent()
			}

			switch ev.Ch {
			case 'w':
				s.press(0, -1)
			case 's':
				s.press(0, 1)
			case 'a':
				s.press(-1, 0)
			case 'd':
				s.press(1, 0)
			case 'q':
				s.mu.Lock()
				s.quit = true
				s.mu.Unlock()
				return
			}
		case termbox.EventInterrupt:
			return
		case termbox.EventError:
			log.Printf("Ошибка терминала: %v", ev.Err)
			return
		}
	}
}
