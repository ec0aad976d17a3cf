package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/annelo/ghosttag/internal/config"
	"github.com/annelo/ghosttag/internal/logging"
	"github.com/annelo/ghosttag/internal/registry"
	"github.com/annelo/ghosttag/internal/relay"
	"github.com/annelo/ghosttag/internal/relay/wire"
)

var (
	configPath = flag.String("config", "ghosttag.yaml", "Путь к YAML-конфигу")
	addr       = flag.String("addr", "", "Адрес gRPC (по умолчанию из конфига)")
	adminAddr  = flag.String("admin", "", "Адрес HTTP-админки (по умолчанию из конфига, пусто = выключена)")
	noREPL     = flag.Bool("no-repl", false, "Не читать команды из stdin")
)

func main() {
	// Парсим флаги командной строки
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	if *addr != "" {
		cfg.Relay.Addr = *addr
	}
	if *adminAddr != "" {
		cfg.Relay.AdminAddr = *adminAddr
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatalf("Не удалось создать логгер: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Создаем TCP-слушатель
	lis, err := net.Listen("tcp", cfg.Relay.Addr)
	if err != nil {
		logger.Fatalf("Не удалось создать слушателя: %v", err)
	}

	grpcServer := grpc.NewServer(grpc.ForceServerCodec(wire.Codec{}))
	srv := relay.NewServer(relay.Options{
		RoomCapacity: cfg.Relay.RoomCapacity,
		SendQueue:    cfg.Relay.SendQueue,
		Logger:       logger.Named("relay"),
	})
	srv.RegisterServer(grpcServer)
	// Включаем reflection для инструментов вроде grpcurl
	reflection.Register(grpcServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var admin *http.Server
	if cfg.Relay.AdminAddr != "" {
		admin = &http.Server{
			Addr:              cfg.Relay.AdminAddr,
			Handler:           relay.NewAdminRouter(srv),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Infof("Admin HTTP on %s", cfg.Relay.AdminAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Admin HTTP error: %v", err)
			}
		}()
	}

	shutdown := func() {
		cancel()
		srv.Stop()
		if admin != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			_ = admin.Shutdown(shutdownCtx)
			done()
		}
		grpcServer.GracefulStop()
	}

	// Обрабатываем сигналы для корректного завершения
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signalChan:
			logger.Info("Получен сигнал завершения, останавливаем релей...")
			shutdown()
		case <-ctx.Done():
		}
	}()

	reg := registry.New()
	registerCommands(reg, srv, cfg, shutdown)
	reg.MarkCore()
	if !*noREPL {
		go repl(reg)
	}

	logger.Infof("Релей запущен на %s", cfg.Relay.Addr)
	if err := grpcServer.Serve(lis); err != nil {
		logger.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

// registerCommands регистрирует встроенные команды администратора.
func registerCommands(reg *registry.Registry, srv *relay.Server, cfg config.Config, stop func()) {
	reg.RegisterCommand("rooms", "List rooms and members", func(args []string) (string, error) {
		var sb strings.Builder
		for _, r := range srv.Status() {
			sb.WriteString(fmt.Sprintf("%s (%d/%d) host=%s\n", r.Name, len(r.Members), r.Capacity, r.Host))
			for _, m := range r.Members {
				sb.WriteString("  " + m + "\n")
			}
		}
		if sb.Len() == 0 {
			return "No rooms\n", nil
		}
		return sb.String(), nil
	})
	reg.RegisterCommand("kick", "Disconnect a peer: kick <peerID> [reason]", func(args []string) (string, error) {
		if len(args) < 1 {
			return "Usage: kick <peerID> [reason]\n", nil
		}
		if err := srv.Kick(args[0], strings.Join(args[1:], " ")); err != nil {
			return "", err
		}
		return fmt.Sprintf("Kicked %s\n", args[0]), nil
	})
	reg.RegisterCommand("config", "Show effective config", func(args []string) (string, error) {
		data, err := cfg.Marshal()
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	reg.RegisterCommand("stop", "Stop relay", func(args []string) (string, error) {
		go stop()
		return "Relay stopping\n", nil
	})
	reg.RegisterCommand("help", "List commands", func(args []string) (string, error) {
		return reg.Help(), nil
	})
}

// repl читает команды администратора из stdin.
func repl(reg *registry.Registry) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		out, err := reg.RunCommand(strings.TrimSpace(line))
		if errors.Is(err, registry.ErrUnknownCommand) {
			fmt.Printf("Неизвестная команда: %s\n", strings.TrimSpace(line))
			continue
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Print(out)
	}
}
