package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jebisys/switchboard/internal/api/rest"
	"github.com/jebisys/switchboard/internal/api/websocket"
	"github.com/jebisys/switchboard/internal/auth"
	"github.com/jebisys/switchboard/internal/config"
	"github.com/jebisys/switchboard/internal/configfiles"
	"github.com/jebisys/switchboard/internal/device"
	"github.com/jebisys/switchboard/internal/logging"
	"github.com/jebisys/switchboard/internal/reconcile"
	"github.com/jebisys/switchboard/internal/schedule"
	"github.com/jebisys/switchboard/internal/storage"
	"github.com/jebisys/switchboard/internal/systemd"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Config loaded successfully", zap.String("path", *configPath))

	store, err := storage.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	logger.Info("Database opened successfully", zap.String("path", cfg.Database.Path))

	authService := auth.NewAuthService(store, cfg.Auth, logger)
	if err := authService.EnsureDefaultUser(context.Background(), cfg.Auth.DefaultUsername, cfg.Auth.DefaultPassword()); err != nil {
		logger.Fatal("Failed to seed default user", zap.Error(err))
	}

	driver := device.NewPiTestDriver(cfg.Device, logger)
	policy := schedule.Policy{EmptyDaysMatchAll: cfg.Schedule.EmptyDaysMatchAll}
	reconciler := reconcile.NewReconciler(store, driver, policy, logger)
	services := systemd.NewManager(cfg.Systemd, logger)
	editor := configfiles.NewEditor(cfg.ConfigDir.DeviceMapPath, logger)
	logBrowser := configfiles.NewLogBrowser(cfg.ConfigDir.LogDir)

	wsHub := websocket.NewHub(logger, authService)
	go wsHub.Run()
	reconciler.SetNotifier(wsHub)

	server := rest.NewServer(cfg, rest.Deps{
		AuthService: authService,
		Store:       store,
		Driver:      driver,
		Reconciler:  reconciler,
		Services:    services,
		Editor:      editor,
		LogBrowser:  logBrowser,
		WSHub:       wsHub,
	}, logger)

	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	logger.Info("Switchboard panel started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Switchboard panel stopped successfully")
}
