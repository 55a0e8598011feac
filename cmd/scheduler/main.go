// The scheduler daemon runs the poll loop as its own process with its own
// database handle, so schedules keep firing when the panel is down.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jebisys/switchboard/internal/config"
	"github.com/jebisys/switchboard/internal/device"
	"github.com/jebisys/switchboard/internal/logging"
	"github.com/jebisys/switchboard/internal/reconcile"
	"github.com/jebisys/switchboard/internal/schedule"
	"github.com/jebisys/switchboard/internal/storage"
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

	store, err := storage.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	driver := device.NewPiTestDriver(cfg.Device, logger)
	policy := schedule.Policy{EmptyDaysMatchAll: cfg.Schedule.EmptyDaysMatchAll}

	poller := reconcile.NewPoller(store, driver, policy, cfg.Schedule.PollInterval, logger)
	poller.Start()

	logger.Info("Switchboard scheduler started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	poller.Stop()
	logger.Info("Switchboard scheduler stopped successfully")
}
