package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jebisys/switchboard/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Store owns the shared SQLite file. Both the panel server and the scheduler
// daemon open it; WAL plus a generous busy_timeout keeps the two writers out
// of each other's way.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	busyMS := cfg.BusyTimeout.Milliseconds()
	if busyMS <= 0 {
		busyMS = 15000
	}
	dsn := fmt.Sprintf(
		"%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		cfg.Path, busyMS,
	)

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		// SQLite wraps every write in a transaction already; the default
		// per-call transaction only amplifies lock contention.
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Single connection so the PRAGMAs hold for every statement.
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&DeviceSchedule{},
		&ScheduleDay{},
		&RelayActivation{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// OpenInMemory is for tests.
func OpenInMemory(logger *zap.Logger) (*Store, error) {
	return Open(config.DatabaseConfig{Path: ":memory:"}, logger)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
