package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Device    DeviceConfig    `mapstructure:"device"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Systemd   SystemdConfig   `mapstructure:"systemd"`
	ConfigDir ConfigDirConfig `mapstructure:"config_files"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecretEnv        string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL      time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL     time.Duration `mapstructure:"refresh_token_ttl"`
	LegacySalt          string        `mapstructure:"legacy_salt"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	LoginAttemptWindow  time.Duration `mapstructure:"login_attempt_window"`
	DefaultUsername     string        `mapstructure:"default_username"`
	DefaultPasswordEnv  string        `mapstructure:"default_password_env"`
}

// DeviceConfig describes the relays reachable through the control binary.
type DeviceConfig struct {
	Binary         string        `mapstructure:"binary"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	Relays         []string      `mapstructure:"relays"`
}

type ScheduleConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// EmptyDaysMatchAll selects what an empty day-set means: true = schedule
	// applies every day, false = schedule never applies. The two legacy call
	// sites disagreed on this; both now read this one flag.
	EmptyDaysMatchAll bool `mapstructure:"empty_days_match_all"`
}

type SystemdConfig struct {
	AllowedServices []string      `mapstructure:"allowed_services"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
}

type ConfigDirConfig struct {
	DeviceMapPath string `mapstructure:"device_map_path"`
	LogDir        string `mapstructure:"log_dir"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Output     string `mapstructure:"output"` // console, file, both
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("database.path", "./data/switchboard.db")
	viper.SetDefault("database.busy_timeout", "15s")
	viper.SetDefault("database.conn_max_lifetime", "1h")

	viper.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	viper.SetDefault("auth.access_token_ttl", "60m")
	viper.SetDefault("auth.refresh_token_ttl", "168h")
	viper.SetDefault("auth.legacy_salt", "jebi_salt_2025")
	viper.SetDefault("auth.login_max_attempts", 5)
	viper.SetDefault("auth.login_attempt_window", "5m")
	viper.SetDefault("auth.default_username", "operator")
	viper.SetDefault("auth.default_password_env", "SWITCHBOARD_DEFAULT_PASSWORD")

	viper.SetDefault("device.binary", "piTest")
	viper.SetDefault("device.command_timeout", "10s")
	viper.SetDefault("device.relays", []string{
		"RelayProcessor", "RelayScreen", "RelayLight",
		"LedProcessor", "LedScreen", "LedLight",
	})

	viper.SetDefault("schedule.poll_interval", "60s")
	viper.SetDefault("schedule.empty_days_match_all", false)

	viper.SetDefault("systemd.allowed_services", []string{
		"switchboard-guard.service", "switchboard.service",
	})
	viper.SetDefault("systemd.command_timeout", "10s")

	viper.SetDefault("config_files.device_map_path", "./config/device_map.json")
	viper.SetDefault("config_files.log_dir", "/var/log/switchboard")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "console")
	viper.SetDefault("log.file_path", "./data/logs/switchboard.log")
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SWB")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// JWT secret comes from the environment, never from the config file.
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET"
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		// Development fallback
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}

// DefaultPassword resolves the seeded operator password, with a development
// fallback when the env var is unset.
func (a *AuthConfig) DefaultPassword() string {
	if pw := os.Getenv(a.DefaultPasswordEnv); pw != "" {
		return pw
	}
	return "changeme"
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
