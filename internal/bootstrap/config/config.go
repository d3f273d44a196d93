package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Station   StationConfig   `mapstructure:"station"`
	Server    ServerConfig    `mapstructure:"server"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Badge     BadgeConfig     `mapstructure:"badge"`
	Bus       BusConfig       `mapstructure:"bus"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// DatabaseConfig is the server-side canonical store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// StationConfig describes the local check-in terminal: its identity and
// station-resident durable queue.
type StationConfig struct {
	ID         string `mapstructure:"id"`
	DeviceType string `mapstructure:"device_type"`
	DSN        string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"`
}

// SyncConfig drives the background sync loop on a station.
type SyncConfig struct {
	Interval               time.Duration `mapstructure:"interval"`
	SubmitTimeout          time.Duration `mapstructure:"submit_timeout"`
	PermanentFailurePolicy string        `mapstructure:"permanent_failure_policy"`
	StuckAttemptsThreshold int           `mapstructure:"stuck_attempts_threshold"`
}

type HeartbeatConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	OfflineAfter time.Duration `mapstructure:"offline_after"`
}

type BadgeConfig struct {
	LayoutFile   string        `mapstructure:"layout_file"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type BusConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

const (
	// PermanentFailurePark marks records rejected by the server as synced with
	// the error retained, so they stop retrying but stay visible to operators.
	PermanentFailurePark = "park"
	// PermanentFailureRetry leaves rejected records unsynced for indefinite retry.
	PermanentFailureRetry = "retry"
)

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(logCtx, v)

	v.SetEnvPrefix("GH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.Station.DSN == "" {
		return Config{}, errors.New("station.dsn is required")
	}

	switch cfg.Sync.PermanentFailurePolicy {
	case PermanentFailurePark, PermanentFailureRetry:
	default:
		return Config{}, fmt.Errorf("unsupported sync.permanent_failure_policy %q", cfg.Sync.PermanentFailurePolicy)
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("station_id", cfg.Station.ID),
		slog.String("database_driver", cfg.Database.Driver),
	)

	return cfg, nil
}

func setDefaults(ctx context.Context, v *viper.Viper) {
	if ctx == nil {
		return
	}

	v.SetDefault("app.name", "gatehouse")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".gatehouse/state/server.sqlite")

	v.SetDefault("station.id", "station-1")
	v.SetDefault("station.device_type", "kiosk")
	v.SetDefault("station.dsn", ".gatehouse/state/station.sqlite")

	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.base_url", "http://localhost:8090")

	v.SetDefault("sync.interval", 15*time.Second)
	v.SetDefault("sync.submit_timeout", 5*time.Second)
	v.SetDefault("sync.permanent_failure_policy", PermanentFailurePark)
	v.SetDefault("sync.stuck_attempts_threshold", 10)

	v.SetDefault("heartbeat.interval", 30*time.Second)
	v.SetDefault("heartbeat.offline_after", 90*time.Second)

	v.SetDefault("badge.layout_file", "configs/badge_layout.toml")
	v.SetDefault("badge.poll_interval", 2*time.Second)

	v.SetDefault("bus.url", "")
	v.SetDefault("bus.subject_prefix", "gatehouse")
}
