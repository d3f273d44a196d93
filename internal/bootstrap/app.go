package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"gatehouse/internal/bootstrap/config"
	"gatehouse/internal/bootstrap/database"
	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/infrastructure/persistence/sqlite/model"
)

// App holds the two stores the system runs on: the server-side canonical
// database and the station-resident local queue. A single process may use
// either or both depending on the command.
type App struct {
	Config    config.Config
	ServerDB  *gorm.DB
	StationDB *gorm.DB
}

func New(ctx context.Context, configFile string) (*App, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "loading application config", slog.String("config_file", configFile))

	cfg, err := config.Load(logCtx, configFile)
	if err != nil {
		return nil, errs.Wrap(err, "load config")
	}

	serverDB, err := database.Open(logCtx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, errs.Wrap(err, "open server database")
	}

	stationDB, err := database.Open(logCtx, cfg.Database.Driver, cfg.Station.DSN)
	if err != nil {
		return nil, errs.Wrap(err, "open station database")
	}

	logging.Info(logCtx, "application bootstrap completed", slog.String("database_driver", cfg.Database.Driver))

	return &App{
		Config:    cfg,
		ServerDB:  serverDB,
		StationDB: stationDB,
	}, nil
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.ServerDB.WithContext(ctx).AutoMigrate(
		&model.Ticket{},
		&model.CanonicalCheckIn{},
		&model.BadgePrintJob{},
		&model.EventStats{},
		&model.StationState{},
	); err != nil {
		return errs.Wrap(err, "auto migrate server schema")
	}

	if err := a.StationDB.WithContext(ctx).AutoMigrate(
		&model.QueuedCheckIn{},
		&model.StationState{},
		&model.SnapshotKV{},
	); err != nil {
		return errs.Wrap(err, "auto migrate station schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	for _, db := range []*gorm.DB{a.ServerDB, a.StationDB} {
		sqlDB, err := db.DB()
		if err != nil {
			return errs.Wrap(err, "get sql db")
		}
		if err := sqlDB.Close(); err != nil {
			return errs.Wrap(err, "close sql db")
		}
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "bootstrap.app")), "database connections closed")
	return nil
}
