package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"gatehouse/internal/bootstrap/config"
	"gatehouse/internal/bootstrap/database"
	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/infrastructure/bus"
	cacheinfra "gatehouse/internal/infrastructure/cache"
	"gatehouse/internal/infrastructure/gateclient"
	printerinfra "gatehouse/internal/infrastructure/printer"
	sqliterepo "gatehouse/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "gatehouse/internal/infrastructure/persistence/sqlite/uow"
	"gatehouse/internal/ports"
	"gatehouse/internal/transport/rest"
	"gatehouse/internal/usecase/badge"
	"gatehouse/internal/usecase/monitor"
	"gatehouse/internal/usecase/reconcile"
	"gatehouse/internal/usecase/station"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(
		fx.Annotate(provideServerDB, fx.ResultTags(`name:"server"`)),
		fx.Annotate(provideStationDB, fx.ResultTags(`name:"station"`)),
	),
	fx.Provide(
		fx.Annotate(provideApp, fx.ParamTags("", `name:"server"`, `name:"station"`)),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewTicketRepository,
			fx.ParamTags(`name:"server"`),
			fx.As(new(ports.TicketRepository)),
		),
		fx.Annotate(
			sqliterepo.NewCanonicalRepository,
			fx.ParamTags(`name:"server"`),
			fx.As(new(ports.CanonicalRepository)),
		),
		fx.Annotate(
			sqliterepo.NewBadgeRepository,
			fx.ParamTags(`name:"server"`),
			fx.As(new(ports.BadgeQueue)),
		),
		fx.Annotate(
			sqliterepo.NewStationDirectory,
			fx.ParamTags(`name:"server"`),
			fx.As(new(ports.StationDirectory)),
		),
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.ParamTags(`name:"server"`),
			fx.As(new(ports.UnitOfWork)),
		),
		fx.Annotate(
			sqliterepo.NewQueueRepository,
			fx.ParamTags(`name:"station"`),
			fx.As(new(ports.LocalQueue)),
		),
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.ParamTags(`name:"station"`),
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideGateClient),
	fx.Provide(rest.NewOpsHub),
	fx.Provide(providePublisher),
	fx.Provide(reconcile.NewService),
	fx.Provide(provideMonitorService),
	fx.Provide(provideLayoutProvider),
	fx.Provide(providePrinter),
	fx.Provide(badge.NewService),
	fx.Provide(provideStationService),
	fx.Provide(rest.NewHandler),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideServerDB(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	return openManagedDB(lc, ctx, cfg.Database.Driver, cfg.Database.DSN)
}

func provideStationDB(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	return openManagedDB(lc, ctx, cfg.Database.Driver, cfg.Station.DSN)
}

func openManagedDB(lc fx.Lifecycle, ctx context.Context, driver string, dsn string) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, driver, dsn)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, serverDB *gorm.DB, stationDB *gorm.DB) *App {
	return &App{
		Config:    cfg,
		ServerDB:  serverDB,
		StationDB: stationDB,
	}
}

func provideGateClient(cfg config.Config) (ports.GateClient, error) {
	client, err := gateclient.New(cfg.Server.BaseURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// providePublisher combines the websocket ops feed with the optional NATS
// bridge. The reconciliation service never sees more than one publisher.
func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config, hub *rest.OpsHub) (ports.EventPublisher, error) {
	publishers := []ports.EventPublisher{hub}

	if cfg.Bus.URL != "" {
		nats, err := bus.NewNATSPublisher(ctx, cfg.Bus.URL, cfg.Bus.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				nats.Close()
				return nil
			},
		})
		publishers = append(publishers, nats)
	}

	return bus.NewFanout(publishers...), nil
}

func provideMonitorService(cfg config.Config, directory ports.StationDirectory) *monitor.Service {
	return monitor.NewService(directory, monitor.Options{
		OfflineAfter: cfg.Heartbeat.OfflineAfter,
	})
}

func provideLayoutProvider(cfg config.Config) *badge.LayoutProvider {
	return badge.NewLayoutProvider(cfg.Badge.LayoutFile)
}

func providePrinter() ports.BadgePrinter {
	return printerinfra.NewConsole(os.Stdout)
}

func provideStationService(cfg config.Config, queue ports.LocalQueue, cache ports.Cache, client ports.GateClient) *station.Service {
	return station.NewService(queue, cache, client, station.Options{
		StationID:              cfg.Station.ID,
		DeviceType:             cfg.Station.DeviceType,
		SubmitTimeout:          cfg.Sync.SubmitTimeout,
		PermanentFailurePolicy: cfg.Sync.PermanentFailurePolicy,
		HeartbeatTimeout:       cfg.Sync.SubmitTimeout,
		StuckAttemptsThreshold: cfg.Sync.StuckAttemptsThreshold,
	})
}
