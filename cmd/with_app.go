package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"gatehouse/internal/bootstrap"
	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/transport/rest"
	"gatehouse/internal/usecase/badge"
	"gatehouse/internal/usecase/monitor"
	"gatehouse/internal/usecase/reconcile"
	"gatehouse/internal/usecase/station"
)

// appDeps is everything a command may pull out of the container. Commands use
// the slice of it they need; the rest stays nil-cost.
type appDeps struct {
	fx.In

	App       *bootstrap.App
	Station   *station.Service
	Reconcile *reconcile.Service
	Badge     *badge.Service
	Monitor   *monitor.Service
	Layout    *badge.LayoutProvider
	Handler   *rest.Handler
	Hub       *rest.OpsHub
}

func withApp(run func(cmd *cobra.Command, deps appDeps) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var deps appDeps
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&deps),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, deps); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
