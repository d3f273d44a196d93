package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
)

var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize server and station database schemas",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := deps.App.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		logging.Info(
			ctx,
			"init-db finished",
			slog.String("server_dsn", deps.App.Config.Database.DSN),
			slog.String("station_dsn", deps.App.Config.Station.DSN),
		)
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"database schemas initialized: server=%s station=%s\n",
			deps.App.Config.Database.DSN,
			deps.App.Config.Station.DSN,
		); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
