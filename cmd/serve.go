package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/transport/rest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation HTTP server",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = deps.App.Config.Server.Addr
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := rest.NewServer(addr, deps.Handler.Router())

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			deps.Hub.Close()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logging.Warn(ctx, "http server shutdown failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := server.Start(ctx); err != nil {
			return errs.Wrap(err, "serve http")
		}

		logging.Info(ctx, "http server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "HTTP listen address (defaults to server.addr from config)")
}
