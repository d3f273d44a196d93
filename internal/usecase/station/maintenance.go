package station

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
)

// Cleanup purges synced records older than the retention window. Unsynced
// records are never touched; only the server's acceptance makes a record
// eligible for deletion.
func (s *Service) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}

	purged, err := s.queue.CleanupSynced(ctx, olderThanDays)
	if err != nil {
		return 0, errs.Wrap(err, "cleanup synced check-ins")
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "station.maintenance")),
		"queue cleanup finished",
		slog.Int64("purged", purged),
		slog.Int("older_than_days", olderThanDays),
	)
	return purged, nil
}

// Export writes a read-only YAML snapshot of the local queue for diagnostics.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if w == nil {
		return errors.New("writer is required")
	}

	snapshot, err := s.queue.ExportAll(ctx)
	if err != nil {
		return errs.Wrap(err, "export local queue")
	}

	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(snapshot); err != nil {
		return errs.Wrap(err, "encode queue snapshot")
	}
	return nil
}
