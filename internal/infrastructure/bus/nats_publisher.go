package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"gatehouse/internal/bootstrap/logging"
	"gatehouse/internal/errs"
	"gatehouse/internal/ports"
)

// NATSPublisher pushes admission and badge events onto a NATS subject tree
// for out-of-scope dashboard consumers. It is optional: an empty URL means
// the caller should use Noop instead.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(ctx context.Context, url string, subjectPrefix string) (*NATSPublisher, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("bus url is required")
	}

	conn, err := nats.Connect(url, nats.Name("gatehouse"))
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}

	prefix := strings.TrimSpace(subjectPrefix)
	if prefix == "" {
		prefix = "gatehouse"
	}

	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "bus.nats")),
		"bus connected",
		slog.String("url", url),
		slog.String("subject_prefix", prefix),
	)

	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) PublishAdmitted(ctx context.Context, row ports.CanonicalCheckIn) error {
	return p.publish(ctx, p.prefix+".checkin.admitted", row)
}

func (p *NATSPublisher) PublishBadgeQueued(ctx context.Context, job ports.BadgePrintJob) error {
	return p.publish(ctx, p.prefix+".badge.queued", job)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, payload any) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "marshal bus payload")
	}
	if err := p.conn.Publish(subject, raw); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// Noop is the publisher used when no bus is configured.
type Noop struct{}

var _ ports.EventPublisher = Noop{}

func (Noop) PublishAdmitted(context.Context, ports.CanonicalCheckIn) error { return nil }
func (Noop) PublishBadgeQueued(context.Context, ports.BadgePrintJob) error { return nil }

// Fanout forwards each event to every publisher; a slow or failing consumer
// only logs, because publishing must never affect the admission itself.
type Fanout struct {
	publishers []ports.EventPublisher
}

var _ ports.EventPublisher = (*Fanout)(nil)

func NewFanout(publishers ...ports.EventPublisher) *Fanout {
	return &Fanout{publishers: publishers}
}

func (f *Fanout) PublishAdmitted(ctx context.Context, row ports.CanonicalCheckIn) error {
	for _, pub := range f.publishers {
		if err := pub.PublishAdmitted(ctx, row); err != nil {
			logging.Warn(ctx, "publish admitted event failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	return nil
}

func (f *Fanout) PublishBadgeQueued(ctx context.Context, job ports.BadgePrintJob) error {
	for _, pub := range f.publishers {
		if err := pub.PublishBadgeQueued(ctx, job); err != nil {
			logging.Warn(ctx, "publish badge event failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	return nil
}
