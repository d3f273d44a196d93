package station

import (
	"errors"
	"sync"
	"time"

	"gatehouse/internal/ports"
)

var (
	ErrSyncInProgress = errors.New("sync pass already in progress")

	errCodeRequired = errors.New("ticket code is required")
)

// Options carry the station identity and sync policy knobs from config.
type Options struct {
	StationID              string
	DeviceType             string
	SubmitTimeout          time.Duration
	PermanentFailurePolicy string
	HeartbeatTimeout       time.Duration
	StuckAttemptsThreshold int
}

// Service owns the station-side flows: capture, background sync, heartbeat,
// queue maintenance. One Service per station process; the sync mutex keeps
// passes from overlapping so no record is in flight twice.
type Service struct {
	queue  ports.LocalQueue
	cache  ports.Cache
	client ports.GateClient
	opts   Options

	syncMu sync.Mutex
}

func NewService(queue ports.LocalQueue, cache ports.Cache, client ports.GateClient, opts Options) *Service {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 5 * time.Second
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = opts.SubmitTimeout
	}

	return &Service{
		queue:  queue,
		cache:  cache,
		client: client,
		opts:   opts,
	}
}

func (s *Service) StationID() string {
	return s.opts.StationID
}
