package ports

import "context"

// QueuedCheckIn is a check-in event captured at a station, waiting in the
// local durable queue until the server accepts it. ID is client-generated and
// is the idempotency key for the whole pipeline.
type QueuedCheckIn struct {
	ID              string `yaml:"id"`
	TicketID        string `yaml:"ticket_id"`
	StationID       string `yaml:"station_id"`
	ClientTimestamp string `yaml:"client_timestamp"`
	Method          string `yaml:"method"`
	Synced          bool   `yaml:"synced"`
	SyncAttempts    int    `yaml:"sync_attempts"`
	LastSyncAttempt string `yaml:"last_sync_attempt,omitempty"`
	Error           string `yaml:"error,omitempty"`
}

// StationState is the station's own status snapshot: heartbeat timestamp,
// pending-sync backlog and the stuck-retry count the monitor surfaces. It is
// observational only.
type StationState struct {
	StationID        string `yaml:"station_id"`
	LastHeartbeat    string `yaml:"last_heartbeat"`
	PendingSyncCount int    `yaml:"pending_sync_count"`
	StuckSyncCount   int    `yaml:"stuck_sync_count"`
	DeviceType       string `yaml:"device_type"`
}

// QueueSnapshot is a read-only diagnostics dump of the local queue.
type QueueSnapshot struct {
	CheckIns []QueuedCheckIn `yaml:"check_ins"`
	Stations []StationState  `yaml:"stations"`
}

// LocalQueue is the station-resident durable queue. All writes are
// single-record transactions; callers must not rely on ListUnsynced ordering.
type LocalQueue interface {
	Enqueue(ctx context.Context, record QueuedCheckIn) error
	// ListUnsynced returns records with Synced=false; stationID "" means all.
	ListUnsynced(ctx context.Context, stationID string) ([]QueuedCheckIn, error)
	// MarkSynced flips the synced flag only; idempotent, no-op if absent.
	// The last recorded error stays visible for audit.
	MarkSynced(ctx context.Context, id string) error
	// RecordSyncError increments attempts and stores the message; no-op if absent.
	RecordSyncError(ctx context.Context, id string, message string) error
	// CleanupSynced purges synced records older than the retention window.
	// Unsynced records are never touched regardless of age.
	CleanupSynced(ctx context.Context, olderThanDays int) (int64, error)
	SaveStationState(ctx context.Context, state StationState) error
	GetStationState(ctx context.Context, stationID string) (StationState, bool, error)
	ExportAll(ctx context.Context) (QueueSnapshot, error)
}
