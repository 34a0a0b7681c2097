package storage

import "time"

// Snapshot describes a stored catalog payload.
type Snapshot struct {
	Kind      string
	Size      int
	FetchedAt time.Time
}

// ForecastRun is one forecast request and its result, kept for history.
type ForecastRun struct {
	ID        int64
	SessionID string
	Request   string // JSON sent to the forecast engine
	Result    string // JSON the forecast engine returned
	Presets   int
	Geos      int
	CreatedAt time.Time
}
