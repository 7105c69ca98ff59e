package storage

import "time"

// Notification modes. Stored as bare strings; anything else found on disk
// is skipped at load time.
const (
	ModeOnChange = "on_change"
	ModeDaily    = "daily"
)

func ValidMode(m string) bool {
	return m == ModeOnChange || m == ModeDaily
}

// Subscription is one tracked application id with its last observed percent.
// LastPercent == nil means "tracked, but no numeric progress observed yet",
// a real state, distinct from "not tracked".
type Subscription struct {
	ID          string
	LastPercent *int
}

// Subscriptions preserves per-chat insertion order: List is surfaced to the
// subscriber verbatim, so the order they added ids in must survive restarts.
type Subscriptions = map[int64][]Subscription

type Modes = map[int64]string

type Labels = map[int64]map[string]string

// Config configures storage.
//
// Driver values:
//   - "json": one json file per table under Dir (default)
//   - "sqlite": single SQLite database file at Path
type Config struct {
	Driver      string
	Dir         string        // json driver
	Path        string        // sqlite driver
	BusyTimeout time.Duration // sqlite only; 0 means default
}
