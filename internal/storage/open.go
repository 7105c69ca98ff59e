package storage

import (
	"errors"
	"strings"

	"passbot/pkg/logx"
)

// Store is the persistence API used by the tracker engine.
//
// Load methods return an empty table (not an error) when the backing data
// simply does not exist yet; individually malformed entries are skipped.
// A returned error means the whole table could not be read; callers are
// expected to log it and start from an empty table rather than fail.
type Store interface {
	LoadSubscriptions() (Subscriptions, error)
	SaveSubscriptions(Subscriptions) error

	LoadModes() (Modes, error)
	SaveModes(Modes) error

	LoadLabels() (Labels, error)
	SaveLabels(Labels) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "json", "file":
		return openJSON(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
