package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"passbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps the three tables in one database file. Each Save is a
// whole-table replace inside a transaction, which gives the same atomicity
// as the json driver's tmp+rename. The pos column preserves the per-chat
// insertion order the subscriber sees in /list.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(string(b)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadSubscriptions() (Subscriptions, error) {
	rows, err := s.db.Query(
		`SELECT chat_id, app_id, last_percent FROM subscriptions ORDER BY chat_id, pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := Subscriptions{}
	for rows.Next() {
		var (
			chatID  int64
			appID   string
			percent sql.NullInt64
		)
		if err := rows.Scan(&chatID, &appID, &percent); err != nil {
			s.log.Warn("skipping subscription row", logx.Err(err))
			continue
		}
		sub := Subscription{ID: appID}
		if percent.Valid {
			p := int(percent.Int64)
			sub.LastPercent = &p
		}
		out[chatID] = append(out[chatID], sub)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveSubscriptions(subs Subscriptions) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM subscriptions`); err != nil {
		return err
	}
	for chatID, entries := range subs {
		for pos, sub := range entries {
			var percent any
			if sub.LastPercent != nil {
				percent = *sub.LastPercent
			}
			if _, err := tx.Exec(
				`INSERT INTO subscriptions(chat_id, app_id, last_percent, pos) VALUES(?,?,?,?)`,
				chatID, sub.ID, percent, pos,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadModes() (Modes, error) {
	rows, err := s.db.Query(`SELECT chat_id, mode FROM modes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := Modes{}
	for rows.Next() {
		var (
			chatID int64
			mode   string
		)
		if err := rows.Scan(&chatID, &mode); err != nil {
			s.log.Warn("skipping mode row", logx.Err(err))
			continue
		}
		if !ValidMode(mode) {
			s.log.Warn("skipping mode row: unknown mode", logx.Int64("chat_id", chatID), logx.String("mode", mode))
			continue
		}
		out[chatID] = mode
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveModes(modes Modes) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM modes`); err != nil {
		return err
	}
	for chatID, mode := range modes {
		if _, err := tx.Exec(`INSERT INTO modes(chat_id, mode) VALUES(?,?)`, chatID, mode); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadLabels() (Labels, error) {
	rows, err := s.db.Query(`SELECT chat_id, app_id, label FROM labels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := Labels{}
	for rows.Next() {
		var (
			chatID int64
			appID  string
			label  string
		)
		if err := rows.Scan(&chatID, &appID, &label); err != nil {
			s.log.Warn("skipping label row", logx.Err(err))
			continue
		}
		if out[chatID] == nil {
			out[chatID] = map[string]string{}
		}
		out[chatID][appID] = label
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveLabels(labels Labels) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM labels`); err != nil {
		return err
	}
	for chatID, inner := range labels {
		for appID, label := range inner {
			if _, err := tx.Exec(
				`INSERT INTO labels(chat_id, app_id, label) VALUES(?,?,?)`,
				chatID, appID, label,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
