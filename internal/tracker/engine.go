package tracker

import (
	"strings"
	"sync"

	"passbot/internal/storage"
	"passbot/pkg/logx"
)

// Engine owns the in-memory projection of the three durable tables and is
// the only writer to them. Every mutating operation persists synchronously
// before returning, under the same lock as the map mutation, so a record is
// never observed half-written. Store failures are logged and swallowed: the
// engine keeps serving from memory (degraded, not dead).
type Engine struct {
	mu    sync.Mutex
	log   logx.Logger
	store storage.Store

	subs   storage.Subscriptions
	modes  storage.Modes
	labels storage.Labels
}

// New loads all three tables. A table that fails to load starts empty; the
// service never refuses to start over bad durable state.
func New(store storage.Store, log logx.Logger) *Engine {
	e := &Engine{
		log:    log,
		store:  store,
		subs:   storage.Subscriptions{},
		modes:  storage.Modes{},
		labels: storage.Labels{},
	}

	if subs, err := store.LoadSubscriptions(); err != nil {
		log.Error("loading subscriptions failed; starting empty", logx.Err(err))
	} else {
		e.subs = subs
	}
	if modes, err := store.LoadModes(); err != nil {
		log.Error("loading modes failed; starting empty", logx.Err(err))
	} else {
		e.modes = modes
	}
	if labels, err := store.LoadLabels(); err != nil {
		log.Error("loading labels failed; starting empty", logx.Err(err))
	} else {
		e.labels = labels
	}

	log.Info("tracker loaded",
		logx.Int("chats", len(e.subs)),
		logx.Int("modes", len(e.modes)),
		logx.Int("labeled_chats", len(e.labels)))
	return e
}

// ---- subscriptions ----

// Add tracks id for chat with the given percent. It is a no-op (no store
// write) when the record already holds the same percent.
func (e *Engine) Add(chatID int64, id string, percent *int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.subs[chatID]
	for i := range entries {
		if entries[i].ID == id {
			if EqualPercent(entries[i].LastPercent, percent) {
				return
			}
			entries[i].LastPercent = copyPercent(percent)
			e.saveSubsLocked()
			return
		}
	}
	e.subs[chatID] = append(entries, storage.Subscription{ID: id, LastPercent: copyPercent(percent)})
	e.saveSubsLocked()
}

// SetPercent records the latest observation for a tracked id and persists,
// even when the value did not change. An untracked id is skipped: a check
// racing a /remove must not resurrect the record.
func (e *Engine) SetPercent(chatID int64, id string, percent *int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setPercentLocked(chatID, id, percent)
}

// Observe applies one fetched percent for a scheduled check: it reads the
// previous value and the chat's mode, decides whether to notify, and records
// the new value, all in one critical section, so concurrent checks on the
// same key can't interleave between read and write. An id removed since the
// run started is skipped without notifying.
func (e *Engine) Observe(chatID int64, id string, next *int) (notify bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		prev    *int
		tracked bool
	)
	for _, sub := range e.subs[chatID] {
		if sub.ID == id {
			prev = sub.LastPercent
			tracked = true
			break
		}
	}
	if !tracked {
		return false
	}
	notify = ShouldNotify(e.modeLocked(chatID), prev, next)
	e.setPercentLocked(chatID, id, next)
	return notify
}

func (e *Engine) setPercentLocked(chatID int64, id string, percent *int) {
	entries := e.subs[chatID]
	for i := range entries {
		if entries[i].ID == id {
			entries[i].LastPercent = copyPercent(percent)
			e.saveSubsLocked()
			return
		}
	}
}

// LastPercent reports the stored percent and whether the id is tracked.
func (e *Engine) LastPercent(chatID int64, id string) (*int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sub := range e.subs[chatID] {
		if sub.ID == id {
			return copyPercent(sub.LastPercent), true
		}
	}
	return nil, false
}

// Remove stops tracking id for chat. Reports whether a record existed.
func (e *Engine) Remove(chatID int64, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.subs[chatID]
	for i := range entries {
		if entries[i].ID == id {
			e.subs[chatID] = append(entries[:i], entries[i+1:]...)
			if len(e.subs[chatID]) == 0 {
				delete(e.subs, chatID)
			}
			e.saveSubsLocked()
			return true
		}
	}
	return false
}

// List returns the chat's tracked ids in the order they were added.
func (e *Engine) List(chatID int64) []storage.Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.subs[chatID]
	out := make([]storage.Subscription, len(entries))
	for i, sub := range entries {
		out[i] = storage.Subscription{ID: sub.ID, LastPercent: copyPercent(sub.LastPercent)}
	}
	return out
}

// Chats snapshots the current subscriber set.
func (e *Engine) Chats() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]int64, 0, len(e.subs))
	for chatID := range e.subs {
		out = append(out, chatID)
	}
	return out
}

// ClearAll drops every tracked id and every label for chat. Reports whether
// anything was actually removed.
func (e *Engine) ClearAll(chatID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clearLocked(chatID)
}

func (e *Engine) clearLocked(chatID int64) bool {
	had := false
	if _, ok := e.subs[chatID]; ok {
		delete(e.subs, chatID)
		e.saveSubsLocked()
		had = true
	}
	if _, ok := e.labels[chatID]; ok {
		delete(e.labels, chatID)
		e.saveLabelsLocked()
		had = true
	}
	return had
}

// EraseAll removes every trace of the chat across all three tables.
func (e *Engine) EraseAll(chatID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	had := e.clearLocked(chatID)
	if _, ok := e.modes[chatID]; ok {
		delete(e.modes, chatID)
		e.saveModesLocked()
		had = true
	}
	return had
}

// ---- modes ----

// Mode reports the chat's notification mode, defaulting to on_change.
func (e *Engine) Mode(chatID int64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modeLocked(chatID)
}

func (e *Engine) modeLocked(chatID int64) string {
	if m, ok := e.modes[chatID]; ok {
		return m
	}
	return storage.ModeOnChange
}

func (e *Engine) SetMode(chatID int64, mode string) {
	if !storage.ValidMode(mode) {
		e.log.Warn("ignoring unknown mode", logx.Int64("chat_id", chatID), logx.String("mode", mode))
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modes[chatID] = mode
	e.saveModesLocked()
}

// ---- labels ----

func (e *Engine) Label(chatID int64, id string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	label, ok := e.labels[chatID][id]
	return label, ok
}

// SetLabel attaches a display name to an id. A blank label deletes the
// mapping; a chat with zero labels is pruned entirely.
func (e *Engine) SetLabel(chatID int64, id, label string) {
	label = strings.TrimSpace(label)

	e.mu.Lock()
	defer e.mu.Unlock()

	if label == "" {
		if _, ok := e.labels[chatID][id]; !ok {
			return
		}
		delete(e.labels[chatID], id)
		if len(e.labels[chatID]) == 0 {
			delete(e.labels, chatID)
		}
		e.saveLabelsLocked()
		return
	}

	if e.labels[chatID] == nil {
		e.labels[chatID] = map[string]string{}
	}
	e.labels[chatID][id] = label
	e.saveLabelsLocked()
}

// ---- persistence ----

func (e *Engine) saveSubsLocked() {
	if err := e.store.SaveSubscriptions(e.subs); err != nil {
		e.log.Error("saving subscriptions failed", logx.Err(err))
	}
}

func (e *Engine) saveModesLocked() {
	if err := e.store.SaveModes(e.modes); err != nil {
		e.log.Error("saving modes failed", logx.Err(err))
	}
}

func (e *Engine) saveLabelsLocked() {
	if err := e.store.SaveLabels(e.labels); err != nil {
		e.log.Error("saving labels failed", logx.Err(err))
	}
}

func copyPercent(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
