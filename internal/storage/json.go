package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"passbot/internal/status"
	"passbot/pkg/logx"
)

// jsonStore keeps one json file per table under a data dir. File names match
// the historical deployment so existing data keeps working:
//
//	subscriptions.json  chat -> (id -> percent | [id, ...])
//	chat_prefs.json     chat -> mode
//	labels.json         chat -> (id -> label)
//
// Writes are whole-file, atomic (tmp + rename). The legacy array form of a
// subscriptions value loads as "tracked, no percent yet".
type jsonStore struct {
	log logx.Logger

	subsPath   string
	modesPath  string
	labelsPath string
}

const (
	subscriptionsFile = "subscriptions.json"
	modesFile         = "chat_prefs.json"
	labelsFile        = "labels.json"
)

func openJSON(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = "./data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &jsonStore{
		log:        log,
		subsPath:   filepath.Join(dir, subscriptionsFile),
		modesPath:  filepath.Join(dir, modesFile),
		labelsPath: filepath.Join(dir, labelsFile),
	}, nil
}

func (s *jsonStore) Close() error { return nil }

// ---- subscriptions ----

func (s *jsonStore) LoadSubscriptions() (Subscriptions, error) {
	b, err := os.ReadFile(s.subsPath)
	if errors.Is(err, os.ErrNotExist) {
		return Subscriptions{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.decodeSubscriptions(b)
}

// decodeSubscriptions walks the top-level object token by token so the
// per-chat id order in the file is preserved.
func (s *jsonStore) decodeSubscriptions(b []byte) (Subscriptions, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}

	out := Subscriptions{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}

		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.log.Warn("skipping subscription entry: bad chat id", logx.String("key", key))
			continue
		}

		entries, ok := s.decodeSubsValue(raw)
		if !ok {
			s.log.Warn("skipping subscription entry: unexpected payload", logx.Int64("chat_id", chatID))
			continue
		}
		out[chatID] = entries
	}
	return out, nil
}

func (s *jsonStore) decodeSubsValue(raw json.RawMessage) ([]Subscription, bool) {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return nil, false
	}
	switch t[0] {
	case '[':
		// Legacy format: a bare list of ids, no percent observed yet.
		var ids []any
		if err := json.Unmarshal(t, &ids); err != nil {
			return nil, false
		}
		entries := make([]Subscription, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, v := range ids {
			id := idString(v)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			entries = append(entries, Subscription{ID: id})
		}
		return entries, true
	case '{':
		dec := json.NewDecoder(bytes.NewReader(t))
		dec.UseNumber()
		if err := expectDelim(dec, '{'); err != nil {
			return nil, false
		}
		// A hand-edited file may repeat an id key; keep one record per id,
		// last value wins, first position kept.
		var entries []Subscription
		pos := map[string]int{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, false
			}
			id, _ := tok.(string)
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, false
			}
			if i, ok := pos[id]; ok {
				entries[i].LastPercent = normalizeRawPercent(v)
				continue
			}
			pos[id] = len(entries)
			entries = append(entries, Subscription{ID: id, LastPercent: normalizeRawPercent(v)})
		}
		return entries, true
	default:
		return nil, false
	}
}

func (s *jsonStore) SaveSubscriptions(subs Subscriptions) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, chatID := range sortedChats(subs) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONKey(&buf, strconv.FormatInt(chatID, 10))
		buf.WriteByte('{')
		for j, sub := range subs[chatID] {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeJSONKey(&buf, sub.ID)
			if sub.LastPercent == nil {
				buf.WriteString("null")
			} else {
				buf.WriteString(strconv.Itoa(*sub.LastPercent))
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return writeFileAtomic(s.subsPath, buf.Bytes())
}

// ---- modes ----

func (s *jsonStore) LoadModes() (Modes, error) {
	b, err := os.ReadFile(s.modesPath)
	if errors.Is(err, os.ErrNotExist) {
		return Modes{}, nil
	}
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := Modes{}
	for key, v := range raw {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.log.Warn("skipping mode entry: bad chat id", logx.String("key", key))
			continue
		}
		mode, _ := v.(string)
		if !ValidMode(mode) {
			s.log.Warn("skipping mode entry: unknown mode", logx.Int64("chat_id", chatID), logx.Any("mode", v))
			continue
		}
		out[chatID] = mode
	}
	return out, nil
}

func (s *jsonStore) SaveModes(modes Modes) error {
	data := make(map[string]string, len(modes))
	for chatID, mode := range modes {
		data[strconv.FormatInt(chatID, 10)] = mode
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.modesPath, b)
}

// ---- labels ----

func (s *jsonStore) LoadLabels() (Labels, error) {
	b, err := os.ReadFile(s.labelsPath)
	if errors.Is(err, os.ErrNotExist) {
		return Labels{}, nil
	}
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := Labels{}
	for key, v := range raw {
		chatID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.log.Warn("skipping label entry: bad chat id", logx.String("key", key))
			continue
		}
		inner, ok := v.(map[string]any)
		if !ok {
			s.log.Warn("skipping label entry: unexpected payload", logx.Int64("chat_id", chatID))
			continue
		}
		m := make(map[string]string, len(inner))
		for id, lv := range inner {
			m[id] = fmt.Sprint(lv)
		}
		if len(m) > 0 {
			out[chatID] = m
		}
	}
	return out, nil
}

func (s *jsonStore) SaveLabels(labels Labels) error {
	data := make(map[string]map[string]string, len(labels))
	for chatID, inner := range labels {
		if len(inner) == 0 {
			continue
		}
		data[strconv.FormatInt(chatID, 10)] = inner
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.labelsPath, b)
}

// ---- helpers ----

func expectDelim(dec *json.Decoder, d json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if got, ok := tok.(json.Delim); !ok || got != d {
		return fmt.Errorf("expected %q, got %v", d, tok)
	}
	return nil
}

func idString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return ""
	}
}

func normalizeRawPercent(v any) *int {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return status.NormalizePercent(f)
	}
	return status.NormalizePercent(v)
}

func sortedChats(subs Subscriptions) []int64 {
	chats := make([]int64, 0, len(subs))
	for id := range subs {
		chats = append(chats, id)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	return chats
}

func writeJSONKey(buf *bytes.Buffer, key string) {
	kb, _ := json.Marshal(key)
	buf.Write(kb)
	buf.WriteByte(':')
}

// writeFileAtomic replaces path via tmp + rename so a concurrent load never
// observes a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
