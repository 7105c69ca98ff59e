package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: debug
  console: true
api:
  base_url: "https://example.test/api"
  timeout: "20s"
  insecure_skip_verify: true
check:
  hour: 8
  timezone: "Europe/Belgrade"
  fetch_workers: 3
storage:
  driver: sqlite
  path: "./data/passbot.db"
`)

	cfg, err := NewManager(path).Parse()
	require.NoError(t, err)
	require.Equal(t, "123:abc", cfg.Telegram.Token)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.True(t, cfg.API.InsecureSkipVerify)
	require.Equal(t, 8, cfg.Check.Hour)
	require.Equal(t, "Europe/Belgrade", cfg.Check.Timezone)
	require.NotNil(t, cfg.Storage)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
speling_mistake: true
`)

	_, err := NewManager(path).Parse()
	require.Error(t, err)
}

func TestParseJSONPassthrough(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "123:abc"}}`)

	cfg, err := NewManager(path).Parse()
	require.NoError(t, err)
	require.Equal(t, "123:abc", cfg.Telegram.Token)
}

func TestLoadCommitGet(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
`)

	m := NewManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Same(t, cfg, m.Get())
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationField("api.timeout", "45s")
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, d)

	d, err = ParseDurationField("api.timeout", "  ")
	require.NoError(t, err)
	require.Zero(t, d)

	_, err = ParseDurationField("api.timeout", "soon")
	require.Error(t, err)

	_, err = ParseDurationField("api.timeout", "-5s")
	require.Error(t, err)

	d, err = ParseDurationOrDefault("telegram.poll_timeout", "", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, d)
}
