package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// API points at the remote application-status endpoint.
	API APIConfig `json:"api"`

	// Check controls the daily reconciliation trigger.
	Check CheckConfig `json:"check"`

	// Storage controls the durable tables. If omitted, the json driver is
	// used with files under "./data".
	Storage *StorageConfig `json:"storage,omitempty"`

	Icons IconsConfig `json:"icons"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// SendRatePerSec bounds outbound messages (Telegram flood control).
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// APIConfig configures the status fetch client.
//
// All durations are Go duration strings.
type APIConfig struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout,omitempty"`
	// InsecureSkipVerify disables TLS verification. The reference endpoint
	// serves an incomplete chain, so deployments commonly need this.
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty"`
	UserAgent          string `json:"user_agent,omitempty"`
}

// CheckConfig controls the daily sweep over all tracked applications.
type CheckConfig struct {
	// Hour of day (0-23) in Timezone. The sweep always fires at minute 0.
	Hour int `json:"hour"`
	// Timezone is an IANA name, e.g. "UTC" or "Europe/Belgrade". Default UTC.
	Timezone string `json:"timezone,omitempty"`
	// FetchWorkers bounds concurrent fetches during a sweep.
	FetchWorkers int `json:"fetch_workers,omitempty"`
}

// StorageConfig controls the durable tables.
//
// Driver values:
//   - "json": one json file per table under Dir (default)
//   - "sqlite": single database file at Path
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Dir         string `json:"dir,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type IconsConfig struct {
	// Dir holds pre-sliced progress images (progress_0.png ... progress_100.png).
	Dir string `json:"dir,omitempty"`
}
