package status

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"passbot/pkg/logx"
)

// ErrUnavailable covers every fetch failure kind: network errors, timeouts,
// non-200 responses and unparseable payloads. Callers never need a finer
// distinction; the subscriber only sees "status unavailable".
var ErrUnavailable = errors.New("status unavailable")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:145.0) " +
	"Gecko/20100101 Firefox/145.0"

type ClientConfig struct {
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	UserAgent          string
}

// Client fetches application-status records. It is safe for concurrent use;
// fetches for different ids run fully in parallel.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	log  logx.Logger
}

func NewClient(cfg ClientConfig, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("api.base_url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}

	tr := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		tr = t
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout, Transport: tr},
		log:  log,
	}, nil
}

// payload mirrors the remote response shape. Percent is decoded as `any`
// because the source flips between numbers, strings and null.
type payload struct {
	UID            string `json:"uid"`
	ReceptionDate  string `json:"receptionDate"`
	PassportStatus struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	} `json:"passportStatus"`
	InternalStatus struct {
		Name    string `json:"name"`
		Percent any    `json:"percent"`
	} `json:"internalStatus"`
}

// Fetch retrieves the status record for one application id. All failure
// kinds wrap ErrUnavailable.
func (c *Client) Fetch(ctx context.Context, id string) (*Snapshot, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + id

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("fetch failed", logx.String("id", id), logx.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("fetch non-200", logx.String("id", id), logx.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		c.log.Warn("fetch parse failed", logx.String("id", id), logx.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	snap := &Snapshot{
		ID:            p.UID,
		ReceptionDate: p.ReceptionDate,
		Display: DisplayStatus{
			ID:    p.PassportStatus.ID,
			Name:  p.PassportStatus.Name,
			Color: p.PassportStatus.Color,
		},
		Internal: InternalStatus{
			Name:    p.InternalStatus.Name,
			Percent: NormalizePercent(p.InternalStatus.Percent),
		},
	}
	if snap.ID == "" {
		snap.ID = id
	}
	c.log.Debug("fetched status",
		logx.String("id", snap.ID),
		logx.String("display", snap.Display.Name),
		logx.String("internal", snap.Internal.Name))
	return snap, nil
}
