package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// Target is one entry of the DevTools /json listing.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl,omitempty"`
}

// Version is the DevTools /json/version document.
type Version struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Discoverer finds a controllable page on a DevTools HTTP endpoint.
type Discoverer struct {
	BaseURL  string // e.g. http://localhost:9222
	Client   *http.Client
	Attempts int
	Interval time.Duration
	Sleep    func(context.Context, time.Duration) error
	Logger   *slog.Logger
}

func (d *Discoverer) httpClient() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: 2 * time.Second}
}

func (d *Discoverer) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (d *Discoverer) getJSON(ctx context.Context, path string, v any) error {
	u := strings.TrimSuffix(d.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := d.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Targets lists the page descriptors.
func (d *Discoverer) Targets(ctx context.Context) ([]Target, error) {
	var targets []Target
	if err := d.getJSON(ctx, "/json", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// Version fetches browser version information.
func (d *Discoverer) Version(ctx context.Context) (*Version, error) {
	var v Version
	if err := d.getJSON(ctx, "/json/version", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SelectTarget picks the first page target with a debugger address, or
// failing that the first target of any type with one.
func SelectTarget(targets []Target) (*Target, bool) {
	for i := range targets {
		if targets[i].Type == "page" && targets[i].WebSocketDebuggerURL != "" {
			return &targets[i], true
		}
	}
	for i := range targets {
		if targets[i].WebSocketDebuggerURL != "" {
			return &targets[i], true
		}
	}
	return nil, false
}

// WaitForTarget polls the target listing until a controllable page shows
// up. It makes at most Attempts requests, Interval apart.
func (d *Discoverer) WaitForTarget(ctx context.Context) (*Target, error) {
	attempts := d.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	log := d.logger()

	var lastErr error
	for i := 0; i < attempts; i++ {
		targets, err := d.Targets(ctx)
		switch {
		case err != nil:
			lastErr = err
		default:
			if t, ok := SelectTarget(targets); ok {
				return t, nil
			}
			lastErr = fmt.Errorf("%d targets, none controllable", len(targets))
			if len(targets) > 0 {
				log.Debug("no controllable target", "targets", spew.Sdump(targets))
			}
		}
		if i%10 == 0 {
			log.Info("waiting for devtools", "attempt", i+1, "of", attempts, "error", lastErr)
		}
		if i == attempts-1 {
			break
		}
		if err := sleep(ctx, d.Interval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrNoTarget, attempts, lastErr)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
