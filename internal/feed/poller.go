package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPI is the Trello REST root.
const DefaultAPI = "https://api.trello.com/1"

// DefaultInterval is the pause between polls.
const DefaultInterval = 60 * time.Second

// actionsLimit is the largest page Trello returns for nested actions.
const actionsLimit = "1000"

// maxErrorBody bounds how much of a failed response is logged.
const maxErrorBody = 4096

// Cursor reports the date from which the next poll should read.
type Cursor interface {
	Since(ctx context.Context) (string, error)
}

// Poller reads an organization's board actions from Trello.
type Poller struct {
	Client   *http.Client
	API      string
	Org      string
	Key      string
	Token    string
	BoardIDs []string
	Cursor   Cursor

	// Interval is the pause between polls. Zero means DefaultInterval.
	Interval time.Duration

	// Once stops after the first poll.
	Once bool

	Logger *slog.Logger
}

// Run implements Source. A poll that fails at the HTTP level is logged and
// skipped; polling continues on the next tick.
func (p *Poller) Run(ctx context.Context, fn func(Batch) error) error {
	logger := p.logger()
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	for first := true; ; first = false {
		if !first {
			if p.Once {
				return nil
			}
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}

		since, err := p.Cursor.Since(ctx)
		if err != nil {
			return fmt.Errorf("load cursor: %w", err)
		}

		batch, err := p.Poll(ctx, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("trello poll failed", "since", since, "error", err)
			continue
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
}

// Poll performs a single request for actions since the given date.
func (p *Poller) Poll(ctx context.Context, since string) (Batch, error) {
	endpoint := p.URL(since)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("build request: %w", err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Batch{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Batch{}, fmt.Errorf("trello returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Batch{}, fmt.Errorf("read response: %w", err)
	}
	p.logger().Debug("trello response", "since", since, "json", string(data))

	actions, err := ExtractJSON(data, p.BoardIDs)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Origin: p.orgURL(), Actions: actions, Live: true}, nil
}

// URL returns the organization request URL for the given cursor.
func (p *Poller) URL(since string) string {
	q := url.Values{}
	q.Set("key", p.Key)
	q.Set("token", p.Token)
	q.Set("actions", "all")
	q.Set("actions_limit", actionsLimit)
	q.Set("fields", "none")
	q.Set("boards", "organization")
	q.Set("board_fields", "name")
	q.Set("board_actions", "all")
	q.Set("board_actions_limit", actionsLimit)
	if since != "" {
		q.Set("board_actions_since", since)
	}
	return p.orgURL() + "?" + q.Encode()
}

func (p *Poller) orgURL() string {
	api := p.API
	if api == "" {
		api = DefaultAPI
	}
	return strings.TrimSuffix(api, "/") + "/organization/" + url.PathEscape(p.Org)
}

func (p *Poller) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
