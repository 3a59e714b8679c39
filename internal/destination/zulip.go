package destination

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSite is the Zulip server used when none is configured.
const DefaultSite = "https://zulip.com"

const (
	requestTimeout = 10 * time.Second
	maxErrorBody   = 4096
)

// Zulip posts narrations to a stream through the Zulip REST API.
type Zulip struct {
	Client *http.Client
	Site   string
	Email  string
	Key    string
	Stream string
}

// NewZulip returns a Zulip poster with a bounded request timeout.
func NewZulip(site, email, key, stream string) *Zulip {
	if site == "" {
		site = DefaultSite
	}
	return &Zulip{
		Client: &http.Client{Timeout: requestTimeout},
		Site:   site,
		Email:  email,
		Key:    key,
		Stream: stream,
	}
}

// Endpoint returns the message API URL.
func (z *Zulip) Endpoint() string {
	return strings.TrimSuffix(z.Site, "/") + "/api/v1/messages"
}

// Post implements Poster. Any status other than 200 is an error carrying the
// response body.
func (z *Zulip) Post(ctx context.Context, d Delivery) error {
	form := url.Values{}
	form.Set("type", "stream")
	form.Set("to", z.Stream)
	form.Set("subject", d.Subject)
	form.Set("content", d.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.Endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(z.Email, z.Key)

	client := z.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post to zulip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("zulip returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
