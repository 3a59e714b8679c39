package destination

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject narrations are published on.
const DefaultSubject = "trello.narrations"

// Event is the JSON document published for each narration.
type Event struct {
	Subject  string `json:"subject"`
	Content  string `json:"content"`
	Stream   string `json:"stream,omitempty"`
	ActionID string `json:"action_id,omitempty"`
	Kind     string `json:"kind"`
	Date     string `json:"date,omitempty"`
}

// NATS publishes narrations as JSON events.
type NATS struct {
	conn    *nats.Conn
	subject string
	stream  string
}

// NewNATS connects to the server at url. Narrations are published on
// subject and tagged with the Zulip stream they were addressed to.
func NewNATS(url, subject, stream string, opts ...nats.Option) (*NATS, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATS{conn: nc, subject: subject, stream: stream}, nil
}

// Post implements Poster.
func (p *NATS) Post(_ context.Context, d Delivery) error {
	data, err := json.Marshal(Event{
		Subject:  d.Subject,
		Content:  d.Body,
		Stream:   p.stream,
		ActionID: d.ActionID,
		Kind:     string(d.Kind),
		Date:     d.Date,
	})
	if err != nil {
		return fmt.Errorf("marshaling narration: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	return nil
}

// Flush waits until published messages have reached the server.
func (p *NATS) Flush() error {
	return p.conn.Flush()
}

// Close drains and closes the connection.
func (p *NATS) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
