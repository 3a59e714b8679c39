package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Epoch is the cursor used to fetch every available action.
const Epoch = "1970-01-01T00:00:00Z"

// cursorLayout formats "now" as ISO-8601 with microseconds and a Z suffix.
const cursorLayout = "2006-01-02T15:04:05.000000Z"

// CursorStore persists the cursor value.
type CursorStore interface {
	Cursor(ctx context.Context) (string, bool, error)
	SetCursor(ctx context.Context, value string) error
}

// Cursor tracks the "since" value passed to Trello. It is opaque: the
// bridge copies action dates into it and hands it back to the poller
// without parsing it.
type Cursor struct {
	mu    sync.Mutex
	value string
	store CursorStore
}

// NewCursor resolves the starting cursor. With all set it starts from
// Epoch; otherwise it uses the stored value, or now when nothing is stored.
// A nil store keeps the cursor in memory only.
func NewCursor(ctx context.Context, store CursorStore, all bool, now time.Time) (*Cursor, error) {
	c := &Cursor{store: store}
	switch {
	case all:
		c.value = Epoch
	case store != nil:
		v, ok, err := store.Cursor(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cursor: %w", err)
		}
		if ok {
			c.value = v
			break
		}
		c.value = FormatNow(now)
	default:
		c.value = FormatNow(now)
	}
	return c, nil
}

// FormatNow renders t as a cursor value.
func FormatNow(t time.Time) string {
	return t.UTC().Format(cursorLayout)
}

// Since implements feed.Cursor.
func (c *Cursor) Since(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

// Value returns the current cursor.
func (c *Cursor) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Move sets the cursor to date in memory only.
func (c *Cursor) Move(date string) {
	c.mu.Lock()
	c.value = date
	c.mu.Unlock()
}

// Advance moves the cursor to date and persists it.
func (c *Cursor) Advance(ctx context.Context, date string) error {
	c.Move(date)

	if c.store == nil {
		return nil
	}
	if err := c.store.SetCursor(ctx, date); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
