// Package destination delivers narrations.
//
// The Zulip poster is the primary destination. The NATS publisher fans
// narrations out to other consumers, and the dry-run poster prints them.
package destination

import (
	"context"
	"errors"

	"github.com/ysamlan/trello-to-zulip/internal/action"
	"github.com/ysamlan/trello-to-zulip/internal/narrate"
)

// Delivery is one narration ready to post.
type Delivery struct {
	narrate.Message

	ActionID string
	Kind     action.Kind
	Date     string
}

// Poster accepts deliveries and reports whether each one succeeded.
type Poster interface {
	Post(ctx context.Context, d Delivery) error
}

// Multi posts to the first poster, the primary, and then fans out to the
// rest. A primary failure is returned as is and the rest are skipped. When
// only later posters fail the error is a *SecondaryError, and the delivery
// counts as made.
type Multi []Poster

// SecondaryError reports posters after the primary that failed.
type SecondaryError struct {
	Errs []error
}

func (e *SecondaryError) Error() string {
	return "secondary destination: " + errors.Join(e.Errs...).Error()
}

func (e *SecondaryError) Unwrap() []error {
	return e.Errs
}

// IsSecondary reports whether err only carries secondary failures.
func IsSecondary(err error) bool {
	var se *SecondaryError
	return errors.As(err, &se)
}

// Post implements Poster.
func (m Multi) Post(ctx context.Context, d Delivery) error {
	if len(m) == 0 {
		return nil
	}
	if err := m[0].Post(ctx, d); err != nil {
		return err
	}
	var errs []error
	for _, p := range m[1:] {
		if err := p.Post(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &SecondaryError{Errs: errs}
	}
	return nil
}

// Close closes every poster that holds resources.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if c, ok := p.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
