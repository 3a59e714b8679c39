package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// ErrUnknownFormat is returned for a document with neither "boards" nor
// "actions".
var ErrUnknownFormat = errors.New("unknown input format")

// Batch is an ordered group of raw actions from one read of a source.
type Batch struct {
	// Origin names where the batch came from (a path or a URL).
	Origin string

	// Actions are sorted by date, oldest first.
	Actions []payload.Object

	// Live is true for actions that came from Trello itself rather than from
	// local files. Only live batches advance the stored cursor.
	Live bool
}

// Source yields batches to fn until it is exhausted, fn fails, or ctx is
// cancelled.
type Source interface {
	Run(ctx context.Context, fn func(Batch) error) error
}

// Extract pulls the actions out of a Trello document and orders them by
// date.
//
// Two shapes are accepted: an organization document with "boards" (each
// carrying its own "actions"), and a plain {"actions": [...]} document.
// When boardIDs is non-empty, only boards in that set contribute.
func Extract(doc payload.Object, boardIDs []string) ([]payload.Object, error) {
	var actions []payload.Object

	switch {
	case doc.Has("boards"):
		boards, ok := doc["boards"].(payload.Array)
		if !ok {
			return nil, fmt.Errorf("%w: boards is not a list", ErrUnknownFormat)
		}
		for _, v := range boards {
			board, ok := v.(payload.Object)
			if !ok {
				continue
			}
			id, _ := board.String("id")
			if len(boardIDs) > 0 && !slices.Contains(boardIDs, id) {
				continue
			}
			list, err := objects(board, "actions")
			if err != nil {
				return nil, fmt.Errorf("board %s: %w", id, err)
			}
			actions = append(actions, list...)
		}

	case doc.Has("actions"):
		list, err := objects(doc, "actions")
		if err != nil {
			return nil, err
		}
		actions = list

	default:
		return nil, ErrUnknownFormat
	}

	SortByDate(actions)
	return actions, nil
}

// ExtractJSON decodes data and calls Extract.
func ExtractJSON(data []byte, boardIDs []string) ([]payload.Object, error) {
	doc, err := payload.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return Extract(doc, boardIDs)
}

// SortByDate orders actions by their "date" string. Trello dates are
// fixed-width ISO-8601 in UTC, so string order is time order. The sort is
// stable; actions without a date sort first.
func SortByDate(actions []payload.Object) {
	slices.SortStableFunc(actions, func(a, b payload.Object) int {
		da, _ := a.String("date")
		db, _ := b.String("date")
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
}

func objects(obj payload.Object, key string) ([]payload.Object, error) {
	v, ok := obj.Lookup(key)
	if !ok {
		return nil, nil
	}
	arr, ok := v.(payload.Array)
	if !ok {
		return nil, fmt.Errorf("%s is not a list", key)
	}
	out := make([]payload.Object, 0, len(arr))
	for i, item := range arr {
		o, ok := item.(payload.Object)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not an object", key, i)
		}
		out = append(out, o)
	}
	return out, nil
}
