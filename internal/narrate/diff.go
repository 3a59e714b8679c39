package narrate

import (
	"github.com/ysamlan/trello-to-zulip/internal/action"
	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// Field identifies which field of an update-type action changed.
type Field int

const (
	// FieldNone means no prioritized key was found in the old snapshot.
	// Callers narrate these with the generic fallback.
	FieldNone Field = iota
	FieldList
	FieldClosed
	FieldName
	FieldDesc
	FieldDue
	FieldPos
	FieldCover
	FieldLabelNames
	FieldPrefs
)

var fieldNames = map[Field]string{
	FieldNone:       "none",
	FieldList:       "idList",
	FieldClosed:     "closed",
	FieldName:       "name",
	FieldDesc:       "desc",
	FieldDue:        "due",
	FieldPos:        "pos",
	FieldCover:      "idAttachmentCover",
	FieldLabelNames: "labelNames",
	FieldPrefs:      "prefs",
}

// String returns the payload key the field was detected by.
func (f Field) String() string {
	if s, ok := fieldNames[f]; ok {
		return s
	}
	return "unknown"
}

// Direction qualifies a change for fields where the new value matters.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionArchived
	DirectionReopened
	DirectionAdded
	DirectionRemoved
)

// Change is the result of classifying an old-snapshot diff.
type Change struct {
	Field     Field
	Direction Direction

	// Old is the pre-change value for FieldName (the previous name).
	Old string

	// New is the post-change value for FieldDue and FieldPrefs.
	New string

	// Pref is the preference name for FieldPrefs.
	Pref string

	// Labels lists renamed labels for FieldLabelNames, ordered by color key.
	Labels []LabelChange
}

// LabelChange is one renamed label on a board.
type LabelChange struct {
	Color string
	Name  string
}

// Suppressed reports whether the change carries no information of its own.
func (c Change) Suppressed() bool {
	return c.Field == FieldPos || c.Field == FieldCover
}

// boardPrefs is checked in this order; the first non-null one wins.
var boardPrefs = []string{"voting", "comments", "selfJoin"}

// ClassifyCard inspects an updateCard snapshot in priority order:
// idList, closed, name, desc, due, pos, idAttachmentCover.
//
// A key counts as changed when it is present with a non-null value. The
// exception is due: null is a valid old due date, so mere presence counts.
func ClassifyCard(a *action.Action, old payload.Object) (Change, error) {
	switch {
	case old.Present("idList"):
		return Change{Field: FieldList}, nil

	case old.Present("closed"):
		card, err := a.Section("card")
		if err != nil {
			return Change{}, err
		}
		closed, ok := card.Lookup("closed")
		if !ok {
			return Change{}, &action.MissingFieldError{Kind: a.Kind(), Field: "data.card.closed"}
		}
		dir := DirectionReopened
		if payload.Truthy(closed) {
			dir = DirectionArchived
		}
		return Change{Field: FieldClosed, Direction: dir}, nil

	case old.Present("name"):
		v, _ := old.Lookup("name")
		return Change{Field: FieldName, Old: payload.Text(v)}, nil

	case old.Present("desc"):
		return Change{Field: FieldDesc}, nil

	case old.Has("due"):
		card, err := a.Section("card")
		if err != nil {
			return Change{}, err
		}
		due, ok := card.Lookup("due")
		if !ok {
			return Change{}, &action.MissingFieldError{Kind: a.Kind(), Field: "data.card.due"}
		}
		if _, isNull := due.(payload.Null); isNull {
			return Change{Field: FieldDue, Direction: DirectionRemoved}, nil
		}
		return Change{Field: FieldDue, Direction: DirectionAdded, New: payload.Text(due)}, nil

	case old.Present("pos"):
		return Change{Field: FieldPos}, nil

	case old.Present("idAttachmentCover"):
		return Change{Field: FieldCover}, nil
	}
	return Change{Field: FieldNone}, nil
}

// ClassifyBoard inspects an updateBoard snapshot in priority order:
// name, labelNames, then the first non-null of the voting, comments and
// selfJoin preferences.
func ClassifyBoard(a *action.Action, old payload.Object) (Change, error) {
	if old.Present("name") {
		v, _ := old.Lookup("name")
		return Change{Field: FieldName, Old: payload.Text(v)}, nil
	}

	if old.Present("labelNames") {
		names, err := boardObject(a, "labelNames")
		if err != nil {
			return Change{}, err
		}
		labels := make([]LabelChange, 0, len(names))
		for _, color := range names.SortedKeys() {
			v, _ := names.Lookup(color)
			labels = append(labels, LabelChange{Color: color, Name: payload.Text(v)})
		}
		return Change{Field: FieldLabelNames, Labels: labels}, nil
	}

	if prefs, ok := old.Object("prefs"); ok {
		for _, pref := range boardPrefs {
			if !prefs.Present(pref) {
				continue
			}
			current, err := boardObject(a, "prefs")
			if err != nil {
				return Change{}, err
			}
			v, ok := current.Lookup(pref)
			if !ok {
				return Change{}, &action.MissingFieldError{Kind: a.Kind(), Field: "data.board.prefs." + pref}
			}
			return Change{Field: FieldPrefs, Pref: pref, New: payload.Text(v)}, nil
		}
	}
	return Change{Field: FieldNone}, nil
}

// ClassifyChecklist inspects an updateChecklist snapshot. Only renames are
// recognized.
func ClassifyChecklist(old payload.Object) Change {
	if old.Present("name") {
		v, _ := old.Lookup("name")
		return Change{Field: FieldName, Old: payload.Text(v)}
	}
	return Change{Field: FieldNone}
}

func boardObject(a *action.Action, key string) (payload.Object, error) {
	board, err := a.Section("board")
	if err != nil {
		return nil, err
	}
	obj, ok := board.Object(key)
	if !ok {
		return nil, &action.MissingFieldError{Kind: a.Kind(), Field: "data.board." + key}
	}
	return obj, nil
}
