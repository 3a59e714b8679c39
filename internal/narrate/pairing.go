package narrate

import "github.com/ysamlan/trello-to-zulip/internal/action"

// Pair describes two kinds that Trello emits for the same physical event.
// Only Narrator produces a message; Silent is always suppressed.
type Pair struct {
	Silent   action.Kind
	Narrator action.Kind
}

// Pairs is the fixed suppression table.
var Pairs = []Pair{
	{Silent: action.KindMoveCardToBoard, Narrator: action.KindMoveCardFromBoard},
	{Silent: action.KindMoveListToBoard, Narrator: action.KindMoveListFromBoard},
	// The member's name arrives with the role change, not the add.
	{Silent: action.KindAddMemberToBoard, Narrator: action.KindMakeNormalMemberOfBoard},
}

// PairedWith returns the narrating sibling when kind is the silent side of a
// pair.
func PairedWith(kind action.Kind) (action.Kind, bool) {
	for _, p := range Pairs {
		if p.Silent == kind {
			return p.Narrator, true
		}
	}
	return "", false
}
