package narrate

import (
	"fmt"
	"strings"

	"github.com/ysamlan/trello-to-zulip/internal/action"
)

// UnknownName is the reference name used by the generic fallback when the
// action has neither a card nor a board.
const UnknownName = "<unknown name>"

// Narration is the outcome of narrating one action: either a message body or
// a deliberate suppression.
type Narration struct {
	Body       string
	Suppressed bool

	// Reason says why the action was suppressed, for logging.
	Reason string
}

func say(format string, args ...any) Narration {
	return Narration{Body: fmt.Sprintf(format, args...)}
}

func suppress(reason string) Narration {
	return Narration{Suppressed: true, Reason: reason}
}

// Narrate turns an action into a narration.
//
// Silent sides of paired kinds are suppressed before decoding. Unknown kinds
// get the generic fallback. A MissingFieldError is returned when a field the
// kind requires is absent.
func Narrate(a *action.Action) (Narration, error) {
	if sibling, ok := PairedWith(a.Kind()); ok {
		return suppress("narrated by " + string(sibling)), nil
	}

	ev, err := action.Decode(a)
	if err != nil {
		return Narration{}, err
	}
	return render(ev)
}

func render(ev action.Event) (Narration, error) {
	switch e := ev.(type) {
	case action.AddAttachmentToCard:
		return say("%s added %s attachment to card %s", e.Actor, link(e.Attachment), link(e.Card)), nil

	case action.AddChecklistToCard:
		return say("%s added checklist %s to card %s", e.Actor, bold(e.Checklist), link(e.Card)), nil

	case action.AddMemberToCard:
		return say("%s added %s to card %s", e.Actor, bold(e.Member), link(e.Card)), nil

	case action.AddToOrganizationBoard:
		return say("%s added organization %s to board %s", e.Actor, bold(e.Organization), link(e.Board)), nil

	case action.CommentCard:
		state := "commented"
		if e.Edited {
			state = "edited comment"
		}
		return say("%s %s on card %s \n>%s", e.Actor, state, link(e.Card), quote(e.Text)), nil

	case action.ConvertToCardFromCheckItem:
		return say("%s converted checklist item from %s to card %s", e.Actor, bold(e.Source), link(e.Card)), nil

	case action.CopyCard:
		return say("%s copied card %s to %s", e.Actor, bold(e.Source), link(e.Card)), nil

	case action.CreateBoard:
		return say("%s created board %s", e.Actor, link(e.Board)), nil

	case action.CreateCard:
		return say("%s created card %s", e.Actor, link(e.Card)), nil

	case action.CreateList:
		return say("%s created list %s on board %s", e.Actor, bold(e.List), link(e.Board)), nil

	case action.DeleteAttachmentFromCard:
		return say("%s deleted attachment %s from card %s", e.Actor, bold(e.Attachment), link(e.Card)), nil

	case action.DeleteCard:
		return say("%s deleted card from list %s on board %s", e.Actor, bold(e.List), link(e.Board)), nil

	case action.MakeAdminOfBoard:
		return say("%s made %s an admin of board %s", e.Actor, bold(e.Member), link(e.Board)), nil

	case action.MakeNormalMemberOfBoard:
		return say("%s made %s a member of board %s", e.Actor, bold(e.Member), link(e.Board)), nil

	case action.MoveCardFromBoard:
		return say("%s moved card %s from %s to %s", e.Actor, link(e.Card), bold(e.FromBoard), bold(e.ToBoard)), nil

	case action.MoveListFromBoard:
		return say("%s moved list %s from %s to %s", e.Actor, bold(e.List), bold(e.FromBoard), bold(e.ToBoard)), nil

	case action.RemoveChecklistFromCard:
		return say("%s removed checklist %s from card %s", e.Actor, bold(e.Checklist), link(e.Card)), nil

	case action.RemoveMemberFromCard:
		return say("%s removed %s from card %s", e.Actor, bold(e.Member), link(e.Card)), nil

	case action.UnconfirmedBoardInvitation:
		return say("%s invited (unconfirmed) %s to board %s", e.Actor, bold(e.Member), link(e.Board)), nil

	case action.UpdateCheckItemStateOnCard:
		state := "unchecked"
		if e.Complete {
			state = "checked"
		}
		return say("%s %s %s on card %s", e.Actor, state, bold(e.Item), link(e.Card)), nil

	case action.UpdateBoard:
		return renderUpdateBoard(e)

	case action.UpdateCard:
		return renderUpdateCard(e)

	case action.UpdateChecklist:
		return renderUpdateChecklist(e)

	// Reached only when Narrate's pairing check is bypassed.
	case action.AddMemberToBoard, action.MoveCardToBoard, action.MoveListToBoard:
		return suppress("paired kind"), nil

	default:
		return fallback(ev.Origin())
	}
}

func renderUpdateCard(e action.UpdateCard) (Narration, error) {
	a := e.Action
	change, err := ClassifyCard(a, e.Old)
	if err != nil {
		return Narration{}, err
	}
	if change.Suppressed() {
		return suppress("card " + change.Field.String() + " change"), nil
	}
	if change.Field == FieldNone {
		return fallback(a)
	}

	card, err := a.CardLink()
	if err != nil {
		return Narration{}, err
	}

	switch change.Field {
	case FieldList:
		before, err := a.Field("listBefore", "name")
		if err != nil {
			return Narration{}, err
		}
		after, err := a.Field("listAfter", "name")
		if err != nil {
			return Narration{}, err
		}
		return say("%s moved card %s from %s to %s", e.Actor, link(card), bold(before), bold(after)), nil

	case FieldClosed:
		state := "re-opened"
		if change.Direction == DirectionArchived {
			state = "archived"
		}
		return say("%s %s card %s", e.Actor, state, link(card)), nil

	case FieldName:
		return say("%s renamed card from %s to %s", e.Actor, bold(change.Old), link(card)), nil

	case FieldDesc:
		return say("%s updated description for card %s", e.Actor, link(card)), nil

	case FieldDue:
		if change.Direction == DirectionRemoved {
			return say("%s removed due date from card %s", e.Actor, link(card)), nil
		}
		return say("%s added due date %s to card %s", e.Actor, bold(change.New), link(card)), nil
	}
	return fallback(a)
}

func renderUpdateBoard(e action.UpdateBoard) (Narration, error) {
	a := e.Action
	change, err := ClassifyBoard(a, e.Old)
	if err != nil {
		return Narration{}, err
	}

	switch change.Field {
	case FieldName:
		name, err := a.BoardName()
		if err != nil {
			return Narration{}, err
		}
		return say("%s renamed from %s to %s", e.Actor, bold(change.Old), bold(name)), nil

	case FieldLabelNames:
		board, err := a.BoardLink()
		if err != nil {
			return Narration{}, err
		}
		parts := make([]string, 0, len(change.Labels))
		for _, l := range change.Labels {
			parts = append(parts, l.Color+" to "+bold(l.Name))
		}
		return say("%s changed label %s on board %s", e.Actor, strings.Join(parts, ", "), link(board)), nil

	case FieldPrefs:
		board, err := a.BoardLink()
		if err != nil {
			return Narration{}, err
		}
		return say("%s set %s preference to %s on board %s", e.Actor, bold(change.Pref), bold(change.New), link(board)), nil
	}
	return fallback(a)
}

func renderUpdateChecklist(e action.UpdateChecklist) (Narration, error) {
	a := e.Action
	change := ClassifyChecklist(e.Old)
	if change.Field != FieldName {
		return fallback(a)
	}

	name, err := a.Field("checklist", "name")
	if err != nil {
		return Narration{}, err
	}
	onCard := ""
	if a.HasCardName() {
		card, err := a.CardLink()
		if err != nil {
			return Narration{}, err
		}
		onCard = " on card " + link(card)
	}
	return say("%s renamed checklist from %s to %s%s", e.Actor, bold(change.Old), bold(name), onCard), nil
}

// fallback narrates any action generically, referencing the card when it has
// a name, else the board, else UnknownName with an empty URL.
func fallback(a *action.Action) (Narration, error) {
	ref := action.Link{Name: UnknownName}
	var err error
	switch {
	case a.HasCardName():
		ref, err = a.CardLink()
	case a.HasBoardName():
		ref, err = a.BoardLink()
	}
	if err != nil {
		return Narration{}, err
	}
	return say("%s performed %s on %s", a.ActorName(), a.Kind(), link(ref)), nil
}

func link(l action.Link) string {
	return "[" + l.Name + "](" + l.URL + ")"
}

func bold(s string) string {
	return "**" + s + "**"
}

// quote continues a Markdown block quote across embedded newlines.
func quote(text string) string {
	return strings.ReplaceAll(text, "\n", "\n>")
}
