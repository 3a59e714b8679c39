package action

import (
	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// Event is the typed form of an Action: a sealed union with one variant per
// known Kind plus Unrecognized for everything else. Each variant carries only
// the fields its kind guarantees; Decode fails with MissingFieldError when
// one of them is absent.
type Event interface {
	Kind() Kind
	Origin() *Action
	event() // Sealed
}

// Link is a named reference rendered as a Markdown link.
type Link struct {
	Name string
	URL  string
}

// Base holds what every variant shares.
type Base struct {
	Action *Action
	Actor  string
}

// Kind implements Event.
func (b Base) Kind() Kind { return b.Action.Kind() }

// Origin implements Event.
func (b Base) Origin() *Action { return b.Action }

func (Base) event() {}

type (
	AddAttachmentToCard struct {
		Base
		Attachment Link // URL is empty when Trello omits it
		Card       Link
	}

	AddChecklistToCard struct {
		Base
		Checklist string
		Card      Link
	}

	// AddMemberToBoard carries data.idMemberAdded only; the member's name is
	// reported by the accompanying role-change action.
	AddMemberToBoard struct {
		Base
		MemberID string
	}

	AddMemberToCard struct {
		Base
		Member string
		Card   Link
	}

	AddToOrganizationBoard struct {
		Base
		Organization string
		Board        Link
	}

	CommentCard struct {
		Base
		Text   string
		Edited bool
		Card   Link
	}

	ConvertToCardFromCheckItem struct {
		Base
		Source string
		Card   Link
	}

	CopyCard struct {
		Base
		Source string
		Card   Link
	}

	CreateBoard struct {
		Base
		Board Link
	}

	CreateCard struct {
		Base
		Card Link
	}

	CreateList struct {
		Base
		List  string
		Board Link
	}

	DeleteAttachmentFromCard struct {
		Base
		Attachment string
		Card       Link
	}

	DeleteCard struct {
		Base
		List  string
		Board Link
	}

	MakeAdminOfBoard struct {
		Base
		Member string
		Board  Link
	}

	MakeNormalMemberOfBoard struct {
		Base
		Member string
		Board  Link
	}

	MoveCardFromBoard struct {
		Base
		Card      Link
		FromBoard string
		ToBoard   string
	}

	// MoveCardToBoard is the receiving side of a cross-board card move.
	MoveCardToBoard struct {
		Base
	}

	MoveListFromBoard struct {
		Base
		List      string
		FromBoard string
		ToBoard   string
	}

	// MoveListToBoard is the receiving side of a cross-board list move.
	MoveListToBoard struct {
		Base
	}

	RemoveChecklistFromCard struct {
		Base
		Checklist string
		Card      Link
	}

	RemoveMemberFromCard struct {
		Base
		Member string
		Card   Link
	}

	UnconfirmedBoardInvitation struct {
		Base
		Member string
		Board  Link
	}

	// UpdateBoard, UpdateCard and UpdateChecklist carry the pre-change
	// snapshot. Which other fields are required depends on what changed.
	UpdateBoard struct {
		Base
		Old payload.Object
	}

	UpdateCard struct {
		Base
		Old payload.Object
	}

	UpdateChecklist struct {
		Base
		Old payload.Object
	}

	UpdateCheckItemStateOnCard struct {
		Base
		Item     string
		Complete bool
		Card     Link
	}

	// Unrecognized is any kind without a dedicated variant.
	Unrecognized struct {
		Base
	}
)

type decoder func(a *Action, b Base) (Event, error)

// decoders is the closed table of known kinds.
var decoders = map[Kind]decoder{
	KindAddAttachmentToCard:        decodeAddAttachmentToCard,
	KindAddChecklistToCard:         decodeAddChecklistToCard,
	KindAddMemberToBoard:           decodeAddMemberToBoard,
	KindAddMemberToCard:            decodeAddMemberToCard,
	KindAddToOrganizationBoard:     decodeAddToOrganizationBoard,
	KindCommentCard:                decodeCommentCard,
	KindConvertToCardFromCheckItem: decodeConvertToCardFromCheckItem,
	KindCopyCard:                   decodeCopyCard,
	KindCreateBoard:                decodeCreateBoard,
	KindCreateCard:                 decodeCreateCard,
	KindCreateList:                 decodeCreateList,
	KindDeleteAttachmentFromCard:   decodeDeleteAttachmentFromCard,
	KindDeleteCard:                 decodeDeleteCard,
	KindMakeAdminOfBoard:           decodeMakeAdminOfBoard,
	KindMakeNormalMemberOfBoard:    decodeMakeNormalMemberOfBoard,
	KindMoveCardFromBoard:          decodeMoveCardFromBoard,
	KindMoveCardToBoard:            func(_ *Action, b Base) (Event, error) { return MoveCardToBoard{b}, nil },
	KindMoveListFromBoard:          decodeMoveListFromBoard,
	KindMoveListToBoard:            func(_ *Action, b Base) (Event, error) { return MoveListToBoard{b}, nil },
	KindRemoveChecklistFromCard:    decodeRemoveChecklistFromCard,
	KindRemoveMemberFromCard:       decodeRemoveMemberFromCard,
	KindUnconfirmedBoardInvitation: decodeUnconfirmedBoardInvitation,
	KindUpdateBoard:                decodeUpdateBoard,
	KindUpdateCard:                 decodeUpdateCard,
	KindUpdateCheckItemStateOnCard: decodeUpdateCheckItemStateOnCard,
	KindUpdateChecklist:            decodeUpdateChecklist,
}

// Decode converts an Action into its typed variant.
// Unknown kinds decode to Unrecognized and never fail.
func Decode(a *Action) (Event, error) {
	b := Base{Action: a, Actor: a.ActorName()}
	dec, ok := decoders[a.Kind()]
	if !ok {
		return Unrecognized{b}, nil
	}
	return dec(a, b)
}

// CardLink returns the card reference (name and URL).
func (a *Action) CardLink() (Link, error) {
	name, err := a.CardName()
	if err != nil {
		return Link{}, err
	}
	url, err := a.CardURL()
	if err != nil {
		return Link{}, err
	}
	return Link{Name: name, URL: url}, nil
}

// BoardLink returns the board reference (name and URL).
func (a *Action) BoardLink() (Link, error) {
	name, err := a.BoardName()
	if err != nil {
		return Link{}, err
	}
	url, err := a.BoardURL()
	if err != nil {
		return Link{}, err
	}
	return Link{Name: name, URL: url}, nil
}

// cardAnd decodes the card link plus one named field of another section.
func cardAnd(a *Action, section, key string) (Link, string, error) {
	v, err := a.Field(section, key)
	if err != nil {
		return Link{}, "", err
	}
	card, err := a.CardLink()
	if err != nil {
		return Link{}, "", err
	}
	return card, v, nil
}

// boardAnd decodes the board link plus one named field of another section.
func boardAnd(a *Action, section, key string) (Link, string, error) {
	v, err := a.Field(section, key)
	if err != nil {
		return Link{}, "", err
	}
	board, err := a.BoardLink()
	if err != nil {
		return Link{}, "", err
	}
	return board, v, nil
}

func decodeAddAttachmentToCard(a *Action, b Base) (Event, error) {
	card, name, err := cardAnd(a, "attachment", "name")
	if err != nil {
		return nil, err
	}
	att, _ := a.Data().Object("attachment")
	url, _ := att.String("url")
	return AddAttachmentToCard{Base: b, Attachment: Link{Name: name, URL: url}, Card: card}, nil
}

func decodeAddChecklistToCard(a *Action, b Base) (Event, error) {
	card, name, err := cardAnd(a, "checklist", "name")
	if err != nil {
		return nil, err
	}
	return AddChecklistToCard{Base: b, Checklist: name, Card: card}, nil
}

func decodeAddMemberToBoard(a *Action, b Base) (Event, error) {
	id, _ := a.Data().String("idMemberAdded")
	return AddMemberToBoard{Base: b, MemberID: id}, nil
}

func decodeAddMemberToCard(a *Action, b Base) (Event, error) {
	member, err := a.MemberName()
	if err != nil {
		return nil, err
	}
	card, err := a.CardLink()
	if err != nil {
		return nil, err
	}
	return AddMemberToCard{Base: b, Member: member, Card: card}, nil
}

func decodeAddToOrganizationBoard(a *Action, b Base) (Event, error) {
	board, org, err := boardAnd(a, "organization", "name")
	if err != nil {
		return nil, err
	}
	return AddToOrganizationBoard{Base: b, Organization: org, Board: board}, nil
}

func decodeCommentCard(a *Action, b Base) (Event, error) {
	v, ok := a.Data().Lookup("text")
	if !ok {
		return nil, missing(a.Kind(), "data.text")
	}
	card, err := a.CardLink()
	if err != nil {
		return nil, err
	}
	return CommentCard{
		Base:   b,
		Text:   payload.Text(v),
		Edited: a.Data().Present("dateLastEdited"),
		Card:   card,
	}, nil
}

func decodeConvertToCardFromCheckItem(a *Action, b Base) (Event, error) {
	card, source, err := cardAnd(a, "cardSource", "name")
	if err != nil {
		return nil, err
	}
	return ConvertToCardFromCheckItem{Base: b, Source: source, Card: card}, nil
}

func decodeCopyCard(a *Action, b Base) (Event, error) {
	card, source, err := cardAnd(a, "cardSource", "name")
	if err != nil {
		return nil, err
	}
	return CopyCard{Base: b, Source: source, Card: card}, nil
}

func decodeCreateBoard(a *Action, b Base) (Event, error) {
	board, err := a.BoardLink()
	if err != nil {
		return nil, err
	}
	return CreateBoard{Base: b, Board: board}, nil
}

func decodeCreateCard(a *Action, b Base) (Event, error) {
	card, err := a.CardLink()
	if err != nil {
		return nil, err
	}
	return CreateCard{Base: b, Card: card}, nil
}

func decodeCreateList(a *Action, b Base) (Event, error) {
	board, list, err := boardAnd(a, "list", "name")
	if err != nil {
		return nil, err
	}
	return CreateList{Base: b, List: list, Board: board}, nil
}

func decodeDeleteAttachmentFromCard(a *Action, b Base) (Event, error) {
	card, name, err := cardAnd(a, "attachment", "name")
	if err != nil {
		return nil, err
	}
	return DeleteAttachmentFromCard{Base: b, Attachment: name, Card: card}, nil
}

func decodeDeleteCard(a *Action, b Base) (Event, error) {
	board, list, err := boardAnd(a, "list", "name")
	if err != nil {
		return nil, err
	}
	return DeleteCard{Base: b, List: list, Board: board}, nil
}

func decodeMakeAdminOfBoard(a *Action, b Base) (Event, error) {
	member, err := a.MemberName()
	if err != nil {
		return nil, err
	}
	board, err := a.BoardLink()
	if err != nil {
		return nil, err
	}
	return MakeAdminOfBoard{Base: b, Member: member, Board: board}, nil
}

func decodeMakeNormalMemberOfBoard(a *Action, b Base) (Event, error) {
	member, err := a.MemberName()
	if err != nil {
		return nil, err
	}
	board, err := a.BoardLink()
	if err != nil {
		return nil, err
	}
	return MakeNormalMemberOfBoard{Base: b, Member: member, Board: board}, nil
}

func decodeMoveCardFromBoard(a *Action, b Base) (Event, error) {
	card, err := a.CardLink()
	if err != nil {
		return nil, err
	}
	from, err := a.BoardName()
	if err != nil {
		return nil, err
	}
	to, err := a.Field("boardTarget", "name")
	if err != nil {
		return nil, err
	}
	return MoveCardFromBoard{Base: b, Card: card, FromBoard: from, ToBoard: to}, nil
}

func decodeMoveListFromBoard(a *Action, b Base) (Event, error) {
	list, err := a.Field("list", "name")
	if err != nil {
		return nil, err
	}
	from, err := a.BoardName()
	if err != nil {
		return nil, err
	}
	to, err := a.Field("boardTarget", "name")
	if err != nil {
		return nil, err
	}
	return MoveListFromBoard{Base: b, List: list, FromBoard: from, ToBoard: to}, nil
}

func decodeRemoveChecklistFromCard(a *Action, b Base) (Event, error) {
	card, name, err := cardAnd(a, "checklist", "name")
	if err != nil {
		return nil, err
	}
	return RemoveChecklistFromCard{Base: b, Checklist: name, Card: card}, nil
}

func decodeRemoveMemberFromCard(a *Action, b Base) (Event, error) {
	member, err := a.MemberName()
	if err != nil {
		return nil, err
	}
	card, err := a.CardLink()
	if err != nil {
		return nil, err
	}
	return RemoveMemberFromCard{Base: b, Member: member, Card: card}, nil
}

func decodeUnconfirmedBoardInvitation(a *Action, b Base) (Event, error) {
	board, member, err := boardAnd(a, "member", "name")
	if err != nil {
		return nil, err
	}
	return UnconfirmedBoardInvitation{Base: b, Member: member, Board: board}, nil
}

func oldSnapshot(a *Action) (payload.Object, error) {
	old, ok := a.Data().Object("old")
	if !ok {
		return nil, missing(a.Kind(), "data.old")
	}
	return old, nil
}

func decodeUpdateBoard(a *Action, b Base) (Event, error) {
	old, err := oldSnapshot(a)
	if err != nil {
		return nil, err
	}
	return UpdateBoard{Base: b, Old: old}, nil
}

func decodeUpdateCard(a *Action, b Base) (Event, error) {
	old, err := oldSnapshot(a)
	if err != nil {
		return nil, err
	}
	return UpdateCard{Base: b, Old: old}, nil
}

func decodeUpdateChecklist(a *Action, b Base) (Event, error) {
	old, err := oldSnapshot(a)
	if err != nil {
		return nil, err
	}
	return UpdateChecklist{Base: b, Old: old}, nil
}

func decodeUpdateCheckItemStateOnCard(a *Action, b Base) (Event, error) {
	card, name, err := cardAnd(a, "checkItem", "name")
	if err != nil {
		return nil, err
	}
	state, err := a.Field("checkItem", "state")
	if err != nil {
		return nil, err
	}
	return UpdateCheckItemStateOnCard{Base: b, Item: name, Complete: state != "incomplete", Card: card}, nil
}
