package action

import (
	"time"
	"unicode/utf8"

	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// Unknown is rendered wherever a name cannot be determined.
const Unknown = "<unknown>"

// SubjectMax is the maximum length, in characters, of a derived subject.
const SubjectMax = 60

// BaseURL is the Trello web root used to build board and card links.
const BaseURL = "https://trello.com"

// Action wraps a single raw Trello action payload.
// An Action is immutable after construction.
type Action struct {
	raw  payload.Object
	kind Kind
	date time.Time
}

// New wraps a decoded payload.
// Returns UnrecognizedShapeError if the payload has no string "type".
func New(raw payload.Object) (*Action, error) {
	if raw == nil {
		return nil, &UnrecognizedShapeError{Reason: "payload is not an object"}
	}

	v, ok := raw.Lookup("type")
	if !ok {
		return nil, &UnrecognizedShapeError{Reason: "missing type"}
	}
	kind, ok := v.(payload.String)
	if !ok || kind == "" {
		return nil, &UnrecognizedShapeError{Reason: "type is not a non-empty string"}
	}

	a := &Action{raw: raw, kind: Kind(kind)}
	if s, ok := raw.String("date"); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			a.date = t.UTC()
		}
	}
	return a, nil
}

// Parse decodes JSON and wraps it.
func Parse(data []byte) (*Action, error) {
	v, err := payload.Decode(data)
	if err != nil {
		return nil, &UnrecognizedShapeError{Reason: err.Error()}
	}
	obj, ok := v.(payload.Object)
	if !ok {
		return nil, &UnrecognizedShapeError{Reason: "payload is not an object"}
	}
	return New(obj)
}

// Kind returns the action kind.
func (a *Action) Kind() Kind {
	return a.kind
}

// Timestamp returns the action date, or the zero time when it is absent or
// unparseable.
func (a *Action) Timestamp() time.Time {
	return a.date
}

// Date returns the raw date string exactly as Trello sent it.
// This is the value persisted as the polling cursor.
func (a *Action) Date() string {
	s, _ := a.raw.String("date")
	return s
}

// ID returns the Trello action id, if any.
func (a *Action) ID() string {
	s, _ := a.raw.String("id")
	return s
}

// Raw returns the whole payload.
func (a *Action) Raw() payload.Object {
	return a.raw
}

// Data returns the "data" sub-structure, or an empty object when absent.
func (a *Action) Data() payload.Object {
	if d, ok := a.raw.Object("data"); ok {
		return d
	}
	return payload.Object{}
}

// ActorName returns the full name of the member who performed the action.
// Absent originator data renders as Unknown rather than failing.
func (a *Action) ActorName() string {
	creator, ok := a.raw.Object("memberCreator")
	if !ok {
		return Unknown
	}
	name, ok := creator.String("fullName")
	if !ok {
		return Unknown
	}
	return name
}

// HasBoardName reports whether data.board.name is present.
func (a *Action) HasBoardName() bool {
	return a.hasName("board")
}

// BoardName returns data.board.name.
func (a *Action) BoardName() (string, error) {
	return a.name("board")
}

// BoardURL returns the board link built from data.board.id.
func (a *Action) BoardURL() (string, error) {
	id, err := a.id("board")
	if err != nil {
		return "", err
	}
	return BaseURL + "/board/" + id, nil
}

// HasCardName reports whether data.card.name is present.
func (a *Action) HasCardName() bool {
	return a.hasName("card")
}

// CardName returns data.card.name.
func (a *Action) CardName() (string, error) {
	return a.name("card")
}

// CardURL returns the card link built from data.card.id.
func (a *Action) CardURL() (string, error) {
	id, err := a.id("card")
	if err != nil {
		return "", err
	}
	return BaseURL + "/c/" + id, nil
}

// DeriveSubject returns the card name, else the board name, else Unknown,
// shortened to SubjectMax characters.
func (a *Action) DeriveSubject() string {
	return DeriveSubject(a.raw)
}

// DeriveSubject is the payload-level form of Action.DeriveSubject. It does
// not require a kind.
func DeriveSubject(raw payload.Object) string {
	subject := Unknown
	if v, ok := raw.Path("data", "card", "name"); ok {
		subject = payload.Text(v)
	} else if v, ok := raw.Path("data", "board", "name"); ok {
		subject = payload.Text(v)
	}
	return ShortenSubject(subject)
}

// ShortenSubject cuts s to SubjectMax-3 code points and appends "..." when it
// exceeds SubjectMax code points. Shorter strings are returned unchanged, so
// the function is idempotent.
func ShortenSubject(s string) string {
	if utf8.RuneCountInString(s) <= SubjectMax {
		return s
	}
	runes := []rune(s)
	return string(runes[:SubjectMax-3]) + "..."
}

// Field returns data.<section>.<key> rendered with payload.Text. A missing
// section or key is a MissingFieldError.
func (a *Action) Field(section, key string) (string, error) {
	sub, ok := a.Data().Object(section)
	if !ok {
		return "", missing(a.kind, "data."+section)
	}
	v, ok := sub.Lookup(key)
	if !ok {
		return "", missing(a.kind, "data."+section+"."+key)
	}
	return payload.Text(v), nil
}

// Section returns the data.<section> object.
func (a *Action) Section(section string) (payload.Object, error) {
	sub, ok := a.Data().Object(section)
	if !ok {
		return nil, missing(a.kind, "data."+section)
	}
	return sub, nil
}

// MemberName returns the full name of the top-level "member" structure
// (the member a role or card-membership action is about).
func (a *Action) MemberName() (string, error) {
	m, ok := a.raw.Object("member")
	if !ok {
		return "", missing(a.kind, "member")
	}
	v, ok := m.Lookup("fullName")
	if !ok {
		return "", missing(a.kind, "member.fullName")
	}
	return payload.Text(v), nil
}

func (a *Action) hasName(section string) bool {
	sub, ok := a.Data().Object(section)
	return ok && sub.Has("name")
}

func (a *Action) name(section string) (string, error) {
	return a.Field(section, "name")
}

func (a *Action) id(section string) (string, error) {
	return a.Field(section, "id")
}
