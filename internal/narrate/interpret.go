package narrate

import (
	"github.com/ysamlan/trello-to-zulip/internal/action"
	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// Message is a narration addressed to a stream topic.
type Message struct {
	Subject string
	Body    string
}

// Result is the outcome of interpreting one raw payload.
type Result struct {
	Message

	Kind       action.Kind
	Suppressed bool
	Reason     string
}

// Interpret narrates a raw payload and derives its subject.
//
// Fails with UnrecognizedShapeError when the payload has no kind and with
// MissingFieldError when the kind's required fields are absent. Safe for
// concurrent use.
func Interpret(raw payload.Object) (Result, error) {
	a, err := action.New(raw)
	if err != nil {
		return Result{}, err
	}
	return InterpretAction(a)
}

// InterpretAction is Interpret for an already-wrapped action.
func InterpretAction(a *action.Action) (Result, error) {
	n, err := Narrate(a)
	if err != nil {
		return Result{}, err
	}
	if n.Suppressed {
		return Result{Kind: a.Kind(), Suppressed: true, Reason: n.Reason}, nil
	}
	return Result{
		Message: Message{Subject: a.DeriveSubject(), Body: n.Body},
		Kind:    a.Kind(),
	}, nil
}

// DeriveSubject returns the subject line for a raw payload: the card name,
// else the board name, else "<unknown>", bounded to 60 characters.
func DeriveSubject(raw payload.Object) string {
	return action.DeriveSubject(raw)
}
