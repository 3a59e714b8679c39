package testutil

import (
	"testing"

	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// Sanitized fixture values shared by tests.
const (
	ActionID    = "actidactidactidactidacti"
	ActionDate  = "2013-06-14T17:53:18.146Z"
	CreatorName = "Member Creator Full Name"
	MemberName  = "Member Full Name"
	BoardID     = "b1idb1idb1idb1idb1idb1id"
	BoardName   = "Board One"
	CardID      = "cidcidcidcidcidcidcidcid"
	CardName    = "Card Name"
)

// ActionBuilder assembles raw action payloads for tests.
//
// A new builder starts with an id, a date and a memberCreator; everything
// under "data" is opt-in.
type ActionBuilder struct {
	obj payload.Object
}

// NewAction starts a payload of the given kind.
func NewAction(kind string) *ActionBuilder {
	return &ActionBuilder{obj: payload.Object{
		"id":   payload.String(ActionID),
		"type": payload.String(kind),
		"date": payload.String(ActionDate),
		"memberCreator": payload.Object{
			"id":       payload.String("mcidmcidmcidmcidmcidmcid"),
			"fullName": payload.String(CreatorName),
			"username": payload.String("mcfname"),
		},
		"data": payload.Object{},
	}}
}

// ID sets the action id. An empty id removes the key.
func (b *ActionBuilder) ID(id string) *ActionBuilder {
	if id == "" {
		delete(b.obj, "id")
		return b
	}
	b.obj["id"] = payload.String(id)
	return b
}

// Date sets the action date.
func (b *ActionBuilder) Date(date string) *ActionBuilder {
	b.obj["date"] = payload.String(date)
	return b
}

// NoCreator removes the memberCreator structure.
func (b *ActionBuilder) NoCreator() *ActionBuilder {
	delete(b.obj, "memberCreator")
	return b
}

// Member sets the top-level member structure.
func (b *ActionBuilder) Member(fullName string) *ActionBuilder {
	b.obj["member"] = payload.Object{
		"id":       payload.String("midmidmidmidmidmidmidmid"),
		"fullName": payload.String(fullName),
	}
	return b
}

// Card sets data.card.
func (b *ActionBuilder) Card(id, name string) *ActionBuilder {
	return b.Section("card", payload.Object{"id": payload.String(id), "name": payload.String(name)})
}

// Board sets data.board.
func (b *ActionBuilder) Board(id, name string) *ActionBuilder {
	return b.Section("board", payload.Object{"id": payload.String(id), "name": payload.String(name)})
}

// Named sets data.<section> to {"id": ..., "name": name}.
func (b *ActionBuilder) Named(section, name string) *ActionBuilder {
	return b.Section(section, payload.Object{
		"id":   payload.String(section + "-id"),
		"name": payload.String(name),
	})
}

// Section sets data.<section>, merging into an existing object.
func (b *ActionBuilder) Section(section string, fields payload.Object) *ActionBuilder {
	data := b.data()
	existing, ok := data.Object(section)
	if !ok {
		existing = payload.Object{}
		data[section] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return b
}

// Old sets data.old.
func (b *ActionBuilder) Old(fields payload.Object) *ActionBuilder {
	return b.Section("old", fields)
}

// Data sets a scalar directly under data.
func (b *ActionBuilder) Data(key string, v payload.Value) *ActionBuilder {
	b.data()[key] = v
	return b
}

// Without removes data.<section>.<key>, or data.<section> when key is empty.
func (b *ActionBuilder) Without(section, key string) *ActionBuilder {
	data := b.data()
	if key == "" {
		delete(data, section)
		return b
	}
	if sub, ok := data.Object(section); ok {
		delete(sub, key)
	}
	return b
}

// Object returns the assembled payload.
func (b *ActionBuilder) Object() payload.Object {
	return b.obj
}

// JSON returns the payload as JSON.
func (b *ActionBuilder) JSON(t *testing.T) []byte {
	t.Helper()
	data, err := payload.Marshal(b.obj)
	if err != nil {
		t.Fatalf("marshal action: %v", err)
	}
	return data
}

func (b *ActionBuilder) data() payload.Object {
	data, ok := b.obj.Object("data")
	if !ok {
		data = payload.Object{}
		b.obj["data"] = data
	}
	return data
}
