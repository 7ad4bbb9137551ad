package feedback

import (
	"encoding/json"
	"fmt"
)

// AutomatedAuthorID is the persisted form of an automated author.
const AutomatedAuthorID = "ai"

// AuthorKind distinguishes the two author variants.
type AuthorKind int

const (
	AuthorHuman AuthorKind = iota
	AuthorAutomated
)

// Author identifies who produced an item. The zero value is not a valid author;
// use Human or Automated.
type Author struct {
	kind AuthorKind
	id   string
}

// Human returns a human author with the given user id.
func Human(id string) Author {
	return Author{kind: AuthorHuman, id: id}
}

// Automated returns the AI author.
func Automated() Author {
	return Author{kind: AuthorAutomated}
}

// ParseAuthor maps a stored author id back to its variant.
func ParseAuthor(stored string) Author {
	if stored == AutomatedAuthorID {
		return Automated()
	}
	return Human(stored)
}

func (a Author) Kind() AuthorKind { return a.kind }

func (a Author) IsAutomated() bool { return a.kind == AuthorAutomated }

// ID returns the human user id, or AutomatedAuthorID for the automated author.
func (a Author) ID() string {
	switch a.kind {
	case AuthorAutomated:
		return AutomatedAuthorID
	default:
		return a.id
	}
}

func (a Author) String() string {
	if a.kind == AuthorAutomated {
		return "automated"
	}
	return "human:" + a.id
}

// Equal reports whether both values denote the same author.
func (a Author) Equal(b Author) bool {
	return a.kind == b.kind && a.id == b.id
}

func (a Author) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.ID())
}

func (a *Author) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("author: %w", err)
	}
	*a = ParseAuthor(s)
	return nil
}
