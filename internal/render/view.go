// Package render maps tagged response content to presentation variants.
package render

import "AgentChat/internal/session"

// FallbackText is shown when a response cannot be rendered as any known variant
const FallbackText = "Response format not recognized."

// View is the closed set of presentation variants. Only types in this
// package implement it.
type View interface {
	isView()
}

// AnswerView is a retrieval answer with its sources and suggested follow-ups
type AnswerView struct {
	Text      string
	Citations []session.Citation
	FollowUps []string
}

// TableView is a flat table with citations pulled out of the Source column
type TableView struct {
	Headers   []string
	Rows      [][]string
	Citations []session.Citation
}

// Field is an ordered key/value pair from a backend record
type Field struct {
	Key   string
	Value string
}

// PricingPlan is one course or plan card
type PricingPlan struct {
	Course       string
	Prices       []Field
	PricePerHour string
	Details      []Field
}

// PricingView lists plans with their hour-based prices
type PricingView struct {
	Plans []PricingPlan
}

// Card is one selectable option
type Card struct {
	Title       string
	Description string
	Text        string
	// Raw is the card as received: the string itself, or compact JSON for objects
	Raw string
}

// Value is the text sent back when the card is picked
func (c Card) Value() string {
	if c.Title != "" {
		return c.Title
	}
	if c.Text != "" {
		return c.Text
	}
	return c.Raw
}

// CardSelectionView presents a prompt and a set of cards to choose from
type CardSelectionView struct {
	Text  string
	Cards []Card
}

// PlainView is untagged text, and the fallback for anything unrecognized
type PlainView struct {
	Text string
}

func (AnswerView) isView()        {}
func (TableView) isView()         {}
func (PricingView) isView()       {}
func (CardSelectionView) isView() {}
func (PlainView) isView()         {}

// Choices returns the texts a user can pick from a view: answer follow-ups
// or card values. Other views offer none.
func Choices(v View) []string {
	switch v := v.(type) {
	case AnswerView:
		return v.FollowUps
	case CardSelectionView:
		out := make([]string, len(v.Cards))
		for i, c := range v.Cards {
			out[i] = c.Value()
		}
		return out
	default:
		return nil
	}
}
