package session

import (
	"bytes"
	"encoding/json"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType is the tag that selects how an assistant message body is rendered
type ContentType string

const (
	TypeAnswer                  ContentType = "answer"
	TypeTable                   ContentType = "table"
	TypePricing                 ContentType = "pricing"
	TypeCardSelection           ContentType = "card_selection"
	TypeInteractiveSessionStart ContentType = "interactive_session_start"
)

// Citation points at a source document. The backend sends either
// {"source": url} on answers or {"url": url} once flattened from tables.
type Citation struct {
	URL string `json:"url"`
}

// UnmarshalJSON accepts both the "source" and "url" spellings
func (c *Citation) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL    string `json:"url"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.URL = raw.URL
	if c.URL == "" {
		c.URL = raw.Source
	}
	return nil
}

// Content is the tagged body of a message. Only the fields that belong to
// Type are meaningful; Data carries the variant payload undecoded so a
// malformed payload can never fail the whole response.
type Content struct {
	Type      ContentType     `json:"type,omitempty"`
	Text      string          `json:"text,omitempty"`
	Citations []Citation      `json:"citations,omitempty"`
	FollowUps []string        `json:"follow_ups,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes each field on its own. A field of the wrong
// shape is dropped, a scalar text is kept as its JSON text, and bad
// citation or follow-up entries are skipped, so the rest still renders.
func (c *Content) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*c = Content{}
	if raw, ok := fields["type"]; ok {
		_ = json.Unmarshal(raw, &c.Type)
	}
	if raw, ok := fields["text"]; ok {
		c.Text = scalarText(raw)
	}
	for _, item := range rawList(fields["citations"]) {
		var cite Citation
		if json.Unmarshal(item, &cite) == nil && cite.URL != "" {
			c.Citations = append(c.Citations, cite)
		}
	}
	for _, item := range rawList(fields["follow_ups"]) {
		var q string
		if json.Unmarshal(item, &q) == nil && q != "" {
			c.FollowUps = append(c.FollowUps, q)
		}
	}
	if raw, ok := fields["data"]; ok && string(raw) != "null" {
		c.Data = raw
	}
	return nil
}

func scalarText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	switch raw[0] {
	case '{', '[', 'n':
		return ""
	}
	return string(raw)
}

func rawList(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	return items
}

// TextContent returns an untagged plain text body
func TextContent(text string) Content {
	return Content{Text: text}
}

// AnswerContent returns an answer body without citations or follow-ups
func AnswerContent(text string) Content {
	return Content{Type: TypeAnswer, Text: text}
}

// Message represents a single conversation entry
type Message struct {
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender,omitempty"`
}

// NewMessage stamps a message with the current time
func NewMessage(role Role, content Content) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
