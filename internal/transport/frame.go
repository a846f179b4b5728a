package transport

import (
	"bytes"
	"encoding/json"

	"AgentChat/internal/backend"
)

// Frame is a decoded stream message
type Frame struct {
	Type   string
	Text   string
	Sender string
}

// ParseFrame decodes a server frame. Known JSON frame types keep their
// text and sender; any other JSON is shown as its string value or compact
// JSON, and frames that are not JSON at all are kept as plain text.
func ParseFrame(data []byte) Frame {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Frame{Text: string(data)}
	}

	if _, ok := parsed.(map[string]any); ok {
		var f backend.StreamFrame
		if err := json.Unmarshal(data, &f); err == nil {
			switch f.Type {
			case backend.FrameFinalAnswer:
				return Frame{Type: f.Type, Text: f.Text}
			case backend.FrameAgentMessage:
				return Frame{Type: f.Type, Text: f.Text, Sender: f.Sender}
			}
		}
	}

	if s, ok := parsed.(string); ok {
		return Frame{Text: s}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return Frame{Text: string(data)}
	}
	return Frame{Text: buf.String()}
}
