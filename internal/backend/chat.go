package backend

import "AgentChat/internal/session"

// AskRequest represents the request body for POST /api/ask
type AskRequest struct {
	Query string `json:"query"`
	Lang  string `json:"lang"`
}

// AskResponse is the tagged content returned by /api/ask
type AskResponse = session.Content

// UploadResponse represents the response from POST /api/upload
type UploadResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the error body the backend returns on failure
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Frame types sent over the streaming channel
const (
	FrameFinalAnswer  = "final_answer"
	FrameAgentMessage = "agent_message"
)

// StreamFrame is a JSON frame received on the WebSocket
type StreamFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Sender string `json:"sender,omitempty"`
}
