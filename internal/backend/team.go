package backend

import "encoding/json"

// ToolSpec is a callable tool an assistant agent may use. ParamsSchema is
// passed through verbatim as the tool's function parameters.
type ToolSpec struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Endpoint     string          `json:"endpoint"`
	ParamsSchema json.RawMessage `json:"params_schema"`
}

// AgentSpec is an assistant agent definition as the backend expects it
type AgentSpec struct {
	Name          string     `json:"name"`
	SystemMessage string     `json:"system_message"`
	Tasks         []ToolSpec `json:"tasks"`
}

// TeamConfig is the body of /api/chat/start and /api/save-config/, and
// the shape returned by /api/example-spec
type TeamConfig struct {
	Prompt                  string      `json:"prompt"`
	SupervisorSystemMessage string      `json:"supervisor_system_message"`
	Assistants              []AgentSpec `json:"assistants"`
	MaxTurns                int         `json:"max_turns"`
}

// SupervisorProfileRequest represents the body of /api/save-supervisor-profile/
type SupervisorProfileRequest struct {
	Name                    string `json:"name"`
	Model                   string `json:"model"`
	Persona                 string `json:"persona"`
	SupervisorSystemMessage string `json:"supervisor_system_message"`
	Prompt                  string `json:"prompt,omitempty"`
}

// TeamMessage is one turn of an agent-team conversation
type TeamMessage struct {
	Sender  string `json:"sender,omitempty"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Body returns the message text whichever field the backend filled
func (m TeamMessage) Body() string {
	if m.Content != "" {
		return m.Content
	}
	return m.Text
}

// StartChatResponse represents the response from /api/chat/start
type StartChatResponse struct {
	SessionID       string        `json:"session_id"`
	InitialMessages []TeamMessage `json:"initial_messages"`
}

// SendChatRequest represents the body of /api/chat/{id}/send
type SendChatRequest struct {
	Message string `json:"message"`
}

// NewMessagesResponse represents the response from /api/chat/{id}/send and /step
type NewMessagesResponse struct {
	NewMessages []TeamMessage `json:"new_messages"`
}

// RunResponse represents the response from the run-* endpoints
type RunResponse struct {
	ChatHistory []TeamMessage `json:"chat_history"`
	Response    string        `json:"response"`
}

// MessageResponse is the acknowledgement returned by the save endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

// RunTask is the simplified task shape accepted by /api/run-agent
type RunTask struct {
	Name        string         `json:"name"`
	Endpoint    string         `json:"endpoint"`
	Params      map[string]any `json:"params"`
	Description string         `json:"description"`
}

// RunAgentRequest represents the body of /api/run-agent
type RunAgentRequest struct {
	Tasks []RunTask `json:"tasks"`
}

// RunAgentResponse is left open; the backend returns arbitrary results
type RunAgentResponse map[string]any
