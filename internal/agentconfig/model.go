// Package agentconfig is the editable model of a multi-agent team: the
// supervisor profile, assistant agents and the tasks (tools) they may
// call. Everything is validated locally before it is sent to the backend.
package agentconfig

import (
	"fmt"

	"AgentChat/internal/backend"
)

// DefaultParamsSchema is the schema text of a freshly added task
const DefaultParamsSchema = `{
  "type": "object",
  "properties": {},
  "required": []
}`

// DefaultMaxTurns bounds a team conversation when a config does not say
const DefaultMaxTurns = 16

// Task is a callable tool as edited by the user. ParamsSchema is free text
// and only has to parse once the configuration is validated.
type Task struct {
	ID           string
	Name         string
	Description  string
	Endpoint     string
	ParamsSchema string
}

// Agent is one assistant of the team
type Agent struct {
	ID            string
	Name          string
	SystemMessage string
	Tasks         []Task
}

// Profile holds the team-wide settings
type Profile struct {
	Prompt                  string
	SupervisorSystemMessage string
	MaxTurns                int
}

// Persona is a supervisor tone preset
type Persona struct {
	Key         string
	Title       string
	Description string
}

// Personas lists the selectable supervisor personas
var Personas = []Persona{
	{Key: "Polite", Title: "Polite and persuasive", Description: "Ideal for sales agents"},
	{Key: "Empathetic", Title: "Empathetic and helpful", Description: "Ideal for support agents"},
	{Key: "Witty", Title: "Witty", Description: "Ideal for marketing agents"},
}

// SupervisorProfile is the coordinating agent
type SupervisorProfile struct {
	Name    string
	Model   string
	Persona string
	Role    string
}

// DefaultSupervisor returns the profile a new session starts with
func DefaultSupervisor() SupervisorProfile {
	return SupervisorProfile{
		Name:    "Emma",
		Model:   "gpt-4o-2024-08-06",
		Persona: "Witty",
		Role:    "You are the Supervisor. Coordinate assistants step-by-step to complete the task. Ask the user for clarification if needed. End with TERMINATE.",
	}
}

// Set updates one field: name, model, persona or role
func (p *SupervisorProfile) Set(field, value string) error {
	switch field {
	case "name":
		p.Name = value
	case "model":
		p.Model = value
	case "persona":
		if !validPersona(value) {
			return invalid("supervisor", "persona", "unknown persona %q", value)
		}
		p.Persona = value
	case "role":
		p.Role = value
	default:
		return invalid("supervisor", field, "unknown field")
	}
	return nil
}

// Validate checks the profile before it is saved
func (p SupervisorProfile) Validate() error {
	v := &ValidationError{}
	if isBlank(p.Name) {
		v.add("supervisor", "name", "is required")
	}
	if isBlank(p.Role) {
		v.add("supervisor", "role", "is required")
	}
	if !validPersona(p.Persona) {
		v.add("supervisor", "persona", "unknown persona %q", p.Persona)
	}
	return v.orNil()
}

// Request builds the /api/save-supervisor-profile/ payload
func (p SupervisorProfile) Request(prompt string) backend.SupervisorProfileRequest {
	return backend.SupervisorProfileRequest{
		Name:                    p.Name,
		Model:                   p.Model,
		Persona:                 p.Persona,
		SupervisorSystemMessage: p.Role,
		Prompt:                  prompt,
	}
}

func validPersona(key string) bool {
	for _, p := range Personas {
		if p.Key == key {
			return true
		}
	}
	return false
}

func agentPath(i int, a Agent) string {
	if a.Name == "" {
		return fmt.Sprintf("agent[%d]", i)
	}
	return fmt.Sprintf("agent[%d] %q", i, a.Name)
}

func taskPath(ai int, a Agent, ti int, t Task) string {
	if t.Name == "" {
		return fmt.Sprintf("%s task[%d]", agentPath(ai, a), ti)
	}
	return fmt.Sprintf("%s task[%d] %q", agentPath(ai, a), ti, t.Name)
}
