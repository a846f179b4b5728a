package agentconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"AgentChat/internal/backend"

	"github.com/google/uuid"
)

// Builder holds the team being edited. It always keeps at least one agent.
type Builder struct {
	profile Profile
	agents  []Agent
}

// NewBuilder creates a builder with one empty agent
func NewBuilder(maxTurns int) *Builder {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	b := &Builder{profile: Profile{MaxTurns: maxTurns}}
	b.AddAgent()
	return b
}

// Profile returns the team-wide settings
func (b *Builder) Profile() Profile {
	return b.profile
}

// SetProfile updates prompt, supervisor_system_message or max_turns
func (b *Builder) SetProfile(field, value string) error {
	switch field {
	case "prompt":
		b.profile.Prompt = value
	case "supervisor_system_message":
		b.profile.SupervisorSystemMessage = value
	case "max_turns":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return invalid("profile", field, "must be a positive integer")
		}
		b.profile.MaxTurns = n
	default:
		return invalid("profile", field, "unknown field")
	}
	return nil
}

// Agents returns a copy of the agents in order
func (b *Builder) Agents() []Agent {
	out := make([]Agent, len(b.agents))
	for i, a := range b.agents {
		a.Tasks = append([]Task(nil), a.Tasks...)
		out[i] = a
	}
	return out
}

// AddAgent appends an empty agent and returns its id
func (b *Builder) AddAgent() string {
	id := uuid.NewString()
	b.agents = append(b.agents, Agent{ID: id})
	return id
}

// UpdateAgent sets name or system_message on an agent
func (b *Builder) UpdateAgent(id, field, value string) error {
	a, err := b.agent(id)
	if err != nil {
		return err
	}
	switch field {
	case "name":
		a.Name = value
	case "system_message":
		a.SystemMessage = value
	default:
		return invalid("agent", field, "unknown field")
	}
	return nil
}

// RemoveAgent drops an agent unless it is the last one
func (b *Builder) RemoveAgent(id string) error {
	if _, err := b.agent(id); err != nil {
		return err
	}
	if len(b.agents) <= 1 {
		return nil
	}
	kept := b.agents[:0]
	for _, a := range b.agents {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	b.agents = kept
	return nil
}

// AddTask appends an empty task with the default schema to an agent
func (b *Builder) AddTask(agentID string) (string, error) {
	a, err := b.agent(agentID)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	a.Tasks = append(a.Tasks, Task{ID: id, ParamsSchema: DefaultParamsSchema})
	return id, nil
}

// UpdateTask sets name, description, endpoint or params_schema on a task.
// Schema text is stored as typed and checked by Validate.
func (b *Builder) UpdateTask(agentID, taskID, field, value string) error {
	t, err := b.task(agentID, taskID)
	if err != nil {
		return err
	}
	switch field {
	case "name":
		t.Name = value
	case "description":
		t.Description = value
	case "endpoint":
		t.Endpoint = value
	case "params_schema":
		t.ParamsSchema = value
	default:
		return invalid("task", field, "unknown field")
	}
	return nil
}

// RemoveTask drops a task; an agent may end up with none
func (b *Builder) RemoveTask(agentID, taskID string) error {
	a, err := b.agent(agentID)
	if err != nil {
		return err
	}
	for i, t := range a.Tasks {
		if t.ID == taskID {
			a.Tasks = append(a.Tasks[:i], a.Tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
}

// Validate checks that every task schema is a JSON object. Nothing is
// modified.
func (b *Builder) Validate() error {
	v := &ValidationError{}
	for ai, a := range b.agents {
		for ti, t := range a.Tasks {
			if _, err := parseSchema(t.ParamsSchema); err != nil {
				v.add(taskPath(ai, a, ti, t), "params_schema", "invalid JSON schema: %v", err)
			}
		}
	}
	return v.orNil()
}

// TeamConfig builds the payload of /api/chat/start and /api/save-config/.
// Agents without a name or system message are left out.
func (b *Builder) TeamConfig() (backend.TeamConfig, error) {
	if err := b.Validate(); err != nil {
		return backend.TeamConfig{}, err
	}
	if isBlank(b.profile.Prompt) {
		return backend.TeamConfig{}, invalid("profile", "prompt", "is required")
	}

	cfg := backend.TeamConfig{
		Prompt:                  b.profile.Prompt,
		SupervisorSystemMessage: b.profile.SupervisorSystemMessage,
		MaxTurns:                b.profile.MaxTurns,
		Assistants:              []backend.AgentSpec{},
	}
	for _, a := range b.agents {
		if isBlank(a.Name) || isBlank(a.SystemMessage) {
			continue
		}
		spec := backend.AgentSpec{Name: a.Name, SystemMessage: a.SystemMessage, Tasks: []backend.ToolSpec{}}
		for _, t := range a.Tasks {
			schema, _ := parseSchema(t.ParamsSchema)
			spec.Tasks = append(spec.Tasks, backend.ToolSpec{
				Name:         t.Name,
				Description:  t.Description,
				Endpoint:     t.Endpoint,
				ParamsSchema: schema,
			})
		}
		cfg.Assistants = append(cfg.Assistants, spec)
	}
	return cfg, nil
}

// Replace loads a whole configuration, e.g. the backend example or a file.
// Every agent and task gets a fresh id.
func (b *Builder) Replace(cfg backend.TeamConfig) error {
	agents := make([]Agent, 0, len(cfg.Assistants))
	for _, spec := range cfg.Assistants {
		a := Agent{ID: uuid.NewString(), Name: spec.Name, SystemMessage: spec.SystemMessage}
		for _, tool := range spec.Tasks {
			text := DefaultParamsSchema
			if raw := bytes.TrimSpace(tool.ParamsSchema); len(raw) > 0 && string(raw) != "null" {
				var out bytes.Buffer
				if err := json.Indent(&out, raw, "", "  "); err != nil {
					return fmt.Errorf("failed to encode params schema of %s: %w", tool.Name, err)
				}
				text = out.String()
			}
			a.Tasks = append(a.Tasks, Task{
				ID:           uuid.NewString(),
				Name:         tool.Name,
				Description:  tool.Description,
				Endpoint:     tool.Endpoint,
				ParamsSchema: text,
			})
		}
		agents = append(agents, a)
	}
	if len(agents) == 0 {
		agents = append(agents, Agent{ID: uuid.NewString()})
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	b.profile = Profile{
		Prompt:                  cfg.Prompt,
		SupervisorSystemMessage: cfg.SupervisorSystemMessage,
		MaxTurns:                maxTurns,
	}
	b.agents = agents
	return nil
}

func (b *Builder) agent(id string) (*Agent, error) {
	for i := range b.agents {
		if b.agents[i].ID == id {
			return &b.agents[i], nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
}

func (b *Builder) task(agentID, taskID string) (*Task, error) {
	a, err := b.agent(agentID)
	if err != nil {
		return nil, err
	}
	for i := range a.Tasks {
		if a.Tasks[i].ID == taskID {
			return &a.Tasks[i], nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
