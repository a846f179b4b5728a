package agentconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"AgentChat/internal/backend"

	"github.com/google/uuid"
)

// QuickTask is a single task run directly through /api/run-agent. Params
// is free JSON text.
type QuickTask struct {
	ID          string
	Name        string
	Endpoint    string
	Params      string
	Description string
}

// TaskPanel is the quick-run task list
type TaskPanel struct {
	tasks []QuickTask
}

// NewTaskPanel returns an empty panel
func NewTaskPanel() *TaskPanel {
	return &TaskPanel{}
}

// Tasks returns a copy of the tasks
func (p *TaskPanel) Tasks() []QuickTask {
	return append([]QuickTask(nil), p.tasks...)
}

// Add appends an empty task and returns its id
func (p *TaskPanel) Add() string {
	id := uuid.NewString()
	p.tasks = append(p.tasks, QuickTask{ID: id, Params: "{}"})
	return id
}

// Update sets name, endpoint, params or description
func (p *TaskPanel) Update(id, field, value string) error {
	for i := range p.tasks {
		if p.tasks[i].ID != id {
			continue
		}
		t := &p.tasks[i]
		switch field {
		case "name":
			t.Name = value
		case "endpoint":
			t.Endpoint = value
		case "params":
			t.Params = value
		case "description":
			t.Description = value
		default:
			return invalid("quick task", field, "unknown field")
		}
		return nil
	}
	return fmt.Errorf("quick task %s: %w", id, ErrNotFound)
}

// Remove drops a task
func (p *TaskPanel) Remove(id string) error {
	for i, t := range p.tasks {
		if t.ID == id {
			p.tasks = append(p.tasks[:i], p.tasks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("quick task %s: %w", id, ErrNotFound)
}

// Resolve validates the panel and builds the /api/run-agent tasks. Blank
// params mean an empty object.
func (p *TaskPanel) Resolve() ([]backend.RunTask, error) {
	if len(p.tasks) == 0 {
		return nil, invalid("", "tasks", "add at least one task before running the agent")
	}

	v := &ValidationError{}
	out := make([]backend.RunTask, 0, len(p.tasks))
	for i, t := range p.tasks {
		path := fmt.Sprintf("quick task[%d]", i)
		if isBlank(t.Name) {
			v.add(path, "name", "is required")
		}
		if isBlank(t.Endpoint) {
			v.add(path, "endpoint", "is required")
		}
		if isBlank(t.Description) {
			v.add(path, "description", "is required")
		}

		params := map[string]any{}
		if text := strings.TrimSpace(t.Params); text != "" {
			if err := json.Unmarshal([]byte(text), &params); err != nil {
				v.add(path, "params", "invalid JSON: %v", err)
				continue
			}
			if params == nil {
				v.add(path, "params", "must be a JSON object")
				continue
			}
		}
		out = append(out, backend.RunTask{
			Name:        t.Name,
			Endpoint:    t.Endpoint,
			Params:      params,
			Description: t.Description,
		})
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}
