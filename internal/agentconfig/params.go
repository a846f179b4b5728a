package agentconfig

import (
	"encoding/json"
	"fmt"
	"slices"
)

const newParameter = `{"type":"string","description":""}`

// AddParameter adds a string property named paramN to a task schema and
// returns the name
func (b *Builder) AddParameter(agentID, taskID string) (string, error) {
	var name string
	err := b.editSchema(agentID, taskID, func(d *schemaDoc) error {
		for n := d.props.Len() + 1; ; n++ {
			name = fmt.Sprintf("param%d", n)
			if _, taken := d.props.Get(name); !taken {
				break
			}
		}
		d.props.Set(name, json.RawMessage(newParameter))
		return nil
	})
	return name, err
}

// RemoveParameter deletes a property and its required entry
func (b *Builder) RemoveParameter(agentID, taskID, name string) error {
	return b.editSchema(agentID, taskID, func(d *schemaDoc) error {
		if _, ok := d.props.Delete(name); !ok {
			return fmt.Errorf("parameter %s: %w", name, ErrNotFound)
		}
		if d.isRequired(name) {
			d.setRequired(slices.DeleteFunc(d.required, func(r string) bool { return r == name }))
		}
		return nil
	})
}

// RenameParameter renames a property, keeping it required if it was
func (b *Builder) RenameParameter(agentID, taskID, oldName, newName string) error {
	if isBlank(newName) {
		return invalid("parameter", "name", "is required")
	}
	return b.editSchema(agentID, taskID, func(d *schemaDoc) error {
		prop, ok := d.props.Get(oldName)
		if !ok {
			return fmt.Errorf("parameter %s: %w", oldName, ErrNotFound)
		}
		if oldName == newName {
			return nil
		}
		if _, taken := d.props.Get(newName); taken {
			return invalid("parameter", "name", "%q already exists", newName)
		}
		d.props.Delete(oldName)
		d.props.Set(newName, prop)
		if d.isRequired(oldName) {
			renamed := slices.Clone(d.required)
			for i, r := range renamed {
				if r == oldName {
					renamed[i] = newName
				}
			}
			d.setRequired(renamed)
		}
		return nil
	})
}

// SetParameterRequired adds or removes a property from required
func (b *Builder) SetParameterRequired(agentID, taskID, name string, required bool) error {
	return b.editSchema(agentID, taskID, func(d *schemaDoc) error {
		if _, ok := d.props.Get(name); !ok {
			return fmt.Errorf("parameter %s: %w", name, ErrNotFound)
		}
		has := d.isRequired(name)
		switch {
		case required && !has:
			d.setRequired(append(d.required, name))
		case !required && has:
			d.setRequired(slices.DeleteFunc(d.required, func(r string) bool { return r == name }))
		}
		return nil
	})
}

// SetParameterDescription sets a property's description
func (b *Builder) SetParameterDescription(agentID, taskID, name, description string) error {
	return b.editSchema(agentID, taskID, func(d *schemaDoc) error {
		prop, ok := d.props.Get(name)
		if !ok {
			return fmt.Errorf("parameter %s: %w", name, ErrNotFound)
		}
		updated, err := setPropertyField(prop, "description", description)
		if err != nil {
			return invalid("parameter", name, "%v", err)
		}
		d.props.Set(name, updated)
		return nil
	})
}

// Parameters lists a task's property names in schema order with their
// required flag. A type union reads as "string|null".
func (b *Builder) Parameters(agentID, taskID string) ([]Parameter, error) {
	t, err := b.task(agentID, taskID)
	if err != nil {
		return nil, err
	}
	d, err := openSchema(t.ParamsSchema)
	if err != nil {
		return nil, invalid("task", "params_schema", "invalid JSON schema: %v", err)
	}
	var out []Parameter
	for pair := d.props.Oldest(); pair != nil; pair = pair.Next() {
		p := Parameter{Name: pair.Key, Required: d.isRequired(pair.Key)}
		p.Type, p.Description = propertyInfo(pair.Value)
		out = append(out, p)
	}
	return out, nil
}

// Parameter is one property of a task schema
type Parameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// editSchema opens the task schema, applies fn and writes the result back
// as indented text. The task is left untouched when parsing or fn fails.
func (b *Builder) editSchema(agentID, taskID string, fn func(*schemaDoc) error) error {
	t, err := b.task(agentID, taskID)
	if err != nil {
		return err
	}
	d, err := openSchema(t.ParamsSchema)
	if err != nil {
		return invalid("task", "params_schema", "invalid JSON schema: %v", err)
	}
	if err := fn(d); err != nil {
		return err
	}
	text, err := d.encode()
	if err != nil {
		return fmt.Errorf("failed to encode params schema: %w", err)
	}
	t.ParamsSchema = text
	return nil
}
