package agentconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type rawObject = orderedmap.OrderedMap[string, json.RawMessage]

var errNotObject = errors.New("must be a JSON object")

// parseSchema checks that text is a JSON object and returns it unchanged.
// Keywords are not interpreted; the backend forwards the schema as is.
func parseSchema(text string) (json.RawMessage, error) {
	raw := bytes.TrimSpace([]byte(text))
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, errNotObject
	}
	return json.RawMessage(raw), nil
}

// schemaDoc is a task schema opened for editing. Only properties and
// required are decoded; every other key keeps its bytes and position.
type schemaDoc struct {
	root     *rawObject
	props    *rawObject
	required []string
	writeReq bool
}

func openSchema(text string) (*schemaDoc, error) {
	raw, err := parseSchema(text)
	if err != nil {
		return nil, err
	}
	doc := &schemaDoc{root: orderedmap.New[string, json.RawMessage](), props: orderedmap.New[string, json.RawMessage]()}
	if err := json.Unmarshal(raw, doc.root); err != nil {
		return nil, err
	}
	if v, ok := doc.root.Get("properties"); ok {
		if err := parseObject(v, doc.props); err != nil {
			return nil, fmt.Errorf("properties %w", errNotObject)
		}
	}
	if v, ok := doc.root.Get("required"); ok {
		doc.writeReq = true
		if err := json.Unmarshal(v, &doc.required); err != nil {
			return nil, errors.New("required must be a list of names")
		}
	}
	return doc, nil
}

func parseObject(raw json.RawMessage, into *rawObject) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	if probe == nil {
		return errNotObject
	}
	return json.Unmarshal(raw, into)
}

func (d *schemaDoc) isRequired(name string) bool {
	for _, r := range d.required {
		if r == name {
			return true
		}
	}
	return false
}

func (d *schemaDoc) setRequired(required []string) {
	d.required = required
	d.writeReq = true
}

// encode writes properties and required back and indents the result
func (d *schemaDoc) encode() (string, error) {
	props, err := json.Marshal(d.props)
	if err != nil {
		return "", err
	}
	d.root.Set("properties", props)
	if d.writeReq {
		if d.required == nil {
			d.required = []string{}
		}
		req, err := json.Marshal(d.required)
		if err != nil {
			return "", err
		}
		d.root.Set("required", req)
	}
	flat, err := json.Marshal(d.root)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, flat, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

// propertyInfo reads type and description from a property without
// requiring either to have a particular shape
func propertyInfo(raw json.RawMessage) (typ, description string) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return "", ""
	}
	if t, ok := fields["type"]; ok {
		var single string
		var union []string
		switch {
		case json.Unmarshal(t, &single) == nil:
			typ = single
		case json.Unmarshal(t, &union) == nil:
			typ = strings.Join(union, "|")
		default:
			typ = string(t)
		}
	}
	if d, ok := fields["description"]; ok {
		_ = json.Unmarshal(d, &description)
	}
	return typ, description
}

// setPropertyField sets one key of a property object, keeping its other keys
func setPropertyField(raw json.RawMessage, key string, value any) (json.RawMessage, error) {
	prop := orderedmap.New[string, json.RawMessage]()
	if err := parseObject(raw, prop); err != nil {
		return nil, fmt.Errorf("property %w", errNotObject)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	prop.Set(key, encoded)
	return json.Marshal(prop)
}
