package agentconfig

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an agent, task or parameter id does not exist
var ErrNotFound = errors.New("not found")

// FieldError describes one invalid field. Path locates the owning agent
// or task, e.g. `agent[1] "Search" task[0] "search_apis"`.
type FieldError struct {
	Path    string
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Path, e.Field, e.Message)
}

// ValidationError collects field errors found before a request is sent
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(path, field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Path: path, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

func invalid(path, field, format string, args ...any) error {
	v := &ValidationError{}
	v.add(path, field, format, args...)
	return v
}

// IsValidationError unwraps err into a *ValidationError
func IsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
