package config

import (
	"fmt"
	"strings"
)

// ValidationError is one rejected value of a suite file or execution
// configuration. Field is a dotted path such as "tests.a.execution.threads".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every problem found in one pass so they can be
// reported together.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "invalid configuration"
	case 1:
		return "invalid configuration: " + e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid configuration (%d problems):", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Add records a problem with field.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// Merge adds all errors of err under the given field prefix.
func (e *ValidationErrors) Merge(prefix string, err error) {
	if err == nil {
		return
	}
	if ve, ok := err.(*ValidationErrors); ok {
		for _, item := range ve.Errors {
			e.Add(joinField(prefix, item.Field), item.Message)
		}
		return
	}
	e.Add(prefix, err.Error())
}

// HasErrors reports whether any problem was recorded.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}
