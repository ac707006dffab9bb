package document

import (
	"errors"
	"fmt"
)

// ErrSchemaChange is returned when an update would alter a type's columns
var ErrSchemaChange = errors.New("column structure of a document type cannot be changed")

// ErrEmptyPrompt is returned when a prompt override is blank
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// ConfigurationError reports a registry that is missing or has a broken entry
type ConfigurationError struct {
	Type   Type
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Type, e.Reason)
}
