package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateModel is returned when two definitions share a name. The
// registry is write-once; duplicate registration is a fatal configuration
// error at startup, never a runtime race.
var ErrDuplicateModel = errors.New("model already registered")

// ConfigurationError reports a malformed model definition. It is fatal:
// it halts registry construction (and therefore schema compilation)
// rather than being silently skipped.
type ConfigurationError struct {
	Model  string
	Detail string
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("invalid model configuration: %s", e.Detail)
	}
	return fmt.Sprintf("invalid configuration for model %s: %s", e.Model, e.Detail)
}

// NewConfigurationError creates a ConfigurationError for a model
func NewConfigurationError(modelName, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Model:  modelName,
		Detail: fmt.Sprintf(format, args...),
	}
}

// IsConfigurationError returns true if the error is a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
