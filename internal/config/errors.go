package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError wraps a failure to read or decode the configuration file.
type ConfigError struct {
	Op  string // read, unmarshal
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("preaid config %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError collects every problem found by Validate.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0]
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n  - %s",
		len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

// HasError reports whether any problem mentions field.
func (e *ValidationError) HasError(field string) bool {
	for _, msg := range e.Errors {
		if strings.Contains(msg, field) {
			return true
		}
	}
	return false
}

// MissingKeyError reports a required key left empty.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s is required", e.Key)
}

// InvalidValueError reports a key holding a value outside its domain.
type InvalidValueError struct {
	Key           string
	Value         any
	AllowedValues []string
}

func (e *InvalidValueError) Error() string {
	if len(e.AllowedValues) == 0 {
		return fmt.Sprintf("%s: invalid value %q", e.Key, fmt.Sprint(e.Value))
	}
	return fmt.Sprintf("%s: invalid value %q (allowed: %s)",
		e.Key, fmt.Sprint(e.Value), strings.Join(e.AllowedValues, ", "))
}

// ValidationProblems returns the individual problems when err is a
// ValidationError, and nil otherwise.
func ValidationProblems(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Errors
	}
	return nil
}

// IsConfigError reports whether err came from reading or decoding the file.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
