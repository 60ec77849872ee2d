package arm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotSet is returned by Entity.Get when a column exists in the schema but
// has no value, set or null, in the entity. A column explicitly set to nil
// does not trigger it.
var ErrNotSet = errors.New("column value not set")

// ConfigError reports misuse of the mapper itself: schema declaration
// conflicts, unregistered tables, wrong entity types and the like. It is
// always a programming or wiring mistake, never a runtime condition worth
// retrying.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func configErrorf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError reports required columns that are missing or null in a
// mutation payload. All offending columns are collected before the error is
// raised, not just the first.
type ValidationError struct {
	Table   string
	Columns []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("table %s: required columns missing or null: %s",
		e.Table, strings.Join(e.Columns, ", "))
}
