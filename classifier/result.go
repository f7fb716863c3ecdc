package classifier

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	FieldName       = "name"
	FieldStatus     = "status"
	FieldNextAction = "next_action"
	FieldNotes      = "notes"
)

var (
	ErrUnavailable     = errors.New("classification unavailable")
	ErrInvalidResponse = errors.New("invalid classifier response")
)

type Result struct {
	Category   Category
	Fields     map[string]string
	Confidence int
	Backend    string
	Attempts   []Attempt
}

func (r Result) Name() string {
	return r.Fields[FieldName]
}

// Attempt is one call to one backend. Err is nil for the attempt that produced the result.
type Attempt struct {
	Backend  string
	Duration time.Duration
	Err      error
}

// UnavailableError is returned when every backend failed. It matches ErrUnavailable.
type UnavailableError struct {
	Attempts []Attempt
}

func (e *UnavailableError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrUnavailable.Error()
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("%s: %s", ErrUnavailable.Error(), strings.Join(parts, "; "))
}

func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}
