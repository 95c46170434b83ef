package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrBuildInProgress is returned when another stream already builds the graph.
	ErrBuildInProgress = errors.New("graph build already in progress")
	// ErrRunFailed is returned when streaming a graph whose run ended in error.
	ErrRunFailed = errors.New("graph build failed")
	// ErrNotComplete is returned by operations that need a finished snapshot.
	ErrNotComplete = errors.New("graph is not complete")

	ErrNodeNotFound      = errors.New("node not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PersistenceError wraps a failure to store the finished graph.
type PersistenceError struct {
	GraphID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist graph %s: %v", e.GraphID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
