package build

import (
	"errors"
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle discovered during an update. The
// stack collects node names from the point of detection outwards as the
// traversal unwinds.
type CycleError struct {
	Stack []string
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Stack))
	for i, name := range e.Stack {
		names[len(e.Stack)-1-i] = name
	}
	return "dependency cycle: " + strings.Join(names, " -> ")
}

// MissingTargetError reports that a node's rules all completed without
// error, yet the expected path still does not exist.
type MissingTargetError struct {
	Node string
	Path string
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("%s: build rules completed but %q was not produced", e.Node, e.Path)
}

// CommandError reports a subprocess rule that exited non-zero or failed to
// start. Reported is set once the failure has been logged at the node where
// it occurred, so outer layers do not log it a second time.
type CommandError struct {
	Args     []string
	Dir      string
	Code     int
	Err      error
	Reported bool
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s exited with code %d", e.Args[0], e.Code)
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsReported tells whether err has already been logged at its origin.
// The top-level reporter uses this to log each distinct failure exactly once.
func IsReported(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && cmdErr.Reported
}
