package multipasscli

import "fmt"

// CLIError represents a failure raised by the multipass CLI.
type CLIError struct {
	Command string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *CLIError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("multipass %s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("multipass %s failed: %v (stderr: %s)", e.Command, e.Err, e.Stderr)
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a command outlives its deadline.
type TimeoutError struct {
	Command string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("multipass command timed out: %s", e.Command)
}
