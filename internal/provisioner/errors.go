package provisioner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Lookup when no VM carries the requested name.
	ErrNotFound = errors.New("vm not found")

	// ErrNoAddress is returned when a matching VM reports no IPv4 address yet.
	ErrNoAddress = errors.New("vm has no ipv4 address")

	// ErrMissingField is returned when a request lacks a required field.
	ErrMissingField = errors.New("missing required field")
)

// Op names the stage of an invocation that failed.
type Op string

const (
	OpParse     Op = "parse"
	OpLookup    Op = "lookup"
	OpJitter    Op = "jitter"
	OpLock      Op = "lock"
	OpProvision Op = "provision"
	OpRecord    Op = "record"
)

// Error is the failure half of an invocation result: the stage that failed,
// the VM it concerned, and the cause.
type Error struct {
	Op   Op
	Name string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Op))
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap attaches op and name to err unless err already carries them.
func wrap(op Op, name string, err error) error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	return &Error{Op: op, Name: name, Err: err}
}
