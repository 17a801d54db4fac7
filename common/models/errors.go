package models

import "fmt"

// Pipeline error taxonomy. Decode and validation errors are recovered
// locally by the processors (counted, excluded from output); read and
// write errors escalate to a failed invocation only when they prevent
// producing any output at all.

// DecodeError marks a stream record whose transport payload could not be
// decoded into JSON at all.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ValidationError marks a decoded record that violates the event schema.
// Field names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// WriteError marks a failed object-store or metadata-store write.
type WriteError struct {
	Key   string
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %q: %v", e.Key, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

// ReadError marks a failed raw-object fetch.
type ReadError struct {
	Key   string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %q: %v", e.Key, e.Cause)
}

func (e *ReadError) Unwrap() error { return e.Cause }
