package main

import "fmt"

// usageError marks a failure in how the command was invoked rather than in
// its execution, so main can map it to exit code 2 instead of 1.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
