package cli

import (
	"errors"
	"fmt"
)

// ErrUsage matches every error caused by bad flags, config or inputs.
// main maps it to exit status 2.
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg   string
	cause error
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

// usageErrorf formats a usage error. A %w verb keeps the cause reachable
// through errors.As.
func usageErrorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return usageError{msg: err.Error(), cause: errors.Unwrap(err)}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Unwrap() error { return e.cause }

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}
