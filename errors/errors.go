package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", caller(), fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(), fmt.Sprintf(format, a...), err)
}

// Is reports whether any error in err's chain matches target. It exists so
// callers don't have to import both this package and the standard library one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
