package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/routined/internal/logger"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when an execution status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidRoutine wraps routine definition validation failures.
	ErrInvalidRoutine = errors.New("invalid routine")
	// ErrUnknownMessage is returned for scheduler messages with an unrecognized type.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrNotScheduled is returned when an execution is requested for a day the
	// routine does not occur on.
	ErrNotScheduled = errors.New("routine not scheduled on date")
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Soft logs err as a warning and reports whether there was one.
// Best-effort operations (persistence in the background worker) use it
// instead of propagating.
func Soft(op string, err error, keyvals ...interface{}) bool {
	if err == nil {
		return false
	}
	logger.Warn(op+" failed", append([]interface{}{"error", err}, keyvals...)...)
	return true
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
