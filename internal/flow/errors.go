package flow

import (
	"errors"
	"fmt"
)

// FlowError aborts the whole flow. The flow becomes ERROR with the message
type FlowError struct {
	Message string
}

var (
	ErrInvalidDefinition = errors.New("invalid flow definition")
	ErrFlowTypeExists    = errors.New("flow type already registered")
	ErrUnknownFlowType   = errors.New("unknown flow type")
	ErrUnknownState      = errors.New("unknown state")
	ErrStateVersion      = errors.New("state version mismatch")
	ErrEncodeArgs        = errors.New("failed to encode arguments")
)

// Abort returns a FlowError with a formatted message
func Abort(format string, args ...any) error {
	return &FlowError{Message: fmt.Sprintf(format, args...)}
}

func (e *FlowError) Error() string {
	return e.Message
}

// IsFlowError returns true if err is, or wraps, a FlowError
func IsFlowError(err error) bool {
	var fe *FlowError
	return errors.As(err, &fe)
}
