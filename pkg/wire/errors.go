package wire

import (
	"errors"
	"fmt"
)

// Encoding errors. EncodingError wraps one of these.
var (
	ErrInvalidValue  = errors.New("invalid value")
	ErrUnsupportedOp = errors.New("unsupported operation")
	ErrUnknownKey    = errors.New("unknown key")
)

// EncodingError reports a command that cannot be represented on the wire.
type EncodingError struct {
	Key   Key
	Op    Op
	Value any
	Err   error

	// Detail adds context, e.g. the allowed range.
	Detail string
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("wire: encode %s %s", e.Op, e.Key)
	if e.Value != nil {
		msg += fmt.Sprintf(" %v", e.Value)
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

func encodingError(cmd Command, err error, detail string) *EncodingError {
	return &EncodingError{Key: cmd.Key, Op: cmd.Op, Value: cmd.Value, Err: err, Detail: detail}
}
