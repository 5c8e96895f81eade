package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies bridge failures.
type ErrorKind string

const (
	ValidationError     ErrorKind = "ValidationError"
	InsufficientBalance ErrorKind = "InsufficientBalance"
	NetworkError        ErrorKind = "NetworkError"
	EventDecodeError    ErrorKind = "EventDecodeError"
	Timeout             ErrorKind = "Timeout"
)

// ErrUnsupportedChain is wrapped by every ValidationError caused by an unknown chain identifier.
var ErrUnsupportedChain = errors.New("unsupported chain")

// BridgeError is the typed failure carried through results and returned errors.
type BridgeError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// Expected reports whether the failure is part of normal operation (returned in
// results) rather than an unexpected fault (returned as an error).
func (e *BridgeError) Expected() bool {
	switch e.Kind {
	case ValidationError, InsufficientBalance, Timeout:
		return true
	default:
		return false
	}
}

func NewBridgeError(kind ErrorKind, err error, format string, args ...any) *BridgeError {
	return &BridgeError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validationf(format string, args ...any) *BridgeError {
	return NewBridgeError(ValidationError, nil, format, args...)
}

func UnsupportedChain(chain string) *BridgeError {
	return NewBridgeError(ValidationError, ErrUnsupportedChain, "chain %q is not supported", chain)
}

func Networkf(err error, format string, args ...any) *BridgeError {
	return NewBridgeError(NetworkError, err, format, args...)
}

// KindOf returns the kind of the first BridgeError in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// AsBridgeError converts any error into a BridgeError, defaulting to NetworkError.
func AsBridgeError(err error) *BridgeError {
	var be *BridgeError
	if errors.As(err, &be) {
		return be
	}
	return &BridgeError{Kind: NetworkError, Message: err.Error(), Err: err}
}
