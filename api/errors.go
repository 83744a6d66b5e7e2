// File: api/errors.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common error types shared across the hioload-amqp library.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrConnectionClosed  = fmt.Errorf("connection is closed")
	ErrFramingViolation  = fmt.Errorf("protocol framing violated")
	ErrUnsupportedScheme = fmt.Errorf("only amqp:// scheme is supported")
	ErrUnknownMethod     = fmt.Errorf("unknown method id")
	ErrUnknownClass      = fmt.Errorf("unknown class id")
	ErrUnknownChannel    = fmt.Errorf("frame for unknown channel")
	ErrPromiseNotFound   = fmt.Errorf("promise not found")
	ErrPromiseNotReady   = fmt.Errorf("promise is not ready")
	ErrPromiseDone       = fmt.Errorf("promise already completed")
	ErrPromiseNotHeld    = fmt.Errorf("promise is not held")
	ErrShortBuffer       = fmt.Errorf("short buffer")
	ErrStringTooLong     = fmt.Errorf("short string exceeds 255 bytes")
	ErrUnknownFieldType  = fmt.Errorf("unknown field table value type")
)

// ConnectionError is a fatal connection-level failure. It is the failure
// marker delivered to promises when the connection breaks, the byte stream
// loses framing, or the broker closes the connection.
type ConnectionError struct {
	ReplyCode uint16 // broker reply code, 0 for local failures
	ReplyText string
	Err       error // underlying cause when locally generated
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.ReplyCode != 0 {
		return fmt.Sprintf("connection closed by broker: %d %s", e.ReplyCode, e.ReplyText)
	}
	if e.Err != nil {
		return fmt.Sprintf("connection broken: %s: %v", e.ReplyText, e.Err)
	}
	return fmt.Sprintf("connection broken: %s", e.ReplyText)
}

// Unwrap exposes the underlying cause for errors.Is checks.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConnectionBroken builds the failure delivered on peer-initiated close or
// unrecoverable socket errors.
func ConnectionBroken(reason string, err error) *ConnectionError {
	return &ConnectionError{ReplyText: reason, Err: err}
}
