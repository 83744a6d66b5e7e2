// File: protocol/frame.go
// Package protocol implements the AMQP 0-9-1 framing layer and the built-in
// method catalogue for the connection class.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "github.com/momentics/hioload-amqp/api"

// Frame is one decoded wire frame. Kind selects which of the remaining
// fields are populated.
type Frame struct {
	Kind    uint8
	Channel uint16

	// Kind == FrameMethod.
	Method api.Method

	// Kind == FrameHeader.
	ClassID  uint16
	BodySize uint64
	Props    api.Properties

	// Kind == FrameBody. Body is an owned copy, safe to retain after the
	// receive buffer is consumed.
	Body []byte
}

// RawFrame is one frame payload queued for transmission: the kind tag plus
// the already-encoded payload bytes.
type RawFrame struct {
	Kind    uint8
	Payload []byte
}

// MethodFrame wraps an encoded method payload as a RawFrame.
func MethodFrame(m interface{ EncodePayload() []byte }) RawFrame {
	return RawFrame{Kind: FrameMethod, Payload: m.EncodePayload()}
}
