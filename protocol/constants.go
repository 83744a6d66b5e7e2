// File: protocol/constants.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// AMQP 0-9-1 wire protocol constants.

package protocol

const (
	// Frame kind tags.
	FrameMethod    = 0x01
	FrameHeader    = 0x02
	FrameBody      = 0x03
	FrameHeartbeat = 0x08

	// FrameEnd terminates every frame.
	FrameEnd byte = 0xCE

	// FrameOverhead is the fixed per-frame cost: a 7-byte prologue
	// (kind, channel, payload size) plus the trailer byte.
	FrameOverhead = 8

	// Connection defaults.
	DefaultPort     = 5672
	DefaultVhost    = "/"
	DefaultHost     = "localhost"
	DefaultUser     = "guest"
	DefaultPassword = "guest"

	// DefaultFrameMax is the initial frame size ceiling before tuning.
	DefaultFrameMax uint32 = 131072

	// UnboundedFrameMax substitutes for a broker-proposed frame max of 0
	// ("no limit"); literal zero would make framing impossible.
	UnboundedFrameMax uint32 = 1 << 19

	// Class ids implemented by the built-in catalogue.
	ClassConnection uint16 = 10
	ClassBasic      uint16 = 60
)

// ProtocolHeader is the preamble sent before any frame at connect time.
var ProtocolHeader = []byte("AMQP\x00\x00\x09\x01")
