// File: api/channel.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Interfaces between the connection reactor and per-channel protocol state.
// The reactor decodes frames and hands them to a ChannelSink in wire order;
// it never interprets channel-level semantics itself.

package api

// Method is a decoded protocol method frame.
type Method interface {
	// MethodID returns the combined class/method identifier
	// (class in the high 16 bits, method in the low 16).
	MethodID() uint32

	// Name returns the protocol name of the method, e.g. "connection.start".
	Name() string

	// HasContent reports whether a header frame and body follow this method.
	HasContent() bool
}

// Properties is a decoded content header property block.
type Properties interface {
	// ClassID returns the content class the properties belong to.
	ClassID() uint16
}

// ChannelSink consumes decoded frames demultiplexed by channel id.
// Implementations own partially-received header/body reassembly and may
// complete promises as logical units of work finish.
type ChannelSink interface {
	// InboundMethod delivers a decoded method frame.
	InboundMethod(channel uint16, m Method) error

	// InboundProps delivers a content header: the declared body size and
	// the decoded property block.
	InboundProps(channel uint16, bodySize uint64, props Properties) error

	// InboundBody delivers one raw body chunk.
	InboundBody(channel uint16, chunk []byte) error
}
