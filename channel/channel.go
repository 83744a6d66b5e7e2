// File: channel/channel.go
// Package channel implements the per-channel protocol state the reactor
// demultiplexes decoded frames into.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each channel reassembles content (method, header, body chunks) into a
// Delivery and hands it to its consumer in wire order. Channel 0 is the
// connection control channel; its consumer is the handshake machine.

package channel

import (
	"fmt"

	"github.com/momentics/hioload-amqp/api"
)

// Delivery is one reassembled logical unit of work: a method frame plus,
// for content-bearing methods, the header properties and the full body.
type Delivery struct {
	Method api.Method
	Props  api.Properties
	Body   []byte
}

// Consumer receives reassembled deliveries for one channel.
type Consumer func(Delivery) error

// Channel holds the partial content state for one multiplexing lane.
type Channel struct {
	id       uint16
	consumer Consumer

	// Content reassembly: a content-bearing method waits for its header,
	// then for bodySize bytes of chunks.
	pending  api.Method
	props    api.Properties
	bodySize uint64
	body     []byte
}

// SetConsumer installs the delivery consumer for this channel.
func (c *Channel) SetConsumer(fn Consumer) {
	c.consumer = fn
}

// ID returns the channel number.
func (c *Channel) ID() uint16 {
	return c.id
}

func (c *Channel) inboundMethod(m api.Method) error {
	if c.pending != nil {
		return fmt.Errorf("%w: method %s while content reassembly in progress on channel %d",
			api.ErrFramingViolation, m.Name(), c.id)
	}
	if m.HasContent() {
		c.pending = m
		return nil
	}
	return c.deliver(Delivery{Method: m})
}

func (c *Channel) inboundProps(bodySize uint64, props api.Properties) error {
	if c.pending == nil {
		return fmt.Errorf("%w: header frame without method on channel %d", api.ErrFramingViolation, c.id)
	}
	c.props = props
	c.bodySize = bodySize
	c.body = c.body[:0]
	if bodySize == 0 {
		return c.finishContent()
	}
	return nil
}

func (c *Channel) inboundBody(chunk []byte) error {
	if c.pending == nil || c.props == nil {
		return fmt.Errorf("%w: body frame without header on channel %d", api.ErrFramingViolation, c.id)
	}
	c.body = append(c.body, chunk...)
	if uint64(len(c.body)) >= c.bodySize {
		return c.finishContent()
	}
	return nil
}

func (c *Channel) finishContent() error {
	d := Delivery{Method: c.pending, Props: c.props, Body: c.body}
	c.pending = nil
	c.props = nil
	c.bodySize = 0
	c.body = nil
	return c.deliver(d)
}

func (c *Channel) deliver(d Delivery) error {
	if c.consumer == nil {
		return fmt.Errorf("channel %d has no consumer for %s", c.id, d.Method.Name())
	}
	return c.consumer(d)
}
