// File: channel/table.go
// Package channel
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

import (
	"fmt"

	"github.com/momentics/hioload-amqp/api"
)

// Table maps channel ids to channel state and implements api.ChannelSink
// for the reactor. Owned and driven by a single connection.
type Table struct {
	channels map[uint16]*Channel
}

// NewTable returns an empty channel table.
func NewTable() *Table {
	return &Table{channels: make(map[uint16]*Channel)}
}

// Open creates (or returns) the channel with the given id.
func (t *Table) Open(id uint16) *Channel {
	if c, ok := t.channels[id]; ok {
		return c
	}
	c := &Channel{id: id}
	t.channels[id] = c
	return c
}

// Get looks up an open channel.
func (t *Table) Get(id uint16) (*Channel, bool) {
	c, ok := t.channels[id]
	return c, ok
}

// Close removes a channel and discards any partial content state.
func (t *Table) Close(id uint16) {
	delete(t.channels, id)
}

// InboundMethod implements api.ChannelSink.
func (t *Table) InboundMethod(id uint16, m api.Method) error {
	c, ok := t.channels[id]
	if !ok {
		return fmt.Errorf("%w: %d (method %s)", api.ErrUnknownChannel, id, m.Name())
	}
	return c.inboundMethod(m)
}

// InboundProps implements api.ChannelSink.
func (t *Table) InboundProps(id uint16, bodySize uint64, props api.Properties) error {
	c, ok := t.channels[id]
	if !ok {
		return fmt.Errorf("%w: %d (header)", api.ErrUnknownChannel, id)
	}
	return c.inboundProps(bodySize, props)
}

// InboundBody implements api.ChannelSink.
func (t *Table) InboundBody(id uint16, chunk []byte) error {
	c, ok := t.channels[id]
	if !ok {
		return fmt.Errorf("%w: %d (body)", api.ErrUnknownChannel, id)
	}
	return c.inboundBody(chunk)
}
