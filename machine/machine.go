// File: machine/machine.go
// Package machine implements the connect-time handshake and the close
// sequence as promise-producing state machines on channel 0.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The machine never touches the socket: it consumes channel-0 deliveries
// and replies through the connection's frame sender, so it layers on the
// reactor like any other operation.

package machine

import (
	"fmt"
	"strings"

	"github.com/momentics/hioload-amqp/api"
	"github.com/momentics/hioload-amqp/channel"
	"github.com/momentics/hioload-amqp/promise"
	"github.com/momentics/hioload-amqp/protocol"
)

// Conn is the slice of the connection the machines drive.
type Conn interface {
	// SendRaw queues raw bytes (the protocol preamble) for transmission.
	SendRaw(data []byte) error

	// SendFrames queues framed payloads for one channel.
	SendFrames(channelID uint16, frames []protocol.RawFrame) error

	// Promises exposes the connection's scheduler.
	Promises() *promise.Scheduler

	// Channels exposes the connection's channel table.
	Channels() *channel.Table

	// TuneFrameMax folds the broker-proposed frame max into the ceiling
	// and returns the negotiated value.
	TuneFrameMax(newMax uint32) uint32

	// Credentials returns the parsed endpoint identity.
	Credentials() (user, password, vhost string)

	// Shutdown tears the connection down, broadcasting r to outstanding
	// promises.
	Shutdown(r promise.Result)
}

const saslPlain = "PLAIN"

// clientProperties identifies this client to the broker during StartOk.
var clientProperties = protocol.Table{
	"product":  "hioload-amqp",
	"platform": "Go",
	"version":  "1.0.0",
}

// Machine owns channel 0 for the lifetime of the connection.
type Machine struct {
	conn         Conn
	openPromise  promise.ID
	closePromise promise.ID
	closing      bool
}

// StartHandshake claims channel 0, sends the protocol preamble and returns
// the promise completed when connection.open-ok arrives.
func StartHandshake(c Conn) (*Machine, promise.ID, error) {
	m := &Machine{conn: c, openPromise: c.Promises().Create()}
	c.Channels().Open(0).SetConsumer(m.consume)
	if err := c.SendRaw(protocol.ProtocolHeader); err != nil {
		return nil, 0, err
	}
	return m, m.openPromise, nil
}

// Close starts the graceful close sequence and returns the promise
// completed when the broker acknowledges with close-ok.
func (m *Machine) Close() (promise.ID, error) {
	if m.closing {
		return m.closePromise, nil
	}
	m.closing = true
	m.closePromise = m.conn.Promises().Create()
	err := m.sendMethod(&protocol.ConnectionClose{ReplyCode: 200, ReplyText: "Normal shutdown"})
	if err != nil {
		return 0, err
	}
	return m.closePromise, nil
}

// consume is the channel-0 delivery consumer.
func (m *Machine) consume(d channel.Delivery) error {
	switch method := d.Method.(type) {
	case *protocol.ConnectionStart:
		return m.onStart(method)
	case *protocol.ConnectionTune:
		return m.onTune(method)
	case *protocol.ConnectionOpenOk:
		return m.conn.Promises().Done(m.openPromise, promise.Result{Value: method})
	case *protocol.ConnectionClose:
		return m.onServerClose(method)
	case *protocol.ConnectionCloseOk:
		return m.onCloseOk()
	default:
		return fmt.Errorf("%w: unexpected %s on channel 0", api.ErrFramingViolation, d.Method.Name())
	}
}

func (m *Machine) onStart(start *protocol.ConnectionStart) error {
	if !mechanismOffered(start.Mechanisms, saslPlain) {
		reason := &api.ConnectionError{ReplyText: fmt.Sprintf("broker offers no %s auth (%q)", saslPlain, start.Mechanisms)}
		m.conn.Shutdown(promise.Result{Err: reason})
		return nil
	}
	user, password, _ := m.conn.Credentials()
	return m.sendMethod(&protocol.ConnectionStartOk{
		ClientProperties: clientProperties,
		Mechanism:        saslPlain,
		Response:         "\x00" + user + "\x00" + password,
		Locale:           "en_US",
	})
}

func (m *Machine) onTune(tune *protocol.ConnectionTune) error {
	frameMax := m.conn.TuneFrameMax(tune.FrameMax)
	err := m.sendMethod(&protocol.ConnectionTuneOk{
		ChannelMax: tune.ChannelMax,
		FrameMax:   frameMax,
		Heartbeat:  0,
	})
	if err != nil {
		return err
	}
	_, _, vhost := m.conn.Credentials()
	return m.sendMethod(&protocol.ConnectionOpen{VirtualHost: vhost})
}

func (m *Machine) onServerClose(closeM *protocol.ConnectionClose) error {
	// Best effort: the broker may have half-closed already.
	_ = m.sendMethod(&protocol.ConnectionCloseOk{})
	m.conn.Shutdown(promise.Result{Err: &api.ConnectionError{
		ReplyCode: closeM.ReplyCode,
		ReplyText: closeM.ReplyText,
	}})
	return nil
}

func (m *Machine) onCloseOk() error {
	if !m.closing {
		return fmt.Errorf("%w: unsolicited connection.close-ok", api.ErrFramingViolation)
	}
	// Complete the close promise before the shutdown broadcast so it
	// carries the success result, not the teardown failure.
	err := m.conn.Promises().Done(m.closePromise, promise.Result{Value: &protocol.ConnectionCloseOk{}})
	m.conn.Shutdown(promise.Result{Err: api.ConnectionBroken("closed by client", nil)})
	return err
}

func (m *Machine) sendMethod(method interface{ EncodePayload() []byte }) error {
	return m.conn.SendFrames(0, []protocol.RawFrame{protocol.MethodFrame(method)})
}

func mechanismOffered(offered, want string) bool {
	for _, mech := range strings.Fields(offered) {
		if mech == want {
			return true
		}
	}
	return false
}
