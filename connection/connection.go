// File: connection/connection.go
// Package connection implements the non-blocking AMQP connection reactor:
// one TCP socket, a receive and a send buffer, the frame codec pump, and
// promise delivery via blocking Wait or the callback Loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency model: single-threaded and cooperative. Exactly one
// goroutine drives the connection; all mutation happens inside OnRead,
// OnWrite and callback dispatch, which are never reentered. The only
// suspension points are the poll calls inside Wait and Loop.

package connection

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-amqp/api"
	"github.com/momentics/hioload-amqp/buffer"
	"github.com/momentics/hioload-amqp/channel"
	"github.com/momentics/hioload-amqp/config"
	"github.com/momentics/hioload-amqp/machine"
	"github.com/momentics/hioload-amqp/promise"
	"github.com/momentics/hioload-amqp/protocol"
)

// Connection is the reactor. Constructed disconnected; Connect opens the
// socket and starts the handshake; a fatal I/O error or broker close moves
// it to shutdown. Not reusable after shutdown.
type Connection struct {
	user     string
	password string
	vhost    string
	host     string
	port     int

	fd       int
	recvBuf  *buffer.SimpleBuffer
	sendBuf  *buffer.SimpleBuffer
	recvNeed int
	frameMax uint32

	channels *channel.Table
	promises *promise.Scheduler
	machine  *machine.Machine

	breakLoop bool
	readChunk []byte
	log       zerolog.Logger
}

// New constructs a disconnected reactor from an amqp:// endpoint string.
// Endpoint faults are rejected here, before any I/O.
func New(amqpURL string) (*Connection, error) {
	user, password, vhost, host, port, err := ParseURL(amqpURL)
	if err != nil {
		return nil, err
	}
	return &Connection{
		user:     user,
		password: password,
		vhost:    vhost,
		host:     host,
		port:     port,
		fd:       -1,
		frameMax: protocol.DefaultFrameMax,
		channels: channel.NewTable(),
		promises: promise.NewScheduler(),
		log:      zerolog.Nop(),
	}, nil
}

// NewFromConfig constructs a reactor from a client configuration.
func NewFromConfig(cfg config.Config) (*Connection, error) {
	c, err := New(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.FrameMax > 0 {
		c.frameMax = cfg.FrameMax
	}
	c.log = cfg.NewLogger()
	return c, nil
}

// SetLogger replaces the connection logger.
func (c *Connection) SetLogger(l zerolog.Logger) {
	c.log = l
}

// Connect opens the socket and kicks off the handshake, returning the
// promise completed when the connection is open.
func (c *Connection) Connect() (promise.ID, error) {
	if c.fd >= 0 {
		return 0, fmt.Errorf("already connected to %s:%d", c.host, c.port)
	}
	c.initBuffers()
	fd, err := dial(c.host, c.port)
	if err != nil {
		return 0, err
	}
	c.fd = fd
	c.log.Debug().Str("host", c.host).Int("port", c.port).Msg("connection attempt started")
	m, pid, err := machine.StartHandshake(c)
	if err != nil {
		return 0, err
	}
	c.machine = m
	return pid, nil
}

func (c *Connection) initBuffers() {
	c.recvBuf = buffer.New()
	c.sendBuf = buffer.New()
	c.recvNeed = protocol.FrameOverhead
	c.readChunk = make([]byte, recvChunk)
}

// Fileno exposes the socket descriptor for external multiplexers.
func (c *Connection) Fileno() int {
	return c.fd
}

// NeedsWrite reports whether the send buffer has pending bytes.
func (c *Connection) NeedsWrite() bool {
	return c.sendBuf != nil && c.sendBuf.Len() > 0
}

// Promises exposes the completion scheduler.
func (c *Connection) Promises() *promise.Scheduler {
	return c.promises
}

// Channels exposes the channel table.
func (c *Connection) Channels() *channel.Table {
	return c.channels
}

// Credentials returns the parsed endpoint identity.
func (c *Connection) Credentials() (user, password, vhost string) {
	return c.user, c.password, c.vhost
}

// FrameMax returns the current negotiated frame size ceiling.
func (c *Connection) FrameMax() uint32 {
	return c.frameMax
}

// TuneFrameMax folds the broker-proposed maximum into the ceiling. Zero
// means the broker imposes no limit and maps to a large internal default;
// the ceiling never grows.
func (c *Connection) TuneFrameMax(newMax uint32) uint32 {
	if newMax == 0 {
		newMax = protocol.UnboundedFrameMax
	}
	if newMax < c.frameMax {
		c.frameMax = newMax
	}
	return c.frameMax
}

// OnRead performs one non-blocking receive and drains every complete frame
// from the receive buffer, dispatching in wire order. A would-block result
// is a no-op; a zero-length read is peer-initiated close.
func (c *Connection) OnRead() error {
	if c.fd < 0 {
		return api.ErrConnectionClosed
	}
	n, err := unix.Read(c.fd, c.readChunk)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
		return nil
	}
	if err != nil {
		broken := api.ConnectionBroken("receive failed", err)
		c.Shutdown(promise.Result{Err: broken})
		return broken
	}
	if n == 0 {
		broken := api.ConnectionBroken("peer closed connection", nil)
		c.Shutdown(promise.Result{Err: broken})
		return broken
	}
	c.recvBuf.Write(c.readChunk[:n])
	return c.drainFrames()
}

// drainFrames decodes frames while enough bytes are buffered, then drops
// exactly the consumed prefix. A trailing partial frame stays buffered for
// the next read.
func (c *Connection) drainFrames() error {
	if c.recvBuf.Len() < c.recvNeed {
		return nil
	}
	data := c.recvBuf.Bytes()
	offset := 0
	for len(data)-offset >= c.recvNeed {
		frame, next, need, err := protocol.DecodeFrame(data, offset)
		if err != nil {
			c.log.Error().Err(err).Msg("protocol framing fault")
			broken := api.ConnectionBroken("protocol framing fault", err)
			c.Shutdown(promise.Result{Err: broken})
			return err
		}
		if frame == nil {
			c.recvNeed = need
			break
		}
		c.recvNeed = need
		if err := c.dispatch(frame); err != nil {
			c.log.Error().Err(err).Msg("frame dispatch fault")
			c.Shutdown(promise.Result{Err: api.ConnectionBroken("frame dispatch fault", err)})
			return err
		}
		offset = next
		if c.fd < 0 {
			// A dispatched frame tore the connection down; the rest of
			// the buffered bytes are void.
			return nil
		}
	}
	c.recvBuf.Consume(offset)
	return nil
}

func (c *Connection) dispatch(f *protocol.Frame) error {
	switch f.Kind {
	case protocol.FrameMethod:
		return c.channels.InboundMethod(f.Channel, f.Method)
	case protocol.FrameHeader:
		return c.channels.InboundProps(f.Channel, f.BodySize, f.Props)
	case protocol.FrameBody:
		return c.channels.InboundBody(f.Channel, f.Body)
	case protocol.FrameHeartbeat:
		return nil
	}
	return fmt.Errorf("%w: kind %d", api.ErrFramingViolation, f.Kind)
}

// OnWrite performs one bounded non-blocking send and consumes exactly the
// bytes the socket accepted. A would-block result is a no-op.
func (c *Connection) OnWrite() error {
	if c.fd < 0 || c.sendBuf == nil {
		return api.ErrConnectionClosed
	}
	chunk := c.sendBuf.Peek(sendChunk)
	if len(chunk) == 0 {
		return nil
	}
	n, err := unix.Write(c.fd, chunk)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
		return nil
	}
	if err != nil {
		broken := api.ConnectionBroken("send failed", err)
		c.Shutdown(promise.Result{Err: broken})
		return broken
	}
	c.sendBuf.Consume(n)
	return nil
}

// SendRaw appends bytes to the send buffer. If the buffer was empty, one
// write is attempted immediately rather than waiting for the next
// readiness pass. Sending after shutdown is an illegal-state error.
func (c *Connection) SendRaw(data []byte) error {
	if c.sendBuf == nil {
		return api.ErrConnectionClosed
	}
	wasEmpty := c.sendBuf.Len() == 0
	c.sendBuf.Write(data)
	if wasEmpty {
		return c.OnWrite()
	}
	return nil
}

// SendFrames encodes and queues frames for one channel.
func (c *Connection) SendFrames(channelID uint16, frames []protocol.RawFrame) error {
	return c.SendRaw(protocol.EncodeFrames(channelID, frames))
}

// Wait services I/O until one of the named promises becomes ready, then
// delivers exactly that one and returns its result. A timeout of zero
// blocks indefinitely; an elapsed timeout returns (nil, nil). The ready
// set is re-checked after every I/O pass: one readiness event may take
// several read/write cycles to produce a result.
func (c *Connection) Wait(ids []promise.ID, timeout time.Duration, raiseErrors bool) (any, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		for _, id := range ids {
			if c.promises.IsReady(id) {
				return c.promises.RunCallback(id, raiseErrors)
			}
		}
		if c.fd < 0 {
			return nil, api.ErrConnectionClosed
		}
		timeoutMs := -1
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				return nil, nil
			}
			timeoutMs = int(remaining / time.Millisecond)
		}
		active, err := c.pollOnce(timeoutMs)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, nil
		}
	}
}

// WaitOne is Wait for a single promise.
func (c *Connection) WaitOne(id promise.ID, timeout time.Duration) (any, error) {
	return c.Wait([]promise.ID{id}, timeout, true)
}

// Loop services I/O and delivers every ready promise through its callback
// on each pass, until LoopBreak is called from a callback or the timeout
// elapses. Ready promises are drained once on entry, before the first
// poll.
func (c *Connection) Loop(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	c.breakLoop = false
	c.runAnyCallbacks()
	for !c.breakLoop {
		if c.fd < 0 {
			return api.ErrConnectionClosed
		}
		timeoutMs := -1
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				return nil
			}
			timeoutMs = int(remaining / time.Millisecond)
		}
		if _, err := c.pollOnce(timeoutMs); err != nil {
			return err
		}
		c.runAnyCallbacks()
		if timeout > 0 && !time.Now().Before(deadline) {
			return nil
		}
	}
	return nil
}

// WaitForAny is Loop without a timeout.
func (c *Connection) WaitForAny() error {
	return c.Loop(0)
}

// LoopBreak stops Loop at the top of its next iteration. Never mid-pass:
// dispatch in flight always runs to completion.
func (c *Connection) LoopBreak() {
	c.breakLoop = true
}

// runAnyCallbacks delivers all currently-ready promises without blocking.
// Failures flow to callbacks as results, never as raised errors: the loop
// must not halt on an application-level rejection.
func (c *Connection) runAnyCallbacks() {
	for {
		id, ok := c.promises.NextReady()
		if !ok {
			return
		}
		_, _ = c.promises.RunCallback(id, false)
	}
}

// SetCallback registers an async completion handler for a promise.
func (c *Connection) SetCallback(id promise.ID, cb promise.Callback) error {
	return c.promises.SetCallback(id, cb)
}

// Close starts the graceful close handshake, returning the promise
// completed when the broker acknowledges.
func (c *Connection) Close() (promise.ID, error) {
	if c.machine == nil {
		return 0, api.ErrConnectionClosed
	}
	return c.machine.Close()
}

// Shutdown tears the connection down: the result is broadcast to every
// outstanding unheld promise, the socket is closed and the send buffer
// released. Idempotent; subsequent sends are an illegal-state error.
func (c *Connection) Shutdown(r promise.Result) {
	if c.fd < 0 {
		return
	}
	c.log.Warn().Err(r.Err).Msg("connection shutdown")
	c.promises.Broadcast(r)
	_ = unix.Shutdown(c.fd, unix.SHUT_RDWR)
	_ = unix.Close(c.fd)
	c.fd = -1
	c.sendBuf = nil
}
