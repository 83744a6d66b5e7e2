// File: protocol/methods.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Hand-built method catalogue for the connection class (10): the methods
// the handshake and shutdown machines exchange on channel 0. Each method
// knows how to encode its own payload; decoders are registered with the
// catalogue in registry.go.

package protocol

import "github.com/momentics/hioload-amqp/api"

// Combined class/method identifiers.
const (
	MethodConnectionStart   uint32 = uint32(ClassConnection)<<16 | 10
	MethodConnectionStartOk uint32 = uint32(ClassConnection)<<16 | 11
	MethodConnectionTune    uint32 = uint32(ClassConnection)<<16 | 30
	MethodConnectionTuneOk  uint32 = uint32(ClassConnection)<<16 | 31
	MethodConnectionOpen    uint32 = uint32(ClassConnection)<<16 | 40
	MethodConnectionOpenOk  uint32 = uint32(ClassConnection)<<16 | 41
	MethodConnectionClose   uint32 = uint32(ClassConnection)<<16 | 50
	MethodConnectionCloseOk uint32 = uint32(ClassConnection)<<16 | 51
)

// ConnectionStart is sent by the broker to begin the handshake.
type ConnectionStart struct {
	VersionMajor     uint8
	VersionMinor     uint8
	ServerProperties Table
	Mechanisms       string
	Locales          string
}

func (*ConnectionStart) MethodID() uint32 { return MethodConnectionStart }
func (*ConnectionStart) Name() string     { return "connection.start" }
func (*ConnectionStart) HasContent() bool { return false }

// EncodePayload serializes the method frame payload including the id.
func (m *ConnectionStart) EncodePayload() []byte {
	dst := appendLong(nil, MethodConnectionStart)
	dst = appendOctet(dst, m.VersionMajor)
	dst = appendOctet(dst, m.VersionMinor)
	dst = appendTable(dst, m.ServerProperties)
	dst = appendLongstr(dst, m.Mechanisms)
	return appendLongstr(dst, m.Locales)
}

func decodeConnectionStart(data []byte, offset int) (api.Method, int, error) {
	m := &ConnectionStart{}
	var err error
	if m.VersionMajor, offset, err = decodeOctet(data, offset); err != nil {
		return nil, offset, err
	}
	if m.VersionMinor, offset, err = decodeOctet(data, offset); err != nil {
		return nil, offset, err
	}
	if m.ServerProperties, offset, err = decodeTable(data, offset); err != nil {
		return nil, offset, err
	}
	if m.Mechanisms, offset, err = decodeLongstr(data, offset); err != nil {
		return nil, offset, err
	}
	if m.Locales, offset, err = decodeLongstr(data, offset); err != nil {
		return nil, offset, err
	}
	return m, offset, nil
}

// ConnectionStartOk answers ConnectionStart with credentials.
type ConnectionStartOk struct {
	ClientProperties Table
	Mechanism        string
	Response         string
	Locale           string
}

func (*ConnectionStartOk) MethodID() uint32 { return MethodConnectionStartOk }
func (*ConnectionStartOk) Name() string     { return "connection.start-ok" }
func (*ConnectionStartOk) HasContent() bool { return false }

func (m *ConnectionStartOk) EncodePayload() []byte {
	dst := appendLong(nil, MethodConnectionStartOk)
	dst = appendTable(dst, m.ClientProperties)
	dst = appendShortstr(dst, m.Mechanism)
	dst = appendLongstr(dst, m.Response)
	return appendShortstr(dst, m.Locale)
}

func decodeConnectionStartOk(data []byte, offset int) (api.Method, int, error) {
	m := &ConnectionStartOk{}
	var err error
	if m.ClientProperties, offset, err = decodeTable(data, offset); err != nil {
		return nil, offset, err
	}
	if m.Mechanism, offset, err = decodeShortstr(data, offset); err != nil {
		return nil, offset, err
	}
	if m.Response, offset, err = decodeLongstr(data, offset); err != nil {
		return nil, offset, err
	}
	if m.Locale, offset, err = decodeShortstr(data, offset); err != nil {
		return nil, offset, err
	}
	return m, offset, nil
}

// ConnectionTune carries the broker-proposed limits.
type ConnectionTune struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (*ConnectionTune) MethodID() uint32 { return MethodConnectionTune }
func (*ConnectionTune) Name() string     { return "connection.tune" }
func (*ConnectionTune) HasContent() bool { return false }

func (m *ConnectionTune) EncodePayload() []byte {
	dst := appendLong(nil, MethodConnectionTune)
	dst = appendShort(dst, m.ChannelMax)
	dst = appendLong(dst, m.FrameMax)
	return appendShort(dst, m.Heartbeat)
}

func decodeConnectionTune(data []byte, offset int) (api.Method, int, error) {
	m := &ConnectionTune{}
	var err error
	if m.ChannelMax, offset, err = decodeShort(data, offset); err != nil {
		return nil, offset, err
	}
	if m.FrameMax, offset, err = decodeLong(data, offset); err != nil {
		return nil, offset, err
	}
	if m.Heartbeat, offset, err = decodeShort(data, offset); err != nil {
		return nil, offset, err
	}
	return m, offset, nil
}

// ConnectionTuneOk confirms the negotiated limits.
type ConnectionTuneOk struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (*ConnectionTuneOk) MethodID() uint32 { return MethodConnectionTuneOk }
func (*ConnectionTuneOk) Name() string     { return "connection.tune-ok" }
func (*ConnectionTuneOk) HasContent() bool { return false }

func (m *ConnectionTuneOk) EncodePayload() []byte {
	dst := appendLong(nil, MethodConnectionTuneOk)
	dst = appendShort(dst, m.ChannelMax)
	dst = appendLong(dst, m.FrameMax)
	return appendShort(dst, m.Heartbeat)
}

func decodeConnectionTuneOk(data []byte, offset int) (api.Method, int, error) {
	m := &ConnectionTuneOk{}
	var err error
	if m.ChannelMax, offset, err = decodeShort(data, offset); err != nil {
		return nil, offset, err
	}
	if m.FrameMax, offset, err = decodeLong(data, offset); err != nil {
		return nil, offset, err
	}
	if m.Heartbeat, offset, err = decodeShort(data, offset); err != nil {
		return nil, offset, err
	}
	return m, offset, nil
}

// ConnectionOpen selects the virtual host.
type ConnectionOpen struct {
	VirtualHost string
}

func (*ConnectionOpen) MethodID() uint32 { return MethodConnectionOpen }
func (*ConnectionOpen) Name() string     { return "connection.open" }
func (*ConnectionOpen) HasContent() bool { return false }

func (m *ConnectionOpen) EncodePayload() []byte {
	dst := appendLong(nil, MethodConnectionOpen)
	dst = appendShortstr(dst, m.VirtualHost)
	dst = appendShortstr(dst, "") // reserved (capabilities)
	return appendOctet(dst, 0)   // reserved (insist)
}

func decodeConnectionOpen(data []byte, offset int) (api.Method, int, error) {
	m := &ConnectionOpen{}
	var err error
	if m.VirtualHost, offset, err = decodeShortstr(data, offset); err != nil {
		return nil, offset, err
	}
	if _, offset, err = decodeShortstr(data, offset); err != nil {
		return nil, offset, err
	}
	if _, offset, err = decodeOctet(data, offset); err != nil {
		return nil, offset, err
	}
	return m, offset, nil
}

// ConnectionOpenOk completes the handshake.
type ConnectionOpenOk struct{}

func (*ConnectionOpenOk) MethodID() uint32 { return MethodConnectionOpenOk }
func (*ConnectionOpenOk) Name() string     { return "connection.open-ok" }
func (*ConnectionOpenOk) HasContent() bool { return false }

func (m *ConnectionOpenOk) EncodePayload() []byte {
	dst := appendLong(nil, MethodConnectionOpenOk)
	return appendShortstr(dst, "") // reserved (known-hosts)
}

func decodeConnectionOpenOk(data []byte, offset int) (api.Method, int, error) {
	var err error
	if _, offset, err = decodeShortstr(data, offset); err != nil {
		return nil, offset, err
	}
	return &ConnectionOpenOk{}, offset, nil
}

// ConnectionClose requests connection teardown; either side may send it.
type ConnectionClose struct {
	ReplyCode uint16
	ReplyText string
	FailingClassID  uint16
	FailingMethodID uint16
}

func (*ConnectionClose) MethodID() uint32 { return MethodConnectionClose }
func (*ConnectionClose) Name() string     { return "connection.close" }
func (*ConnectionClose) HasContent() bool { return false }

func (m *ConnectionClose) EncodePayload() []byte {
	dst := appendLong(nil, MethodConnectionClose)
	dst = appendShort(dst, m.ReplyCode)
	dst = appendShortstr(dst, m.ReplyText)
	dst = appendShort(dst, m.FailingClassID)
	return appendShort(dst, m.FailingMethodID)
}

func decodeConnectionClose(data []byte, offset int) (api.Method, int, error) {
	m := &ConnectionClose{}
	var err error
	if m.ReplyCode, offset, err = decodeShort(data, offset); err != nil {
		return nil, offset, err
	}
	if m.ReplyText, offset, err = decodeShortstr(data, offset); err != nil {
		return nil, offset, err
	}
	if m.FailingClassID, offset, err = decodeShort(data, offset); err != nil {
		return nil, offset, err
	}
	if m.FailingMethodID, offset, err = decodeShort(data, offset); err != nil {
		return nil, offset, err
	}
	return m, offset, nil
}

// ConnectionCloseOk acknowledges ConnectionClose.
type ConnectionCloseOk struct{}

func (*ConnectionCloseOk) MethodID() uint32 { return MethodConnectionCloseOk }
func (*ConnectionCloseOk) Name() string     { return "connection.close-ok" }
func (*ConnectionCloseOk) HasContent() bool { return false }

func (m *ConnectionCloseOk) EncodePayload() []byte {
	return appendLong(nil, MethodConnectionCloseOk)
}

func decodeConnectionCloseOk(data []byte, offset int) (api.Method, int, error) {
	return &ConnectionCloseOk{}, offset, nil
}
