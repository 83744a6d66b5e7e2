// File: protocol/properties.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Content header property blocks. Only the basic class (60) is built in;
// other classes can be registered through the catalogue.

package protocol

import (
	"fmt"

	"github.com/momentics/hioload-amqp/api"
)

// Property flag bits for the basic class, highest bit first.
const (
	flagContentType     = 1 << 15
	flagContentEncoding = 1 << 14
	flagHeaders         = 1 << 13
	flagDeliveryMode    = 1 << 12
	flagPriority        = 1 << 11
	flagCorrelationID   = 1 << 10
	flagReplyTo         = 1 << 9
	flagExpiration      = 1 << 8
	flagMessageID       = 1 << 7
	flagTimestamp       = 1 << 6
	flagType            = 1 << 5
	flagUserID          = 1 << 4
	flagAppID           = 1 << 3
	flagClusterID       = 1 << 2
)

// BasicProperties is the decoded basic-class content header property block.
// Zero values mean "property absent"; presence on the wire is governed by
// the flag word.
type BasicProperties struct {
	ContentType     string
	ContentEncoding string
	Headers         Table
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       uint64
	Type            string
	UserID          string
	AppID           string
	ClusterID       string
}

// ClassID implements api.Properties.
func (*BasicProperties) ClassID() uint16 { return ClassBasic }

// Encode serializes the flag word and present properties.
func (p *BasicProperties) Encode() []byte {
	var flags uint16
	dst := make([]byte, 2)
	set := func(flag uint16, present bool, enc func()) {
		if present {
			flags |= flag
			enc()
		}
	}
	set(flagContentType, p.ContentType != "", func() { dst = appendShortstr(dst, p.ContentType) })
	set(flagContentEncoding, p.ContentEncoding != "", func() { dst = appendShortstr(dst, p.ContentEncoding) })
	set(flagHeaders, p.Headers != nil, func() { dst = appendTable(dst, p.Headers) })
	set(flagDeliveryMode, p.DeliveryMode != 0, func() { dst = appendOctet(dst, p.DeliveryMode) })
	set(flagPriority, p.Priority != 0, func() { dst = appendOctet(dst, p.Priority) })
	set(flagCorrelationID, p.CorrelationID != "", func() { dst = appendShortstr(dst, p.CorrelationID) })
	set(flagReplyTo, p.ReplyTo != "", func() { dst = appendShortstr(dst, p.ReplyTo) })
	set(flagExpiration, p.Expiration != "", func() { dst = appendShortstr(dst, p.Expiration) })
	set(flagMessageID, p.MessageID != "", func() { dst = appendShortstr(dst, p.MessageID) })
	set(flagTimestamp, p.Timestamp != 0, func() { dst = appendLonglong(dst, p.Timestamp) })
	set(flagType, p.Type != "", func() { dst = appendShortstr(dst, p.Type) })
	set(flagUserID, p.UserID != "", func() { dst = appendShortstr(dst, p.UserID) })
	set(flagAppID, p.AppID != "", func() { dst = appendShortstr(dst, p.AppID) })
	set(flagClusterID, p.ClusterID != "", func() { dst = appendShortstr(dst, p.ClusterID) })
	dst[0] = byte(flags >> 8)
	dst[1] = byte(flags)
	return dst
}

// EncodeHeaderPayload builds a complete header frame payload for the basic
// class: class id, reserved weight, body size, then the property block.
func (p *BasicProperties) EncodeHeaderPayload(bodySize uint64) []byte {
	dst := appendShort(nil, ClassBasic)
	dst = appendShort(dst, 0)
	dst = appendLonglong(dst, bodySize)
	return append(dst, p.Encode()...)
}

func decodeBasicProps(data []byte, offset int) (api.Properties, int, error) {
	flags, offset, err := decodeShort(data, offset)
	if err != nil {
		return nil, offset, err
	}
	if flags&1 != 0 {
		// Continuation flag word: the basic class never defines one.
		return nil, offset, fmt.Errorf("%w: unexpected property flag continuation", api.ErrFramingViolation)
	}
	p := &BasicProperties{}
	if flags&flagContentType != 0 {
		if p.ContentType, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagContentEncoding != 0 {
		if p.ContentEncoding, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagHeaders != 0 {
		if p.Headers, offset, err = decodeTable(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagDeliveryMode != 0 {
		if p.DeliveryMode, offset, err = decodeOctet(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagPriority != 0 {
		if p.Priority, offset, err = decodeOctet(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagCorrelationID != 0 {
		if p.CorrelationID, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagReplyTo != 0 {
		if p.ReplyTo, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagExpiration != 0 {
		if p.Expiration, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagMessageID != 0 {
		if p.MessageID, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagTimestamp != 0 {
		if p.Timestamp, offset, err = decodeLonglong(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagType != 0 {
		if p.Type, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagUserID != 0 {
		if p.UserID, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagAppID != 0 {
		if p.AppID, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	if flags&flagClusterID != 0 {
		if p.ClusterID, offset, err = decodeShortstr(data, offset); err != nil {
			return nil, offset, err
		}
	}
	return p, offset, nil
}
