// File: protocol/frame_codec.go
// Package protocol implements the AMQP frame codec with incremental decode.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DecodeFrame never consumes a partial frame: when the window is too short
// it reports how many bytes the next attempt needs, so the reactor can keep
// the tail buffered across socket reads.

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-amqp/api"
)

// EncodeFrames serializes frames for one channel in input order. Output
// length is exactly the sum of framed sizes.
func EncodeFrames(channel uint16, frames []RawFrame) []byte {
	total := 0
	for _, f := range frames {
		total += FrameOverhead + len(f.Payload)
	}
	out := make([]byte, 0, total)
	for _, f := range frames {
		var hdr [7]byte
		hdr[0] = f.Kind
		binary.BigEndian.PutUint16(hdr[1:3], channel)
		binary.BigEndian.PutUint32(hdr[3:7], uint32(len(f.Payload)))
		out = append(out, hdr[:]...)
		out = append(out, f.Payload...)
		out = append(out, FrameEnd)
	}
	return out
}

// DecodeFrame attempts to decode one frame from data starting at offset.
// Returns the frame, the offset past it, and the byte count the next decode
// attempt needs from offset. An incomplete window yields a nil frame and
// need > len(data)-offset; the caller must not consume anything. A non-nil
// error is a protocol framing fault: the stream can no longer be trusted to
// contain frame boundaries and the connection must be aborted.
func DecodeFrame(data []byte, offset int) (*Frame, int, int, error) {
	window := data[offset:]
	if len(window) < FrameOverhead {
		return nil, offset, FrameOverhead, nil
	}
	kind := window[0]
	channel := binary.BigEndian.Uint16(window[1:3])
	size := int(binary.BigEndian.Uint32(window[3:7]))
	if len(window) < FrameOverhead+size {
		return nil, offset, FrameOverhead + size, nil
	}
	payload := window[7 : 7+size]
	if window[7+size] != FrameEnd {
		return nil, offset, 0, fmt.Errorf("%w: bad frame end 0x%02X (kind %d, channel %d, size %d)",
			api.ErrFramingViolation, window[7+size], kind, channel, size)
	}

	f := &Frame{Kind: kind, Channel: channel}
	switch kind {
	case FrameMethod:
		if err := decodeMethodPayload(f, payload); err != nil {
			return nil, offset, 0, err
		}
	case FrameHeader:
		if err := decodeHeaderPayload(f, payload); err != nil {
			return nil, offset, 0, err
		}
	case FrameBody:
		f.Body = make([]byte, size)
		copy(f.Body, payload)
	case FrameHeartbeat:
		// Consumed and discarded by the reactor.
	default:
		return nil, offset, 0, fmt.Errorf("%w: unknown frame kind 0x%02X", api.ErrFramingViolation, kind)
	}
	return f, offset + FrameOverhead + size, FrameOverhead, nil
}

func decodeMethodPayload(f *Frame, payload []byte) error {
	if len(payload) < 4 {
		return fmt.Errorf("%w: method frame payload of %d bytes", api.ErrFramingViolation, len(payload))
	}
	id := binary.BigEndian.Uint32(payload[:4])
	dec, ok := LookupMethod(id)
	if !ok {
		return fmt.Errorf("%w: %d.%d", api.ErrUnknownMethod, id>>16, id&0xFFFF)
	}
	m, end, err := dec(payload, 4)
	if err != nil {
		return fmt.Errorf("decode %d.%d: %w", id>>16, id&0xFFFF, err)
	}
	if end != len(payload) {
		return fmt.Errorf("%w: method %d.%d decoded %d of %d payload bytes",
			api.ErrFramingViolation, id>>16, id&0xFFFF, end, len(payload))
	}
	f.Method = m
	return nil
}

func decodeHeaderPayload(f *Frame, payload []byte) error {
	// Class id, two reserved bytes, 8-byte body size, then properties.
	if len(payload) < 12 {
		return fmt.Errorf("%w: header frame payload of %d bytes", api.ErrFramingViolation, len(payload))
	}
	f.ClassID = binary.BigEndian.Uint16(payload[:2])
	f.BodySize = binary.BigEndian.Uint64(payload[4:12])
	dec, ok := LookupProps(f.ClassID)
	if !ok {
		return fmt.Errorf("%w: %d", api.ErrUnknownClass, f.ClassID)
	}
	props, end, err := dec(payload, 12)
	if err != nil {
		return fmt.Errorf("decode class %d properties: %w", f.ClassID, err)
	}
	if end != len(payload) {
		return fmt.Errorf("%w: class %d properties decoded %d of %d payload bytes",
			api.ErrFramingViolation, f.ClassID, end, len(payload))
	}
	f.Props = props
	return nil
}
