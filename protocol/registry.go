// File: protocol/registry.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Method and property catalogue: immutable maps from method id to decoder
// and from class id to property-block decoder. The built-in entries cover
// the connection class and basic-class properties; additional classes must
// be registered during process start, before any connection is driven.

package protocol

import (
	"fmt"

	"github.com/momentics/hioload-amqp/api"
)

// MethodDecoder parses a method's arguments from a method frame payload.
// It receives the payload and the offset just past the 4-byte method id and
// returns the decoded method plus the offset past the arguments.
type MethodDecoder func(data []byte, offset int) (api.Method, int, error)

// PropsDecoder parses a property block from a header frame payload, offset
// positioned past the class id, weight, and body size.
type PropsDecoder func(data []byte, offset int) (api.Properties, int, error)

var (
	methodTable = map[uint32]MethodDecoder{
		MethodConnectionStart:   decodeConnectionStart,
		MethodConnectionStartOk: decodeConnectionStartOk,
		MethodConnectionTune:    decodeConnectionTune,
		MethodConnectionTuneOk:  decodeConnectionTuneOk,
		MethodConnectionOpen:    decodeConnectionOpen,
		MethodConnectionOpenOk:  decodeConnectionOpenOk,
		MethodConnectionClose:   decodeConnectionClose,
		MethodConnectionCloseOk: decodeConnectionCloseOk,
	}
	propsTable = map[uint16]PropsDecoder{
		ClassBasic: decodeBasicProps,
	}
)

// RegisterMethod adds a decoder for a method id. Duplicate registration is
// a programmer error and panics.
func RegisterMethod(id uint32, dec MethodDecoder) {
	if _, dup := methodTable[id]; dup {
		panic(fmt.Sprintf("protocol: method %d.%d registered twice", id>>16, id&0xFFFF))
	}
	methodTable[id] = dec
}

// RegisterProps adds a property-block decoder for a content class.
func RegisterProps(classID uint16, dec PropsDecoder) {
	if _, dup := propsTable[classID]; dup {
		panic(fmt.Sprintf("protocol: class %d properties registered twice", classID))
	}
	propsTable[classID] = dec
}

// LookupMethod returns the decoder for a method id.
func LookupMethod(id uint32) (MethodDecoder, bool) {
	dec, ok := methodTable[id]
	return dec, ok
}

// LookupProps returns the property decoder for a class id.
func LookupProps(classID uint16) (PropsDecoder, bool) {
	dec, ok := propsTable[classID]
	return dec, ok
}
