// Package transport carries main chain gossip and addressed RPC calls
// between peers over plain TCP. It knows nothing about blocks or chains;
// callers hand it opaque, already wire-encoded payloads and an endpoint
// number, and it gets them to the right peer and back.
package transport

import (
	"encoding/gob"
	"fmt"
	"io"
)

// MessageType identifies the kind of envelope on the wire.
type MessageType byte

const (
	MsgTypeVersion  MessageType = 0x01
	MsgTypeGossip   MessageType = 0x02
	MsgTypeRequest  MessageType = 0x03
	MsgTypeResponse MessageType = 0x04
)

// Message is the generic interface for all transport-level envelopes.
type Message interface {
	Type() MessageType
}

// MsgVersion is the initial handshake message.
type MsgVersion struct {
	Version     uint32
	ChainHeight uint64
	From        string
}

func (m *MsgVersion) Type() MessageType { return MsgTypeVersion }

// MsgGossip pushes an unsolicited block. Payload is whatever the caller's
// EncodeBlock produced; transport never looks inside it.
type MsgGossip struct {
	Payload []byte
}

func (m *MsgGossip) Type() MessageType { return MsgTypeGossip }

// MsgRequest is an addressed RPC call. Endpoint selects the registered
// Handler; Payload is that endpoint's wire-encoded request.
type MsgRequest struct {
	RequestID uint64
	Endpoint  uint8
	Payload   []byte
}

func (m *MsgRequest) Type() MessageType { return MsgTypeRequest }

// MsgResponse answers a MsgRequest by RequestID. Err carries a handler
// failure as a string since gob cannot round-trip the error interface;
// Payload is meaningless when Err is non-empty.
type MsgResponse struct {
	RequestID uint64
	Payload   []byte
	Err       string
}

func (m *MsgResponse) Type() MessageType { return MsgTypeResponse }

// EncodeMessage writes msg as [Type(1)][gob-encoded payload].
func EncodeMessage(w io.Writer, msg Message) error {
	if _, err := w.Write([]byte{byte(msg.Type())}); err != nil {
		return err
	}
	return gob.NewEncoder(w).Encode(msg)
}

// DecodeMessage reads a Message previously written by EncodeMessage.
func DecodeMessage(r io.Reader) (Message, error) {
	var typeBuf [1]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return nil, err
	}

	var msg Message
	switch MessageType(typeBuf[0]) {
	case MsgTypeVersion:
		msg = &MsgVersion{}
	case MsgTypeGossip:
		msg = &MsgGossip{}
	case MsgTypeRequest:
		msg = &MsgRequest{}
	case MsgTypeResponse:
		msg = &MsgResponse{}
	default:
		return nil, fmt.Errorf("transport: unknown message type 0x%x", typeBuf[0])
	}

	if err := gob.NewDecoder(r).Decode(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func init() {
	gob.Register(&MsgVersion{})
	gob.Register(&MsgGossip{})
	gob.Register(&MsgRequest{})
	gob.Register(&MsgResponse{})
}
