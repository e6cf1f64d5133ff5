// Package message is the framed peer wire-message codec: a pure
// encoder/decoder over a byte buffer, with no I/O of its own (the
// socket recv loop lives in package peer). Grounded on the teacher's
// message.Message/Serialize/ReadMessage, extended with keep-alive
// handling over a growable buffer (spec §4.5) and the Port id (9) the
// teacher dropped.
package message

import (
	"encoding/binary"
	"fmt"

	"gorent/errs"
)

// ID identifies a peer message's wire tag, per spec §3.
type ID uint8

const (
	MsgChoke         ID = 0
	MsgUnchoke       ID = 1
	MsgInterested    ID = 2
	MsgNotInterested ID = 3
	MsgHave          ID = 4
	MsgBitfield      ID = 5
	MsgRequest       ID = 6
	MsgPiece         ID = 7
	MsgCancel        ID = 8
	MsgPort          ID = 9
)

func (id ID) String() string {
	switch id {
	case MsgChoke:
		return "Choke"
	case MsgUnchoke:
		return "Unchoke"
	case MsgInterested:
		return "Interested"
	case MsgNotInterested:
		return "NotInterested"
	case MsgHave:
		return "Have"
	case MsgBitfield:
		return "Bitfield"
	case MsgRequest:
		return "Request"
	case MsgPiece:
		return "Piece"
	case MsgCancel:
		return "Cancel"
	case MsgPort:
		return "Port"
	default:
		return fmt.Sprintf("ID(%d)", uint8(id))
	}
}

// requiresPayload reports whether id's message must carry a non-empty
// payload. IDs 0-3 never carry one; every other known id always does.
func requiresPayload(id ID) (required bool, known bool) {
	switch id {
	case MsgChoke, MsgUnchoke, MsgInterested, MsgNotInterested:
		return false, true
	case MsgHave, MsgBitfield, MsgRequest, MsgPiece, MsgCancel, MsgPort:
		return true, true
	default:
		return false, false
	}
}

// Message is a decoded (or to-be-encoded) peer message. A keep-alive is
// never represented as a Message value; Decode reports it separately.
type Message struct {
	ID      ID
	Payload []byte
}

// ErrIncomplete means the buffer does not yet hold a full frame; it is
// not a protocol error, just a signal to read more bytes and retry.
var ErrIncomplete = fmt.Errorf("message: incomplete frame")

// Decode parses one frame from the front of buf. It returns:
//   - (nil, 4, nil) for a keep-alive (length-prefix 0): the caller
//     advances past the four length bytes and should try again.
//   - (msg, 4+N, nil) for a normal frame.
//   - (nil, 0, ErrIncomplete) when buf does not yet hold a whole frame;
//     buf is untouched and the caller should read more and retry.
//   - (nil, 0, err) for a malformed frame.
//
// Decode never partially consumes a frame: a failed decode reports 0
// bytes consumed, so advances are atomic with respect to completion.
func Decode(buf []byte) (*Message, int, error) {
	if len(buf) < 4 {
		return nil, 0, ErrIncomplete
	}
	length := binary.BigEndian.Uint32(buf[:4])
	if length == 0 {
		return nil, 4, nil
	}
	total := 4 + int(length)
	if total < 4 || len(buf) < total {
		return nil, 0, ErrIncomplete
	}
	id := ID(buf[4])
	payload := buf[5:total]
	required, known := requiresPayload(id)
	if !known {
		return nil, 0, errs.New(errs.FrameUnknownID, fmt.Sprintf("id %d", id), fmt.Errorf("unknown message id"))
	}
	if required && len(payload) == 0 {
		return nil, 0, errs.New(errs.FrameTruncated, id.String(), fmt.Errorf("message requires a payload"))
	}
	if !required && len(payload) != 0 {
		return nil, 0, errs.New(errs.FrameTruncated, id.String(), fmt.Errorf("message forbids a payload, got %d bytes", len(payload)))
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return &Message{ID: id, Payload: out}, total, nil
}

// Serialize encodes msg as [4-byte length][id][payload], validating
// that the payload presence matches id's requirement before emitting.
// Kept as a method (matching the teacher's Message.Serialize) rather
// than a free function, since call sites hold a *Message already.
func (m *Message) Serialize() ([]byte, error) {
	required, known := requiresPayload(m.ID)
	if !known {
		return nil, errs.New(errs.FrameUnknownID, fmt.Sprintf("id %d", m.ID), fmt.Errorf("unknown message id"))
	}
	if required && len(m.Payload) == 0 {
		return nil, errs.New(errs.FrameTruncated, m.ID.String(), fmt.Errorf("message requires a payload"))
	}
	if !required && len(m.Payload) != 0 {
		return nil, errs.New(errs.FrameTruncated, m.ID.String(), fmt.Errorf("message forbids a payload"))
	}
	length := uint32(len(m.Payload) + 1)
	buf := make([]byte, 4+length)
	binary.BigEndian.PutUint32(buf[0:4], length)
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf, nil
}

// KeepAlive returns the four zero length-prefix bytes.
func KeepAlive() []byte { return make([]byte, 4) }

// NewRequest builds a Request message for the given block.
func NewRequest(index, begin, length int) *Message {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:12], uint32(length))
	return &Message{ID: MsgRequest, Payload: payload}
}

// NewHave builds a Have message.
func NewHave(index int) *Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(index))
	return &Message{ID: MsgHave, Payload: payload}
}

// NewInterested builds a payload-less Interested message.
func NewInterested() *Message { return &Message{ID: MsgInterested} }

// ParsePiece splits a Piece message's payload into its index, begin
// offset, and block bytes. The block slice aliases msg.Payload.
func ParsePiece(msg *Message) (index, begin int, block []byte, err error) {
	if msg.ID != MsgPiece {
		return 0, 0, nil, fmt.Errorf("expected Piece, got %s", msg.ID)
	}
	if len(msg.Payload) < 8 {
		return 0, 0, nil, fmt.Errorf("piece payload too short: %d bytes", len(msg.Payload))
	}
	index = int(binary.BigEndian.Uint32(msg.Payload[0:4]))
	begin = int(binary.BigEndian.Uint32(msg.Payload[4:8]))
	return index, begin, msg.Payload[8:], nil
}

// ParseHave returns the piece index announced by a Have message.
func ParseHave(msg *Message) (int, error) {
	if msg.ID != MsgHave {
		return 0, fmt.Errorf("expected Have, got %s", msg.ID)
	}
	if len(msg.Payload) != 4 {
		return 0, fmt.Errorf("have payload must be 4 bytes, got %d", len(msg.Payload))
	}
	return int(binary.BigEndian.Uint32(msg.Payload)), nil
}
