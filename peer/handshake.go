package peer

import (
	"bytes"
	"fmt"
	"io"

	"gorent/errs"
)

const protocolString = "BitTorrent protocol"

// Handshake is the fixed 68-byte message exchanged before any framed
// traffic (spec §4.4). The 8 reserved bytes are always zero on send
// and ignored on receive.
type Handshake struct {
	Pstr     string
	InfoHash [20]byte
	PeerID   [20]byte
}

// NewHandshake builds the client's outbound handshake.
func NewHandshake(infoHash, peerID [20]byte) *Handshake {
	return &Handshake{Pstr: protocolString, InfoHash: infoHash, PeerID: peerID}
}

// Serialize encodes the handshake: [1 byte len][pstr][8 zero bytes][info_hash][peer_id].
func (h *Handshake) Serialize() []byte {
	buf := make([]byte, len(h.Pstr)+49)
	cursor := 1
	buf[0] = byte(len(h.Pstr))
	cursor += copy(buf[cursor:], h.Pstr)
	cursor += copy(buf[cursor:], make([]byte, 8))
	cursor += copy(buf[cursor:], h.InfoHash[:])
	copy(buf[cursor:], h.PeerID[:])
	return buf
}

// ReadHandshake reads exactly one handshake off r.
func ReadHandshake(r io.Reader) (*Handshake, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errs.New(errs.Handshake, "read pstrlen", err)
	}
	pstrlen := int(lenBuf[0])
	rest := make([]byte, pstrlen+48)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, errs.New(errs.Handshake, "read handshake body", err)
	}
	h := &Handshake{Pstr: string(rest[:pstrlen])}
	cursor := pstrlen + 8
	copy(h.InfoHash[:], rest[cursor:cursor+20])
	cursor += 20
	copy(h.PeerID[:], rest[cursor:cursor+20])
	return h, nil
}

// completeHandshake sends the client handshake, reads the peer's, and
// verifies its info-hash matches. The reserved bytes and the peer's
// pstr are not otherwise validated, matching spec §4.4.
func completeHandshake(rw io.ReadWriter, peerID, infoHash [20]byte) (*Handshake, error) {
	req := NewHandshake(infoHash, peerID)
	if _, err := rw.Write(req.Serialize()); err != nil {
		return nil, errs.New(errs.PeerConnect, "write handshake", err)
	}
	resp, err := ReadHandshake(rw)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(resp.InfoHash[:], infoHash[:]) {
		return nil, errs.New(errs.Handshake, "info-hash mismatch", fmt.Errorf("expected %x, got %x", infoHash, resp.InfoHash))
	}
	return resp, nil
}
