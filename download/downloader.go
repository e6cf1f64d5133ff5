// Package download implements the piece state machine (spec §4.6) and
// the torrent assembler (spec §4.7). Grounded on the teacher's
// pieceProgress/attemptToDownloadPiece/Download, restructured around
// package peer's Session and package message's typed constructors
// instead of inline byte-slicing.
package download

import (
	"crypto/sha1"
	"fmt"
	"time"

	"gorent/errs"
	"gorent/helpers/bitfield"
	"gorent/message"
	"gorent/peer"
)

// BlockMax is the largest block a Request may ask for (spec §4.6).
const BlockMax = 16 * 1024

// pieceDeadline bounds how long a single piece attempt may take before
// it is abandoned in favor of the next peer, matching the teacher's
// attemptToDownloadPiece 30-second Conn deadline.
const pieceDeadline = 30 * time.Second

// PieceWork describes one piece to fetch.
type PieceWork struct {
	Index  int
	Hash   [20]byte
	Length int64
}

// pieceState names the downloader's position in the table of spec §4.6.
type pieceState int

const (
	stateAwaitingBitfield pieceState = iota
	stateAwaitingUnchoke
	stateAwaitingBlocks
)

// DownloadPiece drives one peer session through the state machine of
// spec §4.6 for a single piece, returning the verified piece bytes.
func DownloadPiece(sess *peer.Session, pw PieceWork, stats *Stats) ([]byte, error) {
	buf := make([]byte, pw.Length)
	received := 0
	state := stateAwaitingBitfield

	sess.Conn.SetDeadline(time.Now().Add(pieceDeadline))
	defer sess.Conn.SetDeadline(time.Time{})

	for received < len(buf) {
		msg, err := sess.ReadFrame()
		if err != nil {
			return nil, err
		}

		switch {
		case state == stateAwaitingBitfield && msg.ID == message.MsgBitfield:
			sess.Bitfield = msg.Payload
			if !hasPiece(sess.Bitfield, pw.Index) {
				if stats != nil {
					stats.PieceAttemptFail()
				}
				return nil, errs.New(errs.Protocol, fmt.Sprintf("piece %d", pw.Index), fmt.Errorf("peer's bitfield does not have this piece"))
			}
			if err := sess.Send(message.NewInterested()); err != nil {
				return nil, err
			}
			state = stateAwaitingUnchoke

		case state == stateAwaitingBitfield && msg.ID == message.MsgUnchoke:
			// Spec-tolerant: some peers skip the Bitfield and unchoke
			// immediately. Queue requests without ever sending Interested.
			sess.Choked = false
			if err := sendAllRequests(sess, pw); err != nil {
				return nil, err
			}
			state = stateAwaitingBlocks

		case state == stateAwaitingUnchoke && msg.ID == message.MsgUnchoke:
			sess.Choked = false
			if err := sendAllRequests(sess, pw); err != nil {
				return nil, err
			}
			state = stateAwaitingBlocks

		case state == stateAwaitingBlocks && msg.ID == message.MsgPiece:
			index, begin, block, perr := message.ParsePiece(msg)
			if perr != nil {
				return nil, errs.New(errs.Protocol, fmt.Sprintf("piece %d", pw.Index), perr)
			}
			if index != pw.Index {
				return nil, errs.New(errs.Protocol, fmt.Sprintf("piece %d", pw.Index), fmt.Errorf("got piece for index %d", index))
			}
			if begin < 0 || begin+len(block) > len(buf) {
				return nil, errs.New(errs.Protocol, fmt.Sprintf("piece %d", pw.Index), fmt.Errorf("block out of range: begin=%d len=%d", begin, len(block)))
			}
			copy(buf[begin:], block)
			received += len(block)

		case msg.ID == message.MsgChoke:
			if stats != nil {
				stats.PieceAttemptFail()
			}
			return nil, errs.New(errs.Protocol, fmt.Sprintf("piece %d", pw.Index), fmt.Errorf("peer choked mid-piece"))

		default:
			if stats != nil {
				stats.PieceAttemptFail()
			}
			return nil, errs.New(errs.Protocol, fmt.Sprintf("piece %d", pw.Index), fmt.Errorf("unexpected message %s in state %d", msg.ID, state))
		}
	}

	sum := sha1.Sum(buf)
	if sum != pw.Hash {
		if stats != nil {
			stats.PieceAttemptFail()
		}
		return nil, errs.New(errs.Hash, fmt.Sprintf("piece %d", pw.Index), fmt.Errorf("expected %x, got %x", pw.Hash, sum))
	}
	if stats != nil {
		stats.PieceDone(len(buf))
	}
	return buf, nil
}

// hasPiece reports whether bt advertises index, treating a bitfield too
// short to cover index as not having it rather than panicking the way
// bitfield.Bitfield.HasPiece does on a well-formed remote message.
func hasPiece(bt bitfield.Bitfield, index int) bool {
	if index/8 >= len(bt) {
		return false
	}
	return bt.HasPiece(index)
}

// sendAllRequests queues every block request for pw back-to-back,
// before any Piece reply is read (spec §4.6: "All requests are queued
// back-to-back before waiting for Piece replies").
func sendAllRequests(sess *peer.Session, pw PieceWork) error {
	length := int(pw.Length)
	for begin := 0; begin < length; begin += BlockMax {
		blockLen := BlockMax
		if length-begin < blockLen {
			blockLen = length - begin
		}
		if err := sess.Send(message.NewRequest(pw.Index, begin, blockLen)); err != nil {
			return err
		}
	}
	return nil
}
