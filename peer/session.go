package peer

import (
	"fmt"
	"net"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/cenkalti/backoff"

	"gorent/errs"
	"gorent/helpers/bitfield"
	"gorent/message"
)

const (
	dialTimeout      = 3 * time.Second
	handshakeTimeout = 3 * time.Second
	readScratchSize  = 1024 // spec §5: reads land in a fixed 1 KiB scratch array
	// maxEmptyReads bounds the "transient I/O... retried a bounded
	// number of times" rule of spec §4.8.
	maxEmptyReads = 5
)

// Session owns one peer's TCP connection, the handshake it completed,
// and the growable buffer that accumulates partial frames across reads
// (spec §3 "Per-peer session"). It is not safe for concurrent use: all
// I/O on a session happens on the single goroutine driving that piece
// download, matching spec §5's single-threaded-per-socket model.
type Session struct {
	Conn     net.Conn
	Peer     Peer
	PeerID   [20]byte // the remote peer's handshake-reported id, not ours
	Choked   bool
	Bitfield bitfield.Bitfield

	clk clock.Clock
	buf []byte // accumulated, undrained bytes read from Conn
}

// Dial connects to p, completes the BitTorrent handshake, and returns a
// session ready to exchange framed messages. clk may be nil, in which
// case the real wall clock is used; tests inject a clock.Mock so
// deadline logic runs without real sleeps.
func Dial(p Peer, peerID, infoHash [20]byte, clk clock.Clock) (*Session, error) {
	if clk == nil {
		clk = clock.New()
	}
	conn, err := net.DialTimeout("tcp", p.String(), dialTimeout)
	if err != nil {
		return nil, errs.New(errs.PeerConnect, p.String(), err)
	}
	conn.SetDeadline(clk.Now().Add(handshakeTimeout))
	resp, err := completeHandshake(conn, peerID, infoHash)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})
	return &Session{Conn: conn, Peer: p, PeerID: resp.PeerID, Choked: true, clk: clk}, nil
}

// Close releases the socket.
func (s *Session) Close() error { return s.Conn.Close() }

// Send serializes and writes msg.
func (s *Session) Send(msg *message.Message) error {
	buf, err := msg.Serialize()
	if err != nil {
		return err
	}
	if _, err := s.Conn.Write(buf); err != nil {
		return errs.New(errs.PeerConnect, s.Peer.String(), err)
	}
	return nil
}

// ReadFrame returns the next non-keep-alive frame, transparently
// consuming and skipping any keep-alives first (spec §4.5: "On a
// keep-alive, advances past the four length bytes and recursively
// attempts the next frame"). It drains as many complete frames as the
// buffer already holds before issuing another read, and retries
// zero-byte reads without delay, declaring the peer dead after
// maxEmptyReads consecutive empty reads (spec §4.8).
func (s *Session) ReadFrame() (*message.Message, error) {
	for {
		msg, n, err := message.Decode(s.buf)
		if err == nil {
			s.buf = s.buf[n:]
			if msg == nil {
				continue // keep-alive: try the next frame already in buf
			}
			return msg, nil
		}
		if err != message.ErrIncomplete {
			return nil, err
		}
		if err := s.fill(); err != nil {
			return nil, err
		}
	}
}

// fill reads more bytes from the connection into the accumulation
// buffer, retrying a bounded number of consecutive zero-byte reads.
func (s *Session) fill() error {
	scratch := make([]byte, readScratchSize)
	attempts := 0
	op := func() error {
		n, err := s.Conn.Read(scratch)
		if err != nil {
			return backoff.Permanent(errs.New(errs.PeerConnect, s.Peer.String(), err))
		}
		if n == 0 {
			attempts++
			return fmt.Errorf("empty read (%d/%d)", attempts, maxEmptyReads)
		}
		s.buf = append(s.buf, scratch[:n]...)
		return nil
	}
	// The first read is not a retry, so maxEmptyReads-1 retries give
	// maxEmptyReads reads in total.
	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxEmptyReads-1)
	if err := backoff.Retry(op, b); err != nil {
		if permErr, ok := err.(*errs.Error); ok {
			return permErr
		}
		return errs.New(errs.PeerConnect, s.Peer.String(), fmt.Errorf("peer dead after %d empty reads: %w", maxEmptyReads, err))
	}
	return nil
}
