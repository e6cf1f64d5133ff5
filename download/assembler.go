package download

import (
	"fmt"

	"github.com/andres-erbsen/clock"

	"gorent/errs"
	"gorent/internal/log"
	"gorent/metainfo"
	"gorent/peer"
)

// dialFunc opens a session to p. It is a field on Assembler, not a free
// function, so tests can substitute a fake dialer the same way
// tracker.Client substitutes a Doer for http.DefaultClient.
type dialFunc func(p peer.Peer, peerID, infoHash [20]byte, clk clock.Clock) (*peer.Session, error)

// Assembler drives a whole-torrent download against a candidate peer
// list. Unlike the teacher's Download, which fans a worker goroutine out
// per peer against a shared work queue, this walks pieces strictly in
// index order over one peer connection at a time: the spec's non-goals
// explicitly exclude cross-peer pipelining and endgame mode, so there is
// no work-stealing queue here, only ordered fallback to the next peer
// in the list when the current one dies (grounded on
// original_source/src/peers/mod.rs's peer-by-peer retry loop). It keeps
// a peer-connection map keyed by endpoint (spec §5) so a peer that
// already completed the handshake for an earlier piece is reused rather
// than re-dialed and re-handshaked on every piece.
type Assembler struct {
	Torrent *metainfo.Torrent
	Peers   []peer.Peer
	PeerID  [20]byte
	Stats   *Stats

	dial  dialFunc
	conns map[string]*peer.Session
}

// NewAssembler builds an Assembler ready to run Download or DownloadPiece.
func NewAssembler(t *metainfo.Torrent, peers []peer.Peer, peerID [20]byte) *Assembler {
	return &Assembler{
		Torrent: t,
		Peers:   peers,
		PeerID:  peerID,
		Stats:   NewStats(),
		dial:    peer.Dial,
		conns:   make(map[string]*peer.Session),
	}
}

// Close tears down every still-open peer connection the assembler
// accumulated across pieces.
func (a *Assembler) Close() {
	for key, sess := range a.conns {
		sess.Close()
		delete(a.conns, key)
	}
}

// DownloadPiece fetches a single piece, trying each peer in order until
// one yields a verified piece or the list is exhausted.
func (a *Assembler) DownloadPiece(index int) ([]byte, error) {
	pw := PieceWork{
		Index:  index,
		Hash:   a.Torrent.PieceHash(index),
		Length: a.Torrent.PieceLength(index),
	}
	return a.downloadWithFallback(pw)
}

// Download fetches every piece in index order and concatenates them
// into the full torrent payload.
func (a *Assembler) Download() ([]byte, error) {
	total := a.Torrent.TotalLength()
	out := make([]byte, 0, total)
	prog := newProgress(a.Torrent.PieceCount())

	for index := 0; index < a.Torrent.PieceCount(); index++ {
		piece, err := a.DownloadPiece(index)
		if err != nil {
			return nil, err
		}
		out = append(out, piece...)
		prog.markDone(index)
		log.Infof("piece %d/%d done", prog.doneCount(), a.Torrent.PieceCount())
	}
	return out, nil
}

// downloadWithFallback tries each peer in turn, reusing an already
// handshaked session from a.conns when one exists (spec §5: "The
// peer-connection map is keyed by peer endpoint and prevents
// re-handshaking an already-connected peer") and only dialing fresh
// when there is none yet or the existing one just failed.
func (a *Assembler) downloadWithFallback(pw PieceWork) ([]byte, error) {
	if len(a.Peers) == 0 {
		return nil, errs.New(errs.PeerConnect, fmt.Sprintf("piece %d", pw.Index), fmt.Errorf("no peers available"))
	}

	var lastErr error
	for _, p := range a.Peers {
		key := p.String()
		sess, ok := a.conns[key]
		if !ok {
			var err error
			sess, err = a.dial(p, a.PeerID, a.Torrent.InfoHash, nil)
			if err != nil {
				log.Warnf("dial %s failed: %v", key, err)
				a.Stats.PeerFailed()
				lastErr = err
				continue
			}
			a.conns[key] = sess
		}

		buf, err := DownloadPiece(sess, pw, a.Stats)
		if err != nil {
			log.Warnf("peer %s failed on piece %d: %v", key, pw.Index, err)
			a.Stats.PeerFailed()
			sess.Close()
			delete(a.conns, key)
			lastErr = err
			continue
		}
		return buf, nil
	}
	return nil, errs.New(errs.PeerConnect, fmt.Sprintf("piece %d", pw.Index), fmt.Errorf("all peers exhausted: %w", lastErr))
}
