package download

import "github.com/uber-go/tally"

// Stats is an in-process counters scope for a download run: pieces
// completed, bytes received, and peer sessions that failed and were
// retried against the next peer. Grounded on uber-kraken's tally usage
// (build-index/tagstore, lib/persistedretry); there is no statsd/M3
// reporter wired up since this client has no long-running process to
// export metrics from, only a one-shot CLI run whose totals are
// printed at the end (see cmd/gorent).
type Stats struct {
	scope tally.TestScope

	piecesDone   tally.Counter
	bytesRecv    tally.Counter
	peersFailed  tally.Counter
	piecesFailed tally.Counter
}

// NewStats builds a fresh counters scope.
func NewStats() *Stats {
	scope := tally.NewTestScope("gorent", nil)
	return &Stats{
		scope:        scope,
		piecesDone:   scope.Counter("pieces_downloaded"),
		bytesRecv:    scope.Counter("bytes_received"),
		peersFailed:  scope.Counter("peer_sessions_failed"),
		piecesFailed: scope.Counter("piece_attempts_failed"),
	}
}

func (s *Stats) PieceDone(n int)   { s.piecesDone.Inc(1); s.bytesRecv.Inc(int64(n)) }
func (s *Stats) PeerFailed()       { s.peersFailed.Inc(1) }
func (s *Stats) PieceAttemptFail() { s.piecesFailed.Inc(1) }

// Summary returns the current counter values, keyed by metric name, for
// the CLI to print once a run finishes.
func (s *Stats) Summary() map[string]int64 {
	out := make(map[string]int64)
	for _, c := range s.scope.Snapshot().Counters() {
		out[c.Name()] = c.Value()
	}
	return out
}
