package download

import (
	"bytes"
	"crypto/sha1"
	"testing"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorent/bencode"
	"gorent/message"
	"gorent/metainfo"
	"gorent/peer"
)

// singlePieceTorrent builds a minimal one-piece metainfo.Torrent over
// data, round-tripping through the real bencode encoder/decoder since
// metainfo.Torrent's per-piece hash table is unexported and only
// metainfo.Parse populates it.
func singlePieceTorrent(t *testing.T, data []byte) *metainfo.Torrent {
	t.Helper()
	hash := sha1.Sum(data)
	info := bencode.Value{Kind: bencode.KindDict, Dict: map[string]bencode.Value{
		"name":         bencode.String([]byte("fixture")),
		"piece length": bencode.Int(int64(len(data))),
		"pieces":       bencode.String(hash[:]),
		"length":       bencode.Int(int64(len(data))),
	}}
	root := bencode.Value{Kind: bencode.KindDict, Dict: map[string]bencode.Value{
		"announce": bencode.String([]byte("http://tracker.example/announce")),
		"info":     info,
	}}
	tor, err := metainfo.Parse(bytes.NewReader(bencode.Encode(root)))
	require.NoError(t, err)
	return tor
}

func pieceReads(t *testing.T, index int, data []byte) [][]byte {
	t.Helper()
	unchoke := &message.Message{ID: message.MsgUnchoke}
	payload := append(append([]byte{0, 0, 0, byte(index)}, []byte{0, 0, 0, 0}...), data...)
	piece := &message.Message{ID: message.MsgPiece, Payload: payload}
	return [][]byte{serialize(t, unchoke), serialize(t, piece)}
}

// twoPieceTorrent builds a metainfo.Torrent over two equal-length pieces,
// for tests that need more than one DownloadPiece call against the same
// Assembler.
func twoPieceTorrent(t *testing.T, p0, p1 []byte) *metainfo.Torrent {
	t.Helper()
	require.Equal(t, len(p0), len(p1), "fixture pieces must share a length")
	h0, h1 := sha1.Sum(p0), sha1.Sum(p1)
	info := bencode.Value{Kind: bencode.KindDict, Dict: map[string]bencode.Value{
		"name":         bencode.String([]byte("fixture")),
		"piece length": bencode.Int(int64(len(p0))),
		"pieces":       bencode.String(append(append([]byte{}, h0[:]...), h1[:]...)),
		"length":       bencode.Int(int64(len(p0) + len(p1))),
	}}
	root := bencode.Value{Kind: bencode.KindDict, Dict: map[string]bencode.Value{
		"announce": bencode.String([]byte("http://tracker.example/announce")),
		"info":     info,
	}}
	tor, err := metainfo.Parse(bytes.NewReader(bencode.Encode(root)))
	require.NoError(t, err)
	return tor
}

func TestDownloadPieceViaAssembler(t *testing.T) {
	data := []byte("single-piece-of-data")
	tor := singlePieceTorrent(t, data)

	a := NewAssembler(tor, []peer.Peer{{Port: 1}}, [20]byte{1})
	reads := pieceReads(t, 0, data)
	a.dial = func(p peer.Peer, peerID, infoHash [20]byte, clk clock.Clock) (*peer.Session, error) {
		return &peer.Session{Conn: &fakeConn{reads: reads}, Peer: p, Choked: true}, nil
	}

	got, err := a.DownloadPiece(0)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDownloadFallsBackToNextPeer(t *testing.T) {
	data := []byte("single-piece-of-data")
	tor := singlePieceTorrent(t, data)

	calls := 0
	a := NewAssembler(tor, []peer.Peer{{Port: 1}, {Port: 2}}, [20]byte{1})
	reads := pieceReads(t, 0, data)
	a.dial = func(p peer.Peer, peerID, infoHash [20]byte, clk clock.Clock) (*peer.Session, error) {
		calls++
		if calls == 1 {
			return &peer.Session{Conn: &fakeConn{}, Peer: p, Choked: true}, nil // dead peer: no data
		}
		return &peer.Session{Conn: &fakeConn{reads: reads}, Peer: p, Choked: true}, nil
	}

	got, err := a.DownloadPiece(0)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 2, calls)
}

func TestDownloadAllPeersExhausted(t *testing.T) {
	tor := singlePieceTorrent(t, []byte("abcd"))

	a := NewAssembler(tor, []peer.Peer{{Port: 1}}, [20]byte{1})
	a.dial = func(p peer.Peer, peerID, infoHash [20]byte, clk clock.Clock) (*peer.Session, error) {
		return &peer.Session{Conn: &fakeConn{}, Peer: p, Choked: true}, nil
	}

	_, err := a.DownloadPiece(0)
	require.Error(t, err)
}

func TestDownloadNoPeers(t *testing.T) {
	tor := singlePieceTorrent(t, []byte("abcd"))

	a := NewAssembler(tor, nil, [20]byte{1})
	_, err := a.DownloadPiece(0)
	require.Error(t, err)
}

func TestAssemblerReusesSessionAcrossPieces(t *testing.T) {
	p0 := []byte("piece-zero-bytes!!!!")
	p1 := []byte("piece-one-bytes-too!")
	tor := twoPieceTorrent(t, p0, p1)

	calls := 0
	a := NewAssembler(tor, []peer.Peer{{Port: 1}}, [20]byte{1})
	a.dial = func(p peer.Peer, peerID, infoHash [20]byte, clk clock.Clock) (*peer.Session, error) {
		calls++
		reads := append(pieceReads(t, 0, p0), pieceReads(t, 1, p1)...)
		return &peer.Session{Conn: &fakeConn{reads: reads}, Peer: p, Choked: true}, nil
	}

	got0, err := a.DownloadPiece(0)
	require.NoError(t, err)
	assert.Equal(t, p0, got0)

	got1, err := a.DownloadPiece(1)
	require.NoError(t, err)
	assert.Equal(t, p1, got1)

	// Second piece reused the session from the first: only one dial.
	assert.Equal(t, 1, calls)
}

func TestDownloadWholeTorrentSinglePiece(t *testing.T) {
	data := []byte("whole-torrent-payload")
	tor := singlePieceTorrent(t, data)

	a := NewAssembler(tor, []peer.Peer{{Port: 1}}, [20]byte{1})
	reads := pieceReads(t, 0, data)
	a.dial = func(p peer.Peer, peerID, infoHash [20]byte, clk clock.Clock) (*peer.Session, error) {
		return &peer.Session{Conn: &fakeConn{reads: reads}, Peer: p, Choked: true}, nil
	}

	got, err := a.Download()
	require.NoError(t, err)
	assert.Equal(t, data, got)
}
