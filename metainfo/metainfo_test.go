package metainfo

import (
	"bytes"
	"crypto/sha1"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorent/bencode"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func buildTorrentBytes(t *testing.T, length int64, pieceLength int64, pieces []byte, extra string) []byte {
	t.Helper()
	info := "d6:lengthi" + itoa(length) + "e12:piece lengthi" + itoa(pieceLength) + "e6:pieces" + itoa(int64(len(pieces))) + ":" + string(pieces) + "4:name5:movie" + extra + "e"
	return []byte("d8:announce20:http://tracker.test/4:info" + info + "e")
}

func TestParseSingleFileTorrent(t *testing.T) {
	piece0 := sha1.Sum([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	piece1 := sha1.Sum([]byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	pieces := append(append([]byte{}, piece0[:]...), piece1[:]...)

	raw := buildTorrentBytes(t, 60, 32, pieces, "")
	tr, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "http://tracker.test/", tr.Announce)
	assert.Equal(t, "movie", tr.Info.Name)
	assert.Equal(t, int64(60), tr.TotalLength())
	assert.Equal(t, 2, tr.PieceCount())
	assert.Equal(t, int64(32), tr.PieceLength(0))
	assert.Equal(t, int64(28), tr.PieceLength(1))
	assert.Equal(t, piece0, tr.PieceHash(0))
	assert.Equal(t, piece1, tr.PieceHash(1))

	// info-hash must equal SHA-1 of the canonically re-encoded info dict.
	infoVal, n, err := bencode.Decode(raw[bytes.Index(raw, []byte("4:info"))+len("4:info"):])
	require.NoError(t, err)
	_ = n
	assert.Equal(t, sha1.Sum(bencode.Encode(infoVal)), tr.InfoHash)
}

func TestParseRejectsMultiFile(t *testing.T) {
	raw := []byte("d8:announce3:xyz4:infod5:filesl" +
		"d6:lengthi1e4:pathl5:a.txtee" +
		"e4:name1:x12:piece lengthi16e6:pieces0:ee")
	_, err := Parse(bytes.NewReader(raw))
	require.ErrorIs(t, err, ErrMultiFile)
}

func TestParseDeducesLengthWhenAbsent(t *testing.T) {
	piece0 := sha1.Sum([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	raw := []byte("d8:announce3:xyz4:infod4:name1:x12:piece lengthi32e6:pieces20:" +
		string(piece0[:]) + "ee")
	tr, err := Parse(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(32), tr.TotalLength())
}
