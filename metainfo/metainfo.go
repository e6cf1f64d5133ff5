// Package metainfo is the typed view over a decoded .torrent file: the
// announce URL, the info dictionary's fields, the cached info-hash, and
// the per-piece expected SHA-1 table. It is grounded on the teacher's
// bencodeInfo/bencodeTorrent/torrentFile trio, rebuilt against the
// hand-rolled bencode package instead of github.com/jackpal/bencode-go.
package metainfo

import (
	"crypto/sha1"
	"fmt"
	"io"

	"gorent/bencode"
	"gorent/errs"
)

const hashLen = 20

// Info is the decoded "info" sub-dictionary of a single-file torrent.
type Info struct {
	PieceLength int64
	Pieces      []byte // concatenated 20-byte SHA-1 digests
	Name        string
	Length      int64 // 0 when absent from the file; see Torrent.TotalLength
}

// Torrent is the typed view over an entire metainfo file.
type Torrent struct {
	Announce     string
	AnnounceList [][]string
	CreationDate int64
	Comment      string
	CreatedBy    string
	Encoding     string

	Info     Info
	InfoHash [20]byte

	pieceHashes [][hashLen]byte
}

// ErrMultiFile is returned when the decoded info dictionary carries a
// "files" list. Multi-file torrents are explicitly unsupported (spec
// §9 open question: "behaviour on encountering an info.files list is
// undefined ... and should be rejected explicitly").
var ErrMultiFile = fmt.Errorf("multi-file torrents (info.files) are not supported")

// Parse decodes r as a bencoded metainfo file and builds the typed view,
// including the info-hash and the per-piece hash table.
func Parse(r io.Reader) (*Torrent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.New(errs.IO, "read torrent file", err)
	}
	root, n, err := bencode.Decode(data)
	if err != nil {
		return nil, errs.New(errs.BencodeDecode, "decode metainfo", err)
	}
	if n != len(data) {
		return nil, errs.New(errs.BencodeDecode, "decode metainfo", fmt.Errorf("%d trailing bytes", len(data)-n))
	}
	if root.Kind != bencode.KindDict {
		return nil, errs.New(errs.MetainfoStruct, "top level", fmt.Errorf("not a dictionary"))
	}

	infoVal, ok := root.Lookup("info")
	if !ok || infoVal.Kind != bencode.KindDict {
		return nil, errs.New(errs.MetainfoStruct, "info", fmt.Errorf("missing or not a dictionary"))
	}
	if _, hasFiles := infoVal.Lookup("files"); hasFiles {
		return nil, errs.New(errs.MetainfoStruct, "info.files", ErrMultiFile)
	}

	info, err := parseInfo(infoVal)
	if err != nil {
		return nil, err
	}

	announce, ok := stringField(root, "announce")
	if !ok {
		return nil, errs.New(errs.MetainfoStruct, "announce", fmt.Errorf("missing"))
	}

	t := &Torrent{
		Announce: announce,
		Info:     info,
		// Re-encoding with lexicographically sorted keys is, per the
		// spec's own invariant, equivalent to hashing the raw input span;
		// taking this branch keeps one code path for decode+hash+test.
		InfoHash: sha1.Sum(bencode.Encode(infoVal)),
	}
	if s, ok := stringField(root, "comment"); ok {
		t.Comment = s
	}
	if s, ok := stringField(root, "created by"); ok {
		t.CreatedBy = s
	}
	if s, ok := stringField(root, "encoding"); ok {
		t.Encoding = s
	}
	if v, ok := root.Lookup("creation date"); ok && v.Kind == bencode.KindInt {
		t.CreationDate = v.Int
	}
	if v, ok := root.Lookup("announce-list"); ok && v.Kind == bencode.KindList {
		t.AnnounceList = parseAnnounceList(v)
	}

	hashes, err := splitPieceHashes(info.Pieces)
	if err != nil {
		return nil, err
	}
	t.pieceHashes = hashes

	return t, nil
}

func parseInfo(v bencode.Value) (Info, error) {
	name, ok := stringField(v, "name")
	if !ok {
		return Info{}, errs.New(errs.MetainfoStruct, "info.name", fmt.Errorf("missing"))
	}
	pieceLenVal, ok := v.Lookup("piece length")
	if !ok || pieceLenVal.Kind != bencode.KindInt || pieceLenVal.Int <= 0 {
		return Info{}, errs.New(errs.MetainfoStruct, "info.piece length", fmt.Errorf("missing or not positive"))
	}
	piecesVal, ok := v.Lookup("pieces")
	if !ok || piecesVal.Kind != bencode.KindString {
		return Info{}, errs.New(errs.MetainfoStruct, "info.pieces", fmt.Errorf("missing or not a byte-string"))
	}
	info := Info{
		PieceLength: pieceLenVal.Int,
		Pieces:      piecesVal.Str,
		Name:        name,
	}
	if lenVal, ok := v.Lookup("length"); ok {
		if lenVal.Kind != bencode.KindInt {
			return Info{}, errs.New(errs.MetainfoStruct, "info.length", fmt.Errorf("not an integer"))
		}
		info.Length = lenVal.Int
	}
	return info, nil
}

func stringField(v bencode.Value, key string) (string, bool) {
	val, ok := v.Lookup(key)
	if !ok || val.Kind != bencode.KindString {
		return "", false
	}
	return string(val.Str), true
}

func parseAnnounceList(v bencode.Value) [][]string {
	out := make([][]string, 0, len(v.List))
	for _, tier := range v.List {
		if tier.Kind != bencode.KindList {
			continue
		}
		urls := make([]string, 0, len(tier.List))
		for _, u := range tier.List {
			if u.Kind == bencode.KindString {
				urls = append(urls, string(u.Str))
			}
		}
		out = append(out, urls)
	}
	return out
}

func splitPieceHashes(pieces []byte) ([][hashLen]byte, error) {
	if len(pieces)%hashLen != 0 {
		return nil, errs.New(errs.MetainfoStruct, "info.pieces", fmt.Errorf("length %d not a multiple of %d", len(pieces), hashLen))
	}
	n := len(pieces) / hashLen
	hashes := make([][hashLen]byte, n)
	for i := 0; i < n; i++ {
		copy(hashes[i][:], pieces[i*hashLen:(i+1)*hashLen])
	}
	return hashes, nil
}

// PieceCount returns the number of pieces, ⌈TotalLength / PieceLength⌉,
// equivalently len(pieces)/20.
func (t *Torrent) PieceCount() int { return len(t.pieceHashes) }

// PieceHash returns the expected SHA-1 digest for piece index p.
func (t *Torrent) PieceHash(p int) [20]byte { return t.pieceHashes[p] }

// TotalLength returns info.length when present, falling back to the
// deduced value (piece count × piece length) otherwise. The deduced
// value is only exact when the last piece is full; spec §9 instructs
// preferring the explicit field whenever it is present.
func (t *Torrent) TotalLength() int64 {
	if t.Info.Length > 0 {
		return t.Info.Length
	}
	return int64(t.PieceCount()) * t.Info.PieceLength
}

// PieceLength returns the byte length of piece index p: PieceLength for
// every piece but the last, whose length is TotalLength mod PieceLength
// (or the full PieceLength when that remainder is zero).
func (t *Torrent) PieceLength(p int) int64 {
	if p != t.PieceCount()-1 {
		return t.Info.PieceLength
	}
	total := t.TotalLength()
	rem := total % t.Info.PieceLength
	if rem == 0 {
		return t.Info.PieceLength
	}
	return rem
}
