// Package tracker is the HTTP announce client: it builds the GET
// request, decodes the bencoded response, and extracts the compact
// peer list. Grounded on the teacher's requestPeers/buildTrackerURL,
// enriched with bounded retry (github.com/cenkalti/backoff, as
// tracker/metainfoclient does in uber-kraken) since HTTP to a tracker
// is exactly the "transient I/O" case spec §5 calls out as the one
// asynchronous suspension point in an otherwise synchronous core.
package tracker

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"

	"gorent/bencode"
	"gorent/errs"
	"gorent/metainfo"
	"gorent/peer"
)

// Doer is the subset of *http.Client the tracker call needs; tests
// substitute a double that never touches the network.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the decoded tracker announce response (spec §3).
type Response struct {
	Interval       int64
	Complete       int64
	Incomplete     int64
	FailureReason  string
	WarningMessage string
	MinInterval    int64
	TrackerID      string
	Peers          []peer.Peer
}

// GeneratePeerID builds the client's 20-byte peer-id: a fixed
// client-identifying prefix followed by 12 hex characters of a freshly
// generated UUID, so it differs across process runs but stays
// ASCII-printable the way most BitTorrent clients' peer-ids are.
func GeneratePeerID() [20]byte {
	var id [20]byte
	copy(id[:], "-GR0001-")
	u := uuid.New()
	copy(id[8:], hex.EncodeToString(u[:6]))
	return id
}

const defaultClientPort = 6881

// Client announces to a torrent's tracker.
type Client struct {
	HTTP    Doer
	Backoff backoff.BackOff
}

// New returns a Client using http.DefaultClient and a short bounded
// exponential backoff for transient tracker errors.
func New() *Client {
	return &Client{
		HTTP: http.DefaultClient,
		Backoff: backoff.WithMaxRetries(&backoff.ExponentialBackOff{
			InitialInterval:     200 * time.Millisecond,
			RandomizationFactor: 0.2,
			Multiplier:          2,
			MaxInterval:         2 * time.Second,
			Clock:               backoff.SystemClock,
		}, 3),
	}
}

// Announce builds the announce URL for t, issues the GET, and decodes
// the response into a peer list.
func (c *Client) Announce(t *metainfo.Torrent, peerID [20]byte, port uint16) (*Response, error) {
	announceURL, err := buildURL(t, peerID, port)
	if err != nil {
		return nil, errs.New(errs.TrackerTransport, "build announce url", err)
	}

	u, err := url.Parse(t.Announce)
	if err != nil {
		return nil, errs.New(errs.TrackerTransport, "parse announce url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errs.New(errs.TrackerTransport, t.Announce, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequest(http.MethodGet, announceURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err // network hiccups are retried
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("tracker returned status %d", resp.StatusCode))
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	if err := backoff.Retry(op, c.Backoff); err != nil {
		return nil, errs.New(errs.TrackerTransport, announceURL, err)
	}

	return parseResponse(body)
}

func parseResponse(body []byte) (*Response, error) {
	v, n, err := bencode.Decode(body)
	if err != nil || n != len(body) || v.Kind != bencode.KindDict {
		return nil, errs.New(errs.TrackerResponse, "decode body", fmt.Errorf("not a bencoded dictionary"))
	}
	resp := &Response{}
	if fr, ok := v.Lookup("failure reason"); ok && fr.Kind == bencode.KindString {
		resp.FailureReason = string(fr.Str)
		return resp, errs.New(errs.TrackerResponse, "failure reason", fmt.Errorf("%s", resp.FailureReason))
	}
	if w, ok := v.Lookup("warning message"); ok && w.Kind == bencode.KindString {
		resp.WarningMessage = string(w.Str)
	}
	if iv, ok := v.Lookup("interval"); ok && iv.Kind == bencode.KindInt {
		resp.Interval = iv.Int
	}
	if mi, ok := v.Lookup("min interval"); ok && mi.Kind == bencode.KindInt {
		resp.MinInterval = mi.Int
	}
	if c, ok := v.Lookup("complete"); ok && c.Kind == bencode.KindInt {
		resp.Complete = c.Int
	}
	if ic, ok := v.Lookup("incomplete"); ok && ic.Kind == bencode.KindInt {
		resp.Incomplete = ic.Int
	}
	if tid, ok := v.Lookup("tracker id"); ok && tid.Kind == bencode.KindString {
		resp.TrackerID = string(tid.Str)
	}
	peersVal, ok := v.Lookup("peers")
	if !ok || peersVal.Kind != bencode.KindString {
		return nil, errs.New(errs.TrackerResponse, "peers", fmt.Errorf("missing compact peers field"))
	}
	peers, err := peer.UnmarshalCompact(peersVal.Str)
	if err != nil {
		return nil, err
	}
	resp.Peers = peers
	return resp, nil
}

func buildURL(t *metainfo.Torrent, peerID [20]byte, port uint16) (string, error) {
	base, err := url.Parse(t.Announce)
	if err != nil {
		return "", err
	}
	q := url.Values{
		"port":       {strconv.Itoa(int(port))},
		"uploaded":   {"0"},
		"downloaded": {"0"},
		"left":       {strconv.FormatInt(t.TotalLength(), 10)},
		"compact":    {"1"},
	}
	base.RawQuery = q.Encode() +
		"&info_hash=" + percentEncode(t.InfoHash[:]) +
		"&peer_id=" + percentEncode(peerID[:])
	return base.String(), nil
}

// percentEncode escapes raw bytes the way query parameters require,
// without assuming they are valid UTF-8 (info_hash and peer_id are
// raw 20-byte strings, not text).
func percentEncode(b []byte) string {
	const hex = "0123456789ABCDEF"
	out := make([]byte, 0, len(b)*3)
	for _, c := range b {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '.', c == '~':
			out = append(out, c)
		default:
			out = append(out, '%', hex[c>>4], hex[c&0xf])
		}
	}
	return string(out)
}

// DefaultPort is the listening port this client advertises to the
// tracker; the client never actually listens since uploading is a
// documented non-goal.
const DefaultPort = defaultClientPort
