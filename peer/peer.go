// Package peer owns the per-peer TCP connection: dialing, the
// handshake exchange, and the framed-message recv loop built on top of
// package message's pure codec. Grounded on the teacher's peer.Peer /
// peer.Client / NewClient, restructured so the session (not a global)
// owns its growable receive buffer (spec §3 "Per-peer session").
package peer

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"gorent/errs"
)

// Peer is a discovered endpoint: an IPv4 address and port, per the
// compact peer encoding (spec §4.3); IPv6 compact peers are a
// documented non-goal.
type Peer struct {
	IP   net.IP
	Port uint16
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

const compactPeerSize = 6

// UnmarshalCompact decodes a tracker's compact "peers" byte-string into
// a list of endpoints: four octets of IPv4 followed by a big-endian
// port, per record.
func UnmarshalCompact(peersBin []byte) ([]Peer, error) {
	if len(peersBin)%compactPeerSize != 0 {
		return nil, errs.New(errs.TrackerResponse, "peers", fmt.Errorf("length %d not a multiple of %d", len(peersBin), compactPeerSize))
	}
	numPeers := len(peersBin) / compactPeerSize
	peers := make([]Peer, numPeers)
	for i := 0; i < numPeers; i++ {
		offset := i * compactPeerSize
		ip := make(net.IP, 4)
		copy(ip, peersBin[offset:offset+4])
		peers[i] = Peer{
			IP:   ip,
			Port: binary.BigEndian.Uint16(peersBin[offset+4 : offset+6]),
		}
	}
	return peers, nil
}
