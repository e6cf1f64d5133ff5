package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerString(t *testing.T) {
	p := Peer{IP: []byte{192, 168, 1, 1}, Port: 6881}
	assert.Equal(t, "192.168.1.1:6881", p.String())
}

func TestUnmarshalCompact(t *testing.T) {
	bin := []byte{
		192, 168, 1, 1, 0x1A, 0xE1, // 192.168.1.1:6881
		10, 0, 0, 1, 0x1A, 0xE2, // 10.0.0.1:6882
	}
	peers, err := UnmarshalCompact(bin)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.Equal(t, "192.168.1.1:6881", peers[0].String())
	assert.Equal(t, "10.0.0.1:6882", peers[1].String())
}

func TestUnmarshalCompactRejectsBadLength(t *testing.T) {
	_, err := UnmarshalCompact([]byte{1, 2, 3})
	require.Error(t, err)
}
