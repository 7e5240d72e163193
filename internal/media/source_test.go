package media

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireProducesOpusTrack(t *testing.T) {
	provider := NewRTPProvider("127.0.0.1:0")

	src, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	defer src.Close()

	tracks := src.Tracks()
	require.Len(t, tracks, 1)

	local, ok := tracks[0].(*webrtc.TrackLocalStaticRTP)
	require.True(t, ok)
	assert.Equal(t, webrtc.MimeTypeOpus, local.Codec().MimeType)
}

func TestAcquireFailsOnBusyAddress(t *testing.T) {
	provider := NewRTPProvider("127.0.0.1:0")

	src, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	defer src.Close()

	busy := NewRTPProvider(src.LocalAddr().String())
	_, err = busy.Acquire(context.Background())
	assert.Error(t, err)
}

func TestSourceToleratesMalformedPackets(t *testing.T) {
	provider := NewRTPProvider("127.0.0.1:0")

	src, err := provider.Acquire(context.Background())
	require.NoError(t, err)

	conn, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0x01})
	require.NoError(t, err)

	pkt := &rtp.Packet{Header: rtp.Header{Version: 2, PayloadType: 111}, Payload: []byte{0xde, 0xad}}
	raw, err := pkt.Marshal()
	require.NoError(t, err)

	_, err = conn.Write(raw)
	require.NoError(t, err)

	// The pump keeps running after the malformed datagram; closing the
	// source is still clean.
	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, src.Close())
}
