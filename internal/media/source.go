package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/lectorium/workshop/internal/application/constant"
)

// Source is an acquired local media source: an RTP-fed Opus track plus
// the socket feeding it.
type Source struct {
	track *webrtc.TrackLocalStaticRTP
	conn  net.PacketConn
}

func (s *Source) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.track}
}

func (s *Source) Close() error {
	return s.conn.Close()
}

// LocalAddr reports the UDP address the source reads RTP from, useful
// when the provider was configured with port 0.
func (s *Source) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RTPProvider acquires local media by listening for RTP on a UDP address
// (the usual pion pattern for feeding captured audio from an external
// encoder). Acquisition fails when the socket cannot be opened, which
// aborts the call attempt.
type RTPProvider struct {
	Addr string
}

func NewRTPProvider(addr string) *RTPProvider {
	return &RTPProvider{Addr: addr}
}

func (p *RTPProvider) Acquire(ctx context.Context) (*Source, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", p.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen for local RTP on %s: %w", p.Addr, err)
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "workshop",
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	src := &Source{track: track, conn: conn}
	go src.pump()

	return src, nil
}

// pump copies RTP packets from the socket into the track until the
// socket closes.
func (s *Source) pump() {
	buf := make([]byte, 1600)

	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Error("read local RTP", slog.Any(constant.Error, err))
			}
			return
		}

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			slog.Warn("malformed local RTP packet", slog.Any(constant.Error, err))
			continue
		}

		if err := s.track.WriteRTP(pkt); err != nil {
			slog.Error("write RTP to track", slog.Any(constant.Error, err))
			return
		}
	}
}
