package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/lectorium/workshop/internal/application/constant"
	"github.com/lectorium/workshop/internal/call"
	"github.com/lectorium/workshop/internal/media"
)

var (
	callRoom    string
	callServer  string
	callToken   string
	callRTPAddr string
	callStun    []string
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Join a workshop room as a CLI client",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		slog.SetDefault(
			slog.New(
				slog.NewTextHandler(
					os.Stderr,
					&slog.HandlerOptions{Level: slog.LevelInfo},
				),
			),
		)

		client, err := call.Dial(ctx, callServer, callToken)
		if err != nil {
			slog.Error("dial signaling server", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer client.Close()

		provider := media.NewRTPProvider(callRTPAddr)

		mediaFn := func(ctx context.Context) (call.Media, error) {
			return provider.Acquire(ctx)
		}

		var iceServers []webrtc.ICEServer
		if len(callStun) > 0 {
			iceServers = append(iceServers, webrtc.ICEServer{URLs: callStun})
		}

		session := call.NewSession(callRoom, client, mediaFn, call.NewPionFactory(iceServers))

		go func() {
			<-ctx.Done()
			session.Hangup()
		}()

		err = session.Run(ctx, client.Incoming())
		switch {
		case err == nil:
			slog.Info("call ended")
		case errors.Is(err, call.ErrRoomRejected):
			slog.Warn("room is full", slog.String(constant.RoomID, callRoom))
			os.Exit(2)
		default:
			slog.Error("call failed", slog.Any(constant.Error, err))
			os.Exit(1)
		}
	},
}

func init() {
	callCmd.Flags().StringVar(&callRoom, "room", "", "workshop room key (workshop UUID)")
	callCmd.Flags().StringVar(&callServer, "server", "ws://localhost:3000/api/v1/ws", "signaling websocket URL")
	callCmd.Flags().StringVar(&callToken, "token", "", "jwt auth token")
	callCmd.Flags().StringVar(&callRTPAddr, "rtp-addr", "127.0.0.1:5004", "local UDP address to read Opus RTP from")
	callCmd.Flags().StringSliceVar(&callStun, "stun", []string{"stun:stun.l.google.com:19302"}, "STUN server URLs")

	_ = callCmd.MarkFlagRequired("room")

	rootCmd.AddCommand(callCmd)
}
