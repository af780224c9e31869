package deviceendpoint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"iotfabric/internal/model"
)

// handleConnection serves requests on one accepted connection until it
// closes, a malformed payload arrives, or ctx is cancelled. A connection
// closed mid-message only affects that connection (SPEC §4.2).
func handleConnection(ctx context.Context, log *slog.Logger, device *Device, conn net.Conn) {
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		body, err := model.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			log.Debug("deviceendpoint: connection closed mid-message", "remote", conn.RemoteAddr(), "error", err)
			return
		}

		req, err := model.DecodeRequest(body)
		if err != nil {
			log.Debug("deviceendpoint: malformed request, closing connection", "remote", conn.RemoteAddr(), "error", err)
			return
		}

		resp := device.Handle(ctx, req)

		if err := model.WriteFrame(conn, model.EncodeResponse(resp)); err != nil {
			log.Debug("deviceendpoint: write failed, closing connection", "remote", conn.RemoteAddr(), "error", err)
			return
		}
	}
}
