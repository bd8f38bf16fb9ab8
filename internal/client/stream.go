package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	markethandlers "github.com/aristath/compass/internal/modules/market/handlers"
	"nhooyr.io/websocket"
)

// maxFrameBytes caps one stream message
const maxFrameBytes = 1 << 20

// WatchIndices opens the index stream in msgpack mode and calls fn for every
// snapshot frame until ctx ends, the server closes, or fn returns an error.
// Heartbeats are skipped. A clean close returns nil.
func (c *Client) WatchIndices(ctx context.Context, fn func(markethandlers.StreamFrame) error) error {
	wsURL := c.streamURL("/api/market/stream?format=msgpack")

	header := http.Header{}
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("failed to open index stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxFrameBytes)

	for {
		typ, payload, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("index stream: %w", err)
		}

		frame, err := markethandlers.DecodeFrame(typ, payload)
		if err != nil {
			c.log.Warn().Err(err).Msg("Skipping undecodable stream frame")
			continue
		}
		if frame.Type != markethandlers.FrameSnapshot {
			continue
		}
		if err := fn(frame); err != nil {
			if errors.Is(err, ErrStopWatching) {
				return nil
			}
			return err
		}
	}
}

// ErrStopWatching ends WatchIndices without error when returned by the callback
var ErrStopWatching = errors.New("stop watching")

func (c *Client) streamURL(path string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + path
}
