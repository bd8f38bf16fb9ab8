package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/events"
	"github.com/aristath/compass/internal/modules/market"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

const (
	streamWriteWait = 10 * time.Second
	streamHeartbeat = 30 * time.Second
)

// StreamFrame is one message on the index stream
type StreamFrame struct {
	Type      string             `json:"type" msgpack:"type"`
	Indices   []domain.IndexData `json:"indices,omitempty" msgpack:"indices,omitempty"`
	Failed    int                `json:"failed,omitempty" msgpack:"failed,omitempty"`
	Error     string             `json:"error,omitempty" msgpack:"error,omitempty"`
	Loading   bool               `json:"loading" msgpack:"loading"`
	Timestamp int64              `json:"timestamp" msgpack:"timestamp"`
}

// Frame types
const (
	FrameSnapshot  = "snapshot"
	FrameHeartbeat = "heartbeat"
)

// HandleStream upgrades to a websocket, sends the current snapshot and then
// every refreshed snapshot. ?format=msgpack switches to binary msgpack frames.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	binary := r.URL.Query().Get("format") == "msgpack"

	// The stream is write-only; CloseRead cancels ctx when the client goes away
	ctx := conn.CloseRead(r.Context())

	var updates <-chan events.Event
	if h.bus != nil {
		ch, unsubscribe := h.bus.Subscribe(events.IndicesRefreshed)
		defer unsubscribe()
		updates = ch
	}

	h.log.Debug().Bool("msgpack", binary).Msg("Client connected to index stream")

	snap := h.board.Snapshot()
	initial := StreamFrame{
		Type:      FrameSnapshot,
		Indices:   snap.Indices,
		Error:     snap.Error,
		Loading:   snap.Loading,
		Timestamp: snap.UpdatedAt.UnixMilli(),
	}
	if err := writeFrame(ctx, conn, initial, binary); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		var frame StreamFrame
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			h.log.Debug().Msg("Client disconnected from index stream")
			return
		case event, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			data, ok := event.Data.(*events.IndicesRefreshedData)
			if !ok {
				continue
			}
			frame = StreamFrame{
				Type:      FrameSnapshot,
				Indices:   data.Indices,
				Failed:    data.Failed,
				Timestamp: event.Timestamp.UnixMilli(),
			}
			if len(data.Indices) == 0 && data.Failed > 0 {
				frame.Error = market.FetchFailedMessage
			}
		case t := <-heartbeat.C:
			frame = StreamFrame{Type: FrameHeartbeat, Timestamp: t.UnixMilli()}
		}

		if err := writeFrame(ctx, conn, frame, binary); err != nil {
			h.log.Debug().Err(err).Msg("Index stream write failed")
			return
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame StreamFrame, binary bool) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()

	if binary {
		payload, err := msgpack.Marshal(&frame)
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageBinary, payload)
	}

	payload, err := json.Marshal(&frame)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

// DecodeFrame decodes a stream message of either format
func DecodeFrame(typ websocket.MessageType, payload []byte) (StreamFrame, error) {
	var frame StreamFrame
	if typ == websocket.MessageBinary {
		return frame, msgpack.Unmarshal(payload, &frame)
	}
	return frame, json.Unmarshal(payload, &frame)
}
