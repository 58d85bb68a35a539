package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"nhooyr.io/websocket"

	"r2s/core"
)

const (
	wsWriteTimeout = 10 * time.Second
)

type eventUpdatePayload struct {
	Type     string      `json:"type"`
	Cursor   string      `json:"cursor"`
	Sequence uint64      `json:"sequence"`
	TxHash   string      `json:"txHash,omitempty"`
	Event    EventResult `json:"event"`
}

func eventUpdatePayloadFrom(update core.EventUpdate) eventUpdatePayload {
	payload := eventUpdatePayload{
		Type:     "ledger_event",
		Cursor:   update.Cursor,
		Sequence: update.Sequence,
		Event: EventResult{
			Sequence:   update.Sequence,
			Type:       update.Event.Type,
			Attributes: update.Event.Attributes,
		},
	}
	if update.TxHash != (common.Hash{}) {
		payload.TxHash = update.TxHash.Hex()
		payload.Event.TxHash = payload.TxHash
	}
	return payload
}

// handleEventsWS replays journaled events newer than ?cursor= and then streams
// live updates until the client disconnects.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// Reads drive control frames; the stream ends when the client goes away.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Warn("event stream ended",
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("error", err.Error()))
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor string) error {
	updates, cancel, backlog, err := s.node.SubscribeEvents(ctx, cursor)
	if err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
		return nil
	}
	defer cancel()

	for _, update := range backlog {
		if err := writeEventUpdate(ctx, conn, update); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEventUpdate(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeEventUpdate(ctx context.Context, conn *websocket.Conn, update core.EventUpdate) error {
	data, err := json.Marshal(eventUpdatePayloadFrom(update))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
