package messagingapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/altarlane/marketplace/internal/httputil"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 512
)

func (s *Service) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(s.allowedOrigins) == 0 || s.allowedOrigins[origin]
		},
	}
}

// handleStream relays a conversation's messages to one participant. The
// client only answers pings; anything it sends is discarded.
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	conversationID := mux.Vars(r)["id"]
	if _, _, err := s.participant(r.Context(), userID, conversationID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sub, err := s.broker.Subscribe(ctx, conversationID)
	if err != nil {
		s.Logger().WithContext(ctx).WithError(err).Error("conversation subscribe failed")
		httputil.WriteError(w, http.StatusServiceUnavailable, "realtime delivery unavailable")
		return
	}
	defer sub.Close()

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()
	log := s.Logger().WithContext(ctx).WithField("conversation_id", conversationID)
	log.Debug("stream opened")

	pongWait := s.pingInterval * 2
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			log.Debug("stream closed")
			return
		case m, ok := <-sub.Messages():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
