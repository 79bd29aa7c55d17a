package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/mauv0809/courtmatch/internal/events"
	"github.com/mauv0809/courtmatch/internal/matchmaking"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(s.Cfg.AllowedOrigins, "*") || slices.Contains(s.Cfg.AllowedOrigins, origin)
		},
	}
}

// SubscribeHandler streams events for one key over a websocket. The key is
// the caller's user id unless ?key= names an entry or match they take part in.
func (s *Server) SubscribeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			key = identityFromContext(r).UserID
		}
		if err := s.authorizeKey(r, key); err != nil {
			writeError(w, err, nil)
			return
		}

		conn, err := s.upgrader().Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			log.Warn("Failed to upgrade websocket", "key", key, "error", err)
			return
		}
		log.Info("Websocket subscribed", "key", key)

		ch, cancel := s.Broker.Subscribe(key)
		ctx, stop := context.WithCancel(r.Context())
		go readPump(conn, stop)
		writePump(ctx, conn, ch)
		cancel()
		log.Info("Websocket closed", "key", key)
	}
}

func (s *Server) authorizeKey(r *http.Request, key string) error {
	caller := identityFromContext(r)
	if key == caller.UserID || caller.isAdmin() {
		return nil
	}
	entry, err := s.Service.GetEntry(r.Context(), key)
	if err == nil {
		if entry.UserID != caller.UserID {
			return matchmaking.ErrForbidden
		}
		return nil
	}
	if !errors.Is(err, matchmaking.ErrNotFound) {
		return err
	}
	match, err := s.Service.GetMatch(r.Context(), key)
	if err != nil {
		return err
	}
	if _, ok := match.Player(caller.UserID); !ok {
		return matchmaking.ErrForbidden
	}
	return nil
}

// readPump discards client messages and keeps the read deadline alive on
// pongs. It calls stop when the connection goes away.
func readPump(conn *websocket.Conn, stop context.CancelFunc) {
	defer stop()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("Websocket read failed", "error", err)
			}
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, ch <-chan events.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case event, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Warn("Websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
