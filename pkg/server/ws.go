package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"xroute/pkg/store"
	"xroute/pkg/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Inbound message types on the live feed
const (
	messageQuote  = "quote"
	messageSelect = "select"
)

type clientMessage struct {
	Type    string             `json:"type"`
	Request types.QuoteRequest `json:"request"`
	RouteID string             `json:"routeId"`
}

// handleWS streams route and transaction events. Clients send quote
// requests, which go through the debounced session, and route selections.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := s.deps.State.Subscribe(32)
	defer unsubscribe()

	replies := make(chan interface{}, 4)
	done := make(chan struct{})
	go s.readPump(conn, replies, done)

	snapshot := s.deps.State.Routes()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(store.Event{Kind: store.EventRoutes, Routes: &snapshot}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var msg interface{}
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg = ev
		case reply := <-replies:
			msg = reply
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("Websocket write failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) readPump(conn *websocket.Conn, replies chan<- interface{}, done chan<- struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Websocket closed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case messageQuote:
			s.session.Submit(msg.Request)
		case messageSelect:
			if err := s.deps.State.SelectRoute(msg.RouteID); err != nil {
				s.reply(replies, errorResponse{Error: err.Error()})
				continue
			}
			if route, ok := s.deps.State.SelectedRoute(); ok {
				s.reply(replies, struct {
					Type  string      `json:"type"`
					Route types.Route `json:"route"`
				}{"selected", route})
			}
		default:
			s.reply(replies, errorResponse{Error: "unknown message type " + msg.Type})
		}
	}
}

func (s *Server) reply(replies chan<- interface{}, msg interface{}) {
	select {
	case replies <- msg:
	default:
		s.logger.Warn("Websocket reply dropped")
	}
}
