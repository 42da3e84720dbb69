// Package ws serves live session events to trainee displays over WebSocket
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/findosh/shiller/internal/broadcast"
	"github.com/findosh/shiller/internal/models"
	"github.com/findosh/shiller/internal/services/registry"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Attacher resolves a join code and subscribes a display to it
type Attacher interface {
	Attach(ctx context.Context, code string, sub broadcast.Subscriber) (registry.Result, error)
}

// Unsubscriber removes a display from a topic it left
type Unsubscriber interface {
	Unsubscribe(topic string, sub broadcast.Subscriber)
}

// Server upgrades HTTP requests and runs the join protocol
type Server struct {
	sessions Attacher
	hub      Unsubscriber
	upgrader websocket.Upgrader
}

// NewServer creates a WebSocket server. originAllowed is consulted for
// browser requests carrying an Origin header.
func NewServer(sessions Attacher, hub Unsubscriber, originAllowed func(origin string) bool) *Server {
	return &Server{
		sessions: sessions,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed == nil || originAllowed(origin)
			},
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws upgrade failed")
		return
	}

	log.Debug().Str("remote", r.RemoteAddr).Msg("display connected")
	c := newClient(conn)
	go s.readPump(c, r.RemoteAddr)
}

func (s *Server) readPump(c *client, remote string) {
	defer func() {
		if topic := c.currentTopic(); topic != "" {
			s.hub.Unsubscribe(topic, c)
		}
		c.Close()
		log.Debug().Str("remote", remote).Msg("display disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg InboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.Send(errorEvent("malformed message"))
				continue
			}
			return
		}

		switch msg.Type {
		case MsgJoinSession:
			s.join(c, msg.Payload)
		default:
			c.Send(errorEvent("unknown message type"))
		}
	}
}

// join moves c onto the topic of the session holding the requested code
func (s *Server) join(c *client, raw json.RawMessage) {
	var payload JoinPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.Send(errorEvent("malformed join payload"))
			return
		}
	}

	if prev := c.setTopic(""); prev != "" {
		s.hub.Unsubscribe(prev, c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	res, err := s.sessions.Attach(ctx, payload.SessionCode, c)
	switch {
	case errors.Is(err, registry.ErrValidation):
		c.Send(notFoundEvent())
		return
	case err != nil:
		log.Error().Err(err).Msg("failed to attach display")
		c.Send(errorEvent("session lookup failed"))
		return
	case !res.OK():
		c.Send(notFoundEvent())
		return
	}

	c.setTopic(registry.Topic(res.Session.ID))
}

func notFoundEvent() broadcast.Event {
	return broadcast.Event{
		Name:    models.EventSessionExpired,
		Payload: models.ExpiredEvent{Reason: models.ReasonNotFound},
	}
}

func errorEvent(msg string) broadcast.Event {
	return broadcast.Event{Name: MsgError, Payload: ErrorPayload{Error: msg}}
}
