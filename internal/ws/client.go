package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/findosh/shiller/internal/broadcast"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// client is one display connection. It satisfies broadcast.Subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	topic string
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send queues ev without blocking; false means the client is gone or too slow
func (c *client) Send(ev broadcast.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Name).Msg("failed to encode event")
		return true
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close flushes queued frames and closes the socket
func (c *client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) currentTopic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topic
}

func (c *client) setTopic(topic string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.topic
	c.topic = topic
	return prev
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if !c.write(websocket.TextMessage, msg) {
				c.Close()
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				c.Close()
				return
			}
		case <-c.done:
			c.drain()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain writes frames queued before Close
func (c *client) drain() {
	for {
		select {
		case msg := <-c.send:
			if !c.write(websocket.TextMessage, msg) {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(messageType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data) == nil
}
