package webserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/funkostack/funkostore/internal/notify"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// broadcast-only, unauthenticated endpoints
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts *websocket.Conn to the hub's Conn port. Writes are
// serialized because gorilla allows only one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// wsHandler upgrades the connection and parks it in the hub. Inbound
// messages are drained and discarded; the read loop exists only to detect
// the close.
func (s *WebServer) wsHandler(hub *notify.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		wc := &wsConn{conn: conn}
		id := hub.Register(wc)

		go func() {
			defer func() {
				hub.Unregister(id)
				_ = conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		return nil
	}
}

// subscriptionsHandler serves GraphQL subscription topics over a
// websocket: the client sends {"topic": "onFunkoCreado"} and receives the
// topic's events until it disconnects.
func (s *WebServer) subscriptionsHandler(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	var sub struct {
		Topic string `json:"topic"`
	}
	if err := conn.ReadJSON(&sub); err != nil {
		_ = conn.Close()
		return nil
	}

	hub, err := s.bridge.Hub(sub.Topic)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unknown topic"}`))
		_ = conn.Close()
		return nil
	}

	wc := &wsConn{conn: conn}
	id := hub.Register(wc)
	zap.L().Debug("subscription client attached", zap.String("topic", sub.Topic))

	go func() {
		defer func() {
			hub.Unregister(id)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
