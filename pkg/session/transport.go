package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a message-oriented, ordered, bidirectional channel.
// ReadMessage is called from one goroutine; WriteMessage from one other.
// Close may be called from any goroutine and unblocks both.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// WebSocketTransport adapts a gorilla/websocket connection. Messages are
// written as text frames.
type WebSocketTransport struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu        sync.Mutex // serializes data writes
	closeOnce sync.Once
	done      chan struct{}
}

// NewWebSocketTransport wraps conn using the transport settings in cfg. When
// a heartbeat is configured a goroutine pings the peer until Close.
func NewWebSocketTransport(conn *websocket.Conn, cfg *Config) *WebSocketTransport {
	cfg = cfg.withDefaults()

	t := &WebSocketTransport{
		conn:         conn,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		done:         make(chan struct{}),
	}

	conn.SetReadLimit(cfg.MaxMessageSize)
	if t.readTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		})
	}
	if cfg.HeartbeatInterval > 0 {
		go t.heartbeat(cfg.HeartbeatInterval)
	}
	return t
}

// ReadMessage returns the next text or binary message.
func (t *WebSocketTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if t.readTimeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	}
	return data, nil
}

// WriteMessage sends data as one text frame.
func (t *WebSocketTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writeTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the connection. Safe to call more
// than once.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = t.conn.Close()
	})
	return err
}

// Conn returns the underlying connection.
func (t *WebSocketTransport) Conn() *websocket.Conn {
	return t.conn
}

func (t *WebSocketTransport) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(interval)
			if t.writeTimeout > 0 {
				deadline = time.Now().Add(t.writeTimeout)
			}
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}

// isNormalClose reports whether err is an expected end of a connection.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
