package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wscomms-dev/wscomms/pkg/dispatch"
)

// pipe is an in-memory connection. Closing either end closes both.
type pipe struct {
	once   sync.Once
	closed chan struct{}
}

type pipeEnd struct {
	p   *pipe
	in  chan []byte
	out chan []byte
}

func newPipe() (a, b *pipeEnd) {
	p := &pipe{closed: make(chan struct{})}
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	return &pipeEnd{p: p, in: ba, out: ab}, &pipeEnd{p: p, in: ab, out: ba}
}

func (e *pipeEnd) ReadMessage() ([]byte, error) {
	select {
	case data := <-e.in:
		return data, nil
	case <-e.p.closed:
		return nil, io.EOF
	}
}

func (e *pipeEnd) WriteMessage(data []byte) error {
	select {
	case <-e.p.closed:
		return io.ErrClosedPipe
	default:
	}
	select {
	case e.out <- data:
		return nil
	case <-e.p.closed:
		return io.ErrClosedPipe
	}
}

func (e *pipeEnd) Close() error {
	e.p.once.Do(func() { close(e.p.closed) })
	return nil
}

// serve runs s.Serve in the background and closes s at cleanup.
func serve(t *testing.T, s *Session) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(context.Background()) }()
	t.Cleanup(func() {
		s.Close()
		<-errCh
	})
	return errCh
}

func calcTable(t *testing.T) *dispatch.Table {
	t.Helper()
	tbl := dispatch.NewTable("calc")
	tbl.MustRegister("Add", dispatch.Func2(func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	}))
	return tbl
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.HeartbeatInterval = 0
	return cfg
}

func newWebSocketPair(t *testing.T) (client *websocket.Conn, server *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConnCh := make(chan *websocket.Conn, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		serverConnCh <- c
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	server = <-serverConnCh
	t.Cleanup(func() { _ = server.Close() })
	return client, server
}
