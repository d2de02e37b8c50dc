package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wscomms-dev/wscomms/pkg/discovery"
	"github.com/wscomms-dev/wscomms/pkg/dispatch"
	"github.com/wscomms-dev/wscomms/pkg/protocol"
	"github.com/wscomms-dev/wscomms/pkg/server"
	"github.com/wscomms-dev/wscomms/pkg/session"
)

var calculator = dispatch.ProviderFunc(func(t *dispatch.Table) error {
	return t.Register("Add", dispatch.Func2(func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	}))
})

var doubler = dispatch.ProviderFunc(func(t *dispatch.Table) error {
	return t.Register("Double", dispatch.Func1(func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	}))
})

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Label = "peer"
	cfg.Session.PollInterval = 10 * time.Millisecond
	cfg.Session.HeartbeatInterval = 0
	cfg.ReconnectDelay = 20 * time.Millisecond
	return cfg
}

func startHost(t *testing.T) (*server.Route, string) {
	t.Helper()
	cfg := server.DefaultServerConfig().WithLinkName("host")
	cfg.SessionConfig.PollInterval = 10 * time.Millisecond
	cfg.SessionConfig.HeartbeatInterval = 0
	cfg.Registry = prometheus.NewRegistry()

	srv := server.New(cfg)
	route, err := srv.AddRoute("/calc", calculator)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})
	return route, "ws" + strings.TrimPrefix(ts.URL, "http") + "/calc"
}

func TestDialAndCall(t *testing.T) {
	_, url := startHost(t)
	ctx := context.Background()

	c, err := Dial(ctx, url, nil, testConfig())
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, session.StateOpen, c.State())
	assert.Equal(t, url, c.URL())

	var sum int
	require.NoError(t, c.CallInto(ctx, &sum, "Add", 2, 3))
	assert.Equal(t, 5, sum)

	name, err := c.Call(ctx, protocol.IdentityQuery)
	require.NoError(t, err)
	text, ok := name.Text()
	require.True(t, ok)
	assert.Equal(t, "host", text)

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = c.Call(short, "Missing")
	assert.ErrorIs(t, err, context.DeadlineExceeded, "unknown commands get no reply")
	assert.Equal(t, 0, c.Session().Pending())
}

func TestHostCallsPeer(t *testing.T) {
	route, url := startHost(t)
	ctx := context.Background()

	c, err := Dial(ctx, url, doubler, testConfig())
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool { return route.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	host := route.Sessions()[0]

	var doubled int
	require.NoError(t, host.CallInto(ctx, &doubled, "Double", 21))
	assert.Equal(t, 42, doubled)

	label, err := host.Call(ctx, protocol.IdentityQuery)
	require.NoError(t, err)
	text, _ := label.Text()
	assert.Equal(t, "peer", text)
}

func TestDialFailure(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/calc"
	ts.Close()

	var mu sync.Mutex
	var transitions []string
	cfg := testConfig()
	cfg.OnStateChange = func(from, to session.State, _ error) {
		mu.Lock()
		transitions = append(transitions, from.String()+">"+to.String())
		mu.Unlock()
	}

	c, err := Dial(context.Background(), url, nil, cfg)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, session.ErrConnectionLost)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"connecting>closed"}, transitions)
}

func TestDialEmptyURL(t *testing.T) {
	_, err := Dial(context.Background(), "", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyURL)
}

func TestCloseFailsCalls(t *testing.T) {
	_, url := startHost(t)

	c, err := Dial(context.Background(), url, nil, testConfig())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, session.StateClosed, c.State())
	assert.NoError(t, c.Err())

	_, err = c.Call(context.Background(), "Add", 1, 2)
	assert.ErrorIs(t, err, session.ErrNotOpen)
	assert.ErrorIs(t, c.Notify("Add", 1, 2), session.ErrNotOpen)
}

func TestHostCloseEndsClient(t *testing.T) {
	route, url := startHost(t)

	c, err := Dial(context.Background(), url, nil, testConfig())
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool { return route.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, route.Sessions()[0].Close())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not observe host close")
	}
	assert.Equal(t, session.StateClosed, c.State())
}

func TestReconnect(t *testing.T) {
	route, url := startHost(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connected := make(chan *Client, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Reconnect(ctx, url, nil, testConfig(), func(c *Client) { connected <- c })
	}()

	first := <-connected
	require.Eventually(t, func() bool { return route.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, route.Sessions()[0].Close())

	var second *Client
	select {
	case second = <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect")
	}
	assert.NotSame(t, first, second)

	var sum int
	require.NoError(t, second.CallInto(ctx, &sum, "Add", 1, 1))
	assert.Equal(t, 2, sum)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Reconnect did not return")
	}
	<-second.Done()
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, time.Second, nextDelay(time.Second, 0))
	assert.Equal(t, 2*time.Second, nextDelay(time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextDelay(8*time.Second, 10*time.Second))
}

func TestDialDiscovered(t *testing.T) {
	_, url := startHost(t)
	ctx := context.Background()

	reg := discovery.NewMemoryRegistry()
	require.NoError(t, reg.Register(ctx, discovery.Endpoint{Link: "host", Route: "/calc", URL: url}, time.Minute))

	c, err := DialDiscovered(ctx, reg, "host", "/calc", nil, testConfig())
	require.NoError(t, err)
	defer c.Close()

	var sum int
	require.NoError(t, c.CallInto(ctx, &sum, "Add", 4, 5))
	assert.Equal(t, 9, sum)

	_, err = DialDiscovered(ctx, reg, "host", "/other", nil, testConfig())
	assert.ErrorIs(t, err, discovery.ErrNoEndpoints)
}
