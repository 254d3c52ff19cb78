package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gateprobe/config"
	"gateprobe/internal/auth"
	"gateprobe/internal/track"
	"gateprobe/logger"
	"gateprobe/models"
)

func testLogger() *logger.Log {
	l := logger.Logger()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() *config.Config {
	return &config.Config{
		Probe:    config.ProbeConfig{Name: "test", Version: "0", AccountLabel: "test"},
		Exchange: config.ExchangeConfig{WSURL: "wss://fake/ws/v4/", Symbol: "ALCH", Quantity: 50, TimeInForce: "gtc"},
		Timing:   config.TimingConfig{ReconnectDelayMs: 1, SettleDelayMs: 1, PingIntervalMs: 60000, ShutdownTimeoutMs: 1000},
		Display:  config.DisplayConfig{Epsilon: 0.001, WindowMs: 5000},
	}
}

// fakeConn is an in-memory Conn: frames pushed into inbound are yielded
// by ReadMessage, writes are recorded, Close unblocks readers.
type fakeConn struct {
	inbound chan []byte

	mu     sync.Mutex
	writes [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.inbound:
		return msg, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.writes = append(c.writes, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSessionAuthenticates(t *testing.T) {
	cfg := testConfig()
	conn := newFakeConn()
	dial := func(ctx context.Context, url string) (Conn, error) { return conn, nil }

	s := New(cfg, auth.Credentials{APIKey: "key", APISecret: "secret"}, track.New(), dial)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// The first write must be the signed login frame.
	waitUntil(t, time.Second, func() bool { return len(conn.written()) > 0 })
	var login models.AuthRequest
	if err := json.Unmarshal(conn.written()[0], &login); err != nil {
		t.Fatalf("decode login frame: %v", err)
	}
	if login.Channel != models.ChannelLogin || login.Event != models.EventAPI {
		t.Errorf("login frame = %s/%s", login.Channel, login.Event)
	}
	if login.Payload.APIKey != "key" || login.Payload.Signature == "" {
		t.Errorf("login payload incomplete: %+v", login.Payload)
	}
	if s.Authenticated() {
		t.Fatal("authenticated before any response")
	}

	conn.inbound <- []byte(`{
		"header": {"channel": "spot.login", "event": "api", "status": "200"},
		"data": {"result": {"uid": "12345"}}
	}`)
	waitUntil(t, time.Second, func() bool { return s.Authenticated() })
	if got := s.State(); got != Authenticated {
		t.Errorf("state = %v, want authenticated", got)
	}
}

func TestSessionAuthRejection(t *testing.T) {
	cfg := testConfig()
	conn := newFakeConn()
	dial := func(ctx context.Context, url string) (Conn, error) { return conn, nil }

	s := New(cfg, auth.Credentials{APIKey: "key", APISecret: "secret"}, track.New(), dial)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn.inbound <- []byte(`{"channel": "spot.login", "event": "api", "status": "403", "message": "bad signature"}`)

	// Give the handler time to run; the flag must stay false.
	time.Sleep(20 * time.Millisecond)
	if s.Authenticated() {
		t.Fatal("authenticated despite rejection status")
	}
}

func TestReconnectLiveness(t *testing.T) {
	cfg := testConfig()
	var attempts int64
	dial := func(ctx context.Context, url string) (Conn, error) {
		atomic.AddInt64(&attempts, 1)
		return nil, errors.New("connection refused")
	}

	s := New(cfg, auth.Credentials{APIKey: "key", APISecret: "secret"}, track.New(), dial)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// A transport that fails every attempt must never stop the session.
	waitUntil(t, time.Second, func() bool { return atomic.LoadInt64(&attempts) >= 5 })

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if got := s.State(); got != Closed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestSessionReconnectsAfterClose(t *testing.T) {
	cfg := testConfig()
	var mu sync.Mutex
	var conns []*fakeConn
	dial := func(ctx context.Context, url string) (Conn, error) {
		c := newFakeConn()
		mu.Lock()
		conns = append(conns, c)
		mu.Unlock()
		return c, nil
	}

	s := New(cfg, auth.Credentials{APIKey: "key", APISecret: "secret"}, track.New(), dial)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(conns) == 1
	})
	mu.Lock()
	first := conns[0]
	mu.Unlock()
	first.Close()

	// The supervisor must dial again after the fixed delay.
	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(conns) >= 2
	})
}

func TestRouterMalformedFrameDropped(t *testing.T) {
	tr := track.New()
	r := &Router{Label: "test", Tracker: tr, Log: testLogger()}

	r.Handle([]byte(`{not json`), time.Now())
	r.Handle([]byte(`"just a string"`), time.Now())
	if tr.Pending() != 0 {
		t.Errorf("pending = %d after garbage frames", tr.Pending())
	}
}

func TestRouterOrderAckFlow(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	tr := track.NewWithClock(func() time.Time { return t0 })
	r := &Router{Label: "test", Tracker: tr, Log: testLogger()}

	tr.Begin("rid-1")

	ack := []byte(`{
		"header": {"channel": "spot.order_place", "event": "api", "status": "unsolicited-ack", "request_id": "rid-1"},
		"result": {"id": "77"}
	}`)
	r.Handle(ack, t0.Add(5*time.Millisecond))
	if tr.Pending() != 1 {
		t.Fatalf("entry retired after single non-terminal ack")
	}

	final := []byte(`{
		"header": {"channel": "spot.order_place", "event": "api", "status": "201", "request_id": "rid-1"},
		"result": {"id": "77"}
	}`)
	r.Handle(final, t0.Add(47*time.Millisecond))
	if tr.Pending() != 0 {
		t.Fatalf("entry not retired after terminal ack")
	}

	// A late third ack must be ignored without panicking.
	r.Handle(final, t0.Add(90*time.Millisecond))
}

func TestRouterUnrecognizedIgnored(t *testing.T) {
	tr := track.New()
	r := &Router{Label: "test", Tracker: tr, Log: testLogger()}

	r.Handle([]byte(`{"channel": "spot.trades", "event": "update", "result": {}}`), time.Now())
	r.Handle([]byte(`{"channel": "spot.pong"}`), time.Now())
}
