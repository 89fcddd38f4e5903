package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BlacK-CHi/tincanOpener/internal/core/log"
	"github.com/BlacK-CHi/tincanOpener/internal/core/metrics"
	"github.com/BlacK-CHi/tincanOpener/internal/socketio"
)

var errSendFailed = errors.New("send buffer full")

type fakeConn struct {
	id         string
	mu         sync.Mutex
	msgs       [][]byte
	fail       bool
	closed     bool
	closeDelay time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, done: make(chan struct{})}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed {
		return errSendFailed
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) Close() error {
	time.Sleep(f.closeDelay)
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) Done() <-chan struct{} { return f.done }

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) envelopes() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(f.msgs))
	for _, m := range f.msgs {
		var v map[string]interface{}
		if err := json.Unmarshal(m, &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeConn) ofType(typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, env := range f.envelopes() {
		if env["type"] == typ {
			out = append(out, env)
		}
	}
	return out
}

type emitCall struct {
	event   string
	payload string
}

type fakeUpstream struct {
	mu          sync.Mutex
	connectErr  error
	hold        chan struct{}
	delay       time.Duration
	offlineEmit error // 非空时未连接的 Emit 返回该错误
	connected   bool
	urls        []string
	headers     []http.Header
	emits       []emitCall
	disconnects int
	events      chan socketio.Event
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{events: make(chan socketio.Event, 32)}
}

func (f *fakeUpstream) Connect(ctx context.Context, url string, header http.Header) error {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.headers = append(f.headers, header.Clone())
	hold := f.hold
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeUpstream) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeUpstream) Emit(event string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offlineEmit != nil && !f.connected {
		return f.offlineEmit
	}
	f.emits = append(f.emits, emitCall{event: event, payload: string(b)})
	return nil
}

func (f *fakeUpstream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeUpstream) Events() <-chan socketio.Event { return f.events }

func (f *fakeUpstream) connectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func (f *fakeUpstream) disconnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeUpstream) emitted() []emitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emitCall(nil), f.emits...)
}

type harness struct {
	t       *testing.T
	ctrl    *Controller
	up      *fakeUpstream
	metrics *metrics.MemoryMetrics
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	up := newFakeUpstream()
	m := metrics.NewMemoryMetrics(context.Background())
	t.Cleanup(func() { _ = m.Close() })

	opts.Logger = log.NewTestLogger(t)
	opts.Metrics = m
	ctrl := NewController(up, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = ctrl.Run(ctx) }()
	<-ctrl.started
	t.Cleanup(func() {
		cancel()
		select {
		case <-ctrl.Done():
		case <-time.After(2 * time.Second):
			t.Error("controller did not stop")
		}
	})
	return &harness{t: t, ctrl: ctrl, up: up, metrics: m, cancel: cancel}
}

func (h *harness) attach(ids ...string) []*fakeConn {
	h.t.Helper()
	conns := make([]*fakeConn, 0, len(ids))
	for _, id := range ids {
		c := newFakeConn(id)
		require.NoError(h.t, h.ctrl.Attach(c))
		conns = append(conns, c)
	}
	return conns
}

func (h *harness) send(c Conn, msg string) {
	h.t.Helper()
	require.NoError(h.t, h.ctrl.Deliver(c, []byte(msg)))
}

// sendAsync 在后台投递，connect 等待期间测试可以继续操作
func (h *harness) sendAsync(c Conn, msg string) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.ctrl.Deliver(c, []byte(msg)) }()
	return errCh
}

func waitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("deliver did not return")
		return nil
	}
}

func (h *harness) state() State {
	h.t.Helper()
	st, err := h.ctrl.Status()
	require.NoError(h.t, err)
	return st.State
}

func (h *harness) waitState(want State) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.state() == want }, 2*time.Second, 5*time.Millisecond)
}

// connectWith 设置凭据并等待上游连接建立
func (h *harness) connectWith(c Conn) {
	h.t.Helper()
	h.send(c, `{"command":"set_token","access_token":"tok","socket_url":"https://ws.example.com/chat"}`)
	h.send(c, `{"command":"connect"}`)
	h.waitState(StateConnected)
}

func (h *harness) counter(name string, labels map[string]string) float64 {
	v, _ := h.metrics.GetCounter(name, labels)
	return v
}
