package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"
	"github.com/BlacK-CHi/tincanOpener/internal/config/source"
	"github.com/BlacK-CHi/tincanOpener/internal/httpservice"
)

func testConfig() *schema.Root {
	cfg := source.Defaults()
	cfg.Server.Port = 0
	cfg.Log.File = ""
	cfg.Console.Enabled = false
	return &cfg
}

func newTestServer(t *testing.T, cfg *schema.Root) *Server {
	t.Helper()
	s, err := New(context.Background(), cfg, "", WithoutLogInit(), WithoutSignals(), WithConsole(false))
	require.NoError(t, err)
	return s
}

// startServer 后台运行并等待 HTTP 监听就绪
func startServer(t *testing.T, s *Server) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return s.Addr() != nil }, 3*time.Second, 10*time.Millisecond)
	return errCh
}

func stopServer(t *testing.T, s *Server, errCh <-chan error) {
	t.Helper()
	s.Shutdown()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func httpURL(s *Server, path string) string {
	return "http://" + s.Addr().String() + path
}

func TestServer_EndpointUsesBoundPort(t *testing.T) {
	s := newTestServer(t, testConfig())
	assert.Equal(t, "ws://127.0.0.1:0/ws", s.Endpoint())

	errCh := startServer(t, s)
	defer stopServer(t, s, errCh)

	assert.Equal(t, "ws://"+s.Addr().String()+"/ws", s.Endpoint())
}

func TestServer_RelaysCommandsOverWebSocket(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Type = schema.MetricsTypePrometheus
	cfg.Mirror.Enabled = true
	cfg.Mirror.Type = schema.MirrorTypeMemory

	s := newTestServer(t, cfg)
	require.NotNil(t, s.broker)
	mirrored, err := s.broker.Subscribe(context.Background(), cfg.Mirror.Channel)
	require.NoError(t, err)

	errCh := startServer(t, s)
	defer stopServer(t, s, errCh)

	ws, _, err := websocket.DefaultDialer.Dial(s.Endpoint(), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool {
		st, err := s.Controller().Status()
		return err == nil && st.Clients == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"command":"set_token","access_token":"tok","socket_url":"https://example.com"}`)))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"token_set","status":"success"}`, string(msg))

	select {
	case m := <-mirrored:
		assert.JSONEq(t, string(msg), string(m.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("envelope was not mirrored")
	}

	resp, err := http.Get(httpURL(s, "/healthz"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health httpservice.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, 1, health.Clients)
	assert.True(t, health.CredentialsSet)

	assert.Eventually(t, func() bool {
		r, err := http.Get(httpURL(s, cfg.Metrics.Path))
		if err != nil {
			return false
		}
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		return strings.Contains(string(body), `relay_envelopes_total{type="token_set"} 1`)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServer_MetricsPathHiddenForMemoryBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Type = schema.MetricsTypeMemory

	s := newTestServer(t, cfg)
	errCh := startServer(t, s)
	defer stopServer(t, s, errCh)

	resp, err := http.Get(httpURL(s, cfg.Metrics.Path))
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ShutdownClosesDownstreamClients(t *testing.T) {
	s := newTestServer(t, testConfig())
	errCh := startServer(t, s)

	ws, _, err := websocket.DefaultDialer.Dial(s.Endpoint(), nil)
	require.NoError(t, err)
	defer ws.Close()

	stopServer(t, s, errCh)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	assert.Error(t, err)
}

func TestServer_StartFailsWhenPortTaken(t *testing.T) {
	first := newTestServer(t, testConfig())
	errCh := startServer(t, first)
	defer stopServer(t, first, errCh)

	cfg := testConfig()
	cfg.Server.Port = first.Addr().(*net.TCPAddr).Port
	second := newTestServer(t, cfg)
	assert.Error(t, second.Run(context.Background()))
}

func TestNew_RejectsUnknownMetricsType(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Type = "statsd"

	_, err := New(context.Background(), cfg, "", WithoutLogInit(), WithoutSignals(), WithConsole(false))
	assert.Error(t, err)
}

func TestServer_DisplayStartupBanner(t *testing.T) {
	cfg := testConfig()
	cfg.Mirror.Enabled = true
	s := newTestServer(t, cfg)

	var buf bytes.Buffer
	s.DisplayStartupBanner(&buf)
	out := buf.String()
	assert.Contains(t, out, "WebSocket-Socket.IO")
	assert.Contains(t, out, s.Endpoint())
	assert.Contains(t, out, cfg.Mirror.Channel)
	assert.Contains(t, out, "(defaults)")

	s.Shutdown()
	require.NoError(t, s.Run(context.Background()))
}
