// Package websocket 下游 WebSocket 接入模块
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/BlacK-CHi/tincanOpener/internal/bridge"
	"github.com/BlacK-CHi/tincanOpener/internal/core/dispose"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

const bufferSize = 4096

// Relay 连接生命周期与消息的接收方（bridge.Controller 满足该接口）
type Relay interface {
	Attach(conn bridge.Conn) error
	Detach(conn bridge.Conn) error
	Deliver(conn bridge.Conn, raw []byte) error
}

// Config 模块配置
type Config struct {
	Path       string // 升级端点
	SendBuffer int    // 每连接发送队列长度
}

// WebSocketModule 下游接入模块
type WebSocketModule struct {
	*dispose.Base

	config   Config
	relay    Relay
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*ServerConn]struct{}
	wg    sync.WaitGroup
}

// NewWebSocketModule 创建模块
func NewWebSocketModule(ctx context.Context, config Config, relay Relay) *WebSocketModule {
	m := &WebSocketModule{
		Base:   dispose.New("WebSocketModule", ctx),
		config: config,
		relay:  relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[*ServerConn]struct{}),
	}
	m.AddCleanHandler(m.closeAll)
	return m
}

// Name 返回模块名称
func (m *WebSocketModule) Name() string {
	return "WebSocket"
}

// RegisterRoutes 注册升级端点；根路径上的升级请求也会被接受
func (m *WebSocketModule) RegisterRoutes(router *mux.Router) {
	router.HandleFunc(m.config.Path, m.handleWebSocket).Methods(http.MethodGet)
	if m.config.Path != "/" {
		router.HandleFunc("/", m.handleRoot).Methods(http.MethodGet, http.MethodHead)
	}
	corelog.Infof("WebSocketModule: registered route %s", m.config.Path)
}

// Stop 关闭所有连接并等待其协程退出
func (m *WebSocketModule) Stop() error {
	err := m.Close()
	m.wg.Wait()
	return err
}

// ConnCount 当前连接数
func (m *WebSocketModule) ConnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

func (m *WebSocketModule) handleRoot(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		m.handleWebSocket(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("tincanOpener relay is running; connect via WebSocket at " + m.config.Path + "\n"))
}

func (m *WebSocketModule) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if m.IsClosed() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		corelog.Warnf("WebSocketModule: upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	conn := newServerConn(ws, r.RemoteAddr, m.config.SendBuffer)
	if !m.track(conn) {
		_ = conn.Close()
		return
	}
	if err := m.relay.Attach(conn); err != nil {
		corelog.Warnf("WebSocketModule: rejecting %s: %v", r.RemoteAddr, err)
		m.untrack(conn)
		m.wg.Add(-2)
		_ = conn.Close()
		return
	}
	corelog.Debugf("WebSocketModule: connection %s from %s", conn.ID(), r.RemoteAddr)

	go func() {
		defer m.wg.Done()
		conn.writePump()
	}()
	go func() {
		defer m.wg.Done()
		conn.readPump(func(data []byte) {
			if err := m.relay.Deliver(conn, data); err != nil {
				corelog.Debugf("WebSocket[%s]: deliver: %v", conn.ID(), err)
			}
		})
		if err := m.relay.Detach(conn); err != nil {
			corelog.Debugf("WebSocket[%s]: detach: %v", conn.ID(), err)
		}
		m.untrack(conn)
		_ = conn.Close()
	}()
}

// track 登记连接并为其读写协程计数，模块关闭后返回 false
func (m *WebSocketModule) track(conn *ServerConn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IsClosed() {
		return false
	}
	m.conns[conn] = struct{}{}
	m.wg.Add(2)
	return true
}

func (m *WebSocketModule) untrack(conn *ServerConn) {
	m.mu.Lock()
	delete(m.conns, conn)
	m.mu.Unlock()
}

func (m *WebSocketModule) closeAll() error {
	m.mu.Lock()
	conns := make([]*ServerConn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}
