package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 40 * time.Second
	pingPeriod     = 20 * time.Second
	maxMessageSize = 1 << 20
)

// ServerConn 下游 WebSocket 连接
// 发送走有界队列加独立写协程，Send 永不阻塞
type ServerConn struct {
	id         string
	conn       *websocket.Conn
	remoteAddr string
	send       chan []byte
	closeOnce  sync.Once
	closed     chan struct{}
}

func newServerConn(conn *websocket.Conn, remoteAddr string, buffer int) *ServerConn {
	if buffer <= 0 {
		buffer = 1
	}
	return &ServerConn{
		id:         uuid.NewString(),
		conn:       conn,
		remoteAddr: remoteAddr,
		send:       make(chan []byte, buffer),
		closed:     make(chan struct{}),
	}
}

// ID 连接标识
func (c *ServerConn) ID() string { return c.id }

// RemoteAddr 对端地址
func (c *ServerConn) RemoteAddr() string { return c.remoteAddr }

// Send 入队一条文本消息，队列满或已关闭时返回错误
func (c *ServerConn) Send(msg []byte) error {
	select {
	case <-c.closed:
		return coreerrors.Wrap(coreerrors.ErrServiceClosed, coreerrors.CodeDeliveryFailed, "connection closed")
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return coreerrors.Newf(coreerrors.CodeDeliveryFailed, "send queue full (%d)", cap(c.send))
	}
}

// Close 发送关闭帧并关闭底层连接，可重复调用
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// Done 连接关闭后关闭
func (c *ServerConn) Done() <-chan struct{} {
	return c.closed
}

// writePump 把队列中的消息写到连接，并定时发送 ping
func (c *ServerConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				corelog.Debugf("WebSocket[%s]: write failed: %v", c.id, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				corelog.Debugf("WebSocket[%s]: ping failed: %v", c.id, err)
				return
			}
		}
	}
}

// readPump 读取文本帧交给 handle，直到连接出错或关闭
func (c *ServerConn) readPump(handle func([]byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					corelog.Warnf("WebSocket[%s]: read error: %v", c.id, err)
				}
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			corelog.Debugf("WebSocket[%s]: ignoring non-text message type %d", c.id, messageType)
			continue
		}
		handle(data)
	}
}
