package socketio

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// session 一条已完成握手的 Engine.IO 连接
type session struct {
	conn         *websocket.Conn
	eio          int
	sid          string
	pingInterval time.Duration
	pingTimeout  time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (s *session) write(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	select {
	case <-s.done:
		return coreerrors.ErrNotConnected
	default:
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeConnectionError, "websocket write failed")
	}
	return nil
}

// close 发送关闭帧并关闭底层连接，可重复调用
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

// readDeadline 下一次读取的截止时间
func (s *session) readDeadline() time.Time {
	return time.Now().Add(s.pingInterval + s.pingTimeout)
}

// handshake 读取 open 包并完成默认命名空间的连接
func handshake(ctx context.Context, conn *websocket.Conn, eio int) (*session, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s := &session{conn: conn, eio: eio, done: make(chan struct{})}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, handshakeErr(ctx, err, "failed to read open packet")
	}
	if len(data) == 0 || data[0] != eioOpen {
		return nil, coreerrors.Newf(coreerrors.CodeHandshakeFailed, "expected open packet, got %q", truncate(data, 32))
	}
	var open openPayload
	if err := json.Unmarshal(data[1:], &open); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeHandshakeFailed, "invalid open packet")
	}
	s.sid = open.SID
	s.pingInterval = time.Duration(open.PingInterval) * time.Millisecond
	s.pingTimeout = time.Duration(open.PingTimeout) * time.Millisecond
	if s.pingInterval <= 0 {
		s.pingInterval = 25 * time.Second
	}
	if s.pingTimeout <= 0 {
		s.pingTimeout = 20 * time.Second
	}

	// v4 客户端需要主动请求连接默认命名空间，v2 服务端会自动发送 40
	if eio >= 4 {
		if err := conn.WriteMessage(websocket.TextMessage, packet{Type: sioConnect}.encode()); err != nil {
			return nil, handshakeErr(ctx, err, "failed to send namespace connect")
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, handshakeErr(ctx, err, "failed waiting for namespace connect")
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case eioPing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return nil, handshakeErr(ctx, err, "failed to answer ping")
			}
		case eioClose:
			return nil, coreerrors.New(coreerrors.CodeHandshakeFailed, "server closed the session during handshake")
		case eioMessage:
			p, err := decodePacket(data[1:])
			if err != nil {
				return nil, coreerrors.Wrap(err, coreerrors.CodeHandshakeFailed, "invalid packet during handshake")
			}
			if p.Namespace != defaultNamespace {
				continue
			}
			switch p.Type {
			case sioConnect:
				_ = conn.SetReadDeadline(time.Time{})
				return s, nil
			case sioError:
				return nil, coreerrors.New(coreerrors.CodeHandshakeFailed, errorMessage(p.Data))
			}
		}
	}
}

func handshakeErr(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return coreerrors.Wrap(ctx.Err(), coreerrors.CodeTimeout, "handshake timed out")
		}
		return coreerrors.Wrap(ctx.Err(), coreerrors.CodeConnectionError, "connect cancelled")
	}
	return coreerrors.Wrap(err, coreerrors.CodeHandshakeFailed, msg)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
