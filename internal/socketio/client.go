package socketio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// ReconnectPolicy 意外断开后的重连策略
type ReconnectPolicy struct {
	Enabled       bool
	Attempts      int // 0 表示不限次数
	Delay         time.Duration
	DelayMax      time.Duration
	Randomization float64
}

// Options 客户端选项
type Options struct {
	EIOVersion       int
	HandshakeTimeout time.Duration
	Reconnect        ReconnectPolicy
	Dialer           *websocket.Dialer
	Logger           corelog.Logger
}

// DefaultOptions 默认选项：EIO3，100 次重连，1s 起步，最长 5s
func DefaultOptions() Options {
	return Options{
		EIOVersion:       3,
		HandshakeTimeout: 20 * time.Second,
		Reconnect: ReconnectPolicy{
			Enabled:       true,
			Attempts:      100,
			Delay:         time.Second,
			DelayMax:      5 * time.Second,
			Randomization: 0.5,
		},
	}
}

// Client 单个上游 Socket.IO 会话
//
// Connect/Disconnect/Emit 可并发调用。会话生命周期内的所有通知都按发生顺序
// 投递到 Events()，投递不会阻塞调用方。
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	logger corelog.Logger
	pump   *eventPump

	mu         sync.Mutex
	sess       *session
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
}

// NewClient 创建客户端
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.EIOVersion == 0 {
		opts.EIOVersion = def.EIOVersion
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = def.HandshakeTimeout
	}
	if opts.Reconnect.Delay <= 0 {
		opts.Reconnect.Delay = def.Reconnect.Delay
	}
	if opts.Reconnect.DelayMax < opts.Reconnect.Delay {
		opts.Reconnect.DelayMax = opts.Reconnect.Delay
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = corelog.Default()
	}
	return &Client{
		opts:   opts,
		dialer: dialer,
		logger: logger.WithField("component", "socketio"),
		pump:   newEventPump(),
	}
}

// Events 上游事件流，Close 后关闭
func (c *Client) Events() <-chan Event {
	return c.pump.out
}

// IsConnected 当前是否有已握手的会话
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// Connect 建立会话，header 随 WebSocket 握手发送（例如 Authorization）
// 握手受 ctx 与 HandshakeTimeout 约束
func (c *Client) Connect(ctx context.Context, rawURL string, header http.Header) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return coreerrors.ErrServiceClosed
	}
	if c.lifeCancel != nil {
		c.mu.Unlock()
		return coreerrors.ErrAlreadyConnected
	}
	c.mu.Unlock()

	sess, err := c.dial(ctx, rawURL, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || c.lifeCancel != nil || ctx.Err() != nil {
		c.mu.Unlock()
		sess.close()
		if ctx.Err() != nil {
			return coreerrors.Wrap(ctx.Err(), coreerrors.CodeConnectionError, "connect cancelled")
		}
		return coreerrors.ErrAlreadyConnected
	}
	c.lifeCtx, c.lifeCancel = context.WithCancel(context.Background())
	c.install(sess, rawURL, header)
	c.mu.Unlock()

	c.logger.Infof("connected to %s (sid=%s, eio=%d)", rawURL, sess.sid, sess.eio)
	return nil
}

// Disconnect 主动断开会话并停止重连
func (c *Client) Disconnect() error {
	c.mu.Lock()
	sess := c.sess
	cancel := c.lifeCancel
	c.sess = nil
	c.lifeCancel = nil
	c.lifeCtx = nil
	c.mu.Unlock()

	if cancel == nil {
		return coreerrors.ErrNotConnected
	}
	cancel()
	if sess != nil {
		_ = sess.write(packet{Type: sioDisconnect}.encode())
		sess.close()
		c.pump.push(Event{Type: EventDisconnected})
	}
	c.logger.Infof("disconnected by client")
	return nil
}

// Emit 向上游发送事件
func (c *Client) Emit(event string, payload interface{}) error {
	p, err := eventPacket(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return coreerrors.ErrNotConnected
	}
	return sess.write(p.encode())
}

// Close 断开会话、等待后台协程退出并关闭事件流
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.Disconnect(); err != nil && !coreerrors.Is(err, coreerrors.ErrNotConnected) {
		c.logger.Warnf("disconnect on close failed: %v", err)
	}
	c.wg.Wait()
	c.pump.close()
	return nil
}

// dial 建立 WebSocket 连接并完成握手
func (c *Client) dial(ctx context.Context, rawURL string, header http.Header) (*session, error) {
	wsURL, err := BuildURL(rawURL, c.opts.EIOVersion)
	if err != nil {
		return nil, err
	}
	hctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(hctx, wsURL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, coreerrors.Wrap(err, coreerrors.CodeConnectionError, "websocket dial failed")
	}
	sess, err := handshake(hctx, conn, c.opts.EIOVersion)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return sess, nil
}

// install 记录当前会话、发出 EventConnected 并启动读循环和（EIO3）心跳
// 调用方持有 c.mu，保证与 Close 中的 wg.Wait 不交错
func (c *Client) install(sess *session, rawURL string, header http.Header) {
	c.sess = sess
	c.pump.push(Event{Type: EventConnected})
	c.wg.Add(1)
	go c.readLoop(c.lifeCtx, sess, rawURL, header)
	if sess.eio < 4 {
		c.wg.Add(1)
		go c.heartbeat(sess)
	}
}

// heartbeat EIO3 由客户端按 pingInterval 发送 ping
func (c *Client) heartbeat(sess *session) {
	defer c.wg.Done()
	ticker := time.NewTicker(sess.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.done:
			return
		case <-ticker.C:
			if err := sess.write([]byte{eioPing}); err != nil {
				c.logger.Debugf("ping failed: %v", err)
				_ = sess.conn.Close()
				return
			}
		}
	}
}

func (c *Client) readLoop(lifeCtx context.Context, sess *session, rawURL string, header http.Header) {
	defer c.wg.Done()
	for {
		_ = sess.conn.SetReadDeadline(sess.readDeadline())
		msgType, data, err := sess.conn.ReadMessage()
		if err != nil {
			c.lost(lifeCtx, sess, err, true, rawURL, header)
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		switch data[0] {
		case eioPing:
			if err := sess.write([]byte{eioPong}); err != nil {
				c.logger.Debugf("pong failed: %v", err)
			}
		case eioPong, eioNoop, eioUpgrade:
		case eioClose:
			c.lost(lifeCtx, sess, coreerrors.New(coreerrors.CodeConnectionError, "server closed the session"), false, rawURL, header)
			return
		case eioMessage:
			if stop := c.handlePacket(lifeCtx, sess, data[1:], rawURL, header); stop {
				return
			}
		default:
			c.logger.Debugf("ignoring engine.io packet %q", truncate(data, 32))
		}
	}
}

// handlePacket 处理一个 Socket.IO 包，返回 true 表示会话已结束
func (c *Client) handlePacket(lifeCtx context.Context, sess *session, payload []byte, rawURL string, header http.Header) bool {
	p, err := decodePacket(payload)
	if err != nil {
		c.logger.Warnf("dropping malformed packet: %v", err)
		return false
	}
	if p.Namespace != defaultNamespace {
		return false
	}

	switch p.Type {
	case sioEvent:
		name, args, err := eventArgs(p.Data)
		if err != nil {
			c.logger.Warnf("dropping malformed event: %v", err)
			return false
		}
		var first json.RawMessage
		if len(args) > 0 {
			first = args[0]
		}
		c.pump.push(Event{Type: EventMessage, Name: name, Data: first})
		if p.HasAck {
			ack := packet{Type: sioAck, AckID: p.AckID, HasAck: true, Data: json.RawMessage("[]")}
			if err := sess.write(ack.encode()); err != nil {
				c.logger.Debugf("ack %d failed: %v", p.AckID, err)
			}
		}
	case sioDisconnect:
		c.lost(lifeCtx, sess, coreerrors.New(coreerrors.CodeConnectionError, "server disconnected the namespace"), false, rawURL, header)
		return true
	case sioError:
		c.logger.Warnf("server error: %s", errorMessage(p.Data))
	case sioConnect, sioAck:
	}
	return false
}

// lost 处理非主动断开：通知、然后按策略重连或终止
func (c *Client) lost(lifeCtx context.Context, sess *session, cause error, retry bool, rawURL string, header http.Header) {
	c.mu.Lock()
	if c.sess != sess {
		// 已被 Disconnect 替换或清理
		c.mu.Unlock()
		sess.close()
		return
	}
	c.sess = nil
	reconnect := retry && c.opts.Reconnect.Enabled && !c.closed && lifeCtx.Err() == nil
	if !reconnect && c.lifeCancel != nil {
		c.lifeCancel()
		c.lifeCancel = nil
		c.lifeCtx = nil
	}
	c.mu.Unlock()

	sess.close()
	c.logger.Warnf("session lost: %v", cause)
	c.pump.push(Event{Type: EventDisconnected, Err: cause})

	if !reconnect {
		c.pump.push(Event{Type: EventClosed, Err: cause})
		return
	}
	c.wg.Add(1)
	go c.reconnect(lifeCtx, rawURL, header)
}

// newBackOff 按策略构造退避序列，总尝试次数等于 Attempts
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	policy := c.opts.Reconnect
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.Delay
	eb.MaxInterval = policy.DelayMax
	eb.RandomizationFactor = policy.Randomization
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if policy.Attempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(policy.Attempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (c *Client) reconnect(lifeCtx context.Context, rawURL string, header http.Header) {
	defer c.wg.Done()

	select {
	case <-time.After(c.opts.Reconnect.Delay):
	case <-lifeCtx.Done():
		return
	}

	attempt := 0
	var sess *session
	op := func() error {
		attempt++
		s, err := c.dial(lifeCtx, rawURL, header)
		if err != nil {
			if lifeCtx.Err() != nil {
				return backoff.Permanent(lifeCtx.Err())
			}
			return err
		}
		sess = s
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warnf("reconnect attempt %d failed: %v (next in %s)", attempt, err, next)
	}

	err := backoff.RetryNotify(op, c.newBackOff(lifeCtx), notify)
	if err == nil {
		c.mu.Lock()
		if lifeCtx.Err() != nil || c.closed {
			c.mu.Unlock()
			sess.close()
			return
		}
		c.install(sess, rawURL, header)
		c.mu.Unlock()

		c.logger.Infof("reconnected after %d attempt(s) (sid=%s)", attempt, sess.sid)
		return
	}

	if lifeCtx.Err() != nil {
		// Disconnect/Close 取消了重连
		return
	}

	c.mu.Lock()
	if c.lifeCancel != nil {
		c.lifeCancel()
		c.lifeCancel = nil
		c.lifeCtx = nil
	}
	c.mu.Unlock()

	c.logger.Errorf("giving up after %d reconnect attempt(s): %v", attempt, err)
	c.pump.push(Event{Type: EventClosed, Err: coreerrors.Wrap(err, coreerrors.CodeConnectionError, "reconnection failed")})
}
