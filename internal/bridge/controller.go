// Package bridge 下游 WebSocket 客户端与上游 Socket.IO 会话之间的中继
//
// Controller 用单个事件循环持有连接集合、凭据和上游状态，
// 所有对外方法都把操作投递到该循环中串行执行。
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
	"github.com/BlacK-CHi/tincanOpener/internal/core/log"
	"github.com/BlacK-CHi/tincanOpener/internal/core/metrics"
	"github.com/BlacK-CHi/tincanOpener/internal/socketio"
)

// Upstream 上游 Socket.IO 会话（socketio.Client 满足该接口）
type Upstream interface {
	Connect(ctx context.Context, url string, header http.Header) error
	Disconnect() error
	Emit(event string, payload interface{}) error
	IsConnected() bool
	Events() <-chan socketio.Event
}

// State 上游会话状态
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Credentials 上游认证信息
type Credentials struct {
	AccessToken string
	SocketURL   string
}

// Complete 两项均非空
func (c Credentials) Complete() bool {
	return c.AccessToken != "" && c.SocketURL != ""
}

// Status 控制器快照
type Status struct {
	State          State
	Clients        int
	CredentialsSet bool
	SocketURL      string
	Transport      bool // 上游传输层是否在线
}

// Options 控制器选项
type Options struct {
	Logger  log.Logger
	Metrics metrics.Metrics
	Mirror  *Mirror
}

// Controller 中继控制器
type Controller struct {
	upstream   Upstream
	normalizer *Normalizer
	logger     log.Logger
	metrics    metrics.Metrics
	mirror     *Mirror

	// 以下字段只在事件循环中访问
	registry      *Registry
	creds         Credentials
	state         State
	attempt       uint64
	cancelAttempt context.CancelFunc
	loopCtx       context.Context

	ops     chan func()
	started chan struct{}
	done    chan struct{}
	runOnce sync.Once
	wg      sync.WaitGroup
}

// NewController 创建控制器，调用 Run 后开始工作
func NewController(up Upstream, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewMemoryMetrics(context.Background())
	}
	return &Controller{
		upstream:   up,
		normalizer: NewNormalizer(logger),
		logger:     logger,
		metrics:    m,
		mirror:     opts.Mirror,
		registry:   NewRegistry(),
		state:      StateIdle,
		ops:        make(chan func()),
		started:    make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run 运行事件循环直到 ctx 结束
// 退出前关闭所有下游连接，再断开上游会话
func (c *Controller) Run(ctx context.Context) error {
	first := false
	c.runOnce.Do(func() { first = true })
	if !first {
		return coreerrors.New(coreerrors.CodeInvalidState, "controller already running")
	}

	c.loopCtx = ctx
	if c.mirror != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.mirror.Run(ctx)
		}()
	}
	close(c.started)

	events := c.upstream.Events()
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case op := <-c.ops:
			op()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handleUpstream(ev)
		}
	}
}

func (c *Controller) shutdown() {
	for _, err := range c.registry.CloseAll() {
		c.logger.Debugf("close downstream: %v", err)
	}
	c.updateConnGauge()
	c.disconnect()
	close(c.done)
	c.wg.Wait()
	c.logger.Infof("relay controller stopped")
}

// Done 事件循环退出后关闭
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// do 在事件循环中执行 fn 并等待完成
func (c *Controller) do(fn func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
	}
	select {
	case c.ops <- op:
	case <-c.done:
		return coreerrors.ErrServiceClosed
	}
	<-finished
	return nil
}

// submit 投递 fn 但不等待执行
func (c *Controller) submit(fn func()) {
	select {
	case c.ops <- fn:
	case <-c.done:
	}
}

// Attach 登记一个下游连接
func (c *Controller) Attach(conn Conn) error {
	return c.do(func() {
		if c.registry.Add(conn) {
			c.logger.Infof("client %s connected (%d total)", conn.ID(), c.registry.Len())
			c.updateConnGauge()
		}
	})
}

// Detach 移除下游连接；最后一个连接离开时断开上游
func (c *Controller) Detach(conn Conn) error {
	return c.do(func() { c.remove(conn) })
}

// Deliver 处理下游连接发来的一条消息
// connect 命令在本次连接尝试结束后才返回，同一连接的后续消息按到达顺序执行
func (c *Controller) Deliver(conn Conn, raw []byte) error {
	var pending <-chan struct{}
	if err := c.do(func() { pending = c.handleMessage(conn, raw) }); err != nil {
		return err
	}
	return c.await(pending, conn.Done())
}

// await 在事件循环之外等待连接尝试结束；abandon 关闭时提前返回
func (c *Controller) await(pending, abandon <-chan struct{}) error {
	if pending == nil {
		return nil
	}
	select {
	case <-pending:
		return nil
	case <-abandon:
		return nil
	case <-c.done:
		return coreerrors.ErrServiceClosed
	}
}

// SetCredentials 等同于 set_token 命令
func (c *Controller) SetCredentials(token, socketURL string) error {
	return c.do(func() { c.setToken(token, socketURL) })
}

// Connect 等同于 connect 命令，等待连接尝试结束
func (c *Controller) Connect() error {
	var pending <-chan struct{}
	if err := c.do(func() { pending = c.connect() }); err != nil {
		return err
	}
	return c.await(pending, nil)
}

// Disconnect 等同于 disconnect 命令
func (c *Controller) Disconnect() error {
	return c.do(c.disconnect)
}

// DisconnectAll 关闭所有下游连接并断开上游
func (c *Controller) DisconnectAll() error {
	return c.do(c.disconnectAll)
}

// Status 返回当前快照
func (c *Controller) Status() (Status, error) {
	var st Status
	err := c.do(func() {
		st = Status{
			State:          c.state,
			Clients:        c.registry.Len(),
			CredentialsSet: c.creds.Complete(),
			SocketURL:      c.creds.SocketURL,
			Transport:      c.upstream.IsConnected(),
		}
	})
	return st, err
}

func (c *Controller) remove(conn Conn) {
	if !c.registry.Remove(conn) {
		return
	}
	c.logger.Infof("client %s disconnected (%d remaining)", conn.ID(), c.registry.Len())
	c.updateConnGauge()
	if c.registry.Len() == 0 {
		c.logger.Infof("no clients left, disconnecting upstream")
		c.disconnect()
	}
}

func (c *Controller) handleMessage(conn Conn, raw []byte) (pending <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("panic while handling message from %s: %v", conn.ID(), r)
		}
	}()

	cmd, err := ParseCommand(raw)
	if err != nil {
		c.logger.Errorf("invalid message from %s: %v", conn.ID(), err)
		return
	}
	c.count(MetricCommandsTotal, map[string]string{"command": commandLabel(cmd.Name)})

	switch cmd.Name {
	case CmdSetToken:
		c.setToken(cmd.AccessToken, cmd.SocketURL)
	case CmdConnect:
		pending = c.connect()
	case CmdDisconnect:
		c.disconnect()
	case CmdEmit:
		c.emit(cmd.Event, cmd.Payload)
	default:
		c.logger.Warnf("unknown command %q from %s", cmd.Name, conn.ID())
	}
	return pending
}

func commandLabel(name string) string {
	switch name {
	case CmdSetToken, CmdConnect, CmdDisconnect, CmdEmit:
		return name
	default:
		return "unknown"
	}
}

func (c *Controller) setToken(token, socketURL string) {
	c.creds = Credentials{AccessToken: token, SocketURL: socketURL}
	c.logger.Infof("credentials updated (url=%q)", socketURL)
	c.broadcast(TokenSet())
}

func (c *Controller) emit(event string, payload json.RawMessage) {
	if event == "" {
		c.logger.Warnf("emit without event name ignored")
		return
	}
	if err := c.upstream.Emit(event, payload); err != nil {
		c.logger.Errorf("emit %s failed: %v", event, err)
	}
}

// connect 发起连接尝试，返回的通道在结果处理完成后关闭；未发起时返回 nil
func (c *Controller) connect() <-chan struct{} {
	if c.state == StateConnecting || c.state == StateConnected {
		c.broadcast(ErrorEnvelope(connectionError(coreerrors.ErrAlreadyConnected)))
		return nil
	}
	if !c.creds.Complete() {
		c.broadcast(ErrorEnvelope(coreerrors.ErrNotConfigured.Detail()))
		return nil
	}

	c.attempt++
	id := c.attempt
	ctx, cancel := context.WithCancel(c.loopCtx)
	c.cancelAttempt = cancel
	c.state = StateConnecting

	url := c.creds.SocketURL
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	c.logger.Infof("connecting to %s", url)

	started := time.Now()
	settled := make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.upstream.Connect(ctx, url, header)
		c.submit(func() {
			c.connectFinished(id, err, time.Since(started))
			close(settled)
		})
	}()
	return settled
}

func (c *Controller) connectFinished(id uint64, err error, took time.Duration) {
	if id != c.attempt || c.state != StateConnecting {
		if err == nil {
			c.logger.Infof("discarding stale upstream session")
			if derr := c.upstream.Disconnect(); derr != nil {
				c.logger.Debugf("disconnect stale session: %v", derr)
			}
		}
		return
	}
	c.cancelAttempt = nil

	if err != nil {
		c.state = StateDisconnected
		c.count(MetricUpstreamConnects, map[string]string{"result": "failure"})
		c.logger.Errorf("connection to %s failed after %s: %v", c.creds.SocketURL, took, err)
		c.broadcast(ErrorEnvelope(connectionError(err)))
		return
	}

	c.state = StateConnected
	c.count(MetricUpstreamConnects, map[string]string{"result": "success"})
	c.logger.Infof("connected to %s in %s", c.creds.SocketURL, took)
	c.broadcast(ConnectionStatus(true))
	if c.registry.Len() == 0 {
		c.logger.Infof("no clients left, disconnecting upstream")
		c.disconnect()
	}
}

func connectionError(err error) string {
	detail := err.Error()
	var e *coreerrors.Error
	if coreerrors.As(err, &e) {
		detail = e.Detail()
	}
	return fmt.Sprintf("connection error: %s", detail)
}

// disconnect 未连接时为空操作
func (c *Controller) disconnect() {
	switch c.state {
	case StateConnecting:
		if c.cancelAttempt != nil {
			c.cancelAttempt()
			c.cancelAttempt = nil
		}
		c.attempt++
		c.state = StateDisconnected
		c.logger.Infof("connection attempt cancelled")
	case StateConnected:
		if err := c.upstream.Disconnect(); err != nil {
			c.logger.Warnf("upstream disconnect: %v", err)
		}
		c.state = StateDisconnected
		c.logger.Infof("disconnected from upstream")
	default:
		return
	}
	c.broadcast(ConnectionStatus(false))
}

func (c *Controller) disconnectAll() {
	for _, conn := range c.registry.Drain() {
		c.closeAsync(conn)
	}
	c.updateConnGauge()
	c.disconnect()
}

// closeAsync 关闭连接可能要写关闭帧，放到事件循环之外执行
func (c *Controller) closeAsync(conn Conn) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := conn.Close(); err != nil {
			c.logger.Debugf("close downstream %s: %v", conn.ID(), err)
		}
	}()
}

func (c *Controller) handleUpstream(ev socketio.Event) {
	c.count(MetricUpstreamEvents, map[string]string{"event": ev.Type.String()})
	switch ev.Type {
	case socketio.EventConnected:
		c.broadcast(SocketIOStatus(true))
	case socketio.EventDisconnected:
		if ev.Err != nil {
			c.logger.Warnf("upstream transport lost: %v", ev.Err)
		}
		c.broadcast(SocketIOStatus(false))
	case socketio.EventMessage:
		for _, env := range c.normalizer.Normalize(ev.Name, ev.Data) {
			c.broadcast(env)
		}
	case socketio.EventClosed:
		c.logger.Warnf("upstream session closed: %v", ev.Err)
		if c.state == StateConnected {
			c.state = StateDisconnected
			c.broadcast(ConnectionStatus(false))
		}
	}
}

// broadcast 投递给所有连接，失败的连接被关闭并移除
func (c *Controller) broadcast(env Envelope) {
	data, failed, err := c.registry.Broadcast(env)
	if err != nil {
		c.logger.Errorf("broadcast %s: %v", env.Type, err)
		return
	}
	c.count(MetricEnvelopesTotal, map[string]string{"type": string(env.Type)})
	if c.mirror != nil {
		c.mirror.Enqueue(data)
	}
	if len(failed) == 0 {
		return
	}

	for _, f := range failed {
		c.logger.Warnf("dropping client %s: %v", f.Conn.ID(), f.Err)
		c.count(MetricDeliveryFailures, nil)
		c.closeAsync(f.Conn)
	}
	c.updateConnGauge()
	if c.registry.Len() == 0 {
		c.disconnect()
	}
}
