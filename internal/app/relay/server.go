// Package relay 组装中继进程：日志、指标、镜像、上游客户端、控制器、HTTP 服务和控制台
package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/BlacK-CHi/tincanOpener/internal/bridge"
	"github.com/BlacK-CHi/tincanOpener/internal/broker"
	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"
	"github.com/BlacK-CHi/tincanOpener/internal/console"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
	"github.com/BlacK-CHi/tincanOpener/internal/core/metrics"
	"github.com/BlacK-CHi/tincanOpener/internal/httpservice"
	"github.com/BlacK-CHi/tincanOpener/internal/httpservice/modules/websocket"
	"github.com/BlacK-CHi/tincanOpener/internal/socketio"
	"github.com/BlacK-CHi/tincanOpener/internal/utils"
)

// Server 中继进程
type Server struct {
	config     *schema.Root
	configPath string

	logger     corelog.Logger
	logCloser  io.Closer
	metrics    metrics.Metrics
	broker     broker.MessageBroker
	upstream   *socketio.Client
	controller *bridge.Controller
	http       *httpservice.HTTPService
	console    *console.Console
	manager    *utils.ServiceManager
}

// Option 构建选项
type Option func(*options)

type options struct {
	logOutput       bool
	signals         bool
	consoleOverride *bool
}

// WithoutLogInit 使用当前默认 Logger，不按配置重建（测试用）
func WithoutLogInit() Option {
	return func(o *options) { o.logOutput = false }
}

// WithoutSignals 不注册 SIGINT/SIGTERM 处理
func WithoutSignals() Option {
	return func(o *options) { o.signals = false }
}

// WithConsole 强制启用或禁用控制台
func WithConsole(enabled bool) Option {
	return func(o *options) { o.consoleOverride = &enabled }
}

// New 按配置创建中继，失败时已创建的资源会被释放
func New(ctx context.Context, cfg *schema.Root, configPath string, opts ...Option) (_ *Server, err error) {
	o := options{logOutput: true, signals: true}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		config:     cfg,
		configPath: configPath,
		manager: utils.NewServiceManager(&utils.ServiceConfig{
			GracefulShutdownTimeout: utils.DefaultServiceConfig().GracefulShutdownTimeout,
			EnableSignalHandling:    o.signals,
		}),
	}
	defer func() {
		if err != nil {
			s.closeResources()
		}
	}()

	if err = s.setupLogging(o.logOutput); err != nil {
		return nil, err
	}
	if err = s.setupMetrics(ctx); err != nil {
		return nil, err
	}
	mirror, err := s.setupMirror(ctx)
	if err != nil {
		return nil, err
	}

	s.upstream = socketio.NewClient(socketio.Options{
		EIOVersion:       cfg.Upstream.EIOVersion,
		HandshakeTimeout: cfg.Upstream.HandshakeTimeout,
		Reconnect: socketio.ReconnectPolicy{
			Enabled:       cfg.Upstream.Reconnection.Enabled,
			Attempts:      cfg.Upstream.Reconnection.Attempts,
			Delay:         cfg.Upstream.Reconnection.Delay,
			DelayMax:      cfg.Upstream.Reconnection.DelayMax,
			Randomization: cfg.Upstream.Reconnection.Randomization,
		},
		Logger: s.logger.WithField("component", "socketio"),
	})
	s.manager.AddCloser("upstream", s.upstream)

	s.controller = bridge.NewController(s.upstream, bridge.Options{
		Logger:  s.logger.WithField("component", "bridge"),
		Metrics: s.metrics,
		Mirror:  mirror,
	})
	s.manager.Go("relay", s.controller.Run)

	s.setupHTTP(ctx)
	if err = s.manager.RegisterService(&httpRunner{svc: s.http}); err != nil {
		return nil, err
	}

	consoleEnabled := cfg.Console.Enabled
	if o.consoleOverride != nil {
		consoleEnabled = *o.consoleOverride
	}
	if consoleEnabled {
		s.setupConsole()
	}
	return s, nil
}

func (s *Server) setupLogging(initFromConfig bool) error {
	if !initFromConfig {
		s.logger = corelog.Default()
		return nil
	}
	logger, closer, err := corelog.Init(corelog.Config{
		Level:   s.config.Log.Level,
		Format:  s.config.Log.Format,
		File:    s.config.Log.File,
		Console: s.config.Log.Console,
	})
	if err != nil {
		return err
	}
	s.logger = logger
	s.logCloser = closer
	s.manager.AddCloser("log", closer)
	return nil
}

func (s *Server) setupMetrics(ctx context.Context) error {
	t := metrics.TypeMemory
	if s.config.Metrics.Enabled {
		t = metrics.Type(s.config.Metrics.Type)
	}
	m, err := metrics.New(ctx, t)
	if err != nil {
		return err
	}
	s.metrics = m
	s.manager.AddCloser("metrics", m)
	return nil
}

func (s *Server) setupMirror(ctx context.Context) (*bridge.Mirror, error) {
	mc := s.config.Mirror
	if !mc.Enabled {
		return nil, nil
	}
	nodeID, _ := os.Hostname()
	b, err := broker.NewMessageBroker(ctx, &broker.BrokerConfig{
		Type:   broker.BrokerType(mc.Type),
		NodeID: nodeID,
		Redis: &broker.RedisBrokerConfig{
			Addr:     mc.Redis.Addr,
			Password: mc.Redis.Password.Value(),
			DB:       mc.Redis.DB,
		},
	})
	if err != nil {
		return nil, err
	}
	s.broker = b
	s.manager.AddCloser("broker", b)
	s.logger.Infof("mirroring envelopes to %s topic %q", mc.Type, mc.Channel)
	return bridge.NewMirror(b, mc.Channel, s.logger.WithField("component", "mirror")), nil
}

func (s *Server) setupHTTP(ctx context.Context) {
	metricsHandler := metricsHandlerOf(s.metrics)
	metricsPath := ""
	if s.config.Metrics.Enabled && metricsHandler != nil {
		metricsPath = s.config.Metrics.Path
	}

	s.http = httpservice.NewHTTPService(ctx, &httpservice.HTTPServiceConfig{
		ListenAddr:  net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port)),
		MetricsPath: metricsPath,
	}, s.controller, metricsHandler)
	s.http.RegisterModule(websocket.NewWebSocketModule(ctx, websocket.Config{
		Path:       s.config.Server.Path,
		SendBuffer: s.config.Server.SendBuffer,
	}, s.controller))
}

func (s *Server) setupConsole() {
	c, err := console.New(console.Options{
		Relay:      s.controller,
		Endpoint:   s.Endpoint(),
		ConfigFile: s.configPath,
		LogFile:    s.config.Log.File,
		Shutdown:   s.manager.TriggerShutdown,
	})
	if err != nil {
		s.logger.Infof("console disabled: %v", err)
		return
	}
	s.console = c
	if err := s.manager.RegisterService(c); err != nil {
		s.logger.Warnf("console disabled: %v", err)
		s.console = nil
	}
}

// Endpoint 下游客户端的连接地址
func (s *Server) Endpoint() string {
	host := s.config.Server.Host
	port := s.config.Server.Port
	if s.http != nil {
		if addr, ok := s.http.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, strconv.Itoa(port)), s.config.Server.Path)
}

// Controller 中继控制器
func (s *Server) Controller() *bridge.Controller {
	return s.controller
}

// Addr HTTP 实际监听地址，启动前为 nil
func (s *Server) Addr() net.Addr {
	return s.http.Addr()
}

// Run 启动所有组件并阻塞到关闭
func (s *Server) Run(ctx context.Context) error {
	return s.manager.Run(ctx)
}

// Shutdown 触发关闭，Run 随后返回
func (s *Server) Shutdown() {
	s.manager.TriggerShutdown()
}

func (s *Server) closeResources() {
	closers := []io.Closer{}
	if s.upstream != nil {
		closers = append(closers, s.upstream)
	}
	if s.broker != nil {
		closers = append(closers, s.broker)
	}
	if s.metrics != nil {
		closers = append(closers, s.metrics)
	}
	if s.logCloser != nil {
		closers = append(closers, s.logCloser)
	}
	for _, c := range closers {
		_ = c.Close()
	}
}

func metricsHandlerOf(m metrics.Metrics) httpHandler {
	if exp, ok := m.(metrics.HTTPExporter); ok {
		return exp.Handler()
	}
	return nil
}
