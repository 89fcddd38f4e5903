package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

// ServiceConfig 服务配置
type ServiceConfig struct {
	// 优雅关闭超时时间
	GracefulShutdownTimeout time.Duration
	// 是否启用信号处理
	EnableSignalHandling bool
}

// DefaultServiceConfig 默认服务配置
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		GracefulShutdownTimeout: 10 * time.Second,
		EnableSignalHandling:    true,
	}
}

// Service 服务接口，按注册顺序启动，逆序停止
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type runner struct {
	name string
	fn   func(ctx context.Context) error
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// ServiceManager 服务管理器
//
// 关闭顺序：逆序停止服务，取消后台任务并等待其退出，最后逆序关闭资源。
type ServiceManager struct {
	config       *ServiceConfig
	services     []Service
	runners      []runner
	closers      []namedCloser
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.Mutex
}

// NewServiceManager 创建服务管理器
func NewServiceManager(config *ServiceConfig) *ServiceManager {
	if config == nil {
		config = DefaultServiceConfig()
	}
	return &ServiceManager{
		config:       config,
		shutdownChan: make(chan struct{}),
	}
}

// RegisterService 注册服务
func (sm *ServiceManager) RegisterService(service Service) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, s := range sm.services {
		if s.Name() == service.Name() {
			return fmt.Errorf("service %s already registered", service.Name())
		}
	}
	sm.services = append(sm.services, service)
	return nil
}

// Go 注册后台任务，Run 时启动；任务返回错误会触发整体关闭
func (sm *ServiceManager) Go(name string, fn func(ctx context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.runners = append(sm.runners, runner{name: name, fn: fn})
}

// AddCloser 注册在最后阶段关闭的资源
func (sm *ServiceManager) AddCloser(name string, c io.Closer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, namedCloser{name: name, closer: c})
}

// ListServices 列出服务名（注册顺序）
func (sm *ServiceManager) ListServices() []string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	names := make([]string, 0, len(sm.services))
	for _, s := range sm.services {
		names = append(names, s.Name())
	}
	return names
}

// TriggerShutdown 触发关闭，可重复调用
func (sm *ServiceManager) TriggerShutdown() {
	sm.shutdownOnce.Do(func() { close(sm.shutdownChan) })
}

// Run 启动所有服务和后台任务，阻塞到 ctx 结束、收到信号或调用 TriggerShutdown
func (sm *ServiceManager) Run(ctx context.Context) error {
	if sm.config.EnableSignalHandling {
		stop := sm.setupSignalHandling()
		defer stop()
	}

	sm.mu.Lock()
	services := append([]Service(nil), sm.services...)
	runners := append([]runner(nil), sm.runners...)
	sm.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	for _, r := range runners {
		r := r
		g.Go(func() error {
			err := r.fn(gctx)
			if err != nil {
				corelog.Errorf("%s exited: %v", r.name, err)
				sm.TriggerShutdown()
				return fmt.Errorf("%s: %w", r.name, err)
			}
			return nil
		})
	}

	var started []Service
	for _, s := range services {
		if err := s.Start(runCtx); err != nil {
			corelog.Errorf("failed to start %s: %v", s.Name(), err)
			stopErr := sm.shutdown(started, cancel, g)
			return errors.Join(fmt.Errorf("start %s: %w", s.Name(), err), stopErr)
		}
		corelog.Debugf("service started: %s", s.Name())
		started = append(started, s)
	}

	select {
	case <-ctx.Done():
		corelog.Infof("context cancelled, shutting down")
	case <-sm.shutdownChan:
		corelog.Infof("shutdown requested")
	}
	return sm.shutdown(started, cancel, g)
}

func (sm *ServiceManager) shutdown(started []Service, cancel context.CancelFunc, g *errgroup.Group) error {
	stopCtx, stopCancel := context.WithTimeout(context.Background(), sm.config.GracefulShutdownTimeout)
	defer stopCancel()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		s := started[i]
		if err := s.Stop(stopCtx); err != nil {
			corelog.Warnf("failed to stop %s: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("stop %s: %w", s.Name(), err))
		}
	}

	cancel()
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	sm.mu.Lock()
	closers := append([]namedCloser(nil), sm.closers...)
	sm.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].closer.Close(); err != nil {
			corelog.Warnf("failed to close %s: %v", closers[i].name, err)
			errs = append(errs, fmt.Errorf("close %s: %w", closers[i].name, err))
		}
	}

	corelog.Infof("shutdown complete")
	return errors.Join(errs...)
}

func (sm *ServiceManager) setupSignalHandling() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			corelog.Infof("received signal: %v", sig)
			sm.TriggerShutdown()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
