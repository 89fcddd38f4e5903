// Package dispose 带上下文的资源生命周期基类
//
// 资源在父上下文取消或显式 Close 时执行一次清理回调，
// 之后 IsClosed 返回 true，Ctx 已取消。
package dispose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

// CleanupError 单个清理回调的错误
type CleanupError struct {
	Resource string
	Index    int
	Err      error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s handler[%d] failed: %v", e.Resource, e.Index, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// Base 资源基类，嵌入到需要生命周期管理的组件中
type Base struct {
	name     string
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	closed   bool
	handlers []func() error
	result   error
}

// New 创建资源基类，父上下文取消时自动清理
func New(name string, parent context.Context) *Base {
	if parent == nil {
		parent = context.Background()
	}
	b := &Base{name: name}
	b.ctx, b.cancel = context.WithCancel(parent)
	go func() {
		<-b.ctx.Done()
		if err := b.Close(); err != nil {
			corelog.Errorf("%s: cleanup after context cancel failed: %v", b.name, err)
		}
	}()
	return b
}

// Name 资源名称
func (b *Base) Name() string { return b.name }

// Ctx 资源上下文，关闭后已取消
func (b *Base) Ctx() context.Context { return b.ctx }

// IsClosed 是否已关闭
func (b *Base) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// AddCleanHandler 注册清理回调，按注册顺序执行
// 已关闭的资源会立即执行该回调
func (b *Base) AddCleanHandler(fn func() error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		if err := fn(); err != nil {
			corelog.Errorf("%s: late cleanup handler failed: %v", b.name, err)
		}
		return
	}
	b.handlers = append(b.handlers, fn)
	b.mu.Unlock()
}

// Close 取消上下文并执行清理回调，重复调用返回首次结果
func (b *Base) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return b.result
	}
	b.closed = true
	handlers := b.handlers
	b.handlers = nil
	b.mu.Unlock()

	b.cancel()

	var errs []error
	for i, fn := range handlers {
		if err := fn(); err != nil {
			errs = append(errs, &CleanupError{Resource: b.name, Index: i, Err: err})
		}
	}
	result := errors.Join(errs...)

	b.mu.Lock()
	b.result = result
	b.mu.Unlock()

	corelog.Debugf("%s: resources cleaned up", b.name)
	return result
}
