package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
)

// DeliveryFailure 一次广播中投递失败的连接
type DeliveryFailure struct {
	Conn Conn
	Err  error
}

// Registry 下游连接集合
// 非并发安全，只能在 Controller 的事件循环中使用
type Registry struct {
	conns map[Conn]struct{}
}

// NewRegistry 创建空集合
func NewRegistry() *Registry {
	return &Registry{conns: make(map[Conn]struct{})}
}

// Add 登记连接，返回是否新加入
func (r *Registry) Add(c Conn) bool {
	if _, ok := r.conns[c]; ok {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

// Remove 移除连接，返回是否确实移除
func (r *Registry) Remove(c Conn) bool {
	if _, ok := r.conns[c]; !ok {
		return false
	}
	delete(r.conns, c)
	return true
}

// Len 当前连接数
func (r *Registry) Len() int {
	return len(r.conns)
}

// Broadcast 把 env 编码一次后投递给所有连接
// 投递失败的连接在整轮结束后才移除，并作为结果返回
func (r *Registry) Broadcast(env Envelope) ([]byte, []DeliveryFailure, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("encode envelope: %w", err)
	}

	var failed []DeliveryFailure
	for c := range r.conns {
		if err := c.Send(data); err != nil {
			failed = append(failed, DeliveryFailure{Conn: c, Err: err})
		}
	}
	for _, f := range failed {
		delete(r.conns, f.Conn)
	}
	return data, failed, nil
}

// Drain 清空集合并返回原有连接，不关闭它们
func (r *Registry) Drain() []Conn {
	conns := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[Conn]struct{})
	return conns
}

// CloseAll 清空集合并并发关闭所有连接，可重复调用
func (r *Registry) CloseAll() []error {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)
	for _, c := range r.Drain() {
		wg.Add(1)
		go func(c Conn) {
			defer wg.Done()
			if err := c.Close(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close %s: %w", c.ID(), err))
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	return errs
}
