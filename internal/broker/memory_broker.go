package broker

import (
	"context"
	"sync"
	"time"

	"github.com/BlacK-CHi/tincanOpener/internal/core/dispose"
	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

// MemoryBroker 进程内消息代理，无持久化
type MemoryBroker struct {
	*dispose.Base
	subscribers map[string][]chan *Message
	mu          sync.RWMutex
	nodeID      string
	closed      bool
}

// NewMemoryBroker 创建内存消息代理
func NewMemoryBroker(parentCtx context.Context, nodeID string) *MemoryBroker {
	m := &MemoryBroker{
		Base:        dispose.New("MemoryBroker", parentCtx),
		subscribers: make(map[string][]chan *Message),
		nodeID:      nodeID,
	}
	m.AddCleanHandler(m.shutdown)
	corelog.Debugf("MemoryBroker initialized for %s", nodeID)
	return m
}

// Publish 发布消息，没有订阅者时直接丢弃
func (m *MemoryBroker) Publish(ctx context.Context, topic string, message []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return coreerrors.ErrServiceClosed
	}

	subscribers := m.subscribers[topic]
	if len(subscribers) == 0 {
		return nil
	}

	msg := &Message{
		Topic:     topic,
		Payload:   message,
		Timestamp: time.Now(),
		NodeID:    m.nodeID,
	}
	for _, ch := range subscribers {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			corelog.Warnf("MemoryBroker: subscriber channel full for topic %s, skipping", topic)
		}
	}
	return nil
}

// Subscribe 订阅主题
func (m *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, coreerrors.ErrServiceClosed
	}

	ch := make(chan *Message, subscriberBuffer)
	m.subscribers[topic] = append(m.subscribers[topic], ch)
	corelog.Debugf("MemoryBroker: new subscriber for topic %s (total: %d)", topic, len(m.subscribers[topic]))
	return ch, nil
}

// Unsubscribe 关闭该主题的所有订阅通道
func (m *MemoryBroker) Unsubscribe(ctx context.Context, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return coreerrors.ErrServiceClosed
	}

	subscribers, ok := m.subscribers[topic]
	if !ok {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "no subscribers for topic %s", topic)
	}
	for _, ch := range subscribers {
		close(ch)
	}
	delete(m.subscribers, topic)
	return nil
}

// Ping 内存代理未关闭即健康
func (m *MemoryBroker) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return coreerrors.ErrServiceClosed
	}
	return nil
}

func (m *MemoryBroker) shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, subscribers := range m.subscribers {
		for _, ch := range subscribers {
			close(ch)
		}
	}
	m.subscribers = make(map[string][]chan *Message)
	return nil
}

// SubscriberCount 主题订阅数
func (m *MemoryBroker) SubscriberCount(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[topic])
}
