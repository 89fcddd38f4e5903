package bridge

import (
	"context"

	"github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

const defaultMirrorQueue = 256

// Publisher 消息发布端（broker.MessageBroker 满足该接口）
type Publisher interface {
	Publish(ctx context.Context, topic string, message []byte) error
}

// Mirror 把广播过的 Envelope 异步发布到消息代理
// 队列满时丢弃，不影响下游广播
type Mirror struct {
	publisher Publisher
	topic     string
	queue     chan []byte
	logger    log.Logger
}

// NewMirror 创建 Mirror，需要调用 Run 才会真正发布
func NewMirror(p Publisher, topic string, logger log.Logger) *Mirror {
	if logger == nil {
		logger = log.Default()
	}
	return &Mirror{
		publisher: p,
		topic:     topic,
		queue:     make(chan []byte, defaultMirrorQueue),
		logger:    logger,
	}
}

// Topic 发布主题
func (m *Mirror) Topic() string {
	return m.topic
}

// Enqueue 非阻塞入队
func (m *Mirror) Enqueue(data []byte) bool {
	select {
	case m.queue <- data:
		return true
	default:
		m.logger.Warnf("mirror queue full, dropping envelope")
		return false
	}
}

// Run 持续发布直到 ctx 结束
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-m.queue:
			if err := m.publisher.Publish(ctx, m.topic, data); err != nil {
				m.logger.Warnf("mirror publish to %s failed: %v", m.topic, err)
			}
		}
	}
}
