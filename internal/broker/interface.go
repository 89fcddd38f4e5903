package broker

import (
	"context"
	"time"
)

// MessageBroker 消息代理接口
// 中继只发布（见 bridge.Mirror 的 Publisher）；Subscribe 供观察镜像主题的进程使用
type MessageBroker interface {
	// Publish 发布消息到指定主题
	Publish(ctx context.Context, topic string, message []byte) error

	// Subscribe 订阅主题，返回消息通道
	Subscribe(ctx context.Context, topic string) (<-chan *Message, error)

	// Unsubscribe 取消订阅并关闭对应通道
	Unsubscribe(ctx context.Context, topic string) error

	// Ping 健康检查
	Ping(ctx context.Context) error

	// Close 关闭连接
	Close() error
}

// Message 消息结构
type Message struct {
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"` // 发布者实例
}

// DefaultEnvelopeTopic 下游广播镜像的默认主题
const DefaultEnvelopeTopic = "tincan.envelopes"

// subscriberBuffer 订阅通道容量，满时丢弃
const subscriberBuffer = 100
