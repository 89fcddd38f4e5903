package broker

import (
	"context"
	"fmt"
)

// BrokerType 消息代理类型
type BrokerType string

const (
	BrokerTypeMemory BrokerType = "memory"
	BrokerTypeRedis  BrokerType = "redis"
)

// BrokerConfig 消息代理配置
type BrokerConfig struct {
	Type   BrokerType
	NodeID string
	Redis  *RedisBrokerConfig
}

// NewMessageBroker 按类型创建消息代理
func NewMessageBroker(ctx context.Context, config *BrokerConfig) (MessageBroker, error) {
	if config == nil {
		return nil, fmt.Errorf("broker config is required")
	}

	switch config.Type {
	case BrokerTypeMemory, "":
		return NewMemoryBroker(ctx, config.NodeID), nil
	case BrokerTypeRedis:
		if config.Redis == nil {
			return nil, fmt.Errorf("redis config is required for redis broker")
		}
		return NewRedisBroker(ctx, config.Redis, config.NodeID)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", config.Type)
	}
}
