package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BlacK-CHi/tincanOpener/internal/core/dispose"
	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

const channelPrefix = "tincan:"

// RedisBrokerConfig Redis 连接配置
type RedisBrokerConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// RedisBroker 基于 Redis Pub/Sub 的消息代理
type RedisBroker struct {
	*dispose.Base
	client      *redis.Client
	pubsub      *redis.PubSub
	subscribers map[string]chan *Message
	mu          sync.RWMutex
	nodeID      string
	closed      bool
	loopOnce    sync.Once
}

// NewRedisBroker 连接 Redis 并在 5 秒内完成 PING
func NewRedisBroker(parentCtx context.Context, config *RedisBrokerConfig, nodeID string) (*RedisBroker, error) {
	if config == nil {
		return nil, fmt.Errorf("redis broker config is required")
	}
	addr := config.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: poolSize,
	})

	pingCtx, cancel := context.WithTimeout(parentCtx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, coreerrors.Wrapf(err, coreerrors.CodeConnectionError, "failed to connect to redis at %s", addr)
	}

	r := &RedisBroker{
		Base:        dispose.New("RedisBroker", parentCtx),
		client:      client,
		subscribers: make(map[string]chan *Message),
		nodeID:      nodeID,
	}
	r.pubsub = client.Subscribe(r.Ctx())
	r.AddCleanHandler(r.shutdown)

	corelog.Infof("RedisBroker connected to %s", addr)
	return r, nil
}

// Publish 发布带元数据的消息，频道名加 tincan: 前缀
func (r *RedisBroker) Publish(ctx context.Context, topic string, message []byte) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return coreerrors.ErrServiceClosed
	}

	data, err := json.Marshal(&Message{
		Topic:     topic,
		Payload:   message,
		Timestamp: time.Now(),
		NodeID:    r.nodeID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := r.client.Publish(ctx, channelPrefix+topic, data).Err(); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeConnectionError, "failed to publish to %s", topic)
	}
	return nil
}

// Subscribe 订阅主题，同一主题只允许一个本地订阅
func (r *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan *Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, coreerrors.ErrServiceClosed
	}
	if _, exists := r.subscribers[topic]; exists {
		return nil, coreerrors.Newf(coreerrors.CodeInvalidState, "already subscribed to topic %s", topic)
	}

	if err := r.pubsub.Subscribe(ctx, channelPrefix+topic); err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeConnectionError, "failed to subscribe to %s", topic)
	}
	ch := make(chan *Message, subscriberBuffer)
	r.subscribers[topic] = ch
	r.loopOnce.Do(func() { go r.receiveLoop() })
	return ch, nil
}

func (r *RedisBroker) receiveLoop() {
	for {
		msg, err := r.pubsub.ReceiveMessage(r.Ctx())
		if err != nil {
			if r.Ctx().Err() != nil || r.IsClosed() {
				return
			}
			corelog.Errorf("RedisBroker: failed to receive message: %v", err)
			select {
			case <-time.After(100 * time.Millisecond):
			case <-r.Ctx().Done():
				return
			}
			continue
		}

		var message Message
		if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
			corelog.Warnf("RedisBroker: dropping malformed message on %s: %v", msg.Channel, err)
			continue
		}

		r.mu.RLock()
		if ch, ok := r.subscribers[message.Topic]; ok {
			select {
			case ch <- &message:
			default:
				corelog.Warnf("RedisBroker: subscriber channel full for topic %s, dropping message", message.Topic)
			}
		}
		r.mu.RUnlock()
	}
}

// Unsubscribe 取消订阅并关闭通道
func (r *RedisBroker) Unsubscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return coreerrors.ErrServiceClosed
	}
	ch, ok := r.subscribers[topic]
	if !ok {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "not subscribed to topic %s", topic)
	}
	if err := r.pubsub.Unsubscribe(ctx, channelPrefix+topic); err != nil {
		corelog.Warnf("RedisBroker: failed to unsubscribe from %s: %v", topic, err)
	}
	close(ch)
	delete(r.subscribers, topic)
	return nil
}

// Ping 检查 Redis 连接
func (r *RedisBroker) Ping(ctx context.Context) error {
	if r.IsClosed() {
		return coreerrors.ErrServiceClosed
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisBroker) shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if err := r.pubsub.Close(); err != nil {
		corelog.Warnf("RedisBroker: failed to close pubsub: %v", err)
	}
	for _, ch := range r.subscribers {
		close(ch)
	}
	r.subscribers = make(map[string]chan *Message)
	return r.client.Close()
}
