// Package socketio Socket.IO 客户端（仅 websocket 传输）
//
// 支持 Engine.IO v3 / Socket.IO v2（默认）与 Engine.IO v4 / Socket.IO v4，
// 会话意外断开后按有界指数退避自动重连。
package socketio

import (
	"encoding/json"
	"sync"
)

// EventType 上游事件类型
type EventType int

const (
	// EventConnected 会话（重新）建立
	EventConnected EventType = iota + 1
	// EventDisconnected 会话断开（可能随后重连）
	EventDisconnected
	// EventMessage 收到命名事件
	EventMessage
	// EventClosed 会话终止且不会再重连（服务端踢出或重连次数耗尽）
	EventClosed
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event 上游事件
type Event struct {
	Type EventType
	Name string          // 仅 EventMessage
	Data json.RawMessage // 事件第一个参数的原始 JSON，无参数时为 nil
	Err  error           // EventDisconnected / EventClosed 的原因
}

// eventPump 无界有序事件队列，生产者永不阻塞
type eventPump struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
	out    chan Event
	done   chan struct{}
	once   sync.Once
}

func newEventPump() *eventPump {
	p := &eventPump{
		signal: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *eventPump) push(ev Event) {
	p.mu.Lock()
	p.queue = append(p.queue, ev)
	p.mu.Unlock()
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *eventPump) run() {
	defer close(p.out)
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			select {
			case <-p.signal:
				continue
			case <-p.done:
				return
			}
		}
		ev := p.queue[0]
		p.queue[0] = Event{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case p.out <- ev:
		case <-p.done:
			return
		}
	}
}

func (p *eventPump) close() {
	p.once.Do(func() { close(p.done) })
}
