package bridge

import (
	"encoding/json"
	"fmt"
)

// EnvelopeType 下发给下游客户端的消息类型（封闭集合）
type EnvelopeType string

const (
	TypeTokenSet         EnvelopeType = "token_set"
	TypeConnectionStatus EnvelopeType = "connection_status"
	TypeSocketIOStatus   EnvelopeType = "socket_io_status"
	TypeError            EnvelopeType = "error"
	TypeSessionKey       EnvelopeType = "session_key"
	TypeSocketEvent      EnvelopeType = "socket_event"
)

const (
	StatusSuccess      = "success"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Envelope 下游消息，只使用与 Type 对应的字段
type Envelope struct {
	Type       EnvelopeType
	Status     string
	Message    string
	SessionKey string
	Event      string
	Data       json.RawMessage
}

// TokenSet {type: token_set, status: success}
func TokenSet() Envelope {
	return Envelope{Type: TypeTokenSet, Status: StatusSuccess}
}

// ConnectionStatus 上游会话状态（由命令驱动）
func ConnectionStatus(connected bool) Envelope {
	return Envelope{Type: TypeConnectionStatus, Status: statusOf(connected)}
}

// SocketIOStatus 上游传输层的连接/断开通知
func SocketIOStatus(connected bool) Envelope {
	return Envelope{Type: TypeSocketIOStatus, Status: statusOf(connected)}
}

// ErrorEnvelope {type: error, message}
func ErrorEnvelope(message string) Envelope {
	return Envelope{Type: TypeError, Message: message}
}

// SessionKey {type: session_key, session_key}
func SessionKey(key string) Envelope {
	return Envelope{Type: TypeSessionKey, SessionKey: key}
}

// SocketEvent {type: socket_event, event, data}，data 为 nil 时编码为 null
func SocketEvent(event string, data json.RawMessage) Envelope {
	return Envelope{Type: TypeSocketEvent, Event: event, Data: data}
}

func statusOf(connected bool) string {
	if connected {
		return StatusConnected
	}
	return StatusDisconnected
}

// MarshalJSON 按类型输出固定形状
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeTokenSet, TypeConnectionStatus, TypeSocketIOStatus:
		return json.Marshal(struct {
			Type   EnvelopeType `json:"type"`
			Status string       `json:"status"`
		}{e.Type, e.Status})
	case TypeError:
		return json.Marshal(struct {
			Type    EnvelopeType `json:"type"`
			Message string       `json:"message"`
		}{e.Type, e.Message})
	case TypeSessionKey:
		return json.Marshal(struct {
			Type       EnvelopeType `json:"type"`
			SessionKey string       `json:"session_key"`
		}{e.Type, e.SessionKey})
	case TypeSocketEvent:
		data := e.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		return json.Marshal(struct {
			Type  EnvelopeType    `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}{e.Type, e.Event, data})
	default:
		return nil, fmt.Errorf("unknown envelope type %q", e.Type)
	}
}
