package bridge

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

// EventKind 上游事件分类
type EventKind int

const (
	KindOther EventKind = iota
	KindSystem
	KindChat
	KindDonation
	KindSubscription
)

func (k EventKind) String() string {
	switch k {
	case KindSystem:
		return "SYSTEM"
	case KindChat:
		return "CHAT"
	case KindDonation:
		return "DONATION"
	case KindSubscription:
		return "SUBSCRIPTION"
	default:
		return "OTHER"
	}
}

// ClassifyEvent 按事件名（区分大小写）分类
func ClassifyEvent(name string) EventKind {
	switch name {
	case "SYSTEM":
		return KindSystem
	case "CHAT":
		return KindChat
	case "DONATION":
		return KindDonation
	case "SUBSCRIPTION":
		return KindSubscription
	default:
		return KindOther
	}
}

const chatPreviewRunes = 100

// Normalizer 把上游事件转换为下游 Envelope
type Normalizer struct {
	logger log.Logger
}

// NewNormalizer 创建 Normalizer
func NewNormalizer(logger log.Logger) *Normalizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize 返回需要按顺序广播的 Envelope
//
// 具名事件的字符串载荷会尝试按 JSON 解析，失败时保留原字符串；
// 其他事件的载荷总是规整为 JSON 对象，非对象值放入 {"raw": ...}。
// SYSTEM 的 connected 通知携带 sessionKey 时，先发 session_key 再发事件本身。
func (n *Normalizer) Normalize(name string, raw json.RawMessage) []Envelope {
	kind := ClassifyEvent(name)
	if kind == KindOther {
		return []Envelope{SocketEvent(name, n.catchAll(name, raw))}
	}

	data := n.decodeNamed(kind, raw)
	if kind == KindChat {
		n.logger.Debugf("chat message: %s", preview(raw))
	}

	out := make([]Envelope, 0, 2)
	if kind == KindSystem {
		if key := connectedSessionKey(data); key != "" {
			n.logger.Infof("received session key")
			out = append(out, SessionKey(key))
		}
	}
	return append(out, SocketEvent(name, data))
}

func (n *Normalizer) decodeNamed(kind EventKind, raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	s, ok := asString(raw)
	if !ok {
		return raw
	}
	if decoded := []byte(s); json.Valid(decoded) {
		return json.RawMessage(decoded)
	}
	if kind == KindSystem {
		n.logger.Warnf("SYSTEM payload is not valid JSON, forwarding as string")
	}
	return raw
}

func (n *Normalizer) catchAll(name string, raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return emptyObject
	}
	value := raw
	if s, ok := asString(raw); ok {
		if !json.Valid([]byte(s)) {
			n.logger.Debugf("event %s: payload is not valid JSON, wrapping as raw", name)
			return rawObject(s)
		}
		value = json.RawMessage(s)
	}
	if firstByte(value) == '{' {
		return value
	}
	// 非对象值取紧凑 JSON 文本，如 [1,2]、true、null
	return rawObject(stringify(value))
}

// connectedSessionKey 读取 {"type":"connected","data":{"sessionKey":"..."}}
func connectedSessionKey(data json.RawMessage) string {
	if firstByte(data) != '{' {
		return ""
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ""
	}
	if t, _ := asString(msg["type"]); t != "connected" {
		return ""
	}
	inner := msg["data"]
	if firstByte(inner) != '{' {
		return ""
	}
	var session map[string]json.RawMessage
	if err := json.Unmarshal(inner, &session); err != nil {
		return ""
	}
	key, _ := asString(session["sessionKey"])
	return key
}

func asString(raw json.RawMessage) (string, bool) {
	if firstByte(raw) != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// stringify 字符串取其内容，其他值取紧凑 JSON 文本
func stringify(raw json.RawMessage) string {
	if s, ok := asString(raw); ok {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func rawObject(s string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"raw": s})
	return b
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func preview(raw json.RawMessage) string {
	text := string(raw)
	if s, ok := asString(raw); ok {
		text = s
	}
	if utf8.RuneCountInString(text) <= chatPreviewRunes {
		return text
	}
	return string([]rune(text)[:chatPreviewRunes])
}
