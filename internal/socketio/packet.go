package socketio

import (
	"bytes"
	"encoding/json"
	"strconv"

	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
)

// Engine.IO 包类型
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioUpgrade byte = '5'
	eioNoop    byte = '6'
)

// Socket.IO 包类型（位于 Engine.IO message 之内）
const (
	sioConnect     byte = '0'
	sioDisconnect  byte = '1'
	sioEvent       byte = '2'
	sioAck         byte = '3'
	sioError       byte = '4'
	sioBinaryEvent byte = '5'
	sioBinaryAck   byte = '6'
)

const defaultNamespace = "/"

// openPayload Engine.IO open 包内容
type openPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
}

// packet 一个 Socket.IO 包
type packet struct {
	Type      byte
	Namespace string
	AckID     int
	HasAck    bool
	Data      json.RawMessage
}

// encode 编码为 Engine.IO message 文本（带前导 '4'）
func (p packet) encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(eioMessage)
	buf.WriteByte(p.Type)
	if p.Namespace != "" && p.Namespace != defaultNamespace {
		buf.WriteString(p.Namespace)
		buf.WriteByte(',')
	}
	if p.HasAck {
		buf.WriteString(strconv.Itoa(p.AckID))
	}
	buf.Write(p.Data)
	return buf.Bytes()
}

// decodePacket 解析 Engine.IO message 的载荷（不含前导 '4'）
func decodePacket(payload []byte) (packet, error) {
	if len(payload) == 0 {
		return packet{}, coreerrors.New(coreerrors.CodeProtocolError, "empty socket.io packet")
	}
	p := packet{Type: payload[0], Namespace: defaultNamespace}
	if p.Type < sioConnect || p.Type > sioBinaryAck {
		return packet{}, coreerrors.Newf(coreerrors.CodeProtocolError, "unknown socket.io packet type %q", p.Type)
	}
	if p.Type == sioBinaryEvent || p.Type == sioBinaryAck {
		return packet{}, coreerrors.New(coreerrors.CodeProtocolError, "binary socket.io packets are not supported")
	}
	rest := payload[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			rest = nil
		} else {
			p.Namespace = string(rest[:end])
			rest = rest[end+1:]
		}
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(string(rest[:i]))
		if err != nil {
			return packet{}, coreerrors.Wrap(err, coreerrors.CodeProtocolError, "invalid ack id")
		}
		p.AckID, p.HasAck = id, true
		rest = rest[i:]
	}

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return packet{}, coreerrors.New(coreerrors.CodeProtocolError, "invalid socket.io packet data")
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// eventPacket 构造事件包 ["event", payload]
func eventPacket(event string, payload interface{}) (packet, error) {
	data, err := json.Marshal([]interface{}{event, payload})
	if err != nil {
		return packet{}, coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "failed to encode event payload")
	}
	return packet{Type: sioEvent, Namespace: defaultNamespace, Data: data}, nil
}

// eventArgs 拆分事件包数据为事件名和参数
func eventArgs(data json.RawMessage) (string, []json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return "", nil, coreerrors.Wrap(err, coreerrors.CodeProtocolError, "event data is not an array")
	}
	if len(items) == 0 {
		return "", nil, coreerrors.New(coreerrors.CodeProtocolError, "event without name")
	}
	var name string
	if err := json.Unmarshal(items[0], &name); err != nil {
		return "", nil, coreerrors.Wrap(err, coreerrors.CodeProtocolError, "event name is not a string")
	}
	return name, items[1:], nil
}

// errorMessage 提取 connect_error 的描述，兼容 v2 的字符串和 v4 的 {message}
func errorMessage(data json.RawMessage) string {
	if len(data) == 0 {
		return "connection refused by server"
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(data)
}
