package bridge

import (
	"encoding/json"

	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
)

// 下游命令名
const (
	CmdSetToken   = "set_token"
	CmdConnect    = "connect"
	CmdDisconnect = "disconnect"
	CmdEmit       = "emit"
)

// Command 解析后的下游命令
type Command struct {
	Name        string
	AccessToken string
	SocketURL   string
	Event       string
	Payload     json.RawMessage // emit 未带 payload 时为 {}
}

var emptyObject = json.RawMessage("{}")

// ParseCommand 解析下游消息，非 JSON 对象返回 CodeInvalidParam 错误
// 字段按宽松规则读取：缺失或不是字符串的值视为空串
func ParseCommand(raw []byte) (Command, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Command{}, coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "message is not a JSON object")
	}
	if fields == nil {
		return Command{}, coreerrors.New(coreerrors.CodeInvalidParam, "message is not a JSON object")
	}

	cmd := Command{
		Name:        stringField(fields, "command"),
		AccessToken: stringField(fields, "access_token"),
		SocketURL:   stringField(fields, "socket_url"),
		Event:       stringField(fields, "event"),
	}
	if cmd.Name == CmdEmit {
		if p, ok := fields["payload"]; ok {
			cmd.Payload = p
		} else {
			cmd.Payload = emptyObject
		}
	}
	return cmd, nil
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
