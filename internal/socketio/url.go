package socketio

import (
	"net/url"
	"strconv"
	"strings"

	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
)

// enginePath Engine.IO 服务端的固定挂载路径
const enginePath = "/socket.io/"

// BuildURL 把用户提供的 socket URL 转换为 WebSocket 传输地址
//   - http -> ws, https -> wss（ws/wss 保持不变）
//   - 路径固定为 /socket.io/，原有查询参数保留
//   - 追加 EIO=<version>&transport=websocket
func BuildURL(raw string, eio int) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", coreerrors.New(coreerrors.CodeInvalidParam, "socket URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "invalid socket URL")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", coreerrors.Newf(coreerrors.CodeInvalidParam, "unsupported socket URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", coreerrors.New(coreerrors.CodeInvalidParam, "socket URL has no host")
	}

	q := u.Query()
	q.Set("EIO", strconv.Itoa(eio))
	q.Set("transport", "websocket")
	u.Path = enginePath
	u.RawPath = ""
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}
