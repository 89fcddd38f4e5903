// Package httpservice 统一的 HTTP 服务
// 各模块自行注册路由，服务负责监听、通用中间件和健康检查
package httpservice

import (
	"github.com/gorilla/mux"

	"github.com/BlacK-CHi/tincanOpener/internal/bridge"
)

// HTTPModule HTTP 服务模块接口
type HTTPModule interface {
	// Name 模块名称（用于日志）
	Name() string

	// RegisterRoutes 注册路由到 router
	RegisterRoutes(router *mux.Router)

	// Stop 停止模块，在 HTTP 服务关闭前调用
	Stop() error
}

// StatusProvider 中继状态来源（bridge.Controller 满足该接口）
type StatusProvider interface {
	Status() (bridge.Status, error)
}
