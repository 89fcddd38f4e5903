package httpservice

// HTTPServiceConfig HTTP 服务配置
type HTTPServiceConfig struct {
	ListenAddr  string
	MetricsPath string // 为空时不注册指标端点
}
