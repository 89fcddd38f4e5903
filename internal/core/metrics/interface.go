package metrics

import "net/http"

// Metrics 指标收集接口
// 内存实现用于单进程运行和测试，Prometheus 实现用于对外暴露
type Metrics interface {
	IncrementCounter(name string, labels map[string]string) error
	AddCounter(name string, value float64, labels map[string]string) error
	GetCounter(name string, labels map[string]string) (float64, error)

	SetGauge(name string, value float64, labels map[string]string) error
	GetGauge(name string, labels map[string]string) (float64, error)

	ObserveHistogram(name string, value float64, labels map[string]string) error

	Close() error
}

// HTTPExporter 可以通过 HTTP 暴露指标的实现
type HTTPExporter interface {
	Handler() http.Handler
}
