package metrics

import (
	"context"
	"fmt"
)

// Type 指标后端类型
type Type string

const (
	TypeMemory     Type = "memory"
	TypePrometheus Type = "prometheus"
)

// New 按类型创建指标收集器
func New(ctx context.Context, t Type) (Metrics, error) {
	switch t {
	case TypeMemory, "":
		return NewMemoryMetrics(ctx), nil
	case TypePrometheus:
		return NewPrometheusMetrics(ctx), nil
	default:
		return nil, fmt.Errorf("unsupported metrics type: %s", t)
	}
}
