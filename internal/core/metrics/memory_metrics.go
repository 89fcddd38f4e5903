package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BlacK-CHi/tincanOpener/internal/core/dispose"
)

// MemoryMetrics 内存指标实现
type MemoryMetrics struct {
	*dispose.Base

	mu       sync.RWMutex
	counters map[string]float64
	gauges   map[string]float64
	samples  map[string]int
}

// NewMemoryMetrics 创建内存指标收集器
func NewMemoryMetrics(parentCtx context.Context) *MemoryMetrics {
	return &MemoryMetrics{
		Base:     dispose.New("MemoryMetrics", parentCtx),
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
		samples:  make(map[string]int),
	}
}

// IncrementCounter 计数器加一
func (m *MemoryMetrics) IncrementCounter(name string, labels map[string]string) error {
	return m.AddCounter(name, 1, labels)
}

// AddCounter 计数器加指定值，负值被拒绝
func (m *MemoryMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	if value < 0 {
		return fmt.Errorf("counter %s cannot decrease", name)
	}
	key := buildKey(name, labels)
	m.mu.Lock()
	m.counters[key] += value
	m.mu.Unlock()
	return nil
}

// GetCounter 读取计数器，不存在时为 0
func (m *MemoryMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[buildKey(name, labels)], nil
}

// SetGauge 设置 Gauge
func (m *MemoryMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	m.mu.Lock()
	m.gauges[buildKey(name, labels)] = value
	m.mu.Unlock()
	return nil
}

// GetGauge 读取 Gauge，不存在时为 0
func (m *MemoryMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[buildKey(name, labels)], nil
}

// ObserveHistogram 内存实现只记录样本数
func (m *MemoryMetrics) ObserveHistogram(name string, value float64, labels map[string]string) error {
	m.mu.Lock()
	m.samples[buildKey(name, labels)]++
	m.mu.Unlock()
	return nil
}

// HistogramCount 已记录的样本数
func (m *MemoryMetrics) HistogramCount(name string, labels map[string]string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samples[buildKey(name, labels)]
}

// Close 关闭指标收集器
func (m *MemoryMetrics) Close() error {
	return m.Base.Close()
}

// buildKey 标签按键名排序，相同标签集合得到相同 key
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := sortedKeys(labels)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func sortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
