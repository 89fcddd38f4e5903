package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/BlacK-CHi/tincanOpener/internal/core/dispose"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// PrometheusMetrics Prometheus 指标实现
// 向量在首次使用时按标签键集合注册，同名指标之后必须使用相同的标签键
type PrometheusMetrics struct {
	*dispose.Base

	registry   *prometheus.Registry
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labelKeys  map[string][]string
}

// NewPrometheusMetrics 创建使用独立 Registry 的收集器
func NewPrometheusMetrics(parentCtx context.Context) *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusMetrics{
		Base:       dispose.New("PrometheusMetrics", parentCtx),
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labelKeys:  make(map[string][]string),
	}
}

// Registry 底层 Registry
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler /metrics 处理器
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusMetrics) checkLabels(name string, labels map[string]string) ([]string, error) {
	keys := sortedKeys(labels)
	if known, ok := p.labelKeys[name]; ok {
		if strings.Join(known, ",") != strings.Join(keys, ",") {
			return nil, fmt.Errorf("metric %s registered with labels %v, got %v", name, known, keys)
		}
		return known, nil
	}
	p.labelKeys[name] = keys
	return keys, nil
}

func (p *PrometheusMetrics) counter(name string, labels map[string]string) (prometheus.Counter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys, err := p.checkLabels(name, labels)
	if err != nil {
		return nil, err
	}
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, keys)
		if err := p.registry.Register(vec); err != nil {
			return nil, fmt.Errorf("register counter %s: %w", name, err)
		}
		p.counters[name] = vec
	}
	return vec.GetMetricWith(prometheus.Labels(labels))
}

func (p *PrometheusMetrics) gauge(name string, labels map[string]string) (prometheus.Gauge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys, err := p.checkLabels(name, labels)
	if err != nil {
		return nil, err
	}
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, keys)
		if err := p.registry.Register(vec); err != nil {
			return nil, fmt.Errorf("register gauge %s: %w", name, err)
		}
		p.gauges[name] = vec
	}
	return vec.GetMetricWith(prometheus.Labels(labels))
}

// IncrementCounter 计数器加一
func (p *PrometheusMetrics) IncrementCounter(name string, labels map[string]string) error {
	return p.AddCounter(name, 1, labels)
}

// AddCounter 计数器加指定值
func (p *PrometheusMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	if value < 0 {
		return fmt.Errorf("counter %s cannot decrease", name)
	}
	c, err := p.counter(name, labels)
	if err != nil {
		return err
	}
	c.Add(value)
	return nil
}

// GetCounter 读取计数器当前值
func (p *PrometheusMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	c, err := p.counter(name, labels)
	if err != nil {
		return 0, err
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}

// SetGauge 设置 Gauge
func (p *PrometheusMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	g, err := p.gauge(name, labels)
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

// GetGauge 读取 Gauge 当前值
func (p *PrometheusMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	g, err := p.gauge(name, labels)
	if err != nil {
		return 0, err
	}
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0, err
	}
	return m.GetGauge().GetValue(), nil
}

// ObserveHistogram 记录样本，使用默认桶
func (p *PrometheusMetrics) ObserveHistogram(name string, value float64, labels map[string]string) error {
	p.mu.Lock()
	keys, err := p.checkLabels(name, labels)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, keys)
		if err := p.registry.Register(vec); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("register histogram %s: %w", name, err)
		}
		p.histograms[name] = vec
	}
	p.mu.Unlock()

	o, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return err
	}
	o.Observe(value)
	return nil
}

// Close 关闭收集器
func (p *PrometheusMetrics) Close() error {
	return p.Base.Close()
}
