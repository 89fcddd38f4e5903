package bridge

// 指标名
const (
	MetricDownstreamConnections = "relay_downstream_connections"
	MetricEnvelopesTotal        = "relay_envelopes_total"
	MetricDeliveryFailures      = "relay_delivery_failures_total"
	MetricCommandsTotal         = "relay_commands_total"
	MetricUpstreamEvents        = "relay_upstream_events_total"
	MetricUpstreamConnects      = "relay_upstream_connects_total"
)

func (c *Controller) count(name string, labels map[string]string) {
	if err := c.metrics.IncrementCounter(name, labels); err != nil {
		c.logger.Debugf("metric %s: %v", name, err)
	}
}

func (c *Controller) updateConnGauge() {
	if err := c.metrics.SetGauge(MetricDownstreamConnections, float64(c.registry.Len()), nil); err != nil {
		c.logger.Debugf("metric %s: %v", MetricDownstreamConnections, err)
	}
}
