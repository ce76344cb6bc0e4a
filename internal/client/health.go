package client

import (
	"context"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// HealthProbeAccount is validated by HealthCheck.
const HealthProbeAccount = "ACC1000"

type HealthResult struct {
	Healthy   bool
	BaseURL   string
	Latency   time.Duration
	CheckedAt time.Time
	Error     string
}

// HealthCheck times a validation of the probe account. The service is healthy
// when that call completes without error, whatever the account's outcome.
func (c *Client) HealthCheck(ctx context.Context) HealthResult {
	start := c.now()
	_, err := c.ValidateAccount(ctx, HealthProbeAccount, false)

	result := HealthResult{
		Healthy:   err == nil,
		BaseURL:   c.cfg.Client.BaseURL,
		Latency:   c.now().Sub(start),
		CheckedAt: start,
	}
	if err != nil {
		result.Error = err.Error()
		c.logger.Warn().Err(err).Msg("Health check failed")
	}
	return result
}

type Stats struct {
	Uptime            time.Duration
	TotalRequests     int
	Successful        int
	Failed            int
	Rejected          int // refused locally before any request was sent
	RequestsPerSecond float64
	AverageLatency    time.Duration
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
}

// Stats summarises operations recorded in the client's metrics registry.
func (c *Client) Stats() Stats {
	s := Stats{
		Uptime:     c.now().Sub(c.started),
		BaseURL:    c.cfg.Client.BaseURL,
		Timeout:    c.cfg.Client.Timeout,
		MaxRetries: c.cfg.Client.MaxRetries,
	}

	families, err := c.registry.Gather()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Gathering metrics failed")
		return s
	}

	var latencySum float64
	var latencyCount uint64
	for _, mf := range families {
		switch mf.GetName() {
		case metricsNamespace + "_operations_total":
			for _, m := range mf.GetMetric() {
				n := int(m.GetCounter().GetValue())
				s.TotalRequests += n
				switch label(m, "result") {
				case "success":
					s.Successful += n
				case "failure":
					s.Failed += n
				case "rejected":
					s.Rejected += n
				}
			}
		case metricsNamespace + "_operation_duration_seconds":
			for _, m := range mf.GetMetric() {
				latencySum += m.GetHistogram().GetSampleSum()
				latencyCount += m.GetHistogram().GetSampleCount()
			}
		}
	}

	if latencyCount > 0 {
		s.AverageLatency = time.Duration(latencySum / float64(latencyCount) * float64(time.Second))
	}
	if secs := s.Uptime.Seconds(); secs > 0 {
		s.RequestsPerSecond = float64(s.TotalRequests) / secs
	}
	return s
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
