// Package datadog sends the job's step, row and batch metrics to a
// DogStatsD agent.
//
// Every record carries the job's labels as sorted "key:value" tags: job,
// stage, table and status for steps; job, table and kind for rows; job and
// table for batches. Labels with an empty value, such as the table of the
// extract step, are left out. Nothing is sent until the agent address is
// configured with DD_AGENT_ADDR.
package datadog

import (
	"fmt"
	"sort"

	"github.com/DataDog/datadog-go/v5/statsd"

	"staretl/internal/metrics"
)

// Config selects the agent and any tags shared by every record.
type Config struct {
	Addr       string   // DD_AGENT_ADDR, e.g. "127.0.0.1:8125"
	Namespace  string   // metric name prefix, e.g. "olist." gives olist.staretl_rows_total
	GlobalTags []string // e.g. "env:prod"
}

// Backend forwards staretl_* counters and step durations to DogStatsD.
type Backend struct {
	client *statsd.Client
}

// NewBackend connects a client to cfg.Addr, which is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	// Client telemetry is periodic; a one-shot job exits before it matters.
	opts := []statsd.Option{statsd.WithoutTelemetry()}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}

	return &Backend{client: c}, nil
}

// IncCounter sends a count. Row and batch deltas are whole numbers.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	tags := labelsToTags(labels)
	b.client.Count(name, int64(delta), tags, 1)
}

// ObserveHistogram sends a step duration, in seconds, as a histogram.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	tags := labelsToTags(labels)
	b.client.Histogram(name, value, tags, 1)
}

// Flush closes the client, sending anything still buffered. The job calls it
// once, at exit.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		if v == "" {
			continue
		}
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
