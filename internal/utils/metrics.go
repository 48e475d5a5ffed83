package utils

import (
	"sync"
	"time"
)

// maxLatencySamples bounds the per-operation sample window.
const maxLatencySamples = 1024

// Tracks performance metrics across the chat core
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to recent latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time
}

// OperationStats summarizes the latency samples of one operation.
type OperationStats struct {
	Count          int           `json:"count"`
	AverageLatency time.Duration `json:"averageLatency"`
	MaxLatency     time.Duration `json:"maxLatency"`
}

// MetricsSnapshot is a point-in-time copy of the collector.
type MetricsSnapshot struct {
	Requests   uint64                    `json:"requests"`
	Errors     uint64                    `json:"errors"`
	Uptime     time.Duration             `json:"uptime"`
	Operations map[string]OperationStats `json:"operations"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	samples := append(mc.operationTimes[operationName], duration.Nanoseconds())
	if len(samples) > maxLatencySamples {
		samples = samples[len(samples)-maxLatencySamples:]
	}
	mc.operationTimes[operationName] = samples
}

// Observe records one request for operationName, counting it as an error when err is set.
func (mc *MetricsCollector) Observe(operationName string, start time.Time, err error) {
	mc.IncrementRequests()
	if err != nil {
		mc.IncrementErrors()
	}
	mc.AddOperationLatency(operationName, time.Since(start))
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	ops := make(map[string]OperationStats, len(mc.operationTimes))
	for name, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		var total, max int64
		for _, s := range samples {
			total += s
			if s > max {
				max = s
			}
		}
		ops[name] = OperationStats{
			Count:          len(samples),
			AverageLatency: time.Duration(total / int64(len(samples))),
			MaxLatency:     time.Duration(max),
		}
	}

	return MetricsSnapshot{
		Requests:   mc.requestCount,
		Errors:     mc.errorCount,
		Uptime:     time.Since(mc.systemStartTime),
		Operations: ops,
	}
}
