package common

import (
	"fmt"
	"sync"
	"time"
)

// Metrics accumulates read statistics across window reloads.
type Metrics struct {
	mu      sync.Mutex
	start   time.Time
	end     time.Time
	bytes   int64
	traces  int64
	reloads int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

func (m *Metrics) AddTraces(n int, bytes int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.traces += int64(n)
	if bytes > 0 {
		m.bytes += bytes
	}
	m.mu.Unlock()
}

func (m *Metrics) AddReload() {
	m.mu.Lock()
	m.reloads++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Duration: m.elapsedLocked(),
		Bytes:    m.bytes,
		Traces:   m.traces,
		Reloads:  m.reloads,
	}
}

func (m *Metrics) elapsedLocked() time.Duration {
	if m.start.IsZero() {
		return 0
	}
	if !m.end.IsZero() {
		return m.end.Sub(m.start)
	}
	return time.Since(m.start)
}

type MetricsSnapshot struct {
	Duration time.Duration
	Bytes    int64
	Traces   int64
	Reloads  int64
}

func (s MetricsSnapshot) ThroughputBytesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Duration.Seconds()
}

func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div := float64(unit)
	exp := 0
	for n := float64(b) / div; n >= unit && exp < 6; n /= unit {
		div *= unit
		exp++
	}
	prefixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.2f %s", float64(b)/div, prefixes[exp])
}

func (s MetricsSnapshot) String() string {
	throughput := s.ThroughputBytesPerSecond() / (1024 * 1024)
	return fmt.Sprintf("Read %d traces (%s) in %s over %d reloads, %.2f MiB/s",
		s.Traces, FormatBytes(s.Bytes), s.Duration.Round(time.Millisecond), s.Reloads, throughput)
}
