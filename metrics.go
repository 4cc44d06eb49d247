// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gpiopanel

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a simple atomic counter.
type Counter struct {
	value int64
}

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Reset resets the counter to zero.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// dispatchBounds are the histogram upper bounds in microseconds. Dispatch
// never leaves the process, so the interesting range is far below 1ms.
var dispatchBounds = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000}

var dispatchLabels = []string{"5us", "10us", "25us", "50us", "100us", "250us", "500us", "1ms", "5ms", "5ms+"}

// LatencyHistogram tracks dispatch latency distribution.
type LatencyHistogram struct {
	mu      sync.Mutex
	buckets []int64 // len(bounds)+1, last is overflow
	sum     float64 // microseconds
	count   int64
	min     float64
	max     float64
}

// NewLatencyHistogram creates a new latency histogram.
func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{
		buckets: make([]int64, len(dispatchBounds)+1),
		min:     -1,
		max:     -1,
	}
}

// Observe records a latency observation.
func (h *LatencyHistogram) Observe(d time.Duration) {
	us := float64(d.Nanoseconds()) / 1000.0

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += us
	h.count++

	if h.min < 0 || us < h.min {
		h.min = us
	}
	if us > h.max {
		h.max = us
	}

	for i, bound := range dispatchBounds {
		if us <= bound {
			h.buckets[i]++
			return
		}
	}
	h.buckets[len(h.buckets)-1]++
}

// Stats returns histogram statistics.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := LatencyStats{
		Count:   h.count,
		Sum:     h.sum,
		Buckets: make(map[string]int64, len(h.buckets)),
	}

	if h.count > 0 {
		stats.Avg = h.sum / float64(h.count)
		stats.Min = h.min
		stats.Max = h.max
	}

	for i, count := range h.buckets {
		stats.Buckets[dispatchLabels[i]] = count
	}
	return stats
}

// Reset resets the histogram.
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.buckets {
		h.buckets[i] = 0
	}
	h.sum = 0
	h.count = 0
	h.min = -1
	h.max = -1
}

// LatencyStats holds latency statistics in microseconds.
type LatencyStats struct {
	Count   int64
	Sum     float64
	Avg     float64
	Min     float64
	Max     float64
	Buckets map[string]int64
}

// PanelMetrics holds command dispatch metrics.
type PanelMetrics struct {
	Rejected     Counter // lines that failed to parse
	NotifyErrors Counter
	Latency      *LatencyHistogram

	ops sync.Map // Op -> *OpMetrics
}

// OpMetrics holds metrics for one command family.
type OpMetrics struct {
	Requests Counter
	Errors   Counter
}

// NewPanelMetrics creates a new PanelMetrics instance.
func NewPanelMetrics() *PanelMetrics {
	return &PanelMetrics{
		Latency: NewLatencyHistogram(),
	}
}

// ForOp returns metrics for a specific command family.
func (m *PanelMetrics) ForOp(op Op) *OpMetrics {
	if val, ok := m.ops.Load(op); ok {
		return val.(*OpMetrics)
	}
	actual, _ := m.ops.LoadOrStore(op, &OpMetrics{})
	return actual.(*OpMetrics)
}

func (m *PanelMetrics) observe(op Op, d time.Duration, err error) {
	om := m.ForOp(op)
	om.Requests.Add(1)
	if err != nil {
		om.Errors.Add(1)
	}
	m.Latency.Observe(d)
}

// Collect returns all metrics as a map.
func (m *PanelMetrics) Collect() map[string]interface{} {
	result := map[string]interface{}{
		"rejected":      m.Rejected.Value(),
		"notify_errors": m.NotifyErrors.Value(),
		"latency":       m.Latency.Stats(),
	}

	opStats := make(map[string]interface{})
	m.ops.Range(func(key, value interface{}) bool {
		om := value.(*OpMetrics)
		opStats[key.(Op).String()] = map[string]interface{}{
			"requests": om.Requests.Value(),
			"errors":   om.Errors.Value(),
		}
		return true
	})
	if len(opStats) > 0 {
		result["ops"] = opStats
	}
	return result
}

// Reset resets all metrics.
func (m *PanelMetrics) Reset() {
	m.Rejected.Reset()
	m.NotifyErrors.Reset()
	m.Latency.Reset()

	m.ops.Range(func(_, value interface{}) bool {
		om := value.(*OpMetrics)
		om.Requests.Reset()
		om.Errors.Reset()
		return true
	})
}

// ServerMetrics holds listener and session metrics.
type ServerMetrics struct {
	ActiveSessions Counter
	TotalSessions  Counter
	Lines          Counter
	Replies        Counter
	Overflows      Counter // partial lines discarded for length
	WriteErrors    Counter
}

// Collect returns all metrics as a map.
func (m *ServerMetrics) Collect() map[string]interface{} {
	return map[string]interface{}{
		"active_sessions": m.ActiveSessions.Value(),
		"total_sessions":  m.TotalSessions.Value(),
		"lines":           m.Lines.Value(),
		"replies":         m.Replies.Value(),
		"overflows":       m.Overflows.Value(),
		"write_errors":    m.WriteErrors.Value(),
	}
}
