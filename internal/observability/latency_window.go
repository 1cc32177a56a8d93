package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

type LatencyStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	WindowSize  int            `json:"window_size"`
	Stages      []LatencyStats `json:"stages"`
}

// latencyWindow keeps the most recent samples per stage in fixed rings.
type latencyWindow struct {
	mu    sync.RWMutex
	size  int
	rings map[string]*latencyRing
}

type latencyRing struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = 256
	}
	return &latencyWindow{
		size:  size,
		rings: make(map[string]*latencyRing),
	}
}

func (w *latencyWindow) Observe(stage string, d time.Duration) {
	if stage == "" || d < 0 {
		return
	}
	ms := float64(d) / float64(time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	ring, ok := w.rings[stage]
	if !ok {
		ring = &latencyRing{values: make([]float64, w.size)}
		w.rings[stage] = ring
	}
	ring.values[ring.next] = ms
	ring.last = ms
	ring.next++
	if ring.next == len(ring.values) {
		ring.next = 0
		ring.filled = true
	}
}

func (w *latencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.rings))
	for name := range w.rings {
		names = append(names, name)
	}
	sort.Strings(names)

	stages := make([]LatencyStats, 0, len(names))
	for _, name := range names {
		ring := w.rings[name]
		n := ring.next
		if ring.filled {
			n = len(ring.values)
		}
		if n == 0 {
			continue
		}
		samples := append([]float64(nil), ring.values[:n]...)
		sort.Float64s(samples)
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		stages = append(stages, LatencyStats{
			Stage:       name,
			Samples:     n,
			LastMS:      round2(ring.last),
			AvgMS:       round2(sum / float64(n)),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       round2(quantile(samples, 0.95)),
			TargetP95MS: targetP95MS(name),
		})
	}
	return LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      stages,
	}
}

func quantile(sorted []float64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo, hi := int(math.Floor(idx)), int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func targetP95MS(stage string) float64 {
	switch stage {
	case "connect":
		return 2500
	case "turn_first_text":
		return 1500
	case "tool_call":
		return 1000
	default:
		return 0
	}
}
