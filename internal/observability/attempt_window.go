package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

type AttemptStats struct {
	Outcome string  `json:"outcome"`
	Samples int     `json:"samples"`
	LastMS  float64 `json:"last_ms"`
	AvgMS   float64 `json:"avg_ms"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
}

type AttemptSnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	WindowSize  int            `json:"window_size"`
	Total       int            `json:"total"`
	SuccessRate float64        `json:"success_rate"`
	Outcomes    []AttemptStats `json:"outcomes"`
}

// AttemptWindow keeps a fixed-size ring of recent transcription attempt
// latencies per outcome, for quick operational checks without a Prometheus
// stack.
type AttemptWindow struct {
	mu         sync.RWMutex
	maxSamples int
	outcomes   map[string]*attemptBuffer
}

type attemptBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func NewAttemptWindow(maxSamples int) *AttemptWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &AttemptWindow{
		maxSamples: maxSamples,
		outcomes:   make(map[string]*attemptBuffer),
	}
}

func (w *AttemptWindow) Observe(outcome string, ms float64) {
	if outcome == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.outcomes[outcome]
	if !ok {
		buf = &attemptBuffer{values: make([]float64, w.maxSamples)}
		w.outcomes[outcome] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

func (w *AttemptWindow) Snapshot() AttemptSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.outcomes))
	for outcome := range w.outcomes {
		keys = append(keys, outcome)
	}
	sort.Strings(keys)

	total := 0
	succeeded := 0
	stats := make([]AttemptStats, 0, len(keys))
	for _, outcome := range keys {
		buf := w.outcomes[outcome]
		n := buf.next
		if buf.filled {
			n = len(buf.values)
		}
		if n <= 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, buf.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}

		total += n
		if outcome == "ok" {
			succeeded += n
		}
		stats = append(stats, AttemptStats{
			Outcome: outcome,
			Samples: n,
			LastMS:  round2(buf.last),
			AvgMS:   round2(sum / float64(n)),
			P50MS:   round2(quantile(samples, 0.50)),
			P95MS:   round2(quantile(samples, 0.95)),
		})
	}

	rate := 0.0
	if total > 0 {
		rate = round2(float64(succeeded) / float64(total))
	}
	return AttemptSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Total:       total,
		SuccessRate: rate,
		Outcomes:    stats,
	}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
