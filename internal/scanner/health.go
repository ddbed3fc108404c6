package scanner

import (
	"sort"
	"sync"
	"time"
)

// EWMAStrategy 成功率趋势平滑，Alpha 越大越敏感
type EWMAStrategy struct {
	Alpha float64
}

func (e EWMAStrategy) Update(current float64, success bool) float64 {
	value := 0.0
	if success {
		value = 100
	}
	return e.Alpha*value + (1-e.Alpha)*current
}

// ChainHealth 单链扫块健康度
type ChainHealth struct {
	Chain       string    `json:"chain"`
	SuccessRate float64   `json:"successRate"`
	Failures    int       `json:"consecutiveFailures"`
	LastSuccess time.Time `json:"lastSuccess,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

type healthBook struct {
	mu       sync.Mutex
	strategy EWMAStrategy
	chains   map[string]*ChainHealth
}

func newHealthBook(alpha float64) *healthBook {
	return &healthBook{strategy: EWMAStrategy{Alpha: alpha}, chains: make(map[string]*ChainHealth)}
}

// record 返回更新后的副本
func (b *healthBook) record(chain string, err error, now time.Time) ChainHealth {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.chains[chain]
	if !ok {
		h = &ChainHealth{Chain: chain, SuccessRate: 100}
		b.chains[chain] = h
	}
	h.SuccessRate = b.strategy.Update(h.SuccessRate, err == nil)
	if err == nil {
		h.Failures = 0
		h.LastSuccess = now
		h.LastError = ""
	} else {
		h.Failures++
		h.LastError = err.Error()
	}
	return *h
}

func (b *healthBook) snapshot() []ChainHealth {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ChainHealth, 0, len(b.chains))
	for _, h := range b.chains {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chain < out[j].Chain })
	return out
}
