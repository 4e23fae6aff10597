package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultProbeTimeout bounds a single liveness call.
const DefaultProbeTimeout = 5 * time.Second

// Prober checks which registered backends are currently usable.
type Prober struct {
	pinger  Pinger
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber creates a prober. A non-positive timeout selects DefaultProbeTimeout.
func NewProber(p Pinger, timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{pinger: p, timeout: timeout, logger: logger}
}

// Probe reports whether addr answered its liveness call within the probe
// timeout. Every failure, including a panic in the pinger, maps to false.
func (p *Prober) Probe(ctx context.Context, addr string) bool {
	return p.check(ctx, addr).Alive
}

func (p *Prober) check(ctx context.Context, addr string) (st Status) {
	st.Address = addr
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			st.Alive = false
			st.Error = "probe panicked"
		}
		st.LatencyMS = time.Since(start).Milliseconds()
		recordProbe(addr, st.Alive)
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.pinger.Ping(ctx, addr); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Alive = true
	return st
}

// ProbeAll probes every address concurrently and returns one status per
// address in input order.
func (p *Prober) ProbeAll(ctx context.Context, addrs []string) []Status {
	statuses := make([]Status, len(addrs))

	var wg sync.WaitGroup
	for i, addr := range addrs {
		wg.Go(func() {
			statuses[i] = p.check(ctx, addr)
		})
	}
	wg.Wait()

	return statuses
}

// ListAvailable returns the subset of addrs that responded affirmatively, in
// registration order. An empty result means no backend is usable.
func (p *Prober) ListAvailable(ctx context.Context, addrs []string) []string {
	available := make([]string, 0, len(addrs))
	for _, st := range p.ProbeAll(ctx, addrs) {
		if st.Alive {
			p.logger.Debug("backend available", "backend", st.Address, "latency_ms", st.LatencyMS)
			available = append(available, st.Address)
			continue
		}
		p.logger.Warn("backend unavailable", "backend", st.Address, "error", st.Error)
	}
	return available
}
