package staking

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/metrics"
	"github.com/dsistake/dsistake/internal/util"
)

// DefaultPollInterval is how often global stats are refreshed.
const DefaultPollInterval = 30 * time.Second

// StatsTracker keeps the latest GlobalStats. It outlives user sessions.
type StatsTracker struct {
	source   StatsSource
	interval time.Duration
	metrics  *metrics.Collector
	now      func() time.Time

	mu       sync.RWMutex
	stats    GlobalStats
	onUpdate func(GlobalStats)

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatsTracker creates a tracker polling source every interval.
func NewStatsTracker(source StatsSource, interval time.Duration, m *metrics.Collector) *StatsTracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatsTracker{source: source, interval: interval, metrics: m, now: time.Now}
}

// OnUpdate registers a callback run after every refresh.
func (t *StatsTracker) OnUpdate(fn func(GlobalStats)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUpdate = fn
}

// Snapshot returns a copy of the latest stats.
func (t *StatsTracker) Snapshot() GlobalStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats.clone()
}

// Refresh issues the four reads in parallel. A failed read is logged and
// leaves that field at its previous value.
func (t *StatsTracker) Refresh(ctx context.Context) GlobalStats {
	type field struct {
		method string
		read   func(context.Context) (*big.Int, error)
		value  *big.Int
	}
	fields := []*field{
		{method: "totalStaked", read: t.source.TotalStaked},
		{method: "totalStakers", read: t.source.TotalStakers},
		{method: "numberOfActiveDSIPowerHolders", read: t.source.ActiveHolders},
		{method: "totalActiveDSIPower", read: t.source.TotalActivePower},
	}

	var wg sync.WaitGroup
	for _, f := range fields {
		wg.Add(1)
		go func(f *field) {
			defer wg.Done()
			v, err := f.read(ctx)
			if err != nil {
				logging.Warn("global stat read failed", logging.Component("stats"), logging.Err(&ReadError{Method: f.method, Err: err}))
				return
			}
			f.value = v
		}(f)
	}
	wg.Wait()

	t.mu.Lock()
	s := &t.stats
	for i, dst := range []**big.Int{&s.TotalStaked, &s.TotalStakers, &s.ActiveHolders, &s.TotalActivePower} {
		if fields[i].value != nil {
			*dst = fields[i].value
		}
	}
	s.UpdatedAt = t.now()
	snapshot := s.clone()
	onUpdate := t.onUpdate
	t.mu.Unlock()

	t.metrics.SetGlobalStats(
		AmountFloat(snapshot.TotalStaked),
		bigFloat(snapshot.TotalStakers),
		bigFloat(snapshot.ActiveHolders),
		AmountFloat(snapshot.TotalActivePower),
		snapshot.UpdatedAt,
	)
	if onUpdate != nil {
		onUpdate(snapshot)
	}
	return snapshot
}

// Start refreshes immediately and then every interval until Stop or ctx ends.
// Calling Start on a running tracker is a no-op.
func (t *StatsTracker) Start(ctx context.Context) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	util.SafeGoWithName("stats-poller", func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		t.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Refresh(ctx)
			}
		}
	})
}

// Stop cancels polling and waits for the poller to exit.
func (t *StatsTracker) Stop() {
	t.runMu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func bigFloat(x *big.Int) float64 {
	if x == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}
