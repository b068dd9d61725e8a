package staking

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/metrics"
	"github.com/dsistake/dsistake/internal/power"
	"github.com/dsistake/dsistake/internal/wallet"
)

// Persister stores the cached-provider flag between runs.
type Persister interface {
	Save(wallet.SessionState) error
	Clear() error
}

// Reconnector builds a fresh gateway after a wallet event.
type Reconnector func(ctx context.Context) (Gateway, error)

// EventResponse is what a wallet event made the session do.
type EventResponse string

const (
	ResponseNone       EventResponse = "none"
	ResponseReset      EventResponse = "reset"
	ResponseReload     EventResponse = "reload"
	ResponseDisconnect EventResponse = "disconnect"
)

// Session is the view model: the connected account's balance, minimum stake
// and ledger, plus the process-wide stats which survive disconnects.
type Session struct {
	stats     *StatsTracker
	store     Persister
	reconnect Reconnector
	fallback  PowerSource
	metrics   *metrics.Collector
	now       func() time.Time

	mu      sync.RWMutex
	gw      Gateway
	ledger  *Ledger
	orch    *Orchestrator
	balance *big.Int
	minimum *big.Int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPersister saves the cached-provider flag on connect and wipes it on disconnect.
func WithPersister(p Persister) SessionOption {
	return func(s *Session) { s.store = p }
}

// WithReconnector is used to rebuild the gateway on account or chain changes.
func WithReconnector(r Reconnector) SessionOption {
	return func(s *Session) { s.reconnect = r }
}

// WithPowerSource answers estimates while no wallet is connected.
func WithPowerSource(p PowerSource) SessionOption {
	return func(s *Session) { s.fallback = p }
}

// WithSessionMetrics publishes user power and tier.
func WithSessionMetrics(m *metrics.Collector) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession creates a disconnected session sharing stats.
func NewSession(stats *StatsTracker, opts ...SessionOption) *Session {
	s := &Session{stats: stats, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the shared stats tracker.
func (s *Session) Stats() *StatsTracker {
	return s.stats
}

// Connect binds the session to gw and loads balance, minimum stake and
// ledger in parallel. A gateway on the wrong chain is refused before any
// read. Read failures are logged; the connection still holds.
func (s *Session) Connect(ctx context.Context, gw Gateway) error {
	if gw == nil || gw.Account() == (common.Address{}) {
		return &ConnectionError{Op: "connect", Err: ErrNotConnected}
	}
	if nc, ok := gw.(NetworkChecker); ok {
		if err := nc.EnsureNetwork(ctx); err != nil {
			return &ConnectionError{Op: "connect", Err: err}
		}
	}

	ledger := NewLedger(gw, s.now)
	orch := NewOrchestrator(gw, RefreshFunc(s.Refresh), s.metrics, s.now)

	s.mu.Lock()
	s.gw, s.ledger, s.orch = gw, ledger, orch
	s.balance, s.minimum = nil, nil
	s.mu.Unlock()

	if err := s.loadUser(ctx); err != nil {
		logging.Warn("initial account load incomplete", logging.Err(err))
	}
	s.publishUser()

	if s.store != nil {
		state := wallet.SessionState{CachedProvider: true, Account: gw.Account().Hex(), ConnectedAt: s.now().UTC()}
		if err := s.store.Save(state); err != nil {
			logging.Warn("failed to persist session", logging.Err(err))
		}
	}
	logging.Info("wallet connected", logging.Account(gw.Account().Hex()))
	return nil
}

// Connected reports whether a wallet is bound.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gw != nil
}

// Orchestrator returns the action orchestrator, or nil when disconnected.
func (s *Session) Orchestrator() *Orchestrator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orch
}

// loadUser reads balance, minimum stake and ledger in parallel.
func (s *Session) loadUser(ctx context.Context) error {
	s.mu.RLock()
	gw, ledger := s.gw, s.ledger
	s.mu.RUnlock()
	if gw == nil {
		return ErrNotConnected
	}
	owner := gw.Account()

	var (
		wg               sync.WaitGroup
		balance, minimum *big.Int
		errs             [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		v, err := gw.TokenBalance(ctx, owner)
		if err != nil {
			errs[0] = &ReadError{Method: "balanceOf", Err: err}
			return
		}
		balance = v
	}()
	go func() {
		defer wg.Done()
		v, err := gw.MinimumStake(ctx)
		if err != nil {
			errs[1] = &ReadError{Method: "minimumStake", Err: err}
			return
		}
		minimum = v
	}()
	go func() {
		defer wg.Done()
		_, errs[2] = ledger.Refresh(ctx, owner)
	}()
	wg.Wait()

	s.mu.Lock()
	if s.gw == gw {
		if balance != nil {
			s.balance = balance
		}
		if minimum != nil {
			s.minimum = minimum
		}
	}
	s.mu.Unlock()
	return errors.Join(errs[:]...)
}

// Refresh reloads the account data and the global stats together. Failed
// reads keep their previous values.
func (s *Session) Refresh(ctx context.Context) error {
	var wg sync.WaitGroup
	if s.stats != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.stats.Refresh(ctx)
		}()
	}
	userErr := s.loadUser(ctx)
	wg.Wait()

	s.publishUser()
	if errors.Is(userErr, ErrNotConnected) {
		return nil
	}
	return userErr
}

func (s *Session) publishUser() {
	snap := s.Snapshot()
	s.metrics.SetUser(AmountFloat(snap.Ledger.ActivePower), snap.Tier)
}

// Disconnect drops all account state and wipes persisted session storage.
// Global stats are kept.
func (s *Session) Disconnect() error {
	s.reset()
	s.metrics.SetUser(0, 0)
	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			return err
		}
	}
	logging.Info("wallet disconnected")
	return nil
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gw, s.ledger, s.orch = nil, nil, nil
	s.balance, s.minimum = nil, nil
}

// HandleEvent maps a wallet event to a reset, reload or disconnect.
func (s *Session) HandleEvent(ctx context.Context, ev wallet.Event) (EventResponse, error) {
	logging.Info("wallet event", "kind", ev.Kind.String())

	switch ev.Kind {
	case wallet.Disconnected:
		return ResponseDisconnect, s.Disconnect()
	case wallet.AccountsChanged:
		s.reset()
		return ResponseReset, s.reconnectNow(ctx)
	case wallet.ChainChanged:
		if err := s.reconnectNow(ctx); err != nil {
			return ResponseReload, err
		}
		if s.stats != nil {
			s.stats.Refresh(ctx)
		}
		return ResponseReload, nil
	default:
		return ResponseNone, nil
	}
}

func (s *Session) reconnectNow(ctx context.Context) error {
	if s.reconnect == nil {
		return nil
	}
	gw, err := s.reconnect(ctx)
	if err != nil {
		s.reset()
		return &ConnectionError{Op: "reconnect", Err: err}
	}
	return s.Connect(ctx, gw)
}

func (s *Session) notConnected(action Action) ActionResult {
	err := &ConnectionError{Op: string(action), Err: ErrNotConnected}
	return ActionResult{Action: action, Kind: ResultConnectionError, State: StateFailed, Err: err, Message: err.Error()}
}

// Limits returns the cached minimum stake and balance.
func (s *Session) Limits() Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Limits{Minimum: copyBig(s.minimum), Balance: copyBig(s.balance)}
}

// Stake runs the approve-then-stake flow against the cached limits.
func (s *Session) Stake(ctx context.Context, req StakeRequest) ActionResult {
	orch := s.Orchestrator()
	if orch == nil {
		return s.notConnected(ActionStake)
	}
	return orch.Stake(ctx, req, s.Limits())
}

// Claim claims one stake from the cached ledger.
func (s *Session) Claim(ctx context.Context, target Stake) ActionResult {
	orch := s.Orchestrator()
	if orch == nil {
		return s.notConnected(ActionClaim)
	}
	return orch.Claim(ctx, target)
}

// ClaimAll claims every matured stake.
func (s *Session) ClaimAll(ctx context.Context) ActionResult {
	orch := s.Orchestrator()
	if orch == nil {
		return s.notConnected(ActionClaimAll)
	}
	return orch.ClaimAll(ctx)
}

// StakeAt returns the cached stake at on-chain index.
func (s *Session) StakeAt(index int) (Stake, bool) {
	view := s.Snapshot().Ledger
	if index < 0 || index >= len(view.Stakes) {
		return Stake{}, false
	}
	return view.Stakes[index], true
}

// Estimate previews a stake, asking the contract when possible.
func (s *Session) Estimate(ctx context.Context, amount *big.Int, days uint64) Estimate {
	s.mu.RLock()
	var src PowerSource = s.fallback
	if s.gw != nil {
		src = s.gw
	}
	s.mu.RUnlock()
	return EstimateStake(ctx, src, amount, days)
}

// SessionSnapshot is a consistent copy of everything the views render.
type SessionSnapshot struct {
	Connected    bool
	Account      common.Address
	Balance      *big.Int
	MinimumStake *big.Int
	Ledger       LedgerView
	Stats        GlobalStats
	SharePercent decimal.Decimal
	Tier         int
}

// Snapshot returns the current view model state. Tier is 0 when disconnected.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	gw, ledger := s.gw, s.ledger
	snap := SessionSnapshot{
		Balance:      copyBig(s.balance),
		MinimumStake: copyBig(s.minimum),
	}
	s.mu.RUnlock()

	if s.stats != nil {
		snap.Stats = s.stats.Snapshot()
	}
	if gw == nil {
		snap.Ledger = Derive(common.Address{}, nil, s.now())
		return snap
	}

	snap.Connected = true
	snap.Account = gw.Account()
	snap.Ledger = ledger.View()
	snap.SharePercent = power.SharePercent(snap.Ledger.ActivePower, snap.Stats.TotalActivePower)
	snap.Tier = power.Tier(snap.SharePercent)
	return snap
}
