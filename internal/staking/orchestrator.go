package staking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dsistake/dsistake/internal/chain"
	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/metrics"
)

// Action names a mutating flow.
type Action string

const (
	ActionStake    Action = "stake"
	ActionClaim    Action = "claim"
	ActionClaimAll Action = "claim_all"
)

// State is a step of an action's state machine.
type State string

const (
	StateIdle         State = "idle"
	StateApproving    State = "approving"
	StateStaking      State = "staking"
	StateFindingStake State = "finding_stake"
	StateClaiming     State = "claiming"
	StateRefreshing   State = "refreshing"
	StateFailed       State = "failed"
)

// ResultKind classifies how an action ended.
type ResultKind string

const (
	ResultSuccess         ResultKind = "success"
	ResultInfo            ResultKind = "info"
	ResultBusy            ResultKind = "busy"
	ResultValidationError ResultKind = "validation_error"
	ResultConnectionError ResultKind = "connection_error"
	ResultTransactionErr  ResultKind = "transaction_error"
	ResultStaleState      ResultKind = "stale_state"
)

// ActionResult reports an action's outcome. TxHashes lists every transaction
// that was included, so partial progress is visible after a failure.
type ActionResult struct {
	Action   Action
	Kind     ResultKind
	State    State
	Err      error
	TxHashes []common.Hash
	Claimed  int
	Message  string
}

// OK reports whether the action completed without error.
func (r ActionResult) OK() bool {
	return r.Kind == ResultSuccess || r.Kind == ResultInfo
}

// StakeRequest is a validated-on-submit stake order.
type StakeRequest struct {
	Amount *big.Int
	Days   uint64
}

// Limits are the bounds a stake amount is checked against.
type Limits struct {
	Minimum *big.Int
	Balance *big.Int
}

// Refresher reconciles local state with the chain after an action.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Orchestrator sequences the approve, stake and claim transactions for one
// account. At most one action runs at a time.
type Orchestrator struct {
	gw        Gateway
	refresher Refresher
	metrics   *metrics.Collector
	now       func() time.Time

	busy atomic.Bool

	mu            sync.Mutex
	state         State
	onStateChange func(Action, State)
}

// NewOrchestrator creates an orchestrator over gw. refresher may be nil.
func NewOrchestrator(gw Gateway, refresher Refresher, m *metrics.Collector, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{gw: gw, refresher: refresher, metrics: m, now: now, state: StateIdle}
}

// OnStateChange registers a callback for every state transition.
func (o *Orchestrator) OnStateChange(fn func(Action, State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onStateChange = fn
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether an action is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

func (o *Orchestrator) transition(action Action, s State) {
	o.mu.Lock()
	o.state = s
	fn := o.onStateChange
	o.mu.Unlock()

	logging.Debug("action state", logging.Component("orchestrator"), "action", string(action), "state", string(s))
	if fn != nil {
		fn(action, s)
	}
}

// MaxStakeDays is the longest lock whose length in seconds still fits a uint64.
const MaxStakeDays = math.MaxUint64 / SecondsPerDay

// ValidateStake checks a request against limits without touching the network.
func ValidateStake(req StakeRequest, limits Limits) error {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return &ValidationError{Rule: RuleNonPositive, Message: "Amount must be greater than 0"}
	}
	if limits.Minimum != nil && req.Amount.Cmp(limits.Minimum) < 0 {
		return &ValidationError{
			Rule:    RuleBelowMinimum,
			Message: fmt.Sprintf("Amount must be at least %s DSI", FormatAmount(limits.Minimum)),
		}
	}
	if req.Amount.Cmp(limitOrZero(limits.Balance)) > 0 {
		return &ValidationError{Rule: RuleAboveBalance, Message: "Insufficient balance"}
	}
	if req.Days == 0 {
		return &ValidationError{Rule: RuleNonPositiveDuration, Message: "Duration must be greater than 0"}
	}
	if req.Days > MaxStakeDays {
		return &ValidationError{
			Rule:    RuleDurationTooLong,
			Message: fmt.Sprintf("Duration must be at most %d days", MaxStakeDays),
		}
	}
	return nil
}

func limitOrZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

// begin claims the busy flag or returns a busy result.
func (o *Orchestrator) begin(action Action) (ActionResult, bool) {
	if !o.busy.CompareAndSwap(false, true) {
		return ActionResult{Action: action, Kind: ResultBusy, State: o.State(), Err: ErrActionInProgress, Message: ErrActionInProgress.Error()}, false
	}
	return ActionResult{Action: action}, true
}

// finish releases the busy flag, records the outcome and returns res.
func (o *Orchestrator) finish(res ActionResult, start time.Time) ActionResult {
	defer o.busy.Store(false)

	if res.Err != nil {
		res.State = StateFailed
		if res.Kind == "" {
			res.Kind = classify(res.Err)
		}
		if res.Message == "" {
			res.Message = res.Err.Error()
		}
	} else {
		res.State = StateIdle
		if res.Kind == "" {
			res.Kind = ResultSuccess
		}
	}
	o.transition(res.Action, res.State)
	o.metrics.ObserveAction(string(res.Action), string(res.Kind), time.Since(start))

	hashes := make([]string, len(res.TxHashes))
	for i, h := range res.TxHashes {
		hashes[i] = h.Hex()
	}
	logging.Audit(logging.AuditEvent{
		Operation: string(res.Action),
		Account:   o.gw.Account().Hex(),
		Target:    "staking",
		Result:    string(res.Kind),
		TxHashes:  hashes,
		Details:   res.Message,
	})
	return res
}

// classify maps an error onto the result taxonomy.
func classify(err error) ResultKind {
	var (
		verr *ValidationError
		serr *StaleStateError
		cerr *ConnectionError
	)
	switch {
	case errors.As(err, &verr):
		return ResultValidationError
	case errors.As(err, &serr):
		return ResultStaleState
	case errors.As(err, &cerr):
		return ResultConnectionError
	default:
		return ResultTransactionErr
	}
}

func isConnectionFailure(err error) bool {
	return errors.Is(err, chain.ErrSwitchDeclined) ||
		errors.Is(err, chain.ErrUnknownNetwork) ||
		errors.Is(err, chain.ErrChainMismatch) ||
		errors.Is(err, chain.ErrNotConnected) ||
		errors.Is(err, chain.ErrNoSigner)
}

// send submits one transaction and waits for inclusion with no local timeout.
func (o *Orchestrator) send(ctx context.Context, res *ActionResult, name string, submit func() (*types.Transaction, error)) error {
	tx, err := submit()
	if err != nil {
		if isConnectionFailure(err) {
			return &ConnectionError{Op: name, Err: err}
		}
		return &TransactionError{Action: name, Err: err}
	}
	if _, err := o.gw.WaitMined(ctx, tx); err != nil {
		return &TransactionError{Action: name, TxHash: tx.Hash().Hex(), Err: err}
	}
	res.TxHashes = append(res.TxHashes, tx.Hash())
	return nil
}

// reconcile refreshes local state. Refresh failures are logged only.
func (o *Orchestrator) reconcile(ctx context.Context, action Action) {
	if o.refresher == nil {
		return
	}
	o.transition(action, StateRefreshing)
	if err := o.refresher.Refresh(ctx); err != nil {
		logging.Warn("refresh after action failed", logging.Component("orchestrator"), "action", string(action), logging.Err(err))
	}
}

// Stake validates req, approves exactly req.Amount, stakes it for req.Days
// and refreshes. Validation failures make no network call.
func (o *Orchestrator) Stake(ctx context.Context, req StakeRequest, limits Limits) ActionResult {
	res, ok := o.begin(ActionStake)
	if !ok {
		return res
	}
	start := time.Now()

	if err := ValidateStake(req, limits); err != nil {
		res.Err = err
		return o.finish(res, start)
	}

	o.transition(ActionStake, StateApproving)
	if err := o.send(ctx, &res, "approve", func() (*types.Transaction, error) {
		return o.gw.Approve(ctx, req.Amount)
	}); err != nil {
		res.Err = err
		o.reconcileAfterFailure(ctx, ActionStake, err)
		return o.finish(res, start)
	}

	o.transition(ActionStake, StateStaking)
	if err := o.send(ctx, &res, "stake", func() (*types.Transaction, error) {
		return o.gw.Stake(ctx, req.Amount, req.Days*SecondsPerDay)
	}); err != nil {
		res.Err = err
		o.reconcileAfterFailure(ctx, ActionStake, err)
		return o.finish(res, start)
	}

	o.reconcile(ctx, ActionStake)
	res.Message = fmt.Sprintf("Successfully staked %s DSI tokens for %d days!", FormatAmount(req.Amount), req.Days)
	return o.finish(res, start)
}

// reconcileAfterFailure refreshes after a transaction error; connection
// errors leave local state untouched.
func (o *Orchestrator) reconcileAfterFailure(ctx context.Context, action Action, err error) {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return
	}
	o.reconcile(ctx, action)
}

// Claim claims target after re-deriving its index from a fresh ledger.
// Eligibility is judged on the fresh record only.
func (o *Orchestrator) Claim(ctx context.Context, target Stake) ActionResult {
	res, ok := o.begin(ActionClaim)
	if !ok {
		return res
	}
	start := time.Now()

	o.transition(ActionClaim, StateFindingStake)
	stakes, err := o.gw.GetAllStakes(ctx, o.gw.Account())
	if err != nil {
		res.Err = &ConnectionError{Op: "fetch stakes", Err: err}
		return o.finish(res, start)
	}
	current, found := findStake(stakes, target)
	if !found {
		res.Err = &StaleStateError{Target: target}
		return o.finish(res, start)
	}
	// current may be a claimed record when no unclaimed one matches.
	if err := checkClaimable(current, o.now()); err != nil {
		res.Err = err
		return o.finish(res, start)
	}

	o.transition(ActionClaim, StateClaiming)
	if err := o.send(ctx, &res, "claim", func() (*types.Transaction, error) {
		return o.gw.ClaimSpecificStake(ctx, current.Index)
	}); err != nil {
		res.Err = err
		o.reconcileAfterFailure(ctx, ActionClaim, err)
		return o.finish(res, start)
	}

	res.Claimed = 1
	o.reconcile(ctx, ActionClaim)
	res.Message = fmt.Sprintf("Successfully claimed %s DSI tokens!", FormatAmount(current.Amount))
	return o.finish(res, start)
}

func checkClaimable(s Stake, now time.Time) error {
	if s.Claimed {
		return &ValidationError{Rule: RuleAlreadyClaimed, Message: "This stake has already been claimed."}
	}
	if !s.IsClaimable(now) {
		return &ValidationError{
			Rule:    RuleLocked,
			Message: "This stake is still locked. Please wait until the staking period ends.",
		}
	}
	return nil
}

// findStake returns the first unclaimed stake matching target's triple,
// falling back to a claimed match so the caller can report it as claimed.
func findStake(stakes []Stake, target Stake) (Stake, bool) {
	var (
		claimed Stake
		seen    bool
	)
	for i, s := range stakes {
		if !s.Matches(target) {
			continue
		}
		s.Index = i
		if !s.Claimed {
			return s, true
		}
		if !seen {
			claimed, seen = s, true
		}
	}
	return claimed, seen
}

// ClaimAll claims every eligible stake one transaction at a time, waiting for
// each to be included before sending the next. The first failure stops the
// sequence; whatever succeeded is still reconciled.
func (o *Orchestrator) ClaimAll(ctx context.Context) ActionResult {
	res, ok := o.begin(ActionClaimAll)
	if !ok {
		return res
	}
	start := time.Now()

	o.transition(ActionClaimAll, StateFindingStake)
	stakes, err := o.gw.GetAllStakes(ctx, o.gw.Account())
	if err != nil {
		res.Err = &ConnectionError{Op: "fetch stakes", Err: err}
		return o.finish(res, start)
	}

	now := o.now()
	var eligible []int
	for i, s := range stakes {
		if s.IsClaimable(now) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		res.Kind = ResultInfo
		res.Message = "No stakes are ready to be claimed yet"
		return o.finish(res, start)
	}

	o.transition(ActionClaimAll, StateClaiming)
	for _, idx := range eligible {
		if err := o.send(ctx, &res, "claim", func() (*types.Transaction, error) {
			return o.gw.ClaimSpecificStake(ctx, idx)
		}); err != nil {
			res.Err = err
			o.reconcileAfterFailure(ctx, ActionClaimAll, err)
			if res.Claimed > 0 {
				res.Message = fmt.Sprintf("Claimed %d of %d stakes before failure: %v", res.Claimed, len(eligible), err)
			}
			return o.finish(res, start)
		}
		res.Claimed++
	}

	o.reconcile(ctx, ActionClaimAll)
	res.Message = fmt.Sprintf("Successfully claimed %d stakes!", res.Claimed)
	return o.finish(res, start)
}
