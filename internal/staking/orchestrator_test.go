package staking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dsistake/dsistake/internal/chain"
	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/power"
)

func defaultLimits() Limits {
	return Limits{Minimum: tokens(10), Balance: tokens(1000)}
}

func TestValidateStake(t *testing.T) {
	tests := []struct {
		name string
		req  StakeRequest
		rule ValidationRule
		msg  string
	}{
		{"zero amount", StakeRequest{Amount: new(big.Int), Days: 30}, RuleNonPositive, "Amount must be greater than 0"},
		{"nil amount", StakeRequest{Days: 30}, RuleNonPositive, "Amount must be greater than 0"},
		{"negative amount", StakeRequest{Amount: tokens(-1), Days: 30}, RuleNonPositive, "Amount must be greater than 0"},
		{"below minimum", StakeRequest{Amount: tokens(5), Days: 30}, RuleBelowMinimum, "Amount must be at least 10 DSI"},
		{"above balance", StakeRequest{Amount: tokens(1001), Days: 30}, RuleAboveBalance, "Insufficient balance"},
		{"zero days", StakeRequest{Amount: tokens(100)}, RuleNonPositiveDuration, "Duration must be greater than 0"},
		{"seconds overflow", StakeRequest{Amount: tokens(100), Days: MaxStakeDays + 1}, RuleDurationTooLong, fmt.Sprintf("Duration must be at most %d days", MaxStakeDays)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStake(tt.req, defaultLimits())
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("ValidateStake() = %v, want ValidationError", err)
			}
			if verr.Rule != tt.rule || verr.Message != tt.msg {
				t.Errorf("ValidateStake() = %s %q, want %s %q", verr.Rule, verr.Message, tt.rule, tt.msg)
			}
		})
	}

	if err := ValidateStake(StakeRequest{Amount: tokens(10), Days: 1}, defaultLimits()); err != nil {
		t.Errorf("ValidateStake() at the minimum = %v, want nil", err)
	}
	if err := ValidateStake(StakeRequest{Amount: tokens(1000), Days: 1}, defaultLimits()); err != nil {
		t.Errorf("ValidateStake() of the whole balance = %v, want nil", err)
	}
	if err := ValidateStake(StakeRequest{Amount: tokens(10), Days: MaxStakeDays}, defaultLimits()); err != nil {
		t.Errorf("ValidateStake() of the longest lock = %v, want nil", err)
	}
}

func TestStakeHugeDurationSendsNothing(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	orch := NewOrchestrator(mock, nil, nil, nil)

	res := orch.Stake(context.Background(), StakeRequest{Amount: tokens(100), Days: 213503982334602}, defaultLimits())
	if res.Kind != ResultValidationError {
		t.Fatalf("Stake() = %s, want validation_error", res.Kind)
	}
	if sent := mock.Sent(); len(sent) != 0 {
		t.Errorf("sent = %v, want nothing", sent)
	}
}

func TestActionAuditRecordsHashes(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(io.Discard)

	clock := newFakeClock(epoch)
	mock := newMock(clock)
	orch := NewOrchestrator(mock, nil, nil, clock.Now)

	res := orch.Stake(context.Background(), StakeRequest{Amount: tokens(100), Days: 30}, defaultLimits())
	if !res.OK() || len(res.TxHashes) != 2 {
		t.Fatalf("Stake() = %s with %d hashes", res.Kind, len(res.TxHashes))
	}

	out := buf.String()
	if !strings.Contains(out, `"audit":true`) {
		t.Fatalf("no audit record in %s", out)
	}
	for _, h := range res.TxHashes {
		if !strings.Contains(out, h.Hex()) {
			t.Errorf("audit details missing %s", h.Hex())
		}
	}
}

func TestStakeValidationMakesNoCalls(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	refresher := &countingRefresher{}
	orch := NewOrchestrator(mock, refresher, nil, nil)

	res := orch.Stake(context.Background(), StakeRequest{Amount: tokens(5), Days: 30}, defaultLimits())
	if res.Kind != ResultValidationError || res.State != StateFailed {
		t.Fatalf("Stake() = %s/%s, want validation_error/failed", res.Kind, res.State)
	}
	if sent := mock.Sent(); len(sent) != 0 {
		t.Errorf("validation failure sent transactions: %v", sent)
	}
	if refresher.Calls() != 0 {
		t.Error("validation failure triggered a refresh")
	}
	if orch.Busy() {
		t.Error("orchestrator still busy after validation failure")
	}
}

func TestStakeSuccess(t *testing.T) {
	clock := newFakeClock(epoch)
	mock := newMock(clock)
	refresher := &countingRefresher{}
	orch := NewOrchestrator(mock, refresher, nil, clock.Now)

	var states []State
	orch.OnStateChange(func(_ Action, s State) { states = append(states, s) })

	res := orch.Stake(context.Background(), StakeRequest{Amount: tokens(100), Days: 30}, defaultLimits())
	if !res.OK() || res.Kind != ResultSuccess {
		t.Fatalf("Stake() = %s: %v", res.Kind, res.Err)
	}
	if res.Message != "Successfully staked 100 DSI tokens for 30 days!" {
		t.Errorf("Message = %q", res.Message)
	}
	if len(res.TxHashes) != 2 {
		t.Errorf("TxHashes = %d, want approve and stake", len(res.TxHashes))
	}
	if got, want := mock.Sent(), []string{"approve", "stake"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Sent() = %v, want %v", got, want)
	}
	if want := []State{StateApproving, StateStaking, StateRefreshing, StateIdle}; !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	if refresher.Calls() != 1 {
		t.Errorf("refresh called %d times, want 1", refresher.Calls())
	}

	stakes, _ := mock.GetAllStakes(context.Background(), alice)
	if len(stakes) != 1 {
		t.Fatalf("stakes = %d, want 1", len(stakes))
	}
	s := stakes[0]
	if s.EndTime-s.StartTime != 30*SecondsPerDay {
		t.Errorf("lock = %ds, want 30 days", s.EndTime-s.StartTime)
	}
	if want := power.EstimatePower(tokens(100), 30); s.DSIPower.Cmp(want) != 0 {
		t.Errorf("DSIPower = %s, want %s", s.DSIPower, want)
	}
	if bal, _ := mock.TokenBalance(context.Background(), alice); bal.Cmp(tokens(900)) != 0 {
		t.Errorf("balance = %s, want 900 tokens", bal)
	}
	if mock.Allowance(alice).Sign() != 0 {
		t.Errorf("allowance left over: %s", mock.Allowance(alice))
	}
}

func TestStakeApproveRejected(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	mock.FailSend("approve", errors.New("user rejected transaction"))
	refresher := &countingRefresher{}
	orch := NewOrchestrator(mock, refresher, nil, nil)

	res := orch.Stake(context.Background(), StakeRequest{Amount: tokens(100), Days: 30}, defaultLimits())
	if res.Kind != ResultTransactionErr {
		t.Fatalf("Stake() = %s, want transaction_error", res.Kind)
	}
	if len(res.TxHashes) != 0 || len(mock.Sent()) != 0 {
		t.Errorf("nothing should have been sent: %v", mock.Sent())
	}
	if refresher.Calls() != 1 {
		t.Errorf("refresh called %d times after a transaction error, want 1", refresher.Calls())
	}
}

func TestStakeNetworkSwitchDeclined(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	mock.FailSend("approve", chain.ErrSwitchDeclined)
	refresher := &countingRefresher{}
	orch := NewOrchestrator(mock, refresher, nil, nil)

	res := orch.Stake(context.Background(), StakeRequest{Amount: tokens(100), Days: 30}, defaultLimits())
	if res.Kind != ResultConnectionError {
		t.Fatalf("Stake() = %s, want connection_error", res.Kind)
	}
	if !errors.Is(res.Err, chain.ErrSwitchDeclined) {
		t.Errorf("Err = %v, want ErrSwitchDeclined", res.Err)
	}
	if refresher.Calls() != 0 {
		t.Error("connection error should not trigger a refresh")
	}
}

func TestStakeReverted(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	mock.Revert("stake", errors.New("execution reverted"))
	refresher := &countingRefresher{}
	orch := NewOrchestrator(mock, refresher, nil, nil)

	res := orch.Stake(context.Background(), StakeRequest{Amount: tokens(100), Days: 30}, defaultLimits())
	var terr *TransactionError
	if !errors.As(res.Err, &terr) {
		t.Fatalf("Err = %v, want TransactionError", res.Err)
	}
	if terr.TxHash == "" {
		t.Error("reverted transaction should carry its hash")
	}
	if len(res.TxHashes) != 1 {
		t.Errorf("TxHashes = %d, want the approve only", len(res.TxHashes))
	}
	if mock.Allowance(alice).Cmp(tokens(100)) != 0 {
		t.Errorf("approve should have applied, allowance = %s", mock.Allowance(alice))
	}
	if stakes, _ := mock.GetAllStakes(context.Background(), alice); len(stakes) != 0 {
		t.Errorf("reverted stake recorded: %+v", stakes)
	}
	if refresher.Calls() != 1 {
		t.Errorf("refresh called %d times, want 1", refresher.Calls())
	}
}

func TestClaimRejectsLockedAndClaimed(t *testing.T) {
	clock := newFakeClock(epoch)
	mock := newMock(clock)
	locked := stakeAt(20, epoch, 30)
	claimed := stakeAt(25, epoch.Add(-40*24*time.Hour), 30)
	claimed.Claimed = true
	mock.AddStake(alice, locked)
	mock.AddStake(alice, claimed)
	orch := NewOrchestrator(mock, nil, nil, clock.Now)

	res := orch.Claim(context.Background(), locked)
	if res.Kind != ResultValidationError {
		t.Fatalf("Claim(locked) = %s, want validation_error", res.Kind)
	}
	if res.Message != "This stake is still locked. Please wait until the staking period ends." {
		t.Errorf("Message = %q", res.Message)
	}

	res = orch.Claim(context.Background(), claimed)
	if res.Kind != ResultValidationError {
		t.Errorf("Claim(claimed) = %s, want validation_error", res.Kind)
	}
	if res.Message != "This stake has already been claimed." {
		t.Errorf("Message = %q", res.Message)
	}
	if sent := mock.Sent(); len(sent) != 0 {
		t.Errorf("rejected claims sent transactions: %v", sent)
	}
}

func TestClaimJudgesFreshRecord(t *testing.T) {
	clock := newFakeClock(epoch)
	mock := newMock(clock)
	matured := stakeAt(20, epoch.Add(-40*24*time.Hour), 30)
	mock.AddStake(alice, matured)
	orch := NewOrchestrator(mock, nil, nil, clock.Now)

	cached := matured
	cached.Claimed = true
	res := orch.Claim(context.Background(), cached)
	if !res.OK() {
		t.Fatalf("Claim() with an outdated cached record = %s: %v", res.Kind, res.Err)
	}
	if sent := mock.Sent(); !reflect.DeepEqual(sent, []string{"claim"}) {
		t.Errorf("sent = %v, want [claim]", sent)
	}
}

func TestClaimStaleTarget(t *testing.T) {
	clock := newFakeClock(epoch)
	mock := newMock(clock)
	orch := NewOrchestrator(mock, nil, nil, clock.Now)

	gone := stakeAt(20, epoch.Add(-40*24*time.Hour), 30)
	res := orch.Claim(context.Background(), gone)
	if res.Kind != ResultStaleState {
		t.Fatalf("Claim() = %s, want stale_state", res.Kind)
	}
	if res.Message != "Stake not found" {
		t.Errorf("Message = %q", res.Message)
	}

	mock.AddStake(alice, gone)
	if res := orch.Claim(context.Background(), gone); !res.OK() {
		t.Fatalf("first claim failed: %v", res.Err)
	}
	if res := orch.Claim(context.Background(), gone); res.Kind != ResultValidationError {
		t.Errorf("second claim of the same stake = %s, want validation_error", res.Kind)
	}
}

func TestClaimResolvesMovedIndex(t *testing.T) {
	clock := newFakeClock(epoch)
	mock := newMock(clock)
	first := stakeAt(30, epoch.Add(-20*24*time.Hour), 7)
	second := stakeAt(50, epoch.Add(-20*24*time.Hour), 10)
	mock.AddStake(alice, first)
	mock.AddStake(alice, second)

	refresher := &countingRefresher{}
	orch := NewOrchestrator(mock, refresher, nil, clock.Now)

	target := second
	target.Index = 0
	res := orch.Claim(context.Background(), target)
	if !res.OK() {
		t.Fatalf("Claim() = %s: %v", res.Kind, res.Err)
	}
	if res.Message != "Successfully claimed 50 DSI tokens!" {
		t.Errorf("Message = %q", res.Message)
	}

	stakes, _ := mock.GetAllStakes(context.Background(), alice)
	if stakes[0].Claimed || !stakes[1].Claimed {
		t.Errorf("wrong stake claimed: %+v", stakes)
	}
	if bal, _ := mock.TokenBalance(context.Background(), alice); bal.Cmp(tokens(1050)) != 0 {
		t.Errorf("balance = %s, want 1050 tokens", bal)
	}
	if refresher.Calls() != 1 {
		t.Errorf("refresh called %d times, want 1", refresher.Calls())
	}
}

func TestClaimAllNothingEligible(t *testing.T) {
	clock := newFakeClock(epoch)
	mock := newMock(clock)
	mock.AddStake(alice, stakeAt(20, epoch, 30))
	orch := NewOrchestrator(mock, nil, nil, clock.Now)

	res := orch.ClaimAll(context.Background())
	if res.Kind != ResultInfo || !res.OK() {
		t.Fatalf("ClaimAll() = %s, want info", res.Kind)
	}
	if res.Message != "No stakes are ready to be claimed yet" {
		t.Errorf("Message = %q", res.Message)
	}
	if len(mock.Sent()) != 0 {
		t.Errorf("sent transactions: %v", mock.Sent())
	}
}

func TestClaimAll(t *testing.T) {
	clock := newFakeClock(epoch)
	mock := newMock(clock)
	past := epoch.Add(-30 * 24 * time.Hour)
	mock.AddStake(alice, stakeAt(10, past, 7))
	mock.AddStake(alice, stakeAt(20, epoch, 30))
	mock.AddStake(alice, stakeAt(30, past, 14))

	refresher := &countingRefresher{}
	orch := NewOrchestrator(mock, refresher, nil, clock.Now)

	res := orch.ClaimAll(context.Background())
	if !res.OK() {
		t.Fatalf("ClaimAll() = %s: %v", res.Kind, res.Err)
	}
	if res.Claimed != 2 || len(res.TxHashes) != 2 {
		t.Errorf("Claimed = %d with %d hashes, want 2", res.Claimed, len(res.TxHashes))
	}
	if res.Message != "Successfully claimed 2 stakes!" {
		t.Errorf("Message = %q", res.Message)
	}
	stakes, _ := mock.GetAllStakes(context.Background(), alice)
	if !stakes[0].Claimed || stakes[1].Claimed || !stakes[2].Claimed {
		t.Errorf("claimed flags = %v %v %v", stakes[0].Claimed, stakes[1].Claimed, stakes[2].Claimed)
	}
	if refresher.Calls() != 1 {
		t.Errorf("refresh called %d times, want 1", refresher.Calls())
	}
}

// flakyClaims fails the nth claim submission.
type flakyClaims struct {
	*MockContract
	failOn int
	calls  int
}

func (g *flakyClaims) ClaimSpecificStake(ctx context.Context, index int) (*types.Transaction, error) {
	g.calls++
	if g.calls == g.failOn {
		return nil, errors.New("nonce too low")
	}
	return g.MockContract.ClaimSpecificStake(ctx, index)
}

func TestClaimAllStopsAtFirstFailure(t *testing.T) {
	clock := newFakeClock(epoch)
	mock := newMock(clock)
	past := epoch.Add(-30 * 24 * time.Hour)
	for i := int64(1); i <= 3; i++ {
		mock.AddStake(alice, stakeAt(10*i, past, 7))
	}

	gw := &flakyClaims{MockContract: mock, failOn: 2}
	refresher := &countingRefresher{}
	orch := NewOrchestrator(gw, refresher, nil, clock.Now)

	res := orch.ClaimAll(context.Background())
	if res.Kind != ResultTransactionErr {
		t.Fatalf("ClaimAll() = %s, want transaction_error", res.Kind)
	}
	if res.Claimed != 1 || len(res.TxHashes) != 1 {
		t.Errorf("Claimed = %d with %d hashes, want 1", res.Claimed, len(res.TxHashes))
	}
	if !strings.HasPrefix(res.Message, "Claimed 1 of 3 stakes before failure") {
		t.Errorf("Message = %q", res.Message)
	}
	if gw.calls != 2 {
		t.Errorf("claim attempts = %d, want sequence to halt after 2", gw.calls)
	}
	if refresher.Calls() != 1 {
		t.Errorf("refresh called %d times, want 1", refresher.Calls())
	}
}

// blockingGateway holds every WaitMined until release is closed.
type blockingGateway struct {
	*MockContract
	release chan struct{}
}

func (g *blockingGateway) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	<-g.release
	return g.MockContract.WaitMined(ctx, tx)
}

func TestActionsAreMutuallyExclusive(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	gw := &blockingGateway{MockContract: mock, release: make(chan struct{})}
	orch := NewOrchestrator(gw, nil, nil, nil)

	approving := make(chan struct{}, 1)
	orch.OnStateChange(func(_ Action, s State) {
		if s == StateApproving {
			approving <- struct{}{}
		}
	})

	var wg sync.WaitGroup
	var first ActionResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = orch.Stake(context.Background(), StakeRequest{Amount: tokens(100), Days: 30}, defaultLimits())
	}()

	<-approving
	if !orch.Busy() {
		t.Error("Busy() = false during an action")
	}
	busy := orch.ClaimAll(context.Background())
	if busy.Kind != ResultBusy || !errors.Is(busy.Err, ErrActionInProgress) {
		t.Errorf("concurrent ClaimAll() = %s: %v, want busy", busy.Kind, busy.Err)
	}
	if busy.State != StateApproving {
		t.Errorf("busy result state = %s, want approving", busy.State)
	}

	close(gw.release)
	wg.Wait()
	if !first.OK() {
		t.Errorf("blocked stake failed: %v", first.Err)
	}
	if orch.Busy() {
		t.Error("Busy() = true after the action finished")
	}
}

func TestActionResultMessagesFromErrors(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	mock.FailRead("getAllStakes", fmt.Errorf("dial tcp: connection refused"))
	orch := NewOrchestrator(mock, nil, nil, nil)

	res := orch.ClaimAll(context.Background())
	if res.Kind != ResultConnectionError {
		t.Fatalf("ClaimAll() = %s, want connection_error", res.Kind)
	}
	if !strings.Contains(res.Message, "connection refused") {
		t.Errorf("Message = %q", res.Message)
	}
}
