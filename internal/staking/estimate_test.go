package staking

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dsistake/dsistake/internal/power"
)

func TestEstimateStakeLocalOnly(t *testing.T) {
	e := EstimateStake(context.Background(), nil, tokens(100), 30)

	if e.Local.Cmp(tokens(3600)) != 0 || e.Normal.Cmp(tokens(3000)) != 0 {
		t.Errorf("Local/Normal = %s/%s, want 3600/3000 tokens", e.Local, e.Normal)
	}
	if !e.Multiplier.Equal(decimal.RequireFromString("1.2")) {
		t.Errorf("Multiplier = %s, want 1.2", e.Multiplier)
	}
	if e.Remote != nil {
		t.Errorf("Remote = %s without a source", e.Remote)
	}
	if e.Power() != e.Local {
		t.Error("Power() should fall back to the local estimate")
	}
	if e.ExceedsCap {
		t.Error("30 days flagged as exceeding the cap")
	}
}

func TestEstimateStakeRemote(t *testing.T) {
	mock := newMock(newFakeClock(epoch))

	e := EstimateStake(context.Background(), mock, tokens(100), 30)
	if e.Remote == nil || e.Remote.Cmp(e.Local) != 0 {
		t.Errorf("Remote = %v, want %s", e.Remote, e.Local)
	}

	long := EstimateStake(context.Background(), mock, tokens(100), 500)
	if !long.ExceedsCap {
		t.Error("500 days should exceed the reward cap")
	}
	if want := power.EstimatePower(tokens(100), power.MaxRewardedDays); long.Remote.Cmp(want) != 0 {
		t.Errorf("Remote for 500 days = %s, want capped %s", long.Remote, want)
	}
}

func TestEstimateStakeRemoteFailure(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	mock.FailRead("calculateDSIPower", errors.New("execution reverted"))

	e := EstimateStake(context.Background(), mock, tokens(100), 30)
	if e.Remote != nil {
		t.Errorf("Remote = %s after a failed call", e.Remote)
	}
	if e.Power().Cmp(tokens(3600)) != 0 {
		t.Errorf("Power() = %s, want local estimate", e.Power())
	}
}

func TestEstimateStakeSkipsRemoteForEmptyInput(t *testing.T) {
	mock := newMock(newFakeClock(epoch))
	if e := EstimateStake(context.Background(), mock, tokens(0), 30); e.Remote != nil {
		t.Error("remote consulted for a zero amount")
	}
	if e := EstimateStake(context.Background(), mock, tokens(5), 0); e.Remote != nil {
		t.Error("remote consulted for zero days")
	}
}
