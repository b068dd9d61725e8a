package staking

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/power"
)

// Estimate previews a stake before it is submitted. Local figures come from
// the client-side curve; Remote is the contract's answer when available.
type Estimate struct {
	Amount     *big.Int
	Days       uint64
	Local      *big.Int
	Normal     *big.Int
	Multiplier decimal.Decimal
	Remote     *big.Int
	ExceedsCap bool
}

// EstimateStake computes the preview. src may be nil; a failed remote call is
// logged and leaves Remote nil.
func EstimateStake(ctx context.Context, src PowerSource, amount *big.Int, days uint64) Estimate {
	e := Estimate{
		Amount:     amount,
		Days:       days,
		Local:      power.EstimatePower(amount, days),
		Normal:     power.NormalPower(amount, days),
		Multiplier: power.Multiplier(amount, days),
		ExceedsCap: power.ExceedsRewardCap(days),
	}
	if src == nil || amount == nil || amount.Sign() <= 0 || days == 0 {
		return e
	}

	rewarded := days
	if rewarded > power.MaxRewardedDays {
		rewarded = power.MaxRewardedDays
	}
	remote, err := src.CalculatePower(ctx, amount, rewarded*SecondsPerDay)
	if err != nil {
		logging.Warn("remote power estimate failed", logging.Err(&ReadError{Method: "calculateDSIPower", Err: err}))
		return e
	}
	e.Remote = remote
	return e
}

// Power returns the contract's figure when known, else the local estimate.
func (e Estimate) Power() *big.Int {
	if e.Remote != nil {
		return e.Remote
	}
	return e.Local
}
