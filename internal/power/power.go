// Package power mirrors the staking contract's DSI power curve for display.
//
// Every function here is pure. Results are estimates: the value stored on a
// stake by the contract is authoritative and is never replaced by these.
package power

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxRewardedDays is the longest lock period that still increases power.
const MaxRewardedDays = 365

// bonusDivisor is 30/0.2: each rewarded day adds 1/150 to the multiplier.
const bonusDivisor = 150

// sharePrecision is the number of decimal places kept in a power share.
const sharePrecision = 18

// EstimatePower returns amount * d * (1 + d/150) with d = min(days, 365),
// floored to base units.
func EstimatePower(amount *big.Int, days uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || days == 0 {
		return new(big.Int)
	}
	d := days
	if d > MaxRewardedDays {
		d = MaxRewardedDays
	}

	dd := new(big.Int).SetUint64(d)
	p := new(big.Int).Mul(amount, dd)
	p.Mul(p, new(big.Int).Add(big.NewInt(bonusDivisor), dd))
	return p.Quo(p, big.NewInt(bonusDivisor))
}

// NormalPower is the uncapped baseline amount * days.
func NormalPower(amount *big.Int, days uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Mul(amount, new(big.Int).SetUint64(days))
}

// Multiplier is EstimatePower / NormalPower, or zero when the baseline is zero.
func Multiplier(amount *big.Int, days uint64) decimal.Decimal {
	normal := NormalPower(amount, days)
	if normal.Sign() == 0 {
		return decimal.Zero
	}
	est := EstimatePower(amount, days)
	return decimal.NewFromBigInt(est, 0).DivRound(decimal.NewFromBigInt(normal, 0), 4)
}

// ExceedsRewardCap reports whether a lock period is longer than the rewarded
// window, meaning extra days lock tokens without adding power.
func ExceedsRewardCap(days uint64) bool {
	return days > MaxRewardedDays
}

// SharePercent returns 100 * user / total, or zero when total is nil or zero.
func SharePercent(user, total *big.Int) decimal.Decimal {
	if total == nil || total.Sign() <= 0 || user == nil || user.Sign() <= 0 {
		return decimal.Zero
	}
	u := decimal.NewFromBigInt(user, 0).Mul(decimal.NewFromInt(100))
	return u.DivRound(decimal.NewFromBigInt(total, 0), sharePrecision)
}

var tierThresholds = []struct {
	min  decimal.Decimal
	tier int
}{
	{decimal.NewFromInt(1), 5},
	{decimal.New(1, -1), 4},
	{decimal.New(1, -2), 3},
	{decimal.New(1, -3), 2},
}

// Tier maps a power share percentage onto the 0..5 ladder. The highest
// matching threshold wins; any positive share is at least tier 1.
func Tier(sharePercent decimal.Decimal) int {
	for _, t := range tierThresholds {
		if sharePercent.GreaterThanOrEqual(t.min) {
			return t.tier
		}
	}
	if sharePercent.IsPositive() {
		return 1
	}
	return 0
}
