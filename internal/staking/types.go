package staking

import (
	"fmt"
	"math/big"
	"time"
)

// SecondsPerDay converts user-facing durations to the contract's seconds.
const SecondsPerDay = 24 * 60 * 60

// Stake is one deposit record as returned by getAllStakes. It is addressed by
// Index, its position in the owner's on-chain array.
type Stake struct {
	Index     int
	Amount    *big.Int
	StartTime uint64
	EndTime   uint64
	DSIPower  *big.Int
	Claimed   bool
}

// IsClaimable reports whether the stake is unclaimed and its lock has ended.
func (s Stake) IsClaimable(now time.Time) bool {
	return !s.Claimed && s.EndTime <= unix(now)
}

// IsPowerActive reports whether the stake still contributes active power.
func (s Stake) IsPowerActive(now time.Time) bool {
	return !s.Claimed && s.EndTime > unix(now)
}

// Matches compares the (amount, startTime, endTime) triple that identifies a
// stake when its index may have moved.
func (s Stake) Matches(o Stake) bool {
	return s.StartTime == o.StartTime && s.EndTime == o.EndTime && cmpBig(s.Amount, o.Amount) == 0
}

// DurationDays is the lock length rounded down to whole days.
func (s Stake) DurationDays() uint64 {
	if s.EndTime <= s.StartTime {
		return 0
	}
	return (s.EndTime - s.StartTime) / SecondsPerDay
}

// End returns the unlock time.
func (s Stake) End() time.Time {
	return time.Unix(int64(s.EndTime), 0)
}

// TimeLeft renders the remaining lock time the way the stake list shows it.
func (s Stake) TimeLeft(now time.Time) string {
	n := unix(now)
	if s.EndTime <= n {
		return "Ready to claim"
	}
	left := s.EndTime - n
	days := left / SecondsPerDay
	hours := (left % SecondsPerDay) / 3600
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh left", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh left", hours)
	default:
		return "< 1h left"
	}
}

// GlobalStats are the protocol-wide figures. A nil field has never been read
// successfully.
type GlobalStats struct {
	TotalStaked      *big.Int
	TotalStakers     *big.Int
	ActiveHolders    *big.Int
	TotalActivePower *big.Int
	UpdatedAt        time.Time
}

func (g GlobalStats) clone() GlobalStats {
	return GlobalStats{
		TotalStaked:      copyBig(g.TotalStaked),
		TotalStakers:     copyBig(g.TotalStakers),
		ActiveHolders:    copyBig(g.ActiveHolders),
		TotalActivePower: copyBig(g.TotalActivePower),
		UpdatedAt:        g.UpdatedAt,
	}
}

func unix(t time.Time) uint64 {
	if t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}

func copyBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

// cmpBig compares with nil treated as zero.
func cmpBig(a, b *big.Int) int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}
