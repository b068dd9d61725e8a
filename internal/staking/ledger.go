package staking

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LedgerView is the owner's stake array plus the views derived from it.
// TotalUnclaimed sums Amount over unclaimed stakes; ActivePower sums DSIPower
// over unclaimed stakes that are still locked.
type LedgerView struct {
	Owner          common.Address
	Stakes         []Stake
	Active         []Stake
	Claimable      []Stake
	TotalUnclaimed *big.Int
	ActivePower    *big.Int
	RefreshedAt    time.Time
}

// Derive computes the derived views of stakes at now.
func Derive(owner common.Address, stakes []Stake, now time.Time) LedgerView {
	v := LedgerView{
		Owner:          owner,
		Stakes:         stakes,
		TotalUnclaimed: new(big.Int),
		ActivePower:    new(big.Int),
		RefreshedAt:    now,
	}
	for _, s := range stakes {
		if s.Claimed {
			continue
		}
		v.Active = append(v.Active, s)
		v.TotalUnclaimed.Add(v.TotalUnclaimed, s.Amount)
		if s.IsClaimable(now) {
			v.Claimable = append(v.Claimable, s)
		} else if s.DSIPower != nil {
			v.ActivePower.Add(v.ActivePower, s.DSIPower)
		}
	}
	return v
}

// Ledger mirrors one owner's on-chain stakes. Each refresh replaces the
// whole local copy.
type Ledger struct {
	reader StakeReader
	now    func() time.Time

	mu   sync.RWMutex
	view LedgerView
}

// NewLedger creates an empty ledger reading from reader.
func NewLedger(reader StakeReader, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{reader: reader, now: now, view: Derive(common.Address{}, nil, time.Time{})}
}

// Refresh fetches owner's stakes and replaces the cached view. On error the
// previous view is kept.
func (l *Ledger) Refresh(ctx context.Context, owner common.Address) (LedgerView, error) {
	stakes, err := l.reader.GetAllStakes(ctx, owner)
	if err != nil {
		return l.View(), &ReadError{Method: "getAllStakes", Err: err}
	}
	view := Derive(owner, stakes, l.now())

	l.mu.Lock()
	l.view = view
	l.mu.Unlock()
	return view, nil
}

// View returns the cached view re-derived at the current time, so stakes
// that matured since the last refresh show as claimable.
func (l *Ledger) View() LedgerView {
	l.mu.RLock()
	v := l.view
	l.mu.RUnlock()
	if v.Stakes == nil {
		return v
	}
	out := Derive(v.Owner, v.Stakes, l.now())
	out.RefreshedAt = v.RefreshedAt
	return out
}

// Reset drops all cached stakes.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view = Derive(common.Address{}, nil, time.Time{})
}
