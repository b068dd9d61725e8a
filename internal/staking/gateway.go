package staking

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// StatsSource is the read-only path for protocol-wide figures.
type StatsSource interface {
	TotalStaked(ctx context.Context) (*big.Int, error)
	TotalStakers(ctx context.Context) (*big.Int, error)
	ActiveHolders(ctx context.Context) (*big.Int, error)
	TotalActivePower(ctx context.Context) (*big.Int, error)
}

// StakeReader fetches an owner's full stake array.
type StakeReader interface {
	GetAllStakes(ctx context.Context, owner common.Address) ([]Stake, error)
}

// PowerSource asks the contract for its authoritative power figure.
type PowerSource interface {
	CalculatePower(ctx context.Context, amount *big.Int, durationSeconds uint64) (*big.Int, error)
}

// Gateway is the signing path bound to the connected account.
type Gateway interface {
	StatsSource
	StakeReader
	PowerSource

	Account() common.Address
	MinimumStake(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error)

	Approve(ctx context.Context, amount *big.Int) (*types.Transaction, error)
	Stake(ctx context.Context, amount *big.Int, durationSeconds uint64) (*types.Transaction, error)
	ClaimSpecificStake(ctx context.Context, index int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// NetworkChecker is a gateway that can verify, or with the user's consent
// switch, the chain it signs on. Session.Connect calls it before any read.
type NetworkChecker interface {
	EnsureNetwork(ctx context.Context) error
}
