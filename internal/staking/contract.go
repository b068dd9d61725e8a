package staking

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dsistake/dsistake/internal/chain"
	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/metrics"
)

// rawStake mirrors the getAllStakes tuple; field names must match the ABI
// component names after camel-casing.
type rawStake struct {
	Amount    *big.Int
	StartTime *big.Int
	EndTime   *big.Int
	DsiPower  *big.Int
	Claimed   bool
}

// Contract talks to the deployed DSIStaking contract and its token. Bound
// contracts are built per call from the client's current backend so a network
// switch takes effect immediately.
type Contract struct {
	client     *chain.Client
	address    common.Address
	stakingABI abi.ABI
	tokenABI   abi.ABI
	metrics    *metrics.Collector
	switchAsk  chain.SwitchPrompt

	tokenMu   sync.Mutex
	tokenAddr common.Address
}

// ContractOption configures a Contract.
type ContractOption func(*Contract)

// WithMetrics records read and transaction counters.
func WithMetrics(m *metrics.Collector) ContractOption {
	return func(c *Contract) { c.metrics = m }
}

// WithSwitchPrompt sets the callback asked before switching networks ahead of
// a signing operation.
func WithSwitchPrompt(p chain.SwitchPrompt) ContractOption {
	return func(c *Contract) { c.switchAsk = p }
}

// NewContract binds the staking contract at address.
func NewContract(client *chain.Client, address common.Address, opts ...ContractOption) (*Contract, error) {
	stakingABI, err := abi.JSON(strings.NewReader(DSIStakingABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse staking ABI: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	c := &Contract{
		client:     client,
		address:    address,
		stakingABI: stakingABI,
		tokenABI:   tokenABI,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewSigningContract attaches key to client and checks the network before
// anything is read for the account. A wrong chain the user will not leave
// aborts the connection with a ConnectionError.
func NewSigningContract(ctx context.Context, client *chain.Client, address common.Address, key *ecdsa.PrivateKey, prompt chain.SwitchPrompt, opts ...ContractOption) (*Contract, error) {
	client.SetSigner(key)
	if err := client.EnsureNetwork(ctx, prompt); err != nil {
		client.SetSigner(nil)
		return nil, &ConnectionError{Op: "switch network", Err: err}
	}
	if err := client.SyncNonce(ctx); err != nil {
		logging.Warn("failed to sync nonce", logging.Account(client.Address().Hex()), logging.Err(err))
	}
	return NewContract(client, address, append(opts, WithSwitchPrompt(prompt))...)
}

// Address returns the staking contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// Account returns the signing address, or the zero address for a read-only client.
func (c *Contract) Account() common.Address {
	return c.client.Address()
}

func (c *Contract) bound(addr common.Address, parsed abi.ABI) (*bind.BoundContract, error) {
	backend, err := c.client.Backend()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(addr, parsed, backend, backend, backend), nil
}

func (c *Contract) call(ctx context.Context, addr common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	contract, err := c.bound(addr, parsed)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	err = contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	c.metrics.RecordRead(method, err)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out, nil
}

func (c *Contract) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, c.address, c.stakingABI, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want uint256", method, out[0])
	}
	return v, nil
}

// TotalStaked returns the total tokens staked across all users.
func (c *Contract) TotalStaked(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "totalStaked")
}

// TotalStakers returns the number of distinct stakers.
func (c *Contract) TotalStakers(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "totalStakers")
}

// ActiveHolders returns the number of holders with positive active power.
func (c *Contract) ActiveHolders(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "numberOfActiveDSIPowerHolders")
}

// TotalActivePower returns the sum of active power across all holders.
func (c *Contract) TotalActivePower(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "totalActiveDSIPower")
}

// MinimumStake returns the smallest accepted stake amount.
func (c *Contract) MinimumStake(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "minimumStake")
}

// CalculatePower asks the contract for the power of a hypothetical stake.
func (c *Contract) CalculatePower(ctx context.Context, amount *big.Int, durationSeconds uint64) (*big.Int, error) {
	return c.callUint(ctx, "calculateDSIPower", amount, new(big.Int).SetUint64(durationSeconds))
}

// StakingToken returns the token contract address, cached after the first read.
func (c *Contract) StakingToken(ctx context.Context) (common.Address, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.tokenAddr != (common.Address{}) {
		return c.tokenAddr, nil
	}
	out, err := c.call(ctx, c.address, c.stakingABI, "stakingToken")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("stakingToken returned %T, want address", out[0])
	}
	c.tokenAddr = addr
	return addr, nil
}

// TokenBalance returns owner's balance of the staking token.
func (c *Contract) TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	token, err := c.StakingToken(ctx)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, token, c.tokenABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T, want uint256", out[0])
	}
	return v, nil
}

// GetAllStakes returns owner's stakes in on-chain order.
func (c *Contract) GetAllStakes(ctx context.Context, owner common.Address) ([]Stake, error) {
	out, err := c.call(ctx, c.address, c.stakingABI, "getAllStakes", owner)
	if err != nil {
		return nil, err
	}
	raw, ok := abi.ConvertType(out[0], new([]rawStake)).(*[]rawStake)
	if !ok {
		return nil, fmt.Errorf("getAllStakes returned %T", out[0])
	}

	stakes := make([]Stake, len(*raw))
	for i, r := range *raw {
		stakes[i] = Stake{
			Index:     i,
			Amount:    r.Amount,
			StartTime: r.StartTime.Uint64(),
			EndTime:   r.EndTime.Uint64(),
			DSIPower:  r.DsiPower,
			Claimed:   r.Claimed,
		}
	}
	return stakes, nil
}

// EnsureNetwork checks the signing connection's chain, asking to switch when
// it differs from the bound network.
func (c *Contract) EnsureNetwork(ctx context.Context) error {
	return c.client.EnsureNetwork(ctx, c.switchAsk)
}

// transact switches network if needed, signs and sends. A send failure
// resynchronizes the local nonce.
func (c *Contract) transact(ctx context.Context, action string, addr common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Transaction, error) {
	if err := c.EnsureNetwork(ctx); err != nil {
		return nil, err
	}
	contract, err := c.bound(addr, parsed)
	if err != nil {
		return nil, err
	}
	auth, err := c.client.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := contract.Transact(auth, method, args...)
	c.metrics.RecordTransaction(action, err)
	if err != nil {
		if serr := c.client.SyncNonce(ctx); serr != nil {
			logging.Warn("failed to resync nonce", logging.Err(serr))
		}
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}
	logging.Info("transaction sent", "action", action, logging.TxHash(tx.Hash().Hex()), "nonce", tx.Nonce())
	return tx, nil
}

// Approve lets the staking contract pull amount tokens from the signer.
func (c *Contract) Approve(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	token, err := c.StakingToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.transact(ctx, "approve", token, c.tokenABI, "approve", c.address, amount)
}

// Stake locks amount for durationSeconds.
func (c *Contract) Stake(ctx context.Context, amount *big.Int, durationSeconds uint64) (*types.Transaction, error) {
	return c.transact(ctx, "stake", c.address, c.stakingABI, "stake", amount, new(big.Int).SetUint64(durationSeconds))
}

// ClaimSpecificStake claims the stake at index in the signer's array.
func (c *Contract) ClaimSpecificStake(ctx context.Context, index int) (*types.Transaction, error) {
	return c.transact(ctx, "claim", c.address, c.stakingABI, "claimSpecificStake", big.NewInt(int64(index)))
}

// WaitMined blocks until tx is included. There is no local timeout.
func (c *Contract) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return c.client.WaitForTransaction(ctx, tx)
}
