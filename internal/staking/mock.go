package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/power"
)

// MockContract is an in-memory stand-in for the staking contract and its
// token. Effects of a transaction apply when it is waited on, so a revert can
// be injected between submission and inclusion.
type MockContract struct {
	mu sync.Mutex

	account common.Address
	address common.Address
	now     func() time.Time

	minimum    *big.Int
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
	stakes     map[common.Address][]Stake
	stakers    map[common.Address]bool
	totalStake *big.Int

	nonce   uint64
	pending map[common.Hash]func() error
	sent    []string
	readErr map[string]error
	sendErr map[string]error
	revert  map[string]error
}

// NewMockContract creates a mock bound to account.
func NewMockContract(account common.Address) *MockContract {
	return &MockContract{
		account:    account,
		address:    common.HexToAddress("0x000000000000000000000000000000000000d51a"),
		now:        time.Now,
		minimum:    new(big.Int),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
		stakes:     make(map[common.Address][]Stake),
		stakers:    make(map[common.Address]bool),
		totalStake: new(big.Int),
		pending:    make(map[common.Hash]func() error),
		readErr:    make(map[string]error),
		sendErr:    make(map[string]error),
		revert:     make(map[string]error),
	}
}

// SetClock replaces the mock's notion of the current time.
func (m *MockContract) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetBalance sets an account's token balance.
func (m *MockContract) SetBalance(account common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = new(big.Int).Set(amount)
}

// SetMinimumStake sets the minimum accepted stake.
func (m *MockContract) SetMinimumStake(amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minimum = new(big.Int).Set(amount)
}

// AddStake seeds a stake record for owner without touching balances.
func (m *MockContract) AddStake(owner common.Address, s Stake) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Index = len(m.stakes[owner])
	s.Amount = copyBig(s.Amount)
	s.DSIPower = copyBig(s.DSIPower)
	m.stakes[owner] = append(m.stakes[owner], s)
	m.stakers[owner] = true
	if !s.Claimed {
		m.totalStake.Add(m.totalStake, s.Amount)
	}
}

// FailRead makes every call to a read method return err. Pass nil to clear.
func (m *MockContract) FailRead(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setOrClear(m.readErr, method, err)
}

// FailSend makes submitting action ("approve", "stake", "claim") fail.
func (m *MockContract) FailSend(action string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setOrClear(m.sendErr, action, err)
}

// Revert makes transactions for action revert when waited on.
func (m *MockContract) Revert(action string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setOrClear(m.revert, action, err)
}

func (m *MockContract) setOrClear(set map[string]error, key string, err error) {
	if err == nil {
		delete(set, key)
		return
	}
	set[key] = err
}

// Sent returns the actions of all submitted transactions, in order.
func (m *MockContract) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// Allowance returns what the staking contract may pull from owner.
func (m *MockContract) Allowance(owner common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyBig(m.balanceIn(m.allowances, owner))
}

func (m *MockContract) Account() common.Address {
	return m.account
}

func (m *MockContract) read(method string) error {
	if err := m.readErr[method]; err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	return nil
}

func (m *MockContract) balanceIn(set map[common.Address]*big.Int, a common.Address) *big.Int {
	if v, ok := set[a]; ok {
		return v
	}
	return new(big.Int)
}

func (m *MockContract) TotalStaked(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read("totalStaked"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(m.totalStake), nil
}

func (m *MockContract) TotalStakers(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read("totalStakers"); err != nil {
		return nil, err
	}
	return big.NewInt(int64(len(m.stakers))), nil
}

func (m *MockContract) ActiveHolders(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read("numberOfActiveDSIPowerHolders"); err != nil {
		return nil, err
	}
	now := m.now()
	holders := 0
	for _, stakes := range m.stakes {
		for _, s := range stakes {
			if s.IsPowerActive(now) {
				holders++
				break
			}
		}
	}
	return big.NewInt(int64(holders)), nil
}

func (m *MockContract) TotalActivePower(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read("totalActiveDSIPower"); err != nil {
		return nil, err
	}
	now := m.now()
	total := new(big.Int)
	for _, stakes := range m.stakes {
		for _, s := range stakes {
			if s.IsPowerActive(now) {
				total.Add(total, s.DSIPower)
			}
		}
	}
	return total, nil
}

func (m *MockContract) MinimumStake(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read("minimumStake"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(m.minimum), nil
}

func (m *MockContract) TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read("balanceOf"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(m.balanceIn(m.balances, owner)), nil
}

func (m *MockContract) GetAllStakes(ctx context.Context, owner common.Address) ([]Stake, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read("getAllStakes"); err != nil {
		return nil, err
	}
	out := make([]Stake, len(m.stakes[owner]))
	for i, s := range m.stakes[owner] {
		s.Amount = copyBig(s.Amount)
		s.DSIPower = copyBig(s.DSIPower)
		out[i] = s
	}
	return out, nil
}

// CalculatePower applies the power curve to whole days of durationSeconds.
func (m *MockContract) CalculatePower(ctx context.Context, amount *big.Int, durationSeconds uint64) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read("calculateDSIPower"); err != nil {
		return nil, err
	}
	return power.EstimatePower(amount, durationSeconds/SecondsPerDay), nil
}

// submit records a transaction whose effect runs on WaitMined.
func (m *MockContract) submit(action string, effect func() error) (*types.Transaction, error) {
	if err := m.sendErr[action]; err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", action, err)
	}
	to := m.address
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    m.nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      100000,
		GasPrice: big.NewInt(1),
		Data:     []byte(action),
	})
	m.nonce++
	m.sent = append(m.sent, action)

	if rerr := m.revert[action]; rerr != nil {
		effect = func() error { return rerr }
	}
	m.pending[tx.Hash()] = effect
	logging.Debug("mock transaction sent", "action", action, logging.TxHash(tx.Hash().Hex()))
	return tx, nil
}

func (m *MockContract) Approve(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := m.account
	amt := new(big.Int).Set(amount)
	return m.submit("approve", func() error {
		m.allowances[owner] = amt
		return nil
	})
}

func (m *MockContract) Stake(ctx context.Context, amount *big.Int, durationSeconds uint64) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := m.account
	amt := new(big.Int).Set(amount)
	return m.submit("stake", func() error {
		switch {
		case amt.Sign() <= 0 || durationSeconds == 0:
			return errors.New("execution reverted: invalid stake")
		case amt.Cmp(m.minimum) < 0:
			return errors.New("execution reverted: amount below minimum stake")
		case m.balanceIn(m.allowances, owner).Cmp(amt) < 0:
			return errors.New("execution reverted: ERC20: insufficient allowance")
		case m.balanceIn(m.balances, owner).Cmp(amt) < 0:
			return errors.New("execution reverted: ERC20: transfer amount exceeds balance")
		}
		start := unix(m.now())
		s := Stake{
			Index:     len(m.stakes[owner]),
			Amount:    amt,
			StartTime: start,
			EndTime:   start + durationSeconds,
			DSIPower:  power.EstimatePower(amt, durationSeconds/SecondsPerDay),
		}
		m.stakes[owner] = append(m.stakes[owner], s)
		m.stakers[owner] = true
		m.balances[owner] = new(big.Int).Sub(m.balanceIn(m.balances, owner), amt)
		m.allowances[owner] = new(big.Int).Sub(m.balanceIn(m.allowances, owner), amt)
		m.totalStake.Add(m.totalStake, amt)
		return nil
	})
}

func (m *MockContract) ClaimSpecificStake(ctx context.Context, index int) (*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := m.account
	return m.submit("claim", func() error {
		stakes := m.stakes[owner]
		if index < 0 || index >= len(stakes) {
			return errors.New("execution reverted: invalid stake index")
		}
		s := &stakes[index]
		if s.Claimed {
			return errors.New("execution reverted: stake already claimed")
		}
		if !s.IsClaimable(m.now()) {
			return errors.New("execution reverted: stake is still locked")
		}
		s.Claimed = true
		m.balances[owner] = new(big.Int).Add(m.balanceIn(m.balances, owner), s.Amount)
		m.totalStake.Sub(m.totalStake, s.Amount)
		return nil
	})
}

// WaitMined applies the transaction's effect and returns a receipt.
func (m *MockContract) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	effect, ok := m.pending[tx.Hash()]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %s", tx.Hash().Hex())
	}
	delete(m.pending, tx.Hash())

	receipt := &types.Receipt{
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(tx.Nonce() + 1),
		Status:      types.ReceiptStatusSuccessful,
	}
	if err := effect(); err != nil {
		receipt.Status = types.ReceiptStatusFailed
		return receipt, fmt.Errorf("transaction reverted: %w", err)
	}
	return receipt, nil
}
