// Package chain manages the RPC connection to the single supported network:
// dialing with endpoint fallback, chain-id checks, network switching, nonce
// tracking and transaction confirmation.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/util"
)

// DialFunc opens an RPC connection to url.
type DialFunc func(ctx context.Context, url string) (*ethclient.Client, error)

// SwitchPrompt asks the user whether to move from the current chain to target.
type SwitchPrompt func(ctx context.Context, current *big.Int, target Network) (bool, error)

// Backend is what bound contracts and receipt waits need from a connection.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Config holds connection tuning
type Config struct {
	BlockConfirmations int
	MaxGasPrice        *big.Int
	// RateLimit caps contract reads per second. Zero disables limiting.
	RateLimit    float64
	Burst        int
	RetryConfig  *util.RetryConfig
	Dial         DialFunc
	PollInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BlockConfirmations: 0,
		MaxGasPrice:        big.NewInt(20e9),
		RateLimit:          10,
		Burst:              5,
		RetryConfig:        util.DefaultRetryConfig(),
		PollInterval:       2 * time.Second,
	}
}

// rateLimitedBackend throttles eth_call so polling and bursts of parallel
// reads stay under public RPC limits.
type rateLimitedBackend struct {
	*ethclient.Client
	limiter *rate.Limiter
}

func (b *rateLimitedBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return b.Client.CallContract(ctx, msg, block)
}

// Client is a connection to one network, optionally with a signing key.
type Client struct {
	config    Config
	network   Network
	endpoints *endpointSet
	limiter   *rate.Limiter

	privateKey *ecdsa.PrivateKey
	address    common.Address

	// Nonce management
	nonceMu      sync.Mutex
	pendingNonce uint64

	mu      sync.RWMutex
	client  *ethclient.Client
	backend *rateLimitedBackend
	url     string
	chainID *big.Int
}

// NewClient creates an unconnected client for network.
func NewClient(network Network, config Config) *Client {
	if config.Dial == nil {
		config.Dial = ethclient.DialContext
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		config:    config,
		network:   network,
		endpoints: newEndpointSet(network.RPCURLs),
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// Network returns the network this client is bound to.
func (c *Client) Network() Network {
	return c.network
}

// Connect dials the network's RPC endpoints, best first, and keeps the first
// one that answers with the expected chain id.
func (c *Client) Connect(ctx context.Context) error {
	urls := c.endpoints.ordered()
	if len(urls) == 0 {
		return fmt.Errorf("%w: no rpc endpoints for chain %d", ErrUnknownNetwork, c.network.ChainID)
	}

	expected := c.network.ChainIDBig()
	var errs []error
	for _, url := range urls {
		start := time.Now()
		client, chainID, err := c.dial(ctx, url, expected)
		if err != nil {
			c.endpoints.failure(url)
			logging.Warn("rpc endpoint unavailable", "url", url, logging.Err(err))
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		c.endpoints.success(url, time.Since(start))
		c.swap(client, url, chainID)
		logging.Debug("connected to rpc endpoint", "url", url, "chain_id", chainID.String())
		return nil
	}
	return fmt.Errorf("failed to connect to %s: %w", c.network.Name, errors.Join(errs...))
}

// ConnectURL dials a specific endpoint, such as the wallet's own node, without
// requiring it to serve the expected chain. Call EnsureNetwork before signing.
func (c *Client) ConnectURL(ctx context.Context, url string) error {
	client, chainID, err := c.dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	c.swap(client, url, chainID)
	return nil
}

func (c *Client) dial(ctx context.Context, url string, expected *big.Int) (*ethclient.Client, *big.Int, error) {
	type dialed struct {
		client  *ethclient.Client
		chainID *big.Int
	}
	d, result := util.RetryWithValue(ctx, c.config.RetryConfig, func() (dialed, error) {
		client, err := c.config.Dial(ctx, url)
		if err != nil {
			return dialed{}, err
		}
		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return dialed{}, fmt.Errorf("failed to get chain ID: %w", err)
		}
		if expected != nil && chainID.Cmp(expected) != 0 {
			client.Close()
			return dialed{}, util.MarkNonRetryable(fmt.Errorf("%w: expected %s, got %s", ErrChainMismatch, expected, chainID))
		}
		return dialed{client: client, chainID: chainID}, nil
	})
	if result.LastError != nil {
		return nil, nil, result.LastError
	}
	return d.client, d.chainID, nil
}

func (c *Client) swap(client *ethclient.Client, url string, chainID *big.Int) {
	c.mu.Lock()
	old := c.client
	c.client = client
	c.backend = &rateLimitedBackend{Client: client, limiter: c.limiter}
	c.url = url
	c.chainID = chainID
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// EnsureNetwork checks that the connection serves the bound network. When it
// does not, the user is asked to switch; on acceptance the client reconnects
// to the network's own endpoints.
func (c *Client) EnsureNetwork(ctx context.Context, prompt SwitchPrompt) error {
	current, err := c.RemoteChainID(ctx)
	if err != nil {
		return err
	}
	if current.Cmp(c.network.ChainIDBig()) == 0 {
		return nil
	}
	if len(c.network.RPCURLs) == 0 {
		return fmt.Errorf("%w: chain %d has no rpc endpoints", ErrUnknownNetwork, c.network.ChainID)
	}
	if prompt == nil {
		return fmt.Errorf("%w: connected to chain %s, expected %d", ErrSwitchDeclined, current, c.network.ChainID)
	}

	ok, err := prompt(ctx, current, c.network)
	if err != nil {
		return fmt.Errorf("network switch prompt failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: connected to chain %s, expected %d", ErrSwitchDeclined, current, c.network.ChainID)
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	logging.Info("switched network", "from", current.String(), "to", c.network.ChainID, "name", c.network.Name)

	if c.HasSigner() {
		return c.SyncNonce(ctx)
	}
	return nil
}

// RemoteChainID asks the connected endpoint for its chain id.
func (c *Client) RemoteChainID(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConnected
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return id, nil
}

// ChainID returns the chain id observed at connect time.
func (c *Client) ChainID() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.chainID == nil {
		return nil
	}
	return new(big.Int).Set(c.chainID)
}

// URL returns the endpoint currently in use.
func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

// Backend returns the current contract backend. It changes after a network switch.
func (c *Client) Backend() (Backend, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.backend == nil {
		return nil, ErrNotConnected
	}
	return c.backend, nil
}

// IsConnected returns true once Connect or ConnectURL succeeded.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
		c.backend = nil
	}
}

// SetSigner attaches a private key for write calls. Pass nil to detach.
func (c *Client) SetSigner(key *ecdsa.PrivateKey) {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	c.privateKey = key
	c.pendingNonce = 0
	if key != nil {
		c.address = crypto.PubkeyToAddress(key.PublicKey)
	} else {
		c.address = common.Address{}
	}
}

// HasSigner reports whether a signing key is attached.
func (c *Client) HasSigner() bool {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	return c.privateKey != nil
}

// Address returns the signer address
func (c *Client) Address() common.Address {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	return c.address
}

// GetTransactOpts creates transaction options for signing. Each call reserves
// the next local nonce; call SyncNonce after a failed send.
func (c *Client) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	c.mu.RLock()
	client := c.client
	chainID := c.chainID
	c.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConnected
	}

	c.nonceMu.Lock()
	key := c.privateKey
	c.nonceMu.Unlock()
	if key == nil {
		return nil, ErrNoSigner
	}
	if chainID.Cmp(c.network.ChainIDBig()) != 0 {
		return nil, fmt.Errorf("%w: connected to chain %s, expected %d", ErrChainMismatch, chainID, c.network.ChainID)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if c.config.MaxGasPrice != nil && c.config.MaxGasPrice.Sign() > 0 && gasPrice.Cmp(c.config.MaxGasPrice) > 0 {
		gasPrice = new(big.Int).Set(c.config.MaxGasPrice)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	auth.GasPrice = gasPrice

	c.nonceMu.Lock()
	auth.Nonce = new(big.Int).SetUint64(c.pendingNonce)
	c.pendingNonce++
	c.nonceMu.Unlock()

	return auth, nil
}

// SyncNonce synchronizes the local nonce with the network's pending nonce.
func (c *Client) SyncNonce(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return ErrNotConnected
	}

	addr := c.Address()
	nonce, err := client.PendingNonceAt(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}

	c.nonceMu.Lock()
	c.pendingNonce = nonce
	c.nonceMu.Unlock()
	return nil
}

// PendingNonce returns the next nonce the client will use.
func (c *Client) PendingNonce() uint64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	return c.pendingNonce
}

// WaitForTransaction blocks until tx is mined and has the configured number of
// confirmations. There is no local timeout; cancel ctx to stop waiting.
func (c *Client) WaitForTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConnected
	}

	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("transaction reverted: %s", tx.Hash().Hex())
	}

	if c.config.BlockConfirmations <= 0 {
		return receipt, nil
	}

	target := receipt.BlockNumber.Uint64() + uint64(c.config.BlockConfirmations)
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		case <-ticker.C:
			current, err := client.BlockNumber(ctx)
			if err != nil {
				continue
			}
			if current >= target {
				return receipt, nil
			}
		}
	}
}
