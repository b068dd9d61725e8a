package commands

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"

	"github.com/dsistake/dsistake/internal/chain"
	"github.com/dsistake/dsistake/internal/config"
	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/metrics"
	"github.com/dsistake/dsistake/internal/power"
	"github.com/dsistake/dsistake/internal/staking"
	"github.com/dsistake/dsistake/internal/wallet"
)

// readSource is what the read-only path serves: global stats and power quotes.
type readSource interface {
	staking.StatsSource
	staking.PowerSource
}

// App wires config, chain clients, contracts and the session for one run.
type App struct {
	Config  *config.Config
	Network chain.Network
	Metrics *metrics.Collector
	Stats   *staking.StatsTracker
	Session *staking.Session
	Store   *wallet.SessionStore

	mock *staking.MockContract

	mu      sync.Mutex
	clients []*chain.Client
}

// appOption adjusts an App before its contracts are built.
type appOption func(*App)

// withCollector reuses m so a metrics listener survives an App rebuild.
func withCollector(m *metrics.Collector) appOption {
	return func(a *App) { a.Metrics = m }
}

// newApp loads config and builds the read-only path. No wallet is touched.
func newApp(ctx context.Context, opts ...appOption) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := logging.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Network: networkFromConfig(cfg.Network),
		Metrics: metrics.NewCollector(),
		Store:   wallet.NewSessionStore(cfg.Wallet.SessionFile),
	}
	for _, opt := range opts {
		opt(app)
	}

	var source readSource
	if cfg.Mock {
		app.mock = newDemoContract(demoAccount(cfg.Wallet.KeystoreDir), time.Now())
		source = app.mock
	} else {
		client := chain.NewClient(app.Network, app.chainConfig())
		if err := client.Connect(ctx); err != nil {
			return nil, &staking.ConnectionError{Op: "connect", Err: err}
		}
		app.track(client)

		reader, err := staking.NewContract(client, common.HexToAddress(cfg.Contracts.StakingAddress), staking.WithMetrics(app.Metrics))
		if err != nil {
			app.Close()
			return nil, err
		}
		source = reader
	}

	app.Stats = staking.NewStatsTracker(source, cfg.Client.PollInterval, app.Metrics)
	app.Session = staking.NewSession(app.Stats,
		staking.WithPersister(app.Store),
		staking.WithReconnector(app.gateway),
		staking.WithPowerSource(source),
		staking.WithSessionMetrics(app.Metrics),
	)
	return app, nil
}

func networkFromConfig(n config.NetworkConfig) chain.Network {
	return chain.Network{
		ChainID:      n.ChainID,
		Name:         n.Name,
		Currency:     n.Currency,
		Decimals:     n.Decimals,
		RPCURLs:      n.RPCURLs,
		ExplorerURLs: n.ExplorerURLs,
	}
}

func (a *App) chainConfig() chain.Config {
	cfg := chain.DefaultConfig()
	cfg.BlockConfirmations = a.Config.Client.BlockConfirmations
	cfg.MaxGasPrice = new(big.Int).Mul(big.NewInt(a.Config.Client.MaxGasPriceGwei), big.NewInt(1e9))
	cfg.RateLimit = a.Config.Client.RPCRateLimit
	cfg.Burst = a.Config.Client.RPCBurst
	return cfg
}

func (a *App) track(c *chain.Client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clients = append(a.clients, c)
}

// gateway unlocks the wallet and returns a signing contract for its account.
func (a *App) gateway(ctx context.Context) (staking.Gateway, error) {
	if a.mock != nil {
		return a.mock, nil
	}

	wm, err := wallet.Load(a.Config.Wallet.KeystoreDir)
	if err != nil {
		if errors.Is(err, wallet.ErrNoWallet) {
			return nil, fmt.Errorf("%w in %s: create one with 'dsistake wallet create'", err, a.Config.Wallet.KeystoreDir)
		}
		return nil, err
	}
	password, err := wallet.ResolvePassword(wallet.PasswordSource{
		File:       a.Config.Wallet.PasswordFile,
		UseKeyring: true,
		Prompt:     promptPassword,
	})
	if err != nil {
		return nil, err
	}
	key, err := wm.PrivateKey(password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock wallet (wrong password?): %w", err)
	}

	client := chain.NewClient(a.Network, a.chainConfig())
	if RPCURL != "" {
		err = client.ConnectURL(ctx, RPCURL)
	} else {
		err = client.Connect(ctx)
	}
	if err != nil {
		return nil, err
	}
	a.track(client)

	// The wallet node must serve the bound chain before any account read.
	contract, err := staking.NewSigningContract(ctx, client, common.HexToAddress(a.Config.Contracts.StakingAddress), key,
		confirmSwitch, staking.WithMetrics(a.Metrics))
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// connect binds the session to the local wallet.
func (a *App) connect(ctx context.Context) error {
	gw, err := a.gateway(ctx)
	if err != nil {
		return &staking.ConnectionError{Op: "connect", Err: err}
	}
	return a.Session.Connect(ctx, gw)
}

// resume reconnects silently when the previous run left a cached session.
func (a *App) resume(ctx context.Context) (bool, error) {
	state, err := a.Store.Load()
	if err != nil {
		return false, err
	}
	if !state.CachedProvider {
		return false, nil
	}
	if err := a.connect(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Close stops polling and closes every chain connection.
func (a *App) Close() {
	if a.Stats != nil {
		a.Stats.Stop()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.clients {
		c.Close()
	}
	a.clients = nil
}

// confirmSwitch asks before moving the wallet node to the configured network.
func confirmSwitch(ctx context.Context, current *big.Int, target chain.Network) (bool, error) {
	if AssumeYes {
		return true, nil
	}
	if !isTTY() {
		return false, nil
	}

	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Wallet node is on chain %s. Switch to %s (chain %d)?", current, target.Name, target.ChainID)).
		Affirmative("Switch").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// confirm asks a yes/no question. Without a terminal it requires --yes.
func confirm(title string) (bool, error) {
	if AssumeYes {
		return true, nil
	}
	if !isTTY() {
		return false, errors.New("confirmation required: pass --yes to run non-interactively")
	}

	var ok bool
	if err := huh.NewConfirm().Title(title).Value(&ok).Run(); err != nil {
		return false, err
	}
	return ok, nil
}

func promptPassword() (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", wallet.ErrNoPassword
	}
	fmt.Fprint(os.Stderr, "Enter wallet password: ")
	password, err := readPasswordNoEcho()
	fmt.Fprintln(os.Stderr)
	return password, err
}

var demoPeer = common.HexToAddress("0x00000000000000000000000000000000000d5100")

// demoAccount uses the local wallet's address when one exists.
func demoAccount(dir string) common.Address {
	if accounts, err := wallet.ListAccounts(dir); err == nil && len(accounts) > 0 {
		return accounts[0]
	}
	return common.HexToAddress("0x00000000000000000000000000000000000d5101")
}

// newDemoContract seeds a mock with a balance, one claimable stake, one locked
// stake and another staker so every view has something to show.
func newDemoContract(account common.Address, now time.Time) *staking.MockContract {
	m := staking.NewMockContract(account)
	m.SetBalance(account, demoTokens(10000))
	m.SetMinimumStake(demoTokens(100))

	day := time.Duration(staking.SecondsPerDay) * time.Second
	m.AddStake(account, demoStake(500, now.Add(-40*day), 30))
	m.AddStake(account, demoStake(1000, now.Add(-5*day), 90))
	m.AddStake(demoPeer, demoStake(25000, now.Add(-20*day), 180))
	return m
}

func demoTokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(staking.TokenDecimals), nil))
}

func demoStake(n int64, start time.Time, days uint64) staking.Stake {
	amount := demoTokens(n)
	begin := uint64(start.Unix())
	return staking.Stake{
		Amount:    amount,
		StartTime: begin,
		EndTime:   begin + days*staking.SecondsPerDay,
		DSIPower:  power.EstimatePower(amount, days),
	}
}
