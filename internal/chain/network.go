package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	// ErrSwitchDeclined is returned when the user refuses a network switch.
	ErrSwitchDeclined = errors.New("network switch declined")
	// ErrUnknownNetwork is returned when no endpoint is known for the target network.
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrChainMismatch is returned when an endpoint serves a different chain than expected.
	ErrChainMismatch = errors.New("chain id mismatch")
	// ErrNotConnected is returned by calls made before Dial or after Close.
	ErrNotConnected = errors.New("not connected")
	// ErrNoSigner is returned by write calls when no private key is attached.
	ErrNoSigner = errors.New("no signing key configured")
)

// Network is the single chain the client is bound to.
type Network struct {
	ChainID      int64
	Name         string
	Currency     string
	Decimals     int
	RPCURLs      []string
	ExplorerURLs []string
}

// ChainIDBig returns the chain id as a big.Int.
func (n Network) ChainIDBig() *big.Int {
	return big.NewInt(n.ChainID)
}

// TxURL links to a transaction on the first configured explorer, or "" if none.
func (n Network) TxURL(hash string) string {
	if len(n.ExplorerURLs) == 0 {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", trimSlash(n.ExplorerURLs[0]), hash)
}

// AddressURL links to an address on the first configured explorer, or "" if none.
func (n Network) AddressURL(addr string) string {
	if len(n.ExplorerURLs) == 0 {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", trimSlash(n.ExplorerURLs[0]), addr)
}

// NativeCurrency is the currency block of an add-chain request.
type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// AddChainParams is the payload a wallet expects when asked to add the network
// (wallet_addEthereumChain).
type AddChainParams struct {
	ChainID           string         `json:"chainId" yaml:"chainId"`
	ChainName         string         `json:"chainName" yaml:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls" yaml:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls" yaml:"blockExplorerUrls"`
}

// AddChainParams builds the add-network payload for this network.
func (n Network) AddChainParams() AddChainParams {
	return AddChainParams{
		ChainID:   hexutil.EncodeBig(n.ChainIDBig()),
		ChainName: n.Name,
		NativeCurrency: NativeCurrency{
			Name:     n.Currency,
			Symbol:   n.Currency,
			Decimals: n.Decimals,
		},
		RPCURLs:           n.RPCURLs,
		BlockExplorerURLs: n.ExplorerURLs,
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
