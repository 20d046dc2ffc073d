package types

import "strings"

// ChainType tags the execution environment of a chain
type ChainType string

const (
	ChainTypeEVM    ChainType = "evm"
	ChainTypeNonEVM ChainType = "non-evm"
)

// NativeTokenAddress is the placeholder address used for a chain's native asset
const NativeTokenAddress = "0x0000000000000000000000000000000000000000"

// Currency describes a chain's native currency
type Currency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// Chain is a static chain descriptor
type Chain struct {
	ID             int64     `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	ShortName      string    `json:"shortName" yaml:"short_name"`
	NativeCurrency Currency  `json:"nativeCurrency" yaml:"native_currency"`
	Type           ChainType `json:"type" yaml:"type"`
	RPCURL         string    `json:"-" yaml:"rpc_url"`
	ExplorerURL    string    `json:"explorerUrl,omitempty" yaml:"explorer_url"`
	LogoURI        string    `json:"logoURI,omitempty" yaml:"logo_uri"`
	OneClickCode   string    `json:"-" yaml:"oneclick_code"`
}

// IsEVM reports whether the chain runs the EVM
func (c Chain) IsEVM() bool {
	return c.Type == ChainTypeEVM
}

// SolanaNativeMint is the mint providers use for native SOL
const SolanaNativeMint = "So11111111111111111111111111111111111111112"

// IsNativeToken reports whether address denotes a chain's native asset.
// The zero address, the 0xEeee... convention and the SOL mint are accepted.
func IsNativeToken(address string) bool {
	if address == SolanaNativeMint {
		return true
	}
	addr := strings.ToLower(address)
	return addr == NativeTokenAddress || addr == "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
}
