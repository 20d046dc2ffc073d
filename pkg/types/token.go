package types

import "strings"

// Token identifies an asset by (address, chain id)
type Token struct {
	Address  string  `json:"address" yaml:"address"`
	ChainID  int64   `json:"chainId" yaml:"chain_id"`
	Symbol   string  `json:"symbol" yaml:"symbol"`
	Name     string  `json:"name" yaml:"name"`
	Decimals int     `json:"decimals" yaml:"decimals"`
	LogoURI  string  `json:"logoURI,omitempty" yaml:"logo_uri"`
	PriceUSD float64 `json:"priceUSD,omitempty" yaml:"-"`
}

// Same reports whether two tokens refer to the same asset on the same chain
func (t Token) Same(other Token) bool {
	return t.ChainID == other.ChainID && strings.EqualFold(t.Address, other.Address)
}

// Matches reports whether the token satisfies a search query: a
// case-insensitive substring of symbol or name, or an exact address
func (t Token) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	return strings.Contains(strings.ToLower(t.Symbol), q) ||
		strings.Contains(strings.ToLower(t.Name), q) ||
		strings.ToLower(t.Address) == q
}

// TokenWithBalance is a token held by a wallet
type TokenWithBalance struct {
	Token
	Amount     string  `json:"amount"`
	Balance    float64 `json:"balance"`
	BalanceUSD float64 `json:"balanceUSD"`
}
