package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidRoute is returned for routes that break the route invariants
var ErrInvalidRoute = errors.New("invalid route")

// Provider names a supported bridge/DEX aggregation provider
type Provider string

const (
	ProviderLiFi     Provider = "lifi"
	ProviderSocket   Provider = "socket"
	ProviderOneClick Provider = "oneclick"
)

// Providers lists every known provider
var Providers = []Provider{ProviderLiFi, ProviderSocket, ProviderOneClick}

// ParseProvider maps a provider name to a known Provider
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

// StepKind is the type of a single hop
type StepKind string

const (
	StepSwap   StepKind = "swap"   // Same-chain swap
	StepBridge StepKind = "bridge" // Cross-chain transfer
	StepCross  StepKind = "cross"  // Combined swap and bridge
)

// RouteTag labels a route in the ranked list
type RouteTag string

const (
	TagBestReturn  RouteTag = "best-return"
	TagFastest     RouteTag = "fastest"
	TagCheapest    RouteTag = "cheapest"
	TagRecommended RouteTag = "recommended"
)

// RouteStep is one atomic hop of a route
type RouteStep struct {
	Kind          StepKind `json:"type"`
	Protocol      string   `json:"protocol"`
	ProtocolLogo  string   `json:"protocolLogo,omitempty"`
	SrcChainID    int64    `json:"srcChainId"`
	DstChainID    int64    `json:"dstChainId"`
	SrcToken      Token    `json:"srcToken"`
	DstToken      Token    `json:"dstToken"`
	SrcAmount     string   `json:"srcAmount"`
	DstAmount     string   `json:"dstAmount"`
	EstimatedTime int      `json:"estimatedTime"`
}

// Route is one end-to-end quote from a single provider
type Route struct {
	ID                   string      `json:"id"`
	Provider             Provider    `json:"adapter"`
	Steps                []RouteStep `json:"steps"`
	SrcToken             Token       `json:"srcToken"`
	DstToken             Token       `json:"dstToken"`
	SrcAmount            string      `json:"srcAmount"`
	DstAmount            string      `json:"dstAmount"`
	DstAmountUSD         float64     `json:"dstAmountUSD"`
	TotalFeeUSD          float64     `json:"totalFeeUSD"`
	GasCostUSD           float64     `json:"gasCostUSD"`
	EstimatedTime        int         `json:"estimatedTime"`
	Slippage             float64     `json:"slippage"`
	Tags                 []RouteTag  `json:"tags"`
	IntegratorFeeUSD     float64     `json:"integratorFeeUSD"`
	IntegratorFeePercent float64     `json:"integratorFeePercent"`
	Data                 RouteData   `json:"rawData"`
}

// HasTag reports whether the route carries tag
func (r Route) HasTag(tag RouteTag) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TotalCostUSD is the provider fee plus gas
func (r Route) TotalCostUSD() float64 {
	return r.TotalFeeUSD + r.GasCostUSD
}

// SrcChainID is the chain the route starts on
func (r Route) SrcChainID() int64 {
	if len(r.Steps) > 0 {
		return r.Steps[0].SrcChainID
	}
	return r.SrcToken.ChainID
}

// DstChainID is the chain the route ends on
func (r Route) DstChainID() int64 {
	if len(r.Steps) > 0 {
		return r.Steps[len(r.Steps)-1].DstChainID
	}
	return r.DstToken.ChainID
}

// Validate checks the destination amount and the chained hand-off of steps
func (r Route) Validate() error {
	amount, ok := new(big.Int).SetString(r.DstAmount, 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("%w: destination amount %q is not a non-negative integer", ErrInvalidRoute, r.DstAmount)
	}
	if amount.Sign() == 0 {
		return fmt.Errorf("%w: zero destination amount", ErrInvalidRoute)
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidRoute)
	}

	first, last := r.Steps[0], r.Steps[len(r.Steps)-1]
	if first.SrcChainID != r.SrcToken.ChainID || !strings.EqualFold(first.SrcToken.Address, r.SrcToken.Address) {
		return fmt.Errorf("%w: first step does not start at the route source", ErrInvalidRoute)
	}
	if last.DstChainID != r.DstToken.ChainID || !strings.EqualFold(last.DstToken.Address, r.DstToken.Address) {
		return fmt.Errorf("%w: last step does not end at the route destination", ErrInvalidRoute)
	}
	return nil
}

// RouteData is the provider-owned payload carried on a route. Exactly one
// of the provider fields is set, matching Provider. Only the owning adapter
// reads it.
type RouteData struct {
	Provider Provider      `json:"provider"`
	LiFi     *LiFiData     `json:"lifi,omitempty"`
	Socket   *SocketData   `json:"socket,omitempty"`
	OneClick *OneClickData `json:"oneclick,omitempty"`
}

// LiFiData keeps the first LI.FI step as returned by the routes endpoint
type LiFiData struct {
	Step        json.RawMessage `json:"step"`
	Tool        string          `json:"tool"`
	FromChainID int64           `json:"fromChainId"`
	ToChainID   int64           `json:"toChainId"`
}

// SocketData keeps the Socket route object for build-tx
type SocketData struct {
	Route json.RawMessage `json:"route"`
}

// OneClickData keeps the 1Click asset ids and, once built, the deposit address
type OneClickData struct {
	OriginAsset      string `json:"originAsset"`
	DestinationAsset string `json:"destinationAsset"`
	SlippageBps      int    `json:"slippageBps"`
	Recipient        string `json:"recipient"`
	RefundTo         string `json:"refundTo"`
	DepositAddress   string `json:"depositAddress,omitempty"`
}
