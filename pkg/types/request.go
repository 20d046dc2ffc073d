package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidRequest is returned for quote requests that break the request invariants
var ErrInvalidRequest = errors.New("invalid quote request")

// Objective selects the ranking weights
type Objective string

const (
	ObjectiveOutput Objective = "output" // Best destination value (default)
	ObjectiveSpeed  Objective = "speed"  // Shortest estimated time
	ObjectiveFee    Objective = "fee"    // Lowest fee plus gas
)

// ParseObjective maps user input to an Objective, defaulting to output
func ParseObjective(s string) Objective {
	switch Objective(strings.ToLower(strings.TrimSpace(s))) {
	case ObjectiveSpeed:
		return ObjectiveSpeed
	case ObjectiveFee:
		return ObjectiveFee
	default:
		return ObjectiveOutput
	}
}

// QuoteRequest is the provider-agnostic quote input
type QuoteRequest struct {
	SrcChainID  int64     `json:"srcChainId"`
	DstChainID  int64     `json:"dstChainId"`
	SrcToken    string    `json:"srcToken"`
	DstToken    string    `json:"dstToken"`
	Amount      string    `json:"amount"`
	UserAddress string    `json:"userAddress"`
	Slippage    float64   `json:"slippage"`
	SortBy      Objective `json:"sortBy,omitempty"`
}

// Objective returns the requested ranking objective, defaulting to output
func (r QuoteRequest) Objective() Objective {
	return ParseObjective(string(r.SortBy))
}

// HasAmount reports whether the amount is set and not zero
func (r QuoteRequest) HasAmount() bool {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(r.Amount), 10)
	return ok && amount.Sign() > 0
}

// Validate normalizes the request in place and checks its invariants.
// A valid amount is left in canonical decimal form.
func (r *QuoteRequest) Validate() error {
	r.SrcToken = strings.TrimSpace(r.SrcToken)
	r.DstToken = strings.TrimSpace(r.DstToken)
	r.UserAddress = strings.TrimSpace(r.UserAddress)
	r.Amount = strings.TrimSpace(r.Amount)
	if amount, ok := new(big.Int).SetString(r.Amount, 10); ok && amount.Sign() > 0 {
		r.Amount = amount.String()
	}

	if r.SrcChainID == 0 || r.DstChainID == 0 {
		return fmt.Errorf("%w: chain ids are required", ErrInvalidRequest)
	}
	if r.SrcToken == "" || r.DstToken == "" {
		return fmt.Errorf("%w: token addresses are required", ErrInvalidRequest)
	}
	if !r.HasAmount() {
		return fmt.Errorf("%w: amount must be a positive integer, got %q", ErrInvalidRequest, r.Amount)
	}
	if r.Slippage <= 0 || r.Slippage > 0.5 {
		return fmt.Errorf("%w: slippage must be in (0, 0.5], got %v", ErrInvalidRequest, r.Slippage)
	}
	return nil
}
