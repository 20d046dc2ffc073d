package config

import (
	"fmt"
	"math"
	"math/big"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
)

// FeeConfig is the integrator fee taken from swap output
type FeeConfig struct {
	Collector string  // Address receiving the fee
	Percent   float64 // Fee percent, 0.05 means 0.05%
}

// Enabled reports whether fee parameters are sent to providers
func (f FeeConfig) Enabled() bool {
	return len(f.Collector) >= 42 && f.Percent > 0
}

// PercentDecimal is the fee as a fraction, 0.05% -> 0.0005
func (f FeeConfig) PercentDecimal() float64 {
	return f.Percent / 100
}

// PercentBps is the fee in basis points, 0.05% -> 5
func (f FeeConfig) PercentBps() int64 {
	return int64(math.Round(f.Percent * 100))
}

// FeeUSD is the integrator fee on a route's output value
func (f FeeConfig) FeeUSD(outputUSD float64) float64 {
	if !f.Enabled() {
		return 0
	}
	return outputUSD * f.PercentDecimal()
}

// DisplayPercent is the percent reported on routes
func (f FeeConfig) DisplayPercent() float64 {
	if !f.Enabled() {
		return 0
	}
	return float64(f.PercentBps()) / 100
}

// Split divides a raw amount into fee and net parts
func (f FeeConfig) Split(amount string) (fee, net string, err error) {
	total, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "", "", fmt.Errorf("invalid amount: %s", amount)
	}
	if !f.Enabled() {
		return "0", total.String(), nil
	}

	feeAmount := new(big.Int).Mul(total, big.NewInt(f.PercentBps()))
	feeAmount.Quo(feeAmount, big.NewInt(10000))
	return feeAmount.String(), new(big.Int).Sub(total, feeAmount).String(), nil
}

// Validate checks the collector when a fee is configured
func (f FeeConfig) Validate() error {
	if f.Percent < 0 {
		return fmt.Errorf("fee percent must not be negative")
	}
	if f.Collector == "" {
		return nil
	}
	if !common.IsHexAddress(f.Collector) {
		return fmt.Errorf("invalid fee collector address: %s", f.Collector)
	}
	if err := ethav.Validate(common.HexToAddress(f.Collector).Hex()); err != nil {
		return fmt.Errorf("invalid fee collector address: %w", err)
	}
	return nil
}
