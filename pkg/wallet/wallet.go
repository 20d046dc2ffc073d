// Package wallet holds the signer contract the execution pipeline drives,
// a private-key EVM signer and address validation.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"xroute/pkg/types"
)

// ErrRejected is returned when the user declines a signing request
var ErrRejected = errors.New("request rejected by user")

// Signer is the external wallet. Every method may fail with ErrRejected.
type Signer interface {
	Address() string
	ChainID(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
	Allowance(ctx context.Context, token, spender string) (*big.Int, error)
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) error
	SendTransaction(ctx context.Context, tx types.TransactionData) (string, error)
}

// ValidateAddress checks an address against the format of a chain.
// Mixed-case EVM addresses must carry a valid EIP-55 checksum.
func ValidateAddress(chain types.Chain, address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}

	if !chain.IsEVM() {
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid %s address %s: %w", chain.Name, address, err)
		}
		return nil
	}

	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid EVM address: %s", address)
	}
	checksummed := common.HexToAddress(address).Hex()
	body := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && address != checksummed {
		return fmt.Errorf("invalid checksum for address: %s", address)
	}
	if err := ethav.Validate(checksummed); err != nil {
		return fmt.Errorf("invalid EVM address %s: %w", address, err)
	}
	return nil
}
