package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"xroute/pkg/types"
)

const receiptPollInterval = 2 * time.Second

// ConfirmFunc is asked before anything is signed. Returning false rejects
// the request.
type ConfirmFunc func(action string) bool

// RPCResolver maps a chain id to its RPC endpoint
type RPCResolver func(chainID int64) string

// KeySigner signs EVM transactions with a local private key
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	rpcURL     RPCResolver
	confirm    ConfirmFunc
	logger     *zap.Logger

	mu      sync.Mutex
	clients map[int64]*ethclient.Client
	chainID int64
}

// NewKeySigner parses a hex private key. The active chain starts at
// initialChain. A nil confirm approves every request.
func NewKeySigner(privateKeyHex string, initialChain int64, rpcURL RPCResolver, confirm ConfirmFunc, logger *zap.Logger) (*KeySigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}
	if confirm == nil {
		confirm = func(string) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKeyECDSA),
		rpcURL:     rpcURL,
		confirm:    confirm,
		logger:     logger.Named("key_signer"),
		clients:    make(map[int64]*ethclient.Client),
		chainID:    initialChain,
	}, nil
}

func (s *KeySigner) Address() string {
	return s.address.Hex()
}

func (s *KeySigner) ChainID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID, nil
}

// client returns the RPC client of a chain, dialing it on first use
func (s *KeySigner) client(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[chainID]; ok {
		return c, nil
	}

	url := ""
	if s.rpcURL != nil {
		url = s.rpcURL(chainID)
	}
	if url == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %d", chainID)
	}

	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	s.clients[chainID] = c
	return c, nil
}

func (s *KeySigner) active(ctx context.Context) (*ethclient.Client, int64, error) {
	chainID, _ := s.ChainID(ctx)
	c, err := s.client(ctx, chainID)
	return c, chainID, err
}

// SwitchChain makes chainID active after checking the endpoint serves it
func (s *KeySigner) SwitchChain(ctx context.Context, chainID int64) error {
	if !s.confirm(fmt.Sprintf("Switch to chain %d", chainID)) {
		return ErrRejected
	}

	c, err := s.client(ctx, chainID)
	if err != nil {
		return err
	}
	remote, err := c.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id: %w", err)
	}
	if remote.Int64() != chainID {
		return fmt.Errorf("RPC endpoint serves chain %d, want %d", remote.Int64(), chainID)
	}

	s.mu.Lock()
	s.chainID = chainID
	s.mu.Unlock()

	s.logger.Info("Switched chain", zap.Int64("chain_id", chainID))
	return nil
}

// Allowance reads allowance(owner, spender) on an ERC20 token
func (s *KeySigner) Allowance(ctx context.Context, token, spender string) (*big.Int, error) {
	c, _, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(token) || !common.IsHexAddress(spender) {
		return nil, fmt.Errorf("invalid token or spender address")
	}

	data, err := pack("allowance", s.address, common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}

	tokenAddress := common.HexToAddress(token)
	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// Approve sends approve(spender, amount) and returns the tx hash
func (s *KeySigner) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	if !s.confirm(fmt.Sprintf("Approve %s to spend token %s", spender, token)) {
		return "", ErrRejected
	}

	data, err := pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return "", err
	}
	_, chainID, err := s.active(ctx)
	if err != nil {
		return "", err
	}
	return s.send(ctx, types.TransactionData{
		To:      token,
		Data:    hexutil.Encode(data),
		Value:   "0",
		ChainID: chainID,
	})
}

// SendTransaction signs and broadcasts a built route transaction
func (s *KeySigner) SendTransaction(ctx context.Context, tx types.TransactionData) (string, error) {
	if !s.confirm(fmt.Sprintf("Send transaction to %s on chain %d", tx.To, tx.ChainID)) {
		return "", ErrRejected
	}
	return s.send(ctx, tx)
}

func (s *KeySigner) send(ctx context.Context, tx types.TransactionData) (string, error) {
	c, chainID, err := s.active(ctx)
	if err != nil {
		return "", err
	}
	if tx.ChainID != 0 && tx.ChainID != chainID {
		return "", fmt.Errorf("transaction targets chain %d but chain %d is active", tx.ChainID, chainID)
	}
	if !common.IsHexAddress(tx.To) {
		return "", fmt.Errorf("invalid transaction target: %s", tx.To)
	}

	to := common.HexToAddress(tx.To)
	value, err := ParseAmount(tx.Value)
	if err != nil {
		return "", err
	}
	var data []byte
	if tx.Data != "" && tx.Data != "0x" {
		if data, err = hexutil.Decode(tx.Data); err != nil {
			return "", fmt.Errorf("invalid transaction data: %w", err)
		}
	}

	nonce, err := c.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := c.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit, err := s.gasLimit(ctx, c, tx.GasLimit, ethereum.CallMsg{From: s.address, To: &to, Value: value, Data: data})
	if err != nil {
		return "", err
	}

	unsigned := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := ethtypes.SignTx(unsigned, ethtypes.LatestSignerForChainID(big.NewInt(chainID)), s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	s.logger.Info("Transaction sent",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Int64("chain_id", chainID),
		zap.Uint64("nonce", nonce))
	return signed.Hash().Hex(), nil
}

// gasLimit uses the provider's limit when given, otherwise the estimate
// plus a 20% buffer
func (s *KeySigner) gasLimit(ctx context.Context, c *ethclient.Client, provided string, msg ethereum.CallMsg) (uint64, error) {
	if provided != "" {
		limit, err := ParseAmount(provided)
		if err == nil && limit.IsUint64() && limit.Uint64() > 0 {
			return limit.Uint64(), nil
		}
	}
	estimated, err := c.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return estimated * 120 / 100, nil
}

// WaitForReceipt blocks until the transaction is mined and fails when it
// reverted
func (s *KeySigner) WaitForReceipt(ctx context.Context, txHash string) error {
	c, _, err := s.active(ctx)
	if err != nil {
		return err
	}
	hash := common.HexToHash(txHash)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == ethtypes.ReceiptStatusFailed {
				return fmt.Errorf("transaction %s reverted", txHash)
			}
			return nil
		case !errors.Is(err, ethereum.NotFound):
			s.logger.Debug("Receipt lookup failed", zap.String("tx_hash", txHash), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes every RPC connection
func (s *KeySigner) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.clients {
		c.Close()
		delete(s.clients, id)
	}
}
