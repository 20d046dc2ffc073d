package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"xroute/pkg/types"
)

// solanaFeeReserve covers the signature fee of a simple transfer
const solanaFeeReserve = 5000

// SolanaSigner signs transfers on Solana with a local keypair. It only moves
// SOL or SPL tokens, so allowances are never needed.
type SolanaSigner struct {
	client     *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	chainID    int64
	confirm    ConfirmFunc
	logger     *zap.Logger
}

// NewSolanaSigner parses a base58 private key. A nil confirm approves every
// request.
func NewSolanaSigner(privateKeyBase58, rpcURL string, chainID int64, confirm ConfirmFunc, logger *zap.Logger) (*SolanaSigner, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %d", chainID)
	}
	privateKey, err := solana.PrivateKeyFromBase58(strings.TrimSpace(privateKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if confirm == nil {
		confirm = func(string) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SolanaSigner{
		client:     rpc.New(rpcURL),
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
		chainID:    chainID,
		confirm:    confirm,
		logger:     logger.Named("solana_signer"),
	}, nil
}

func (s *SolanaSigner) Address() string {
	return s.publicKey.String()
}

func (s *SolanaSigner) ChainID(ctx context.Context) (int64, error) {
	return s.chainID, nil
}

// SwitchChain only accepts the chain the signer was created for
func (s *SolanaSigner) SwitchChain(ctx context.Context, chainID int64) error {
	if chainID != s.chainID {
		return fmt.Errorf("solana signer cannot switch to chain %d", chainID)
	}
	return nil
}

// Allowance is unlimited since the owner signs every transfer
func (s *SolanaSigner) Allowance(ctx context.Context, token, spender string) (*big.Int, error) {
	return new(big.Int).Set(MaxAllowance), nil
}

func (s *SolanaSigner) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	return "", fmt.Errorf("token approvals are not used on solana")
}

// SendTransaction transfers tx.Value base units to tx.To. SPL tokens are
// selected by tx.Mint and the recipient token account is created if missing.
func (s *SolanaSigner) SendTransaction(ctx context.Context, tx types.TransactionData) (string, error) {
	if !s.confirm(fmt.Sprintf("Send %s to %s on Solana", tx.Value, tx.To)) {
		return "", ErrRejected
	}

	recipient, err := solana.PublicKeyFromBase58(tx.To)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}
	amount, err := strconv.ParseUint(tx.Value, 10, 64)
	if err != nil || amount == 0 {
		return "", fmt.Errorf("invalid amount: %q", tx.Value)
	}

	var instructions []solana.Instruction
	if tx.Mint == "" || tx.Mint == types.SolanaNativeMint {
		instructions, err = s.nativeTransfer(ctx, recipient, amount)
	} else {
		instructions, err = s.tokenTransfer(ctx, recipient, tx.Mint, amount)
	}
	if err != nil {
		return "", err
	}

	sig, err := s.submit(ctx, instructions)
	if err != nil {
		return "", err
	}
	s.logger.Info("Transaction sent",
		zap.String("signature", sig.String()),
		zap.String("recipient", tx.To),
		zap.String("mint", tx.Mint))
	return sig.String(), nil
}

func (s *SolanaSigner) nativeTransfer(ctx context.Context, recipient solana.PublicKey, lamports uint64) ([]solana.Instruction, error) {
	balance, err := s.client.GetBalance(ctx, s.publicKey, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if need := lamports + solanaFeeReserve; balance.Value < need {
		return nil, fmt.Errorf("insufficient balance: have %d lamports, need %d including fees", balance.Value, need)
	}

	return []solana.Instruction{
		system.NewTransferInstruction(lamports, s.publicKey, recipient).Build(),
	}, nil
}

func (s *SolanaSigner) tokenTransfer(ctx context.Context, recipient solana.PublicKey, mintAddress string, amount uint64) ([]solana.Instruction, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}

	source, _, err := solana.FindAssociatedTokenAddress(s.publicKey, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", err)
	}
	balance, err := s.client.GetTokenAccountBalance(ctx, source, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	have, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token balance: %w", err)
	}
	if have < amount {
		return nil, fmt.Errorf("insufficient token balance: have %d, need %d", have, amount)
	}

	dest, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", err)
	}
	exists, err := s.accountExists(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination account: %w", err)
	}

	var instructions []solana.Instruction
	if !exists {
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(s.publicKey, recipient, mint).Build())
	}
	instructions = append(instructions,
		token.NewTransferInstruction(amount, source, dest, s.publicKey, []solana.PublicKey{}).Build())
	return instructions, nil
}

func (s *SolanaSigner) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := s.client.GetAccountInfo(ctx, account)
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Value != nil, nil
}

func (s *SolanaSigner) submit(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	recent, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(s.publicKey))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// WaitForReceipt blocks until the signature is confirmed and fails when the
// transaction errored
func (s *SolanaSigner) WaitForReceipt(ctx context.Context, txHash string) error {
	sig, err := solana.SignatureFromBase58(txHash)
	if err != nil {
		return fmt.Errorf("invalid transaction signature: %w", err)
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		out, err := s.client.GetSignatureStatuses(ctx, true, sig)
		switch {
		case err != nil:
			s.logger.Debug("Signature lookup failed", zap.String("signature", txHash), zap.Error(err))
		case len(out.Value) > 0 && out.Value[0] != nil:
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", txHash, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the RPC client
func (s *SolanaSigner) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Debug("Failed to close RPC client", zap.Error(err))
	}
}
