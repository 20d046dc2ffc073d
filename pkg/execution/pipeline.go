package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"xroute/pkg/adapter"
	"xroute/pkg/types"
	"xroute/pkg/wallet"
)

var (
	ErrNoSigner = errors.New("no wallet connected")
	ErrNoRoute  = errors.New("no route selected")
)

// Step names a stage of an execution, reported through Pipeline.OnStep
type Step string

const (
	StepSwitchChain Step = "switch-chain"
	StepBuild       Step = "build"
	StepApprove     Step = "approve"
	StepSubmit      Step = "submit"
	StepRegistered  Step = "registered"
)

// AdapterSource resolves the adapter that owns a route
type AdapterSource interface {
	Get(p types.Provider) (adapter.Adapter, error)
}

// Registry stores new tracked transactions
type Registry interface {
	AddTransaction(tx types.TrackedTransaction) error
}

// Tracker starts status polling for a transaction
type Tracker interface {
	Track(tx types.TrackedTransaction) error
}

// Result is the outcome of one execution. A rejected signing request is not
// an error: Rejected is set and Message says what was declined.
type Result struct {
	Transaction  types.TrackedTransaction
	ApprovalHash string
	Rejected     bool
	Message      string
}

// Pipeline executes a chosen route: chain switch, build, allowance, submit
// and registration for tracking
type Pipeline struct {
	adapters AdapterSource
	registry Registry
	tracker  Tracker
	logger   *zap.Logger
	now      func() time.Time

	// OnStep, when set, is called as each stage starts
	OnStep func(step Step)
}

// New creates a pipeline
func New(adapters AdapterSource, registry Registry, tracker Tracker, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		adapters: adapters,
		registry: registry,
		tracker:  tracker,
		logger:   logger.Named("execution"),
		now:      time.Now,
	}
}

// Execute runs route through signer. Failures before submission abort with
// an error; user rejections come back as a Result with Rejected set.
func (p *Pipeline) Execute(ctx context.Context, signer wallet.Signer, route *types.Route) (*Result, error) {
	if signer == nil || signer.Address() == "" {
		return nil, ErrNoSigner
	}
	if route == nil || route.ID == "" {
		return nil, ErrNoRoute
	}

	// the adapter may record provider state on the route while building
	selected := *route
	log := p.logger.With(
		zap.String("route", selected.ID),
		zap.String("adapter", string(selected.Provider)),
		zap.String("address", signer.Address()))

	a, err := p.adapters.Get(selected.Provider)
	if err != nil {
		return nil, err
	}

	srcChain := selected.SrcChainID()
	current, err := signer.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet chain: %w", err)
	}
	if current != srcChain {
		p.step(StepSwitchChain)
		log.Info("Switching chain", zap.Int64("from", current), zap.Int64("to", srcChain))
		if err := signer.SwitchChain(ctx, srcChain); err != nil {
			if errors.Is(err, wallet.ErrRejected) {
				return rejected(fmt.Sprintf("Switch to chain %d was rejected", srcChain)), nil
			}
			return nil, fmt.Errorf("failed to switch to chain %d: %w", srcChain, err)
		}
	}

	p.step(StepBuild)
	tx, err := a.BuildTransaction(ctx, &selected)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	if tx == nil || tx.To == "" {
		return nil, fmt.Errorf("%s returned an empty transaction", selected.Provider)
	}
	if tx.ChainID == 0 {
		tx.ChainID = srcChain
	}

	result := &Result{}
	if !types.IsNativeToken(selected.SrcToken.Address) && !tx.DirectTransfer {
		hash, err := p.ensureAllowance(ctx, log, signer, selected, tx.To)
		if err != nil {
			if errors.Is(err, wallet.ErrRejected) {
				return rejected("Token approval was rejected"), nil
			}
			return nil, err
		}
		result.ApprovalHash = hash
	}

	p.step(StepSubmit)
	hash, err := signer.SendTransaction(ctx, *tx)
	if err != nil {
		if errors.Is(err, wallet.ErrRejected) {
			return rejected("Transaction was rejected"), nil
		}
		return nil, err
	}
	log.Info("Transaction submitted", zap.String("tx_hash", hash))

	tracked := types.TrackedTransaction{
		ID:          uuid.New().String(),
		Provider:    selected.Provider,
		Route:       selected,
		SrcTxHash:   hash,
		Status:      types.StatusPending,
		StartedAt:   p.now(),
		UserAddress: signer.Address(),
	}
	if err := p.registry.AddTransaction(tracked); err != nil {
		return nil, fmt.Errorf("transaction %s submitted but not registered: %w", hash, err)
	}
	if err := p.tracker.Track(tracked); err != nil {
		log.Error("Failed to start tracking", zap.String("tx_hash", hash), zap.Error(err))
	}
	p.step(StepRegistered)

	result.Transaction = tracked
	result.Message = fmt.Sprintf("Transaction submitted: %s", hash)
	return result, nil
}

// ensureAllowance approves spender for an unbounded amount when the current
// allowance is below the route's source amount and waits for the approval
// to be mined. Allowance read failures are logged and the swap proceeds.
func (p *Pipeline) ensureAllowance(ctx context.Context, log *zap.Logger, signer wallet.Signer, route types.Route, spender string) (string, error) {
	required, err := wallet.ParseAmount(route.SrcAmount)
	if err != nil {
		return "", fmt.Errorf("invalid source amount: %w", err)
	}

	token := route.SrcToken.Address
	allowance, err := signer.Allowance(ctx, token, spender)
	if err != nil {
		log.Warn("Allowance check failed, submitting anyway", zap.String("token", token), zap.Error(err))
		return "", nil
	}
	if allowance.Cmp(required) >= 0 {
		return "", nil
	}

	p.step(StepApprove)
	log.Info("Approving token",
		zap.String("token", token),
		zap.String("spender", spender),
		zap.String("allowance", allowance.String()),
		zap.String("required", required.String()))

	hash, err := signer.Approve(ctx, token, spender, wallet.MaxAllowance)
	if err != nil {
		if errors.Is(err, wallet.ErrRejected) {
			return "", err
		}
		return "", fmt.Errorf("failed to approve %s: %w", token, err)
	}
	if err := signer.WaitForReceipt(ctx, hash); err != nil {
		return "", fmt.Errorf("approval %s not confirmed: %w", hash, err)
	}
	log.Info("Approval confirmed", zap.String("tx_hash", hash))
	return hash, nil
}

func (p *Pipeline) step(s Step) {
	if p.OnStep != nil {
		p.OnStep(s)
	}
}

func rejected(message string) *Result {
	return &Result{Rejected: true, Message: message}
}
