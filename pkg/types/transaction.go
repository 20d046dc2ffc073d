package types

import "time"

// TransactionStatus is the lifecycle status of a tracked transaction
type TransactionStatus string

const (
	StatusPending      TransactionStatus = "pending"
	StatusSrcConfirmed TransactionStatus = "src-confirmed"
	StatusBridging     TransactionStatus = "bridging"
	StatusDstConfirmed TransactionStatus = "dst-confirmed"
	StatusCompleted    TransactionStatus = "completed"
	StatusFailed       TransactionStatus = "failed"
	StatusRefunded     TransactionStatus = "refunded"
)

// IsTerminal reports whether polling should stop at this status
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded:
		return true
	default:
		return false
	}
}

// TransactionData is a ready-to-sign transaction payload
type TransactionData struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	ChainID  int64  `json:"chainId"`
	GasLimit string `json:"gasLimit,omitempty"`
	// DirectTransfer marks payloads that move the tokens themselves, so no
	// allowance is needed
	DirectTransfer bool `json:"directTransfer,omitempty"`
	// Mint is the SPL token of a non-EVM transfer; empty for the native asset
	Mint string `json:"mint,omitempty"`
}

// StatusResponse is a provider status mapped onto TransactionStatus
type StatusResponse struct {
	Status      TransactionStatus `json:"status"`
	SrcTxHash   string            `json:"srcTxHash"`
	DstTxHash   string            `json:"dstTxHash,omitempty"`
	Substatus   string            `json:"substatus,omitempty"`
	ExplorerURL string            `json:"bridgeExplorerUrl,omitempty"`
}

// TrackedTransaction correlates a submitted hash with its cross-chain status
type TrackedTransaction struct {
	ID          string            `json:"id"`
	Provider    Provider          `json:"adapter"`
	Route       Route             `json:"route"`
	SrcTxHash   string            `json:"srcTxHash"`
	DstTxHash   string            `json:"dstTxHash,omitempty"`
	Status      TransactionStatus `json:"status"`
	Substatus   string            `json:"substatus,omitempty"`
	ExplorerURL string            `json:"bridgeExplorerUrl,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	UserAddress string            `json:"userAddress"`
	Error       string            `json:"error,omitempty"`
}

// Apply overwrites the status fields from a provider response.
// Empty optional fields in resp keep the current values.
func (t *TrackedTransaction) Apply(resp StatusResponse, now time.Time) {
	t.Status = resp.Status
	if resp.DstTxHash != "" {
		t.DstTxHash = resp.DstTxHash
	}
	if resp.Substatus != "" {
		t.Substatus = resp.Substatus
	}
	if resp.ExplorerURL != "" {
		t.ExplorerURL = resp.ExplorerURL
	}
	if resp.Status.IsTerminal() && t.CompletedAt == nil {
		completed := now
		t.CompletedAt = &completed
	}
}
