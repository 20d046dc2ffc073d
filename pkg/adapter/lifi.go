package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"xroute/pkg/types"
	"xroute/pkg/units"
)

const lifiBaseURL = "https://li.quest/v1"

// LiFi talks to the LI.FI advanced routes API
type LiFi struct {
	opts   Options
	logger *zap.Logger
}

// NewLiFi creates a LI.FI adapter
func NewLiFi(opts Options) *LiFi {
	opts = opts.withDefaults(lifiBaseURL)
	return &LiFi{
		opts:   opts,
		logger: opts.Logger.Named("lifi"),
	}
}

type lifiToken struct {
	Address  string    `json:"address"`
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Decimals int       `json:"decimals"`
	ChainID  flexInt   `json:"chainId"`
	LogoURI  string    `json:"logoURI"`
	PriceUSD flexFloat `json:"priceUSD"`
	Amount   string    `json:"amount,omitempty"`
}

func (t lifiToken) token() types.Token {
	return types.Token{
		Address:  t.Address,
		ChainID:  int64(t.ChainID),
		Symbol:   t.Symbol,
		Name:     t.Name,
		Decimals: t.Decimals,
		LogoURI:  t.LogoURI,
		PriceUSD: float64(t.PriceUSD),
	}
}

type lifiCost struct {
	AmountUSD flexFloat `json:"amountUSD"`
}

type lifiStep struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Tool        string `json:"tool"`
	ToolDetails struct {
		Name    string `json:"name"`
		LogoURI string `json:"logoURI"`
	} `json:"toolDetails"`
	Action struct {
		FromChainID flexInt   `json:"fromChainId"`
		ToChainID   flexInt   `json:"toChainId"`
		FromToken   lifiToken `json:"fromToken"`
		ToToken     lifiToken `json:"toToken"`
		FromAmount  string    `json:"fromAmount"`
		Slippage    float64   `json:"slippage"`
	} `json:"action"`
	Estimate struct {
		FromAmount        string     `json:"fromAmount"`
		ToAmount          string     `json:"toAmount"`
		ExecutionDuration flexFloat  `json:"executionDuration"`
		FeeCosts          []lifiCost `json:"feeCosts"`
		GasCosts          []lifiCost `json:"gasCosts"`
	} `json:"estimate"`
}

type lifiRoute struct {
	ID          string            `json:"id"`
	FromAmount  string            `json:"fromAmount"`
	ToAmount    string            `json:"toAmount"`
	ToAmountUSD flexFloat         `json:"toAmountUSD"`
	GasCostUSD  flexFloat         `json:"gasCostUSD"`
	FromToken   lifiToken         `json:"fromToken"`
	ToToken     lifiToken         `json:"toToken"`
	Steps       []json.RawMessage `json:"steps"`
}

type lifiRoutesResponse struct {
	Routes []lifiRoute `json:"routes"`
}

type lifiTransactionRequest struct {
	To       string  `json:"to"`
	Data     string  `json:"data"`
	Value    string  `json:"value"`
	ChainID  flexInt `json:"chainId"`
	GasLimit string  `json:"gasLimit"`
}

type lifiStatusResponse struct {
	Status    string `json:"status"`
	Substatus string `json:"substatus"`
	Sending   struct {
		TxHash string `json:"txHash"`
	} `json:"sending"`
	Receiving struct {
		TxHash string `json:"txHash"`
	} `json:"receiving"`
	BridgeExplorerURL string `json:"bridgeExplorerUrl"`
	LiFiExplorerLink  string `json:"lifiExplorerLink"`
}

func (l *LiFi) Provider() types.Provider {
	return types.ProviderLiFi
}

func (l *LiFi) headers() map[string]string {
	if l.opts.APIKey == "" {
		return nil
	}
	return map[string]string{"x-lifi-api-key": l.opts.APIKey}
}

// GetQuote fetches routes from /advanced/routes
func (l *LiFi) GetQuote(ctx context.Context, req types.QuoteRequest) []types.Route {
	ctx, cancel := context.WithTimeout(ctx, l.opts.QuoteTimeout)
	defer cancel()

	order := "RECOMMENDED"
	if req.Objective() == types.ObjectiveSpeed {
		order = "FASTEST"
	}

	query := url.Values{}
	query.Set("fromChainId", strconv.FormatInt(req.SrcChainID, 10))
	query.Set("toChainId", strconv.FormatInt(req.DstChainID, 10))
	query.Set("fromTokenAddress", req.SrcToken)
	query.Set("toTokenAddress", req.DstToken)
	query.Set("fromAmount", req.Amount)
	query.Set("fromAddress", req.UserAddress)
	query.Set("toAddress", req.UserAddress)
	query.Set("slippage", strconv.FormatFloat(req.Slippage, 'f', -1, 64))
	query.Set("order", order)
	query.Set("maxPriceImpact", "0.5")
	if l.opts.Fee.Enabled() {
		query.Set("fee", strconv.FormatFloat(l.opts.Fee.PercentDecimal(), 'f', -1, 64))
		query.Set("referrer", l.opts.Fee.Collector)
	}

	var resp lifiRoutesResponse
	if err := getJSON(ctx, l.opts.HTTPClient, l.opts.BaseURL+"/advanced/routes", query, l.headers(), &resp); err != nil {
		l.logger.Warn("Quote failed", zap.Error(err))
		return nil
	}

	routes := make([]types.Route, 0, len(resp.Routes))
	for _, raw := range resp.Routes {
		route, err := l.mapRoute(raw)
		if err != nil {
			l.logger.Debug("Skipping malformed route", zap.String("route_id", raw.ID), zap.Error(err))
			continue
		}
		routes = append(routes, route)
	}
	return keepValid(routes)
}

func (l *LiFi) mapRoute(r lifiRoute) (types.Route, error) {
	if len(r.Steps) == 0 {
		return types.Route{}, fmt.Errorf("route has no steps")
	}

	var (
		steps    = make([]types.RouteStep, 0, len(r.Steps))
		totalFee float64
		duration int
		first    lifiStep
	)
	for i, raw := range r.Steps {
		var s lifiStep
		if err := json.Unmarshal(raw, &s); err != nil {
			return types.Route{}, fmt.Errorf("decode step: %w", err)
		}
		if i == 0 {
			first = s
		}

		protocol := s.ToolDetails.Name
		if protocol == "" {
			protocol = s.Tool
		}
		steps = append(steps, types.RouteStep{
			Kind:          lifiStepKind(s.Type),
			Protocol:      protocol,
			ProtocolLogo:  s.ToolDetails.LogoURI,
			SrcChainID:    int64(s.Action.FromChainID),
			DstChainID:    int64(s.Action.ToChainID),
			SrcToken:      s.Action.FromToken.token(),
			DstToken:      s.Action.ToToken.token(),
			SrcAmount:     s.Estimate.FromAmount,
			DstAmount:     s.Estimate.ToAmount,
			EstimatedTime: int(s.Estimate.ExecutionDuration),
		})

		for _, fee := range s.Estimate.FeeCosts {
			totalFee += float64(fee.AmountUSD)
		}
		duration += int(s.Estimate.ExecutionDuration)
	}

	slippage := first.Action.Slippage
	if slippage == 0 {
		slippage = 0.03
	}

	outputUSD := float64(r.ToAmountUSD)
	return types.Route{
		ID:                   routeID(r.ID),
		Provider:             types.ProviderLiFi,
		Steps:                steps,
		SrcToken:             r.FromToken.token(),
		DstToken:             r.ToToken.token(),
		SrcAmount:            r.FromAmount,
		DstAmount:            r.ToAmount,
		DstAmountUSD:         outputUSD,
		TotalFeeUSD:          totalFee,
		GasCostUSD:           float64(r.GasCostUSD),
		EstimatedTime:        duration,
		Slippage:             slippage,
		IntegratorFeeUSD:     l.opts.Fee.FeeUSD(outputUSD),
		IntegratorFeePercent: l.opts.Fee.DisplayPercent(),
		Data: types.RouteData{
			Provider: types.ProviderLiFi,
			LiFi: &types.LiFiData{
				Step:        r.Steps[0],
				Tool:        first.Tool,
				FromChainID: int64(first.Action.FromChainID),
				ToChainID:   int64(first.Action.ToChainID),
			},
		},
	}, nil
}

func lifiStepKind(kind string) types.StepKind {
	switch kind {
	case "cross":
		return types.StepCross
	case "swap":
		return types.StepSwap
	default:
		return types.StepBridge
	}
}

// BuildTransaction submits the first step to /advanced/stepTransaction
func (l *LiFi) BuildTransaction(ctx context.Context, route *types.Route) (*types.TransactionData, error) {
	data := route.Data.LiFi
	if route.Data.Provider != types.ProviderLiFi || data == nil || len(data.Step) == 0 {
		return nil, fmt.Errorf("route %s carries no LI.FI step", route.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.StatusTimeout)
	defer cancel()

	var resp struct {
		TransactionRequest *lifiTransactionRequest `json:"transactionRequest"`
	}
	if err := postJSON(ctx, l.opts.HTTPClient, l.opts.BaseURL+"/advanced/stepTransaction", data.Step, l.headers(), &resp); err != nil {
		return nil, fmt.Errorf("LI.FI transaction build failed: %w", err)
	}
	tx := resp.TransactionRequest
	if tx == nil || tx.To == "" {
		return nil, fmt.Errorf("LI.FI transaction build failed: response has no transaction request")
	}

	value := tx.Value
	if value == "" {
		value = "0"
	}
	chainID := int64(tx.ChainID)
	if chainID == 0 {
		chainID = data.FromChainID
	}
	return &types.TransactionData{
		To:       tx.To,
		Data:     tx.Data,
		Value:    value,
		ChainID:  chainID,
		GasLimit: tx.GasLimit,
	}, nil
}

// GetStatus maps /status onto the common status vocabulary
func (l *LiFi) GetStatus(ctx context.Context, txHash string, route types.Route) types.StatusResponse {
	ctx, cancel := context.WithTimeout(ctx, l.opts.StatusTimeout)
	defer cancel()

	pending := types.StatusResponse{Status: types.StatusPending, SrcTxHash: txHash}

	query := url.Values{}
	query.Set("txHash", txHash)
	if data := route.Data.LiFi; data != nil {
		query.Set("bridge", data.Tool)
		query.Set("fromChain", strconv.FormatInt(data.FromChainID, 10))
		query.Set("toChain", strconv.FormatInt(data.ToChainID, 10))
	}

	var resp lifiStatusResponse
	if err := getJSON(ctx, l.opts.HTTPClient, l.opts.BaseURL+"/status", query, l.headers(), &resp); err != nil {
		l.logger.Debug("Status check failed", zap.String("tx_hash", txHash), zap.Error(err))
		return pending
	}

	out := types.StatusResponse{
		Status:      lifiStatus(resp.Status, resp.Substatus),
		SrcTxHash:   txHash,
		DstTxHash:   resp.Receiving.TxHash,
		Substatus:   resp.Substatus,
		ExplorerURL: resp.BridgeExplorerURL,
	}
	if resp.Sending.TxHash != "" {
		out.SrcTxHash = resp.Sending.TxHash
	}
	if out.ExplorerURL == "" {
		out.ExplorerURL = resp.LiFiExplorerLink
	}
	return out
}

func lifiStatus(status, substatus string) types.TransactionStatus {
	switch strings.ToUpper(status) {
	case "PENDING":
		return types.StatusBridging
	case "DONE":
		if strings.ToUpper(substatus) == "REFUNDED" {
			return types.StatusRefunded
		}
		return types.StatusCompleted
	case "FAILED":
		return types.StatusFailed
	default:
		return types.StatusPending
	}
}

// SearchTokens filters the /tokens list of one chain
func (l *LiFi) SearchTokens(ctx context.Context, chainID int64, query string) []types.Token {
	ctx, cancel := context.WithTimeout(ctx, l.opts.TokenTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("chains", strconv.FormatInt(chainID, 10))

	var resp struct {
		Tokens map[string][]lifiToken `json:"tokens"`
	}
	if err := getJSON(ctx, l.opts.HTTPClient, l.opts.BaseURL+"/tokens", params, l.headers(), &resp); err != nil {
		l.logger.Debug("Token search failed", zap.Int64("chain_id", chainID), zap.Error(err))
		return []types.Token{}
	}

	list := resp.Tokens[strconv.FormatInt(chainID, 10)]
	tokens := make([]types.Token, 0, len(list))
	for _, t := range list {
		token := t.token()
		if token.ChainID == 0 {
			token.ChainID = chainID
		}
		tokens = append(tokens, token)
	}
	return filterTokens(tokens, query)
}

// Balances reads /token/balances, dropping dust, sorted by USD value
func (l *LiFi) Balances(ctx context.Context, address string, chainID int64) ([]types.TokenWithBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.TokenTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("walletAddress", address)
	if chainID != 0 {
		query.Set("chainId", strconv.FormatInt(chainID, 10))
	}

	var resp map[string]json.RawMessage
	if err := getJSON(ctx, l.opts.HTTPClient, l.opts.BaseURL+"/token/balances", query, l.headers(), &resp); err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}

	out := make([]types.TokenWithBalance, 0)
	for key, raw := range resp {
		cid, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		var list []lifiToken
		if err := json.Unmarshal(raw, &list); err != nil {
			continue
		}
		for _, t := range list {
			if t.Amount == "" || t.Amount == "0" {
				continue
			}
			if t.Decimals == 0 {
				t.Decimals = 18
			}
			balance := units.FromRawFloat(t.Amount, t.Decimals)
			if balance < 0.000001 {
				continue
			}
			token := t.token()
			token.ChainID = cid
			if token.Address == "" {
				token.Address = types.NativeTokenAddress
			}
			out = append(out, types.TokenWithBalance{
				Token:      token,
				Amount:     t.Amount,
				Balance:    balance,
				BalanceUSD: balance * token.PriceUSD,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].BalanceUSD > out[j].BalanceUSD })
	return out, nil
}
