package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"xroute/pkg/types"
)

const (
	socketBaseURL = "https://api.socket.tech/v2"

	// socketNative is Socket's address for a chain's native asset
	socketNative = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

	socketMaxRoutes = 5
)

// Socket talks to the Socket (Bungee) v2 API
type Socket struct {
	opts   Options
	logger *zap.Logger
}

// NewSocket creates a Socket adapter
func NewSocket(opts Options) *Socket {
	opts = opts.withDefaults(socketBaseURL)
	return &Socket{
		opts:   opts,
		logger: opts.Logger.Named("socket"),
	}
}

type socketToken struct {
	Address  string    `json:"address"`
	Symbol   string    `json:"symbol"`
	Name     string    `json:"name"`
	Decimals int       `json:"decimals"`
	ChainID  flexInt   `json:"chainId"`
	LogoURI  string    `json:"logoURI"`
	Icon     string    `json:"icon"`
	PriceUSD flexFloat `json:"price"`
}

// tokenOn maps the asset, defaulting its chain when Socket omits it
func (t socketToken) tokenOn(chainID int64) types.Token {
	token := t.token()
	if token.ChainID == 0 {
		token.ChainID = chainID
	}
	return token
}

func (t socketToken) token() types.Token {
	address := t.Address
	if types.IsNativeToken(address) {
		address = types.NativeTokenAddress
	}
	logo := t.LogoURI
	if logo == "" {
		logo = t.Icon
	}
	return types.Token{
		Address:  address,
		ChainID:  int64(t.ChainID),
		Symbol:   t.Symbol,
		Name:     t.Name,
		Decimals: t.Decimals,
		LogoURI:  logo,
		PriceUSD: float64(t.PriceUSD),
	}
}

type socketProtocol struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Icon        string `json:"icon"`
}

func (p socketProtocol) name() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Name != "":
		return p.Name
	default:
		return "Unknown"
	}
}

type socketStep struct {
	Type        string         `json:"type"`
	Protocol    socketProtocol `json:"protocol"`
	FromChainID flexInt        `json:"fromChainId"`
	ToChainID   flexInt        `json:"toChainId"`
	FromAsset   socketToken    `json:"fromAsset"`
	ToAsset     socketToken    `json:"toAsset"`
	FromAmount  string         `json:"fromAmount"`
	ToAmount    string         `json:"toAmount"`
	ServiceTime flexFloat      `json:"serviceTime"`
}

// socketUserTx is either a multi-step bridge transaction or a single dex swap
type socketUserTx struct {
	UserTxType string         `json:"userTxType"`
	ChainID    flexInt        `json:"chainId"`
	Protocol   socketProtocol `json:"protocol"`
	FromAsset  socketToken    `json:"fromAsset"`
	ToAsset    socketToken    `json:"toAsset"`
	FromAmount string         `json:"fromAmount"`
	ToAmount   string         `json:"toAmount"`
	Steps      []socketStep   `json:"steps"`
}

type socketRoute struct {
	RouteID           string         `json:"routeId"`
	FromAmount        string         `json:"fromAmount"`
	ToAmount          string         `json:"toAmount"`
	TotalGasFeesInUsd flexFloat      `json:"totalGasFeesInUsd"`
	ServiceTime       flexFloat      `json:"serviceTime"`
	OutputValueInUsd  flexFloat      `json:"outputValueInUsd"`
	UserTxs           []socketUserTx `json:"userTxs"`
}

func (s *Socket) Provider() types.Provider {
	return types.ProviderSocket
}

func (s *Socket) headers() map[string]string {
	if s.opts.APIKey == "" {
		return nil
	}
	return map[string]string{"API-KEY": s.opts.APIKey}
}

func socketAddress(address string) string {
	if types.IsNativeToken(address) {
		return socketNative
	}
	return address
}

// GetQuote fetches at most five routes from /quote
func (s *Socket) GetQuote(ctx context.Context, req types.QuoteRequest) []types.Route {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QuoteTimeout)
	defer cancel()

	sort := "output"
	if req.Objective() == types.ObjectiveSpeed {
		sort = "time"
	}
	slippage := strconv.FormatFloat(req.Slippage*100, 'f', -1, 64)

	query := url.Values{}
	query.Set("fromChainId", strconv.FormatInt(req.SrcChainID, 10))
	query.Set("toChainId", strconv.FormatInt(req.DstChainID, 10))
	query.Set("fromTokenAddress", socketAddress(req.SrcToken))
	query.Set("toTokenAddress", socketAddress(req.DstToken))
	query.Set("fromAmount", req.Amount)
	query.Set("userAddress", req.UserAddress)
	query.Set("sort", sort)
	query.Set("singleTxOnly", "true")
	query.Set("uniqueRoutesPerBridge", "true")
	query.Set("defaultSwapSlippage", slippage)
	query.Set("defaultBridgeSlippage", slippage)
	if s.opts.Fee.Enabled() {
		query.Set("feePercent", strconv.FormatInt(s.opts.Fee.PercentBps(), 10))
		query.Set("feeTakerAddress", s.opts.Fee.Collector)
	}

	var resp struct {
		Success bool `json:"success"`
		Result  struct {
			Routes []json.RawMessage `json:"routes"`
		} `json:"result"`
	}
	if err := getJSON(ctx, s.opts.HTTPClient, s.opts.BaseURL+"/quote", query, s.headers(), &resp); err != nil {
		s.logger.Warn("Quote failed", zap.Error(err))
		return nil
	}
	if !resp.Success {
		s.logger.Warn("Quote unsuccessful")
		return nil
	}

	raws := resp.Result.Routes
	if len(raws) > socketMaxRoutes {
		raws = raws[:socketMaxRoutes]
	}

	routes := make([]types.Route, 0, len(raws))
	for _, raw := range raws {
		route, err := s.mapRoute(raw, req)
		if err != nil {
			s.logger.Debug("Skipping malformed route", zap.Error(err))
			continue
		}
		routes = append(routes, route)
	}
	return keepValid(routes)
}

func (s *Socket) mapRoute(raw json.RawMessage, req types.QuoteRequest) (types.Route, error) {
	var r socketRoute
	if err := json.Unmarshal(raw, &r); err != nil {
		return types.Route{}, fmt.Errorf("decode route: %w", err)
	}

	var steps []types.RouteStep
	for _, userTx := range r.UserTxs {
		if len(userTx.Steps) == 0 {
			steps = append(steps, types.RouteStep{
				Kind:          types.StepSwap,
				Protocol:      userTx.Protocol.name(),
				ProtocolLogo:  userTx.Protocol.Icon,
				SrcChainID:    int64(userTx.ChainID),
				DstChainID:    int64(userTx.ChainID),
				SrcToken:      userTx.FromAsset.tokenOn(int64(userTx.ChainID)),
				DstToken:      userTx.ToAsset.tokenOn(int64(userTx.ChainID)),
				SrcAmount:     userTx.FromAmount,
				DstAmount:     userTx.ToAmount,
				EstimatedTime: 60,
			})
			continue
		}
		for _, step := range userTx.Steps {
			serviceTime := int(step.ServiceTime)
			if serviceTime == 0 {
				serviceTime = 60
			}
			steps = append(steps, types.RouteStep{
				Kind:          socketStepKind(step.Type),
				Protocol:      step.Protocol.name(),
				ProtocolLogo:  step.Protocol.Icon,
				SrcChainID:    int64(step.FromChainID),
				DstChainID:    int64(step.ToChainID),
				SrcToken:      step.FromAsset.tokenOn(int64(step.FromChainID)),
				DstToken:      step.ToAsset.tokenOn(int64(step.ToChainID)),
				SrcAmount:     step.FromAmount,
				DstAmount:     step.ToAmount,
				EstimatedTime: serviceTime,
			})
		}
	}
	if len(steps) == 0 {
		return types.Route{}, fmt.Errorf("route %s has no steps", r.RouteID)
	}

	estimated := int(r.ServiceTime)
	if estimated == 0 {
		estimated = 120
	}

	outputUSD := float64(r.OutputValueInUsd)
	gasUSD := float64(r.TotalGasFeesInUsd)
	return types.Route{
		ID:                   routeID(r.RouteID),
		Provider:             types.ProviderSocket,
		Steps:                steps,
		SrcToken:             steps[0].SrcToken,
		DstToken:             steps[len(steps)-1].DstToken,
		SrcAmount:            r.FromAmount,
		DstAmount:            r.ToAmount,
		DstAmountUSD:         outputUSD,
		TotalFeeUSD:          gasUSD,
		GasCostUSD:           gasUSD,
		EstimatedTime:        estimated,
		Slippage:             req.Slippage,
		IntegratorFeeUSD:     s.opts.Fee.FeeUSD(outputUSD),
		IntegratorFeePercent: s.opts.Fee.DisplayPercent(),
		Data: types.RouteData{
			Provider: types.ProviderSocket,
			Socket:   &types.SocketData{Route: raw},
		},
	}, nil
}

func socketStepKind(kind string) types.StepKind {
	switch kind {
	case "bridge":
		return types.StepBridge
	case "middleware":
		return types.StepCross
	default:
		return types.StepSwap
	}
}

// BuildTransaction posts the route to /build-tx
func (s *Socket) BuildTransaction(ctx context.Context, route *types.Route) (*types.TransactionData, error) {
	data := route.Data.Socket
	if route.Data.Provider != types.ProviderSocket || data == nil || len(data.Route) == 0 {
		return nil, fmt.Errorf("route %s carries no Socket route", route.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.StatusTimeout)
	defer cancel()

	body := struct {
		Route json.RawMessage `json:"route"`
	}{Route: data.Route}

	var resp struct {
		Success bool `json:"success"`
		Result  struct {
			TxTarget string  `json:"txTarget"`
			TxData   string  `json:"txData"`
			Value    string  `json:"value"`
			ChainID  flexInt `json:"chainId"`
		} `json:"result"`
	}
	if err := postJSON(ctx, s.opts.HTTPClient, s.opts.BaseURL+"/build-tx", body, s.headers(), &resp); err != nil {
		return nil, fmt.Errorf("socket tx build failed: %w", err)
	}
	if !resp.Success || resp.Result.TxTarget == "" {
		return nil, fmt.Errorf("socket tx build unsuccessful")
	}

	value := resp.Result.Value
	if value == "" {
		value = "0"
	}
	chainID := int64(resp.Result.ChainID)
	if chainID == 0 {
		chainID = route.SrcChainID()
	}
	return &types.TransactionData{
		To:      resp.Result.TxTarget,
		Data:    resp.Result.TxData,
		Value:   value,
		ChainID: chainID,
	}, nil
}

// GetStatus maps /bridge-status onto the common status vocabulary
func (s *Socket) GetStatus(ctx context.Context, txHash string, route types.Route) types.StatusResponse {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StatusTimeout)
	defer cancel()

	pending := types.StatusResponse{Status: types.StatusPending, SrcTxHash: txHash}

	query := url.Values{}
	query.Set("transactionHash", txHash)
	query.Set("fromChainId", strconv.FormatInt(route.SrcChainID(), 10))
	query.Set("toChainId", strconv.FormatInt(route.DstChainID(), 10))

	var resp struct {
		Success bool `json:"success"`
		Result  struct {
			SourceTxStatus             string `json:"sourceTxStatus"`
			DestinationTxStatus        string `json:"destinationTxStatus"`
			DestinationTransactionHash string `json:"destinationTransactionHash"`
		} `json:"result"`
	}
	if err := getJSON(ctx, s.opts.HTTPClient, s.opts.BaseURL+"/bridge-status", query, s.headers(), &resp); err != nil {
		s.logger.Debug("Status check failed", zap.String("tx_hash", txHash), zap.Error(err))
		return pending
	}
	if !resp.Success {
		return pending
	}

	return types.StatusResponse{
		Status:    socketStatus(resp.Result.SourceTxStatus, resp.Result.DestinationTxStatus, resp.Result.DestinationTransactionHash),
		SrcTxHash: txHash,
		DstTxHash: resp.Result.DestinationTransactionHash,
	}
}

func socketStatus(source, destination, destinationHash string) types.TransactionStatus {
	source, destination = strings.ToUpper(source), strings.ToUpper(destination)
	switch {
	case destinationHash != "" || destination == "COMPLETED":
		return types.StatusCompleted
	case source == "FAILED" || destination == "FAILED":
		return types.StatusFailed
	case destination == "READY":
		return types.StatusBridging
	case source == "COMPLETED":
		return types.StatusSrcConfirmed
	default:
		return types.StatusPending
	}
}

// SearchTokens filters Socket's token list for one chain
func (s *Socket) SearchTokens(ctx context.Context, chainID int64, query string) []types.Token {
	ctx, cancel := context.WithTimeout(ctx, s.opts.TokenTimeout)
	defer cancel()

	id := strconv.FormatInt(chainID, 10)
	params := url.Values{}
	params.Set("fromChainId", id)
	params.Set("toChainId", id)
	params.Set("isShortList", "true")

	var resp struct {
		Success bool          `json:"success"`
		Result  []socketToken `json:"result"`
	}
	if err := getJSON(ctx, s.opts.HTTPClient, s.opts.BaseURL+"/token-lists/from-token-list", params, s.headers(), &resp); err != nil || !resp.Success {
		if err != nil {
			s.logger.Debug("Token search failed", zap.Int64("chain_id", chainID), zap.Error(err))
		}
		return []types.Token{}
	}

	tokens := make([]types.Token, 0, len(resp.Result))
	for _, t := range resp.Result {
		tokens = append(tokens, t.tokenOn(chainID))
	}
	return filterTokens(tokens, query)
}
