package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"xroute/config"
	"xroute/pkg/types"
	"xroute/pkg/units"
	"xroute/pkg/wallet"
)

const (
	oneClickBaseURL  = "https://1click.chaindefuser.com"
	oneClickProtocol = "NEAR Intents"

	// oneClickTokenTTL bounds how long the supported token list is reused
	oneClickTokenTTL = 5 * time.Minute
	// oneClickDeadline is how long a live deposit address stays valid
	oneClickDeadline = 24 * time.Hour
)

// OneClick quotes and executes intents through the NEAR 1Click API.
// Execution is a plain deposit into a quote-specific address.
type OneClick struct {
	opts   Options
	jwt    string
	client *oneclick.APIClient
	chains *config.ChainTable
	logger *zap.Logger

	mu        sync.Mutex
	tokens    []oneClickToken
	fetchedAt time.Time
	now       func() time.Time

	// deposit addresses whose tx hash has already been submitted
	submitted sync.Map
}

// NewOneClick creates a 1Click adapter. opts.APIKey carries the JWT.
func NewOneClick(opts Options, chains *config.ChainTable) *OneClick {
	opts = opts.withDefaults(oneClickBaseURL)
	if chains == nil {
		chains = config.Chains()
	}

	cfg := oneclick.NewConfiguration()
	cfg.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(opts.BaseURL, "/")}}
	cfg.HTTPClient = opts.HTTPClient

	return &OneClick{
		opts:   opts,
		jwt:    opts.APIKey,
		client: oneclick.NewAPIClient(cfg),
		chains: chains,
		logger: opts.Logger.Named("oneclick"),
		now:    time.Now,
	}
}

type oneClickToken struct {
	AssetID         string    `json:"assetId"`
	Decimals        flexInt   `json:"decimals"`
	Blockchain      string    `json:"blockchain"`
	Symbol          string    `json:"symbol"`
	Price           flexFloat `json:"price"`
	ContractAddress string    `json:"contractAddress"`
}

type oneClickQuote struct {
	DepositAddress string    `json:"depositAddress"`
	AmountIn       string    `json:"amountIn"`
	AmountInUSD    flexFloat `json:"amountInUsd"`
	AmountOut      string    `json:"amountOut"`
	AmountOutUSD   flexFloat `json:"amountOutUsd"`
	MinAmountOut   string    `json:"minAmountOut"`
	TimeEstimate   flexInt   `json:"timeEstimate"`
	Deadline       string    `json:"deadline"`
}

type oneClickTxHash struct {
	Hash        string `json:"hash"`
	ExplorerURL string `json:"explorerUrl"`
}

type oneClickStatusResponse struct {
	Status      string `json:"status"`
	SwapDetails struct {
		OriginChainTxHashes      []oneClickTxHash `json:"originChainTxHashes"`
		DestinationChainTxHashes []oneClickTxHash `json:"destinationChainTxHashes"`
	} `json:"swapDetails"`
}

// remarshal moves an SDK model into a local struct through its JSON form
func remarshal(in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

// apiError extracts the provider message from a failed SDK call
func apiError(op string, resp *http.Response, err error) error {
	if resp == nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var oerr *oneclick.GenericOpenAPIError
	if errors.As(err, &oerr) {
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(oerr.Body(), &body) == nil && body.Message != "" {
			return fmt.Errorf("%s: API error (status %d): %s", op, resp.StatusCode, body.Message)
		}
	}
	return fmt.Errorf("%s (status: %d): %w", op, resp.StatusCode, err)
}

func (o *OneClick) Provider() types.Provider {
	return types.ProviderOneClick
}

func (o *OneClick) authContext(ctx context.Context) context.Context {
	if o.jwt == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, o.jwt)
}

// supportedTokens returns the cached token list, refreshing it after the TTL
func (o *OneClick) supportedTokens(ctx context.Context) ([]oneClickToken, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.tokens != nil && o.now().Sub(o.fetchedAt) < oneClickTokenTTL {
		return o.tokens, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.TokenTimeout)
	defer cancel()

	resp, httpResp, err := o.client.OneClickAPI.GetTokens(o.authContext(ctx)).Execute()
	defer closeBody(httpResp)
	if err != nil {
		return nil, apiError("failed to get tokens", httpResp, err)
	}

	var tokens []oneClickToken
	if err := remarshal(resp, &tokens); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}

	o.tokens = tokens
	o.fetchedAt = o.now()
	return tokens, nil
}

// chainCode maps a chain id to the 1Click blockchain code
func (o *OneClick) chainCode(chainID int64) (types.Chain, bool) {
	chain, ok := o.chains.Get(chainID)
	if !ok || chain.OneClickCode == "" {
		return types.Chain{}, false
	}
	return chain, true
}

// resolveAsset finds the 1Click asset for a token address on a chain.
// Native assets are the entries without a contract address.
func resolveAsset(tokens []oneClickToken, code, address string) (oneClickToken, bool) {
	native := types.IsNativeToken(address)
	for _, t := range tokens {
		if !strings.EqualFold(t.Blockchain, code) {
			continue
		}
		if native && t.ContractAddress == "" {
			return t, true
		}
		if !native && t.ContractAddress != "" && strings.EqualFold(t.ContractAddress, address) {
			return t, true
		}
	}
	return oneClickToken{}, false
}

func (o *OneClick) toToken(t oneClickToken, chain types.Chain) types.Token {
	address := t.ContractAddress
	name := t.Symbol
	if address == "" {
		address = types.NativeTokenAddress
		if !chain.IsEVM() && chain.NativeCurrency.Symbol == "SOL" {
			address = types.SolanaNativeMint
		}
		name = chain.NativeCurrency.Name
	}
	return types.Token{
		Address:  address,
		ChainID:  chain.ID,
		Symbol:   t.Symbol,
		Name:     name,
		Decimals: int(t.Decimals),
		PriceUSD: float64(t.Price),
	}
}

// quoteParams carries everything needed for a 1Click quote request
type quoteParams struct {
	dry         bool
	origin      string
	destination string
	amount      string
	slippageBps int
	recipient   string
	refundTo    string
	deadline    time.Time
}

// buildQuoteRequest maps quote parameters onto the SDK request
func (o *OneClick) buildQuoteRequest(p quoteParams) *oneclick.QuoteRequest {
	req := oneclick.NewQuoteRequest(
		p.dry,
		"EXACT_INPUT",
		float32(p.slippageBps),
		p.origin,
		"ORIGIN_CHAIN",
		p.destination,
		p.amount,
		p.refundTo,
		"ORIGIN_CHAIN",
		p.recipient,
		"DESTINATION_CHAIN",
		p.deadline.UTC(),
	)
	if o.opts.Fee.Enabled() {
		req.SetAppFees([]oneclick.AppFee{
			*oneclick.NewAppFee(o.opts.Fee.Collector, float32(o.opts.Fee.PercentBps())),
		})
	}
	return req
}

func (o *OneClick) requestQuote(ctx context.Context, p quoteParams) (oneClickQuote, error) {
	req := o.buildQuoteRequest(p)

	resp, httpResp, err := o.client.OneClickAPI.GetQuote(o.authContext(ctx)).QuoteRequest(*req).Execute()
	defer closeBody(httpResp)
	if err != nil {
		return oneClickQuote{}, apiError("failed to get quote", httpResp, err)
	}
	if resp == nil {
		return oneClickQuote{}, fmt.Errorf("empty quote response")
	}

	var quote oneClickQuote
	if err := remarshal(resp.GetQuote(), &quote); err != nil {
		return oneClickQuote{}, fmt.Errorf("decode quote: %w", err)
	}
	return quote, nil
}

// recipientFor returns the destination address for a same-wallet swap.
// EVM and non-EVM chains do not share address formats.
func recipientFor(src, dst types.Chain, user string) (string, bool) {
	if src.IsEVM() != dst.IsEVM() {
		return "", false
	}
	return user, true
}

// GetQuote requests a dry quote and maps it onto a single cross-chain step
func (o *OneClick) GetQuote(ctx context.Context, req types.QuoteRequest) []types.Route {
	log := o.logger.With(
		zap.Int64("src_chain", req.SrcChainID),
		zap.Int64("dst_chain", req.DstChainID),
	)

	srcChain, ok := o.chainCode(req.SrcChainID)
	if !ok {
		return nil
	}
	dstChain, ok := o.chainCode(req.DstChainID)
	if !ok {
		return nil
	}
	recipient, ok := recipientFor(srcChain, dstChain, req.UserAddress)
	if !ok {
		log.Debug("Skipping quote across address formats")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.QuoteTimeout)
	defer cancel()

	tokens, err := o.supportedTokens(ctx)
	if err != nil {
		log.Warn("Failed to load tokens", zap.Error(err))
		return nil
	}
	origin, ok := resolveAsset(tokens, srcChain.OneClickCode, req.SrcToken)
	if !ok {
		return nil
	}
	destination, ok := resolveAsset(tokens, dstChain.OneClickCode, req.DstToken)
	if !ok {
		return nil
	}

	slippageBps := int(math.Round(req.Slippage * 10000))
	quote, err := o.requestQuote(ctx, quoteParams{
		dry:         true,
		origin:      origin.AssetID,
		destination: destination.AssetID,
		amount:      req.Amount,
		slippageBps: slippageBps,
		recipient:   recipient,
		refundTo:    req.UserAddress,
		deadline:    o.now().Add(time.Hour),
	})
	if err != nil {
		log.Warn("Quote request failed", zap.Error(err))
		return nil
	}

	route := o.mapQuote(quote, req, o.toToken(origin, srcChain), o.toToken(destination, dstChain))
	route.Data.OneClick = &types.OneClickData{
		OriginAsset:      origin.AssetID,
		DestinationAsset: destination.AssetID,
		SlippageBps:      slippageBps,
		Recipient:        recipient,
		RefundTo:         req.UserAddress,
	}

	routes := keepValid([]types.Route{route})
	log.Debug("Quote received", zap.Int("routes", len(routes)))
	return routes
}

func (o *OneClick) mapQuote(q oneClickQuote, req types.QuoteRequest, src, dst types.Token) types.Route {
	src.Address, dst.Address = req.SrcToken, req.DstToken

	srcAmount := q.AmountIn
	if srcAmount == "" {
		srcAmount = req.Amount
	}
	eta := int(q.TimeEstimate)
	if eta <= 0 {
		eta = 60
	}
	dstUSD := float64(q.AmountOutUSD)
	if dstUSD == 0 && dst.PriceUSD > 0 {
		dstUSD = units.FromRawFloat(q.AmountOut, dst.Decimals) * dst.PriceUSD
	}

	route := types.Route{
		ID:       uuid.NewString(),
		Provider: types.ProviderOneClick,
		Steps: []types.RouteStep{{
			Kind:          types.StepCross,
			Protocol:      oneClickProtocol,
			SrcChainID:    src.ChainID,
			DstChainID:    dst.ChainID,
			SrcToken:      src,
			DstToken:      dst,
			SrcAmount:     srcAmount,
			DstAmount:     q.AmountOut,
			EstimatedTime: eta,
		}},
		SrcToken:      src,
		DstToken:      dst,
		SrcAmount:     srcAmount,
		DstAmount:     q.AmountOut,
		DstAmountUSD:  dstUSD,
		TotalFeeUSD:   math.Max(0, float64(q.AmountInUSD)-float64(q.AmountOutUSD)),
		EstimatedTime: eta,
		Slippage:      req.Slippage,
		Data:          types.RouteData{Provider: types.ProviderOneClick},
	}
	if o.opts.Fee.Enabled() {
		route.IntegratorFeePercent = o.opts.Fee.DisplayPercent()
		route.IntegratorFeeUSD = o.opts.Fee.FeeUSD(dstUSD)
	}
	return route
}

// BuildTransaction requests a live quote and returns the deposit transfer.
// The deposit address is recorded on the route for status checks.
func (o *OneClick) BuildTransaction(ctx context.Context, route *types.Route) (*types.TransactionData, error) {
	if route == nil || route.Data.OneClick == nil {
		return nil, fmt.Errorf("route has no 1Click data")
	}
	data := route.Data.OneClick

	srcChain, ok := o.chains.Get(route.SrcChainID())
	if !ok {
		return nil, fmt.Errorf("deposits from chain %d are not supported", route.SrcChainID())
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.StatusTimeout)
	defer cancel()

	quote, err := o.requestQuote(ctx, quoteParams{
		origin:      data.OriginAsset,
		destination: data.DestinationAsset,
		amount:      route.SrcAmount,
		slippageBps: data.SlippageBps,
		recipient:   data.Recipient,
		refundTo:    data.RefundTo,
		deadline:    o.now().Add(oneClickDeadline),
	})
	if err != nil {
		return nil, err
	}
	if quote.DepositAddress == "" {
		return nil, fmt.Errorf("quote has no deposit address")
	}
	recordDeposit(route, quote.DepositAddress)

	o.logger.Info("Deposit address issued",
		zap.String("route_id", route.ID),
		zap.String("deposit_address", quote.DepositAddress))

	return depositTransaction(route.SrcToken, srcChain, quote.DepositAddress, route.SrcAmount)
}

// recordDeposit stores the deposit address on a fresh copy of the 1Click
// payload. Route copies share the payload pointer.
func recordDeposit(route *types.Route, depositAddress string) {
	data := *route.Data.OneClick
	data.DepositAddress = depositAddress
	route.Data.OneClick = &data
}

// depositTransaction builds a native transfer or an ERC20 transfer call.
// On Solana the transfer is described by recipient, amount and mint and the
// signer assembles the instructions.
func depositTransaction(token types.Token, chain types.Chain, depositAddress, amount string) (*types.TransactionData, error) {
	chainID := chain.ID
	if !chain.IsEVM() {
		tx := &types.TransactionData{
			To:             depositAddress,
			Value:          amount,
			ChainID:        chainID,
			DirectTransfer: true,
		}
		if !types.IsNativeToken(token.Address) {
			tx.Mint = token.Address
		}
		return tx, nil
	}

	if types.IsNativeToken(token.Address) {
		return &types.TransactionData{
			To:             depositAddress,
			Data:           "0x",
			Value:          amount,
			ChainID:        chainID,
			DirectTransfer: true,
		}, nil
	}

	value, err := wallet.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	calldata, err := wallet.TransferData(depositAddress, value)
	if err != nil {
		return nil, err
	}
	return &types.TransactionData{
		To:             token.Address,
		Data:           calldata,
		Value:          "0",
		ChainID:        chainID,
		DirectTransfer: true,
	}, nil
}

// GetStatus reports the intent status for the route's deposit address.
// The deposit tx hash is submitted once to speed up detection.
func (o *OneClick) GetStatus(ctx context.Context, txHash string, route types.Route) types.StatusResponse {
	pending := types.StatusResponse{Status: types.StatusPending, SrcTxHash: txHash}
	if route.Data.OneClick == nil || route.Data.OneClick.DepositAddress == "" {
		return pending
	}
	depositAddress := route.Data.OneClick.DepositAddress

	ctx, cancel := context.WithTimeout(o.authContext(ctx), o.opts.StatusTimeout)
	defer cancel()

	if txHash != "" {
		o.submitOnce(ctx, depositAddress, txHash)
	}

	resp, httpResp, err := o.client.OneClickAPI.GetExecutionStatus(ctx).DepositAddress(depositAddress).Execute()
	defer closeBody(httpResp)
	if err != nil {
		o.logger.Debug("Status check failed", zap.Error(apiError("failed to get status", httpResp, err)))
		return pending
	}

	var status oneClickStatusResponse
	if err := remarshal(resp, &status); err != nil {
		return pending
	}
	return status.response(txHash)
}

func (s oneClickStatusResponse) response(txHash string) types.StatusResponse {
	out := types.StatusResponse{
		Status:    oneClickStatus(s.Status),
		SrcTxHash: txHash,
		Substatus: s.Status,
	}
	if n := len(s.SwapDetails.OriginChainTxHashes); n > 0 && out.SrcTxHash == "" {
		out.SrcTxHash = s.SwapDetails.OriginChainTxHashes[n-1].Hash
	}
	if n := len(s.SwapDetails.DestinationChainTxHashes); n > 0 {
		last := s.SwapDetails.DestinationChainTxHashes[n-1]
		out.DstTxHash = last.Hash
		out.ExplorerURL = last.ExplorerURL
	}
	return out
}

func oneClickStatus(status string) types.TransactionStatus {
	switch strings.ToUpper(status) {
	case "SUCCESS":
		return types.StatusCompleted
	case "REFUNDED":
		return types.StatusRefunded
	case "FAILED":
		return types.StatusFailed
	case "PROCESSING":
		return types.StatusBridging
	case "KNOWN_DEPOSIT_TX":
		return types.StatusSrcConfirmed
	default:
		return types.StatusPending
	}
}

// submitOnce reports the deposit hash until 1Click accepts it
func (o *OneClick) submitOnce(ctx context.Context, depositAddress, txHash string) {
	if _, done := o.submitted.LoadOrStore(depositAddress, true); done {
		return
	}
	if err := o.submitDeposit(ctx, depositAddress, txHash); err != nil {
		o.submitted.Delete(depositAddress)
		o.logger.Debug("Deposit submission failed", zap.Error(err))
	}
}

func (o *OneClick) submitDeposit(ctx context.Context, depositAddress, txHash string) error {
	req := oneclick.NewSubmitDepositTxRequest(txHash, depositAddress)

	_, httpResp, err := o.client.OneClickAPI.SubmitDepositTx(ctx).SubmitDepositTxRequest(*req).Execute()
	defer closeBody(httpResp)
	if err != nil {
		return apiError("failed to submit deposit", httpResp, err)
	}
	return nil
}

// SearchTokens filters the supported token list for one chain
func (o *OneClick) SearchTokens(ctx context.Context, chainID int64, query string) []types.Token {
	chain, ok := o.chainCode(chainID)
	if !ok {
		return nil
	}

	tokens, err := o.supportedTokens(ctx)
	if err != nil {
		o.logger.Warn("Failed to load tokens", zap.Error(err))
		return nil
	}

	onChain := make([]types.Token, 0, len(tokens))
	for _, t := range tokens {
		if strings.EqualFold(t.Blockchain, chain.OneClickCode) {
			onChain = append(onChain, o.toToken(t, chain))
		}
	}
	return filterTokens(onChain, query)
}
