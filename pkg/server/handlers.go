package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"xroute/pkg/types"
)

const (
	defaultSlippage    = 0.03
	defaultUserAddress = "0x0000000000000000000000000000000000000000"
)

type quoteResponse struct {
	Routes    []types.Route `json:"routes"`
	Timestamp int64         `json:"timestamp"`
}

type tokensResponse struct {
	Tokens []types.Token `json:"tokens"`
}

type balancesResponse struct {
	Tokens []types.TokenWithBalance `json:"tokens"`
}

type chainsResponse struct {
	Chains []types.Chain `json:"chains"`
}

type transactionsResponse struct {
	Transactions []types.TrackedTransaction `json:"transactions"`
}

// parseQuoteRequest reads the quote query. ok is false when a required
// field is missing or the amount is zero.
func parseQuoteRequest(r *http.Request) (types.QuoteRequest, bool) {
	q := r.URL.Query()
	srcChain, _ := strconv.ParseInt(q.Get("srcChainId"), 10, 64)
	dstChain, _ := strconv.ParseInt(q.Get("dstChainId"), 10, 64)

	req := types.QuoteRequest{
		SrcChainID:  srcChain,
		DstChainID:  dstChain,
		SrcToken:    q.Get("srcToken"),
		DstToken:    q.Get("dstToken"),
		Amount:      q.Get("amount"),
		UserAddress: q.Get("userAddress"),
		Slippage:    defaultSlippage,
		SortBy:      types.ParseObjective(q.Get("sortBy")),
	}
	if raw := q.Get("slippage"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			req.Slippage = v
		}
	}
	if req.UserAddress == "" {
		req.UserAddress = defaultUserAddress
	}

	if req.SrcChainID == 0 || req.DstChainID == 0 || req.SrcToken == "" || req.DstToken == "" || !req.HasAmount() {
		return req, false
	}
	return req, true
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	req, ok := parseQuoteRequest(r)
	if !ok {
		responseError(w, "Missing required params", http.StatusBadRequest)
		return
	}

	routes, err := s.deps.Finder.FindBestRoutes(r.Context(), req)
	if err != nil {
		if errors.Is(err, types.ErrInvalidRequest) {
			responseError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("Quote failed", zap.Error(err))
		responseJSON(w, struct {
			Error  string        `json:"error"`
			Routes []types.Route `json:"routes"`
		}{"Failed to fetch quotes", []types.Route{}}, http.StatusInternalServerError)
		return
	}

	responseJSON(w, quoteResponse{Routes: routes, Timestamp: time.Now().UnixMilli()}, http.StatusOK)
}

// decodeRouteData accepts either a full route or only its provider payload.
// Anything unparseable yields an empty route.
func decodeRouteData(raw string) types.Route {
	var route types.Route
	if raw == "" {
		return route
	}
	if err := json.Unmarshal([]byte(raw), &route); err == nil && route.Data.Provider != "" {
		return route
	}

	var data types.RouteData
	if err := json.Unmarshal([]byte(raw), &data); err == nil && data.Provider != "" {
		route.Data = data
	}
	return route
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txHash := q.Get("txHash")
	name := q.Get("adapter")
	if txHash == "" || name == "" {
		responseError(w, "Missing params", http.StatusBadRequest)
		return
	}

	a, err := s.deps.Adapters.Lookup(name)
	if err != nil {
		responseError(w, "Unknown adapter", http.StatusBadRequest)
		return
	}

	route := decodeRouteData(q.Get("routeData"))
	responseJSON(w, a.GetStatus(r.Context(), txHash, route), http.StatusOK)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	chainID, err := strconv.ParseInt(q.Get("chainId"), 10, 64)
	if err != nil || chainID == 0 {
		chainID = 1
	}

	tokens := []types.Token{}
	if query != "" && s.deps.Tokens != nil {
		if found := s.deps.Tokens.SearchTokens(r.Context(), chainID, query); found != nil {
			tokens = found
		}
	}
	responseJSON(w, tokensResponse{Tokens: tokens}, http.StatusOK)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	address := q.Get("address")
	chainID, _ := strconv.ParseInt(q.Get("chainId"), 10, 64)

	balances := []types.TokenWithBalance{}
	if address != "" && s.deps.Balances != nil {
		found, err := s.deps.Balances.Balances(r.Context(), address, chainID)
		if err != nil {
			s.logger.Warn("Balance fetch failed", zap.String("address", address), zap.Error(err))
		} else if found != nil {
			balances = found
		}
	}
	responseJSON(w, balancesResponse{Tokens: balances}, http.StatusOK)
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, chainsResponse{Chains: s.deps.Chains.List()}, http.StatusOK)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, s.deps.State.Routes(), http.StatusOK)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, transactionsResponse{Transactions: s.deps.State.Transactions()}, http.StatusOK)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.deps.State.Transaction(chi.URLParam(r, "id"))
	if !ok {
		responseError(w, "Transaction not found", http.StatusNotFound)
		return
	}
	responseJSON(w, tx, http.StatusOK)
}
