// Package api exposes the platform's operation surface over REST and
// broadcasts its notifications over WebSocket. Transport only: every rule
// lives in pkg/platform.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/quantor-labs/mintround/pkg/ledger"
	"github.com/quantor-labs/mintround/pkg/platform"
	"github.com/quantor-labs/mintround/pkg/platform/orderbook"
	"github.com/quantor-labs/mintround/pkg/platform/referral"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	platform *platform.Platform
	bank     *ledger.Bank
	token    *ledger.Token
	router   *mux.Router
	hub      *Hub

	devFaucet bool
}

// NewServer wires the routes. The hub is passed in because it usually
// already serves as the platform's event sink.
func NewServer(p *platform.Platform, bank *ledger.Bank, token *ledger.Token, hub *Hub, devFaucet bool) *Server {
	s := &Server{
		platform:  p,
		bank:      bank,
		token:     token,
		router:    mux.NewRouter(),
		hub:       hub,
		devFaucet: devFaucet,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Rounds
	api.HandleFunc("/rounds", s.handleListRounds).Methods("GET")
	api.HandleFunc("/rounds/current", s.handleCurrentRound).Methods("GET")
	api.HandleFunc("/rounds/sale", s.handleStartSaleRound).Methods("POST")
	api.HandleFunc("/rounds/trade", s.handleStartTradeRound).Methods("POST")

	// Registration & accounts
	api.HandleFunc("/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")

	// Sale purchases
	api.HandleFunc("/sale/buy", s.handleBuy).Methods("POST")

	// Orders
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleAddOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleRemoveOrder).Methods("DELETE")
	api.HandleFunc("/orders/{id}/redeem", s.handleRedeemOrder).Methods("POST")

	if s.devFaucet {
		api.HandleFunc("/faucet", s.handleFaucet).Methods("POST")
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Round handlers
// ==============================

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	rounds := s.platform.Rounds()
	out := make([]RoundInfo, len(rounds))
	for i := range rounds {
		out[i] = roundInfo(rounds[i])
	}
	respondJSON(w, out)
}

func (s *Server) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.platform.CurrentRound()
	if !ok {
		respondError(w, http.StatusNotFound, "no round started yet", "")
		return
	}
	respondJSON(w, roundInfo(cur))
}

func (s *Server) handleStartSaleRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.platform.StartSaleRound()
	if err != nil {
		respondPlatformError(w, err)
		return
	}
	respondJSON(w, roundInfo(round))
}

func (s *Server) handleStartTradeRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.platform.StartTradeRound()
	if err != nil {
		respondPlatformError(w, err)
		return
	}
	respondJSON(w, roundInfo(round))
}

// ==============================
// Registration & accounts
// ==============================

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	referrer := referral.NoReferrer
	if req.Referrer != "" {
		if referrer, ok = parseAddress(w, req.Referrer); !ok {
			return
		}
	}
	if err := s.platform.Register(caller, referrer); err != nil {
		respondPlatformError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "registered"})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	info := AccountInfo{
		Address:         addr.Hex(),
		Registered:      s.platform.Referrals().IsRegistered(addr),
		TokenBalance:    s.token.BalanceOf(addr).String(),
		CurrencyBalance: s.bank.BalanceOf(addr).String(),
	}
	if ref, ok := s.platform.Referrals().ReferrerOf(addr); ok {
		info.Referrer = ref.Hex()
	}
	respondJSON(w, info)
}

// ==============================
// Sale purchase
// ==============================

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	buyer, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	value, ok := parseAmount(w, "value", req.Value)
	if !ok {
		return
	}

	receipt, err := s.platform.BuyInSale(buyer, value)
	if err != nil {
		respondPlatformError(w, err)
		return
	}
	respondJSON(w, PurchaseResponse{
		Tokens: receipt.Tokens.String(),
		Cost:   receipt.Cost.String(),
		Refund: receipt.Refund.String(),
	})
}

// ==============================
// Order handlers
// ==============================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.platform.Orders()
	if r.URL.Query().Get("active") == "true" {
		orders = s.platform.ActiveOrders()
	}
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = OrderInfo{
			ID:        o.ID,
			Side:      o.Side.String(),
			Owner:     o.Owner.Hex(),
			Remaining: o.Remaining.String(),
			UnitPrice: o.UnitPrice.String(),
			Active:    o.Active,
			CreatedAt: o.CreatedAt,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	var req AddOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount)
	if !ok {
		return
	}
	price, ok := parseAmount(w, "unitPrice", req.UnitPrice)
	if !ok {
		return
	}

	var side orderbook.Side
	switch req.Side {
	case "Sell", "sell":
		side = orderbook.Sell
	case "Buy", "buy":
		side = orderbook.Buy
	default:
		respondError(w, http.StatusBadRequest, "invalid side", "expected Sell or Buy")
		return
	}

	o, err := s.platform.AddOrder(owner, side, amount, price)
	if err != nil {
		respondPlatformError(w, err)
		return
	}
	respondJSON(w, map[string]any{"status": "added", "orderId": o.ID})
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var req RemoveOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	if _, err := s.platform.RemoveOrder(caller, id); err != nil {
		respondPlatformError(w, err)
		return
	}
	respondJSON(w, map[string]any{"status": "removed", "orderId": id})
}

// handleRedeemOrder fills an order: sell orders take a wei value, buy
// orders take a token amount.
func (s *Server) handleRedeemOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	taker, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	var fill platform.Fill
	var err error
	switch {
	case req.Value != "":
		var value *big.Int
		if value, ok = parseAmount(w, "value", req.Value); !ok {
			return
		}
		fill, err = s.platform.RedeemOrder(taker, id, value)
	case req.Amount != "":
		var amount *big.Int
		if amount, ok = parseAmount(w, "amount", req.Amount); !ok {
			return
		}
		fill, err = s.platform.FillBuyOrder(taker, id, amount)
	default:
		respondError(w, http.StatusBadRequest, "missing value or amount", "")
		return
	}
	if err != nil {
		respondPlatformError(w, err)
		return
	}
	respondJSON(w, FillResponse{
		OrderID: fill.OrderID,
		Tokens:  fill.Tokens.String(),
		Cost:    fill.Cost.String(),
		Refund:  fill.Refund.String(),
		Closed:  fill.Closed,
	})
}

// ==============================
// Dev faucet
// ==============================

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	to, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	value, ok := parseAmount(w, "value", req.Value)
	if !ok {
		return
	}
	if err := s.bank.Deposit(to, value); err != nil {
		respondPlatformError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "funded"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func roundInfo(r platform.Round) RoundInfo {
	info := RoundInfo{
		Index:     r.Index,
		Kind:      r.Kind.String(),
		StartedAt: r.StartedAt.UnixMilli(),
		EndsAt:    r.EndsAt.UnixMilli(),
	}
	if r.UnitPrice != nil {
		info.UnitPrice = r.UnitPrice.String()
	}
	if r.Supplied != nil {
		info.Supplied = r.Supplied.String()
	}
	if r.Remaining != nil {
		info.Remaining = r.Remaining.String()
	}
	if r.TradedValue != nil {
		info.TradedValue = r.TradedValue.String()
	}
	return info
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(w http.ResponseWriter, field, s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		respondError(w, http.StatusBadRequest, "invalid "+field, s)
		return nil, false
	}
	return v, true
}

func parseOrderID(w http.ResponseWriter, s string) (uint64, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", s)
		return 0, false
	}
	return id, true
}

// respondPlatformError maps the platform's failure taxonomy to HTTP codes:
// state guards → 409, authorization → 403, missing entities → 404,
// resource/input violations → 400.
func respondPlatformError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, platform.ErrNoSaleRoundYet),
		errors.Is(err, platform.ErrSaleAlreadyStarted),
		errors.Is(err, platform.ErrSaleStillOngoing),
		errors.Is(err, platform.ErrTradeAlreadyStarted),
		errors.Is(err, platform.ErrTradeStillOngoing),
		errors.Is(err, platform.ErrSaleRoundNotOpen),
		errors.Is(err, platform.ErrTradeRoundNotOpen):
		status = http.StatusConflict
	case errors.Is(err, orderbook.ErrNotOrderOwner),
		errors.Is(err, referral.ErrSelfReferral):
		status = http.StatusForbidden
	case errors.Is(err, orderbook.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, referral.ErrAlreadyRegistered):
		status = http.StatusConflict
	}
	respondError(w, status, err.Error(), "")
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: detail})
}
