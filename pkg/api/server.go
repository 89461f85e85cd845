package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/RunyiYang/ETHer-BIT/pkg/crypto"
	"github.com/RunyiYang/ETHer-BIT/pkg/exchange"
)

// Server exposes the exchange over REST and streams its events over
// WebSocket. It is a thin shell: every semantic decision lives in the
// engine; the server only parses, authenticates, and translates errors.
type Server struct {
	engine      *exchange.Engine
	router      *mux.Router
	hub         *Hub
	log         *zap.SugaredLogger
	requireSigs bool
}

// NewServer wires a server to the engine and subscribes the WebSocket hub
// to the engine's event stream.
func NewServer(engine *exchange.Engine, logger *zap.SugaredLogger, requireSigs bool) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		engine:      engine,
		router:      mux.NewRouter(),
		hub:         NewHub(),
		log:         logger,
		requireSigs: requireSigs,
	}
	engine.SetEventSink(func(ev exchange.Event) {
		s.hub.Broadcast(EventMessage{Kind: ev.EventKind(), Data: ev})
	})
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/balances/{asset}/{account}", s.handleGetBalance).Methods("GET")

	api.HandleFunc("/deposits/base", s.handleDepositBase).Methods("POST")
	api.HandleFunc("/deposits/token", s.handleDepositToken).Methods("POST")
	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")

	api.HandleFunc("/orders", s.handleMakeOrder).Methods("POST")
	api.HandleFunc("/orders", s.handleGetOpenOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/fill", s.handleFillOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", s.handleCancelOrder).Methods("POST")

	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full HTTP handler including CORS. Exposed for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})
	return c.Handler(s.router)
}

// Start runs the hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, ConfigResponse{
		FeeAccount: s.engine.FeeAccount().Hex(),
		FeePercent: s.engine.FeePercent(),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	asset, ok := exchange.ParseAsset(vars["asset"])
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid asset", "")
		return
	}
	if !common.IsHexAddress(vars["account"]) {
		respondError(w, http.StatusBadRequest, "invalid account", "")
		return
	}
	account := common.HexToAddress(vars["account"])
	respondJSON(w, BalanceResponse{
		Asset:   asset.Hex(),
		Account: account.Hex(),
		Balance: s.engine.BalanceOf(asset, account).String(),
	})
}

func (s *Server) handleDepositBase(w http.ResponseWriter, r *http.Request) {
	var req DepositBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account", "")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", "")
		return
	}
	ev, err := s.engine.DepositBase(account, amount)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ev)
}

func (s *Server) handleDepositToken(w http.ResponseWriter, r *http.Request) {
	var req DepositTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	asset, ok := exchange.ParseAsset(req.Token)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid token", "")
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account", "")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", "")
		return
	}
	ev, err := s.engine.DepositToken(asset, account, amount)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ev)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	asset, ok := exchange.ParseAsset(req.Token)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid token", "")
		return
	}
	account, ok := parseAddress(req.Account)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid account", "")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", "")
		return
	}
	digest := crypto.WithdrawDigest(asset.Address(), account, amount)
	if !s.authenticate(w, account, digest, req.Signature) {
		return
	}
	ev, err := s.engine.Withdraw(asset, account, amount)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ev)
}

func (s *Server) handleMakeOrder(w http.ResponseWriter, r *http.Request) {
	var req MakeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	maker, ok := parseAddress(req.Maker)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid maker", "")
		return
	}
	tokenGet, ok := exchange.ParseAsset(req.TokenGet)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tokenGet", "")
		return
	}
	tokenGive, ok := exchange.ParseAsset(req.TokenGive)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tokenGive", "")
		return
	}
	amountGet, ok := parseAmount(req.AmountGet)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amountGet", "")
		return
	}
	amountGive, ok := parseAmount(req.AmountGive)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amountGive", "")
		return
	}
	digest := crypto.OrderDigest(maker, tokenGet.Address(), amountGet, tokenGive.Address(), amountGive)
	if !s.authenticate(w, maker, digest, req.Signature) {
		return
	}
	ev, err := s.engine.MakeOrder(maker, tokenGet, amountGet, tokenGive, amountGive)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ev)
}

func (s *Server) handleGetOpenOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.engine.OpenOrders()
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = orderInfo(o, exchange.OrderOpen)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}
	order, ok := s.engine.Order(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	status, _ := s.engine.Status(id)
	respondJSON(w, orderInfo(order, status))
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}
	var req FillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	taker, ok := parseAddress(req.Taker)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid taker", "")
		return
	}
	if !s.authenticate(w, taker, crypto.FillDigest(id, taker), req.Signature) {
		return
	}
	ev, err := s.engine.FillOrder(id, taker)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ev)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", "")
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid caller", "")
		return
	}
	if !s.authenticate(w, caller, crypto.CancelDigest(id, caller), req.Signature) {
		return
	}
	ev, err := s.engine.CancelOrder(id, caller)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ev)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	trades, err := s.engine.Trades(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load trades", err.Error())
		return
	}
	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = TradeInfo{
			ID:         t.ID,
			User:       t.User.Hex(),
			TokenGet:   t.TokenGet.Hex(),
			AmountGet:  t.AmountGet.String(),
			TokenGive:  t.TokenGive.Hex(),
			AmountGive: t.AmountGive.String(),
			UserFill:   t.UserFill.Hex(),
			Timestamp:  t.Timestamp,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

// authenticate verifies that signature over digest recovers to account.
// A missing signature passes unless the server requires them. Writes the
// rejection itself and returns false on failure.
func (s *Server) authenticate(w http.ResponseWriter, account common.Address, digest []byte, signature string) bool {
	if signature == "" {
		if s.requireSigs {
			respondError(w, http.StatusUnauthorized, "signature required", "")
			return false
		}
		return true
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed signature", err.Error())
		return false
	}
	if !crypto.VerifySignature(account, digest, sig) {
		respondError(w, http.StatusUnauthorized, "signature does not match account", "")
		return false
	}
	return true
}

func orderInfo(o exchange.Order, status exchange.OrderStatus) OrderInfo {
	return OrderInfo{
		ID:         o.ID,
		User:       o.User.Hex(),
		TokenGet:   o.TokenGet.Hex(),
		AmountGet:  o.AmountGet.String(),
		TokenGive:  o.TokenGive.Hex(),
		AmountGive: o.AmountGive.String(),
		Timestamp:  o.Timestamp,
		Status:     status.String(),
	}
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(s string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}
	return amount, true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errStr, Message: message})
}

// respondEngineError maps engine rejections to HTTP statuses. Every engine
// error is one of the exchange sentinels, so unknown errors are 500s.
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exchange.ErrInvalidAmount),
		errors.Is(err, exchange.ErrInvalidAsset),
		errors.Is(err, exchange.ErrSameAsset):
		status = http.StatusBadRequest
	case errors.Is(err, exchange.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrNotMaker):
		status = http.StatusForbidden
	case errors.Is(err, exchange.ErrOrderFilled),
		errors.Is(err, exchange.ErrOrderCancelled):
		status = http.StatusConflict
	case errors.Is(err, exchange.ErrInsufficientBalance),
		errors.Is(err, exchange.ErrTokenNotRegistered),
		errors.Is(err, exchange.ErrTransferFailed):
		status = http.StatusUnprocessableEntity
	}
	respondError(w, status, err.Error(), "")
}
