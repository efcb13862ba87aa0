package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/solumdex/solum/pkg/dex/book"
	"github.com/solumdex/solum/pkg/dex/market"
	"github.com/solumdex/solum/pkg/dex/state"
)

// Server handles REST API and WebSocket connections.
//
// The machine itself does no locking: it expects the runtime to hand it one
// instruction at a time. The server plays that runtime role with a single
// mutex around every machine call, so instructions execute one after another
// in arrival order.
type Server struct {
	mu      sync.Mutex
	machine *state.Machine
	router  *mux.Router
	hub     *Hub
	origins []string
}

// NewServer creates a new API server wrapping the given machine.
func NewServer(m *state.Machine, corsOrigins []string) *Server {
	s := &Server{
		machine: m,
		router:  mux.NewRouter(),
		hub:     NewHub(),
		origins: corsOrigins,
	}

	m.OnFill = s.broadcastFill
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets", s.handleCreateMarket).Methods("POST")
	api.HandleFunc("/markets/{symbol}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/close", s.handleCloseMarket).Methods("POST")

	// Account endpoints
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{address}/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/accounts/{address}/withdraw", s.handleWithdraw).Methods("POST")

	// Order endpoints
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	// Node status
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	markets := s.machine.Markets().List()
	response := make([]MarketInfo, len(markets))
	for i, m := range markets {
		response[i] = marketInfo(m)
	}
	s.mu.Unlock()

	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	s.mu.Lock()
	m, err := s.machine.Markets().Get(symbol)
	s.mu.Unlock()
	if err != nil {
		respondError(w, http.StatusNotFound, "market not found", err.Error())
		return
	}

	respondJSON(w, marketInfo(m))
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid caller address", err.Error())
		return
	}

	params := market.DefaultParams()
	if req.TickSize > 0 {
		params.TickSize = req.TickSize
	}
	if req.LotSize > 0 {
		params.LotSize = req.LotSize
	}
	if req.MinNotional > 0 {
		params.MinNotional = req.MinNotional
	}

	s.mu.Lock()
	symbol, err := s.machine.InitializeMarket(caller, req.BaseAsset, req.QuoteAsset, params)
	s.mu.Unlock()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "market creation rejected", err.Error())
		return
	}

	respondJSON(w, CreateMarketResponse{Symbol: symbol})
}

func (s *Server) handleCloseMarket(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var req CloseMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid caller address", err.Error())
		return
	}

	s.mu.Lock()
	err = s.machine.CloseMarket(caller, symbol)
	s.mu.Unlock()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "close rejected", err.Error())
		return
	}

	respondJSON(w, map[string]string{"symbol": symbol, "status": "Closed"})
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	s.mu.Lock()
	b := s.machine.Book(symbol)
	if b == nil {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "orderbook not found", "")
		return
	}
	bids := priceLevels(b.BidLevels())
	asks := priceLevels(b.AskLevels())
	s.mu.Unlock()

	respondJSON(w, OrderbookSnapshot{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	s.mu.Lock()
	l := s.machine.Ledger()
	var balances []BalanceInfo
	for _, k := range l.Keys() {
		if k.Account != addr {
			continue
		}
		bal := l.Get(k.Account, k.Asset)
		balances = append(balances, BalanceInfo{
			Asset:     k.Asset,
			Available: bal.Available,
			Reserved:  bal.Reserved,
		})
	}
	s.mu.Unlock()

	respondJSON(w, AccountInfo{Address: addr.Hex(), Balances: balances})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, true)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, false)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, deposit bool) {
	account, err := parseAddress(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error())
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller := account
	if req.Caller != "" {
		if caller, err = parseAddress(req.Caller); err != nil {
			respondError(w, http.StatusBadRequest, "invalid caller address", err.Error())
			return
		}
	}

	s.mu.Lock()
	if deposit {
		err = s.machine.Deposit(caller, account, req.Asset, req.Amount)
	} else {
		err = s.machine.Withdraw(caller, account, req.Asset, req.Amount)
	}
	bal := s.machine.Ledger().Get(account, req.Asset)
	s.mu.Unlock()

	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "transfer rejected", err.Error())
		return
	}

	respondJSON(w, AccountInfo{
		Address: account.Hex(),
		Balances: []BalanceInfo{{
			Asset:     req.Asset,
			Available: bal.Available,
			Reserved:  bal.Reserved,
		}},
	})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid caller address", err.Error())
		return
	}

	owner := caller
	if req.Owner != "" {
		if owner, err = parseAddress(req.Owner); err != nil {
			respondError(w, http.StatusBadRequest, "invalid owner address", err.Error())
			return
		}
	}

	side, err := parseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}

	typ, err := parseOrderType(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order type", err.Error())
		return
	}

	s.mu.Lock()
	res, err := s.machine.PlaceOrder(caller, owner, req.Symbol, side, typ, req.Price, req.Qty)
	s.mu.Unlock()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "order rejected", err.Error())
		return
	}

	fills := make([]FillInfo, len(res.Fills))
	for i, f := range res.Fills {
		fills[i] = fillInfo(f)
	}

	respondJSON(w, SubmitOrderResponse{
		OrderID:   res.OrderID,
		Status:    res.Status.String(),
		Remaining: res.Remaining,
		Fills:     fills,
	})

	s.broadcastOrderbook(req.Symbol)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid caller address", err.Error())
		return
	}

	s.mu.Lock()
	res, err := s.machine.CancelOrder(caller, req.Symbol, req.OrderID)
	s.mu.Unlock()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "cancel rejected", err.Error())
		return
	}

	respondJSON(w, CancelOrderResponse{
		OrderID:  res.OrderID,
		Released: res.Released,
		Asset:    res.Asset,
	})

	s.broadcastOrderbook(req.Symbol)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hash := s.machine.StateHash()
	count := s.machine.Markets().Count()
	s.mu.Unlock()

	respondJSON(w, StatusInfo{
		StateHash: hex.EncodeToString(hash[:]),
		Markets:   count,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods
// ==============================

// broadcastOrderbook pushes the current levels of a book to subscribers.
func (s *Server) broadcastOrderbook(symbol string) {
	s.mu.Lock()
	b := s.machine.Book(symbol)
	if b == nil {
		s.mu.Unlock()
		return
	}
	bids := priceLevels(b.BidLevels())
	asks := priceLevels(b.AskLevels())
	s.mu.Unlock()

	s.hub.BroadcastToChannel("orderbook:"+symbol, OrderbookUpdate{
		Type:      "orderbook",
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UnixMilli(),
	})
}

// broadcastFill is wired into the machine's OnFill hook.
func (s *Server) broadcastFill(symbol string, f book.Fill) {
	s.hub.BroadcastToChannel("trades:"+symbol, TradeUpdate{
		Type:      "trade",
		Symbol:    symbol,
		Price:     f.Price,
		Size:      f.Qty,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ==============================
// Helper Functions
// ==============================

func marketInfo(m *market.Market) MarketInfo {
	return MarketInfo{
		Symbol:      m.Symbol,
		BaseAsset:   m.BaseAsset,
		QuoteAsset:  m.QuoteAsset,
		Status:      m.Status.String(),
		TickSize:    m.Params.TickSize,
		LotSize:     m.Params.LotSize,
		MinNotional: m.Params.MinNotional,
	}
}

func priceLevels(levels []book.Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Size: l.Qty}
	}
	return out
}

func fillInfo(f book.Fill) FillInfo {
	return FillInfo{
		MakerOrderID: f.MakerID,
		TakerOrderID: f.TakerID,
		Maker:        f.Maker.Hex(),
		Taker:        f.Taker.Hex(),
		Price:        f.Price,
		Qty:          f.Qty,
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a hex address: %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseSide(s string) (book.Side, error) {
	switch s {
	case "buy", "bid":
		return book.Bid, nil
	case "sell", "ask":
		return book.Ask, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func parseOrderType(s string) (book.OrderType, error) {
	switch s {
	case "limit", "":
		return book.Limit, nil
	case "market":
		return book.Market, nil
	case "ioc":
		return book.IOC, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", s)
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
