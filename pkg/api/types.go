package api

// API request and response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// MarketInfo represents a market's static configuration
type MarketInfo struct {
	Symbol      string `json:"symbol"`      // e.g., "BTC-USDT"
	BaseAsset   string `json:"baseAsset"`   // e.g., "BTC"
	QuoteAsset  string `json:"quoteAsset"`  // e.g., "USDT"
	Status      string `json:"status"`      // "Active", "Closed"
	TickSize    int64  `json:"tickSize"`    // Minimum price increment
	LotSize     int64  `json:"lotSize"`     // Minimum size increment
	MinNotional int64  `json:"minNotional"` // Minimum price*qty for priced orders
}

// OrderbookSnapshot represents current orderbook state
type OrderbookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`      // Sorted high to low
	Asks      []PriceLevel `json:"asks"`      // Sorted low to high
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// PriceLevel represents [price, size] tuple
type PriceLevel struct {
	Price int64 `json:"price"` // Price in quote units per lot
	Size  int64 `json:"size"`  // Aggregate open quantity at this price
}

// BalanceInfo represents one vault of an account
type BalanceInfo struct {
	Asset     string `json:"asset"`
	Available int64  `json:"available"` // Spendable
	Reserved  int64  `json:"reserved"`  // Escrowed against open orders
}

// AccountInfo represents all vaults of an account
type AccountInfo struct {
	Address  string        `json:"address"`
	Balances []BalanceInfo `json:"balances"`
}

// FillInfo represents one execution of a matched order
type FillInfo struct {
	MakerOrderID uint64 `json:"makerOrderId"`
	TakerOrderID uint64 `json:"takerOrderId"`
	Maker        string `json:"maker"`
	Taker        string `json:"taker"`
	Price        int64  `json:"price"` // Maker's resting price
	Qty          int64  `json:"qty"`
}

// StatusInfo represents the node's current state summary
type StatusInfo struct {
	StateHash string `json:"stateHash"` // Hex digest of the full state
	Markets   int    `json:"markets"`
	Timestamp int64  `json:"timestamp"`
}

// ==============================
// REST Request Types
// ==============================

// CreateMarketRequest is the payload for POST /api/v1/markets
type CreateMarketRequest struct {
	Caller      string `json:"caller"`
	BaseAsset   string `json:"baseAsset"`
	QuoteAsset  string `json:"quoteAsset"`
	TickSize    int64  `json:"tickSize,omitempty"`
	LotSize     int64  `json:"lotSize,omitempty"`
	MinNotional int64  `json:"minNotional,omitempty"`
}

// CreateMarketResponse is returned on successful market creation
type CreateMarketResponse struct {
	Symbol string `json:"symbol"`
}

// SubmitOrderRequest is the payload for POST /api/v1/orders
type SubmitOrderRequest struct {
	Caller string `json:"caller"` // Submitting address
	Owner  string `json:"owner"`  // Funding account (defaults to caller)
	Symbol string `json:"symbol"`
	Side   string `json:"side"`  // "buy" or "sell"
	Type   string `json:"type"`  // "limit", "market", "ioc"
	Price  int64  `json:"price"` // 0 for market orders
	Qty    int64  `json:"qty"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	OrderID   uint64     `json:"orderId"`
	Status    string     `json:"status"` // "Open", "PartiallyFilled", "Filled"
	Remaining int64      `json:"remaining"`
	Fills     []FillInfo `json:"fills"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	Caller  string `json:"caller"`
	Symbol  string `json:"symbol"`
	OrderID uint64 `json:"orderId"`
}

// CancelOrderResponse reports the escrow returned by a cancel
type CancelOrderResponse struct {
	OrderID  uint64 `json:"orderId"`
	Released int64  `json:"released"`
	Asset    string `json:"asset"`
}

// TransferRequest is the payload for deposit and withdraw endpoints
type TransferRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

// CloseMarketRequest is the payload for POST /api/v1/markets/{symbol}/close
type CloseMarketRequest struct {
	Caller string `json:"caller"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orderbook:BTC-USDT", "trades:BTC-USDT"]
}

// OrderbookUpdate is broadcast after every instruction that touches a book
type OrderbookUpdate struct {
	Type      string       `json:"type"` // "orderbook"
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

// TradeUpdate is broadcast when a fill settles
type TradeUpdate struct {
	Type      string `json:"type"` // "trade"
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
	Timestamp int64  `json:"timestamp"`
}
