package api

// API request/response types. All wei and token amounts travel as base-10
// strings so they survive JSON number precision.

// ==============================
// Requests
// ==============================

type RegisterRequest struct {
	Address  string `json:"address"`
	Referrer string `json:"referrer,omitempty"` // empty or zero address means no referrer
}

type BuyRequest struct {
	Address string `json:"address"`
	Value   string `json:"value"` // wei sent
}

type AddOrderRequest struct {
	Address   string `json:"address"`
	Side      string `json:"side"` // "Sell" or "Buy"
	Amount    string `json:"amount"`
	UnitPrice string `json:"unitPrice"`
}

type RemoveOrderRequest struct {
	Address string `json:"address"`
}

type RedeemRequest struct {
	Address string `json:"address"`
	Value   string `json:"value"`            // wei sent (sell orders)
	Amount  string `json:"amount,omitempty"` // tokens delivered (buy orders)
}

type FaucetRequest struct {
	Address string `json:"address"`
	Value   string `json:"value"`
}

// ==============================
// Responses
// ==============================

type RoundInfo struct {
	Index       uint64 `json:"index"`
	Kind        string `json:"kind"`
	StartedAt   int64  `json:"startedAt"` // unix milliseconds
	EndsAt      int64  `json:"endsAt"`
	UnitPrice   string `json:"unitPrice,omitempty"`
	Supplied    string `json:"supplied,omitempty"`
	Remaining   string `json:"remaining,omitempty"`
	TradedValue string `json:"tradedValue,omitempty"`
}

type OrderInfo struct {
	ID        uint64 `json:"id"`
	Side      string `json:"side"`
	Owner     string `json:"owner"`
	Remaining string `json:"remaining"`
	UnitPrice string `json:"unitPrice"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"createdAt"`
}

type AccountInfo struct {
	Address         string `json:"address"`
	Registered      bool   `json:"registered"`
	Referrer        string `json:"referrer,omitempty"`
	TokenBalance    string `json:"tokenBalance"`
	CurrencyBalance string `json:"currencyBalance"`
}

type PurchaseResponse struct {
	Tokens string `json:"tokens"`
	Cost   string `json:"cost"`
	Refund string `json:"refund"`
}

type FillResponse struct {
	OrderID uint64 `json:"orderId"`
	Tokens  string `json:"tokens"`
	Cost    string `json:"cost"`
	Refund  string `json:"refund"`
	Closed  bool   `json:"closed"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket messages
// ==============================

type WSEvent struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

type RoundStartedEvent struct {
	Kind      string `json:"kind"`
	UnitPrice string `json:"unitPrice"`
}

type OrderEvent struct {
	Side      string `json:"side"`
	Amount    string `json:"amount"`
	UnitPrice string `json:"unitPrice"`
}

type TokenBoughtEvent struct {
	Buyer  string `json:"buyer"`
	Amount string `json:"amount"`
}
