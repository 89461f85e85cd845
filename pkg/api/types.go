package api

// Request and response types for REST endpoints and WebSocket messages.
// Amounts travel as decimal strings: they are 256-bit quantities and JSON
// numbers lose precision past 2^53.

// ConfigResponse reports the immutable exchange parameters.
type ConfigResponse struct {
	FeeAccount string `json:"feeAccount"`
	FeePercent int64  `json:"feePercent"`
}

// DepositBaseRequest credits base-asset custody. Amount is the value the
// caller attaches; the bridge pulls it from the account's native balance.
type DepositBaseRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// DepositTokenRequest pulls pre-approved tokens into custody.
type DepositTokenRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// WithdrawRequest releases custody back to the account. Signature (hex,
// 65 bytes) covers crypto.WithdrawDigest and must recover to Account when
// signatures are required.
type WithdrawRequest struct {
	Token     string `json:"token"`
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	Signature string `json:"signature,omitempty"`
}

// MakeOrderRequest creates a resting order for Maker.
type MakeOrderRequest struct {
	Maker      string `json:"maker"`
	TokenGet   string `json:"tokenGet"`
	AmountGet  string `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`
	AmountGive string `json:"amountGive"`
	Signature  string `json:"signature,omitempty"`
}

// FillOrderRequest fills the order in the URL path as Taker.
type FillOrderRequest struct {
	Taker     string `json:"taker"`
	Signature string `json:"signature,omitempty"`
}

// CancelOrderRequest cancels the order in the URL path; Caller must be the
// maker.
type CancelOrderRequest struct {
	Caller    string `json:"caller"`
	Signature string `json:"signature,omitempty"`
}

// BalanceResponse is a single (asset, account) custody balance.
type BalanceResponse struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// OrderInfo is an order plus its derived lifecycle status.
type OrderInfo struct {
	ID         uint64 `json:"id"`
	User       string `json:"user"`
	TokenGet   string `json:"tokenGet"`
	AmountGet  string `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`
	AmountGive string `json:"amountGive"`
	Timestamp  int64  `json:"timestamp"`
	Status     string `json:"status"`
}

// TradeInfo is a settled trade from durable history.
type TradeInfo struct {
	ID         uint64 `json:"id"`
	User       string `json:"user"`
	TokenGet   string `json:"tokenGet"`
	AmountGet  string `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`
	AmountGive string `json:"amountGive"`
	UserFill   string `json:"userFill"`
	Timestamp  int64  `json:"timestamp"`
}

// EventMessage wraps an exchange event for the WebSocket stream.
type EventMessage struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// WSSubscribeRequest lets a client narrow the stream to specific event
// kinds. With no subscriptions, the client receives everything.
type WSSubscribeRequest struct {
	Op    string   `json:"op"` // "subscribe" or "unsubscribe"
	Kinds []string `json:"kinds"`
}

// ErrorResponse is the uniform rejection shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
