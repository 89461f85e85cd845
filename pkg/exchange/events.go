package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Events are emitted exactly once per successful operation, after every
// state mutation for that operation is final. They are outputs only: the
// engine never reads them back.

// Event is implemented by all exchange event types.
type Event interface {
	EventKind() string
}

// DepositEvent records a credit into custody.
type DepositEvent struct {
	Asset   Asset          `json:"asset"`
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
	Balance *big.Int       `json:"balance"` // ledger balance after the deposit
}

// WithdrawEvent records a debit out of custody.
type WithdrawEvent struct {
	Asset   Asset          `json:"asset"`
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
	Balance *big.Int       `json:"balance"` // ledger balance after the withdrawal
}

// OrderEvent records a newly created order.
type OrderEvent struct {
	ID         uint64         `json:"id"`
	User       common.Address `json:"user"`
	TokenGet   Asset          `json:"tokenGet"`
	AmountGet  *big.Int       `json:"amountGet"`
	TokenGive  Asset          `json:"tokenGive"`
	AmountGive *big.Int       `json:"amountGive"`
	Timestamp  int64          `json:"timestamp"`
}

// TradeEvent records a settled fill. Timestamp is the original order's
// creation time, not the fill time.
type TradeEvent struct {
	ID         uint64         `json:"id"`
	User       common.Address `json:"user"` // maker
	TokenGet   Asset          `json:"tokenGet"`
	AmountGet  *big.Int       `json:"amountGet"`
	TokenGive  Asset          `json:"tokenGive"`
	AmountGive *big.Int       `json:"amountGive"`
	UserFill   common.Address `json:"userFill"` // taker
	Timestamp  int64          `json:"timestamp"`
}

// CancelEvent records a maker cancelling their own order. Same field shape
// as OrderEvent.
type CancelEvent struct {
	ID         uint64         `json:"id"`
	User       common.Address `json:"user"`
	TokenGet   Asset          `json:"tokenGet"`
	AmountGet  *big.Int       `json:"amountGet"`
	TokenGive  Asset          `json:"tokenGive"`
	AmountGive *big.Int       `json:"amountGive"`
	Timestamp  int64          `json:"timestamp"`
}

func (DepositEvent) EventKind() string  { return "Deposit" }
func (WithdrawEvent) EventKind() string { return "Withdraw" }
func (OrderEvent) EventKind() string    { return "Order" }
func (TradeEvent) EventKind() string    { return "Trade" }
func (CancelEvent) EventKind() string   { return "Cancel" }
