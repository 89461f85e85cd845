package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Order is a resting limit order: the maker wants AmountGet of TokenGet and
// offers AmountGive of TokenGive in return. Orders are never deleted;
// filled/cancelled status lives in the engine's auxiliary sets so the full
// history stays queryable.
type Order struct {
	ID         uint64         `json:"id"`
	User       common.Address `json:"user"` // maker
	TokenGet   Asset          `json:"tokenGet"`
	AmountGet  *big.Int       `json:"amountGet"`
	TokenGive  Asset          `json:"tokenGive"`
	AmountGive *big.Int       `json:"amountGive"`
	Timestamp  int64          `json:"timestamp"` // creation time, Unix milliseconds
}

// OrderStatus is the derived lifecycle state of an order id.
type OrderStatus int8

const (
	OrderOpen OrderStatus = iota
	OrderFilled
	OrderCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
