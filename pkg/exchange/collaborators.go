package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is the narrow transfer-in/transfer-out surface the exchange needs
// from a fungible token contract, as seen from the exchange's custody
// account. The token keeps its own ledger and its own invariants; the
// exchange only observes success or failure.
type Token interface {
	// TransferFrom pulls amount from owner into the exchange's custody.
	// The owner must have pre-authorized the exchange (approve-style
	// allowance); an unauthorized or failed pull returns an error and
	// moves nothing.
	TransferFrom(owner common.Address, amount *big.Int) error

	// Transfer pays amount out of the exchange's custody to recipient.
	Transfer(to common.Address, amount *big.Int) error

	// BalanceOf reports owner's holdings on the token's own ledger.
	BalanceOf(owner common.Address) *big.Int
}

// TokenRegistry resolves a token asset identifier to its contract binding.
type TokenRegistry interface {
	Token(asset Asset) (Token, bool)
}

// NativeBridge moves the base asset across the custody boundary. Pull
// models the value transfer attached to a deposit call; Release pays a
// withdrawal back out. Both either complete synchronously or fail with no
// effect.
type NativeBridge interface {
	Pull(from common.Address, amount *big.Int) error
	Release(to common.Address, amount *big.Int) error
}
