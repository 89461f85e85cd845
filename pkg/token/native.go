package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RunyiYang/ETHer-BIT/pkg/exchange"
)

var (
	ErrInsufficientNative = errors.New("insufficient native balance")
	ErrCustodyShort       = errors.New("custody pool short")
)

// Native models the base-asset side of the custody boundary: each account's
// spendable native balance plus the pool the exchange holds. Pull is the
// value transfer attached to a deposit; Release pays a withdrawal out of
// the pool. The pool can never pay out more than was pulled in.
type Native struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	pool     *big.Int // total native value in exchange custody
}

var _ exchange.NativeBridge = (*Native)(nil)

// NewNative returns an empty native ledger.
func NewNative() *Native {
	return &Native{
		balances: make(map[common.Address]*big.Int),
		pool:     new(big.Int),
	}
}

// Fund credits an account's spendable native balance (devnet faucet).
func (n *Native) Fund(account common.Address, amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	bal, ok := n.balances[account]
	if !ok {
		bal = new(big.Int)
		n.balances[account] = bal
	}
	bal.Add(bal, amount)
}

// BalanceOf returns an account's spendable native balance.
func (n *Native) BalanceOf(account common.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if bal, ok := n.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// PoolBalance returns the total native value held in custody.
func (n *Native) PoolBalance() *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return new(big.Int).Set(n.pool)
}

// Pull moves amount from the account's spendable balance into custody.
func (n *Native) Pull(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid amount")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	bal, ok := n.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientNative, from.Hex())
	}
	bal.Sub(bal, amount)
	n.pool.Add(n.pool, amount)
	return nil
}

// Release moves amount from custody back to the account.
func (n *Native) Release(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid amount")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pool.Cmp(amount) < 0 {
		return fmt.Errorf("%w: pool %s, requested %s", ErrCustodyShort, n.pool, amount)
	}
	n.pool.Sub(n.pool, amount)
	bal, ok := n.balances[to]
	if !ok {
		bal = new(big.Int)
		n.balances[to] = bal
	}
	bal.Add(bal, amount)
	return nil
}
