package exchange

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger maps (asset, account) to a non-negative quantity. It is exclusively
// owned by the Engine: all mutation happens under the engine's lock, only
// through credit/debit, and only as part of deposit, withdraw, or trade
// settlement.
type Ledger struct {
	balances map[Asset]map[common.Address]*big.Int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[Asset]map[common.Address]*big.Int)}
}

// BalanceOf returns the tracked quantity for (asset, account). Accounts the
// ledger has never seen hold zero. The returned value is a copy.
func (l *Ledger) BalanceOf(asset Asset, account common.Address) *big.Int {
	if accounts, ok := l.balances[asset]; ok {
		if bal, ok := accounts[account]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

// credit adds amount to (asset, account) and returns the new balance.
func (l *Ledger) credit(asset Asset, account common.Address, amount *big.Int) *big.Int {
	accounts, ok := l.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[asset] = accounts
	}
	bal, ok := accounts[account]
	if !ok {
		bal = new(big.Int)
		accounts[account] = bal
	}
	bal.Add(bal, amount)
	return new(big.Int).Set(bal)
}

// debit subtracts amount from (asset, account) and returns the new balance.
// Fails with ErrInsufficientBalance and no mutation if the balance is short.
func (l *Ledger) debit(asset Asset, account common.Address, amount *big.Int) (*big.Int, error) {
	accounts, ok := l.balances[asset]
	if !ok {
		return nil, fmt.Errorf("%w: have 0, need %s", ErrInsufficientBalance, amount)
	}
	bal, ok := accounts[account]
	if !ok || bal.Cmp(amount) < 0 {
		have := new(big.Int)
		if ok {
			have.Set(bal)
		}
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, have, amount)
	}
	bal.Sub(bal, amount)
	return new(big.Int).Set(bal), nil
}

// canDebit reports whether a debit of amount would succeed. Used by trade
// settlement to check every leg before mutating anything.
func (l *Ledger) canDebit(asset Asset, account common.Address, amount *big.Int) bool {
	accounts, ok := l.balances[asset]
	if !ok {
		return false
	}
	bal, ok := accounts[account]
	return ok && bal.Cmp(amount) >= 0
}

// set overwrites a balance during state reload from storage.
func (l *Ledger) set(asset Asset, account common.Address, amount *big.Int) {
	accounts, ok := l.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[asset] = accounts
	}
	accounts[account] = new(big.Int).Set(amount)
}

// totalHeld sums all balances for an asset. Exposed for invariant checks:
// the total must never exceed what has actually been moved into custody.
func (l *Ledger) totalHeld(asset Asset) *big.Int {
	total := new(big.Int)
	for _, bal := range l.balances[asset] {
		total.Add(total, bal)
	}
	return total
}
