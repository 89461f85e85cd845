package exchange

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// staging is a copy-on-read view over the ledger used by trade settlement.
// Legs mutate the view; the real ledger is only touched by apply, after the
// durable batch committed. Reads alias correctly when the same
// (asset, account) appears in several legs, e.g. taker == fee account.
type staging struct {
	ledger  *Ledger
	entries []*stagedBalance
}

type stagedBalance struct {
	asset   Asset
	account common.Address
	balance *big.Int
}

func newStaging(ledger *Ledger) *staging {
	return &staging{ledger: ledger}
}

func (s *staging) balance(asset Asset, account common.Address) *big.Int {
	for _, e := range s.entries {
		if e.asset == asset && e.account == account {
			return e.balance
		}
	}
	e := &stagedBalance{asset: asset, account: account, balance: s.ledger.BalanceOf(asset, account)}
	s.entries = append(s.entries, e)
	return e.balance
}

func (s *staging) credit(asset Asset, account common.Address, amount *big.Int) {
	bal := s.balance(asset, account)
	bal.Add(bal, amount)
}

func (s *staging) debit(asset Asset, account common.Address, amount *big.Int) error {
	bal := s.balance(asset, account)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, amount)
	}
	bal.Sub(bal, amount)
	return nil
}

// stage writes every touched balance into the batch.
func (s *staging) stage(batch *Batch) error {
	for _, e := range s.entries {
		if err := batch.SetBalance(e.asset, e.account, e.balance); err != nil {
			return err
		}
	}
	return nil
}

// apply copies the staged balances into the live ledger.
func (s *staging) apply(ledger *Ledger) {
	for _, e := range s.entries {
		ledger.set(e.asset, e.account, e.balance)
	}
}
