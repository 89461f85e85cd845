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
	ErrInsufficientFunds     = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Token is an in-process fungible token ledger with transfer/approve
// semantics. It stands in for the external token contract the exchange
// custodies: the exchange only ever sees the narrow exchange.Token surface
// obtained through Bind.
type Token struct {
	mu sync.Mutex

	name     string
	symbol   string
	decimals uint8
	supply   *big.Int

	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int // owner -> spender -> amount
}

// New creates a token and mints the entire supply to deployer.
func New(name, symbol string, decimals uint8, deployer common.Address, supply *big.Int) *Token {
	t := &Token{
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		supply:     new(big.Int).Set(supply),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	t.balances[deployer] = new(big.Int).Set(supply)
	return t
}

func (t *Token) Name() string         { return t.name }
func (t *Token) Symbol() string       { return t.symbol }
func (t *Token) Decimals() uint8      { return t.decimals }
func (t *Token) TotalSupply() *big.Int { return new(big.Int).Set(t.supply) }

// BalanceOf returns owner's holdings.
func (t *Token) BalanceOf(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balanceLocked(owner)
}

func (t *Token) balanceLocked(owner common.Address) *big.Int {
	if bal, ok := t.balances[owner]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moveLocked(from, to, amount)
}

func (t *Token) moveLocked(from, to common.Address, amount *big.Int) error {
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, from.Hex())
	}
	bal.Sub(bal, amount)
	dst, ok := t.balances[to]
	if !ok {
		dst = new(big.Int)
		t.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}

// Approve authorizes spender to move up to amount on owner's behalf,
// replacing any previous allowance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*big.Int)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = new(big.Int).Set(amount)
}

// Allowance returns what spender may still move on owner's behalf.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if byOwner, ok := t.allowances[owner]; ok {
		if a, ok := byOwner[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

// TransferFrom moves amount from owner to recipient, spending spender's
// allowance. Fails without effect if the allowance or balance is short.
func (t *Token) TransferFrom(spender, owner, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := t.allowances[owner][spender]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: owner %s, spender %s", ErrInsufficientAllowance, owner.Hex(), spender.Hex())
	}
	if err := t.moveLocked(owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

// Bind returns the token as seen from operator's custody account: pulls
// land in operator's holdings, payouts come out of them. The result
// satisfies exchange.Token.
func (t *Token) Bind(operator common.Address) *Binding {
	return &Binding{tok: t, operator: operator}
}

// Binding is a Token scoped to one custody account.
type Binding struct {
	tok      *Token
	operator common.Address
}

var _ exchange.Token = (*Binding)(nil)

func (b *Binding) TransferFrom(owner common.Address, amount *big.Int) error {
	return b.tok.TransferFrom(b.operator, owner, b.operator, amount)
}

func (b *Binding) Transfer(to common.Address, amount *big.Int) error {
	return b.tok.Transfer(b.operator, to, amount)
}

func (b *Binding) BalanceOf(owner common.Address) *big.Int {
	return b.tok.BalanceOf(owner)
}
