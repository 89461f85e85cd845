package exchange

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/RunyiYang/ETHer-BIT/pkg/util"
)

// Config holds the immutable exchange parameters and the engine's
// collaborators. FeeAccount and FeePercent cannot change once the engine
// is constructed.
type Config struct {
	FeeAccount common.Address
	FeePercent int64 // integer percent applied to the taker's incoming amount
	DBPath     string

	Bridge NativeBridge  // base-asset custody boundary
	Tokens TokenRegistry // token contract lookup

	Logger *zap.SugaredLogger // optional, defaults to nop
	Clock  util.Clock         // optional, defaults to RealClock
}

// Engine is the order book and settlement engine. It owns the balance
// ledger, the order storage, and the filled/cancelled sets exclusively.
//
// Every public operation runs under one mutex and is all-or-nothing: state
// checks happen before any mutation, collaborator calls complete (or fail)
// synchronously inside the operation, and durable writes go through a
// single Pebble batch. No caller ever observes a partial operation.
type Engine struct {
	mu sync.Mutex

	feeAccount common.Address
	feePercent int64

	ledger     *Ledger
	orders     map[uint64]*Order
	orderCount uint64
	filled     map[uint64]bool
	cancelled  map[uint64]bool
	lastStamp  int64 // order timestamps are monotonically non-decreasing

	bridge NativeBridge
	tokens TokenRegistry
	store  *Store
	log    *zap.SugaredLogger
	clock  util.Clock

	events []Event     // append-only log of everything emitted
	sink   func(Event) // optional observer, invoked after state is final
}

// New opens the engine's database, reloads any persisted state, and returns
// a ready engine.
func New(cfg Config) (*Engine, error) {
	if cfg.FeePercent < 0 || cfg.FeePercent > 100 {
		return nil, fmt.Errorf("fee percent out of range: %d", cfg.FeePercent)
	}
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("native bridge is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}

	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	e := &Engine{
		feeAccount: cfg.FeeAccount,
		feePercent: cfg.FeePercent,
		ledger:     NewLedger(),
		bridge:     cfg.Bridge,
		tokens:     cfg.Tokens,
		store:      store,
		log:        cfg.Logger,
		clock:      cfg.Clock,
	}

	if err := store.LoadBalances(e.ledger); err != nil {
		store.Close()
		return nil, err
	}
	if e.orders, err = store.LoadOrders(); err != nil {
		store.Close()
		return nil, err
	}
	if e.filled, err = store.LoadFilled(); err != nil {
		store.Close()
		return nil, err
	}
	if e.cancelled, err = store.LoadCancelled(); err != nil {
		store.Close()
		return nil, err
	}
	if e.orderCount, err = store.LoadOrderCount(); err != nil {
		store.Close()
		return nil, err
	}
	for _, order := range e.orders {
		if order.Timestamp > e.lastStamp {
			e.lastStamp = order.Timestamp
		}
	}

	e.log.Infow("engine_ready",
		"fee_account", e.feeAccount.Hex(),
		"fee_percent", e.feePercent,
		"orders", len(e.orders),
	)
	return e, nil
}

// Close releases the underlying database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Close()
}

// SetEventSink registers an observer called once per emitted event, after
// all state for the triggering operation is final. The sink must not call
// back into the engine.
func (e *Engine) SetEventSink(sink func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// FeeAccount returns the configured fee recipient.
func (e *Engine) FeeAccount() common.Address { return e.feeAccount }

// FeePercent returns the configured fee percentage.
func (e *Engine) FeePercent() int64 { return e.feePercent }

// DepositBase pulls amount of the base asset from account through the
// native bridge and credits the ledger.
func (e *Engine) DepositBase(account common.Address, amount *big.Int) (DepositEvent, error) {
	if err := checkAmount(amount); err != nil {
		return DepositEvent{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.bridge.Pull(account, amount); err != nil {
		return DepositEvent{}, fmt.Errorf("%w: base deposit: %v", ErrTransferFailed, err)
	}

	newBal := new(big.Int).Add(e.ledger.BalanceOf(BaseAsset, account), amount)
	batch := e.store.NewBatch()
	defer batch.Close()
	if err := batch.SetBalance(BaseAsset, account, newBal); err != nil {
		return DepositEvent{}, err
	}
	if err := batch.Commit(); err != nil {
		return DepositEvent{}, fmt.Errorf("failed to persist deposit: %w", err)
	}

	e.ledger.credit(BaseAsset, account, amount)
	ev := DepositEvent{Asset: BaseAsset, Account: account, Amount: amount, Balance: newBal}
	e.emit(ev)
	return ev, nil
}

// DepositToken pulls amount of a token asset from account via the token's
// transfer-on-behalf mechanism and credits the ledger. The base asset must
// use DepositBase.
func (e *Engine) DepositToken(asset Asset, account common.Address, amount *big.Int) (DepositEvent, error) {
	if asset.IsBase() {
		return DepositEvent{}, fmt.Errorf("%w: base asset must use DepositBase", ErrInvalidAsset)
	}
	if err := checkAmount(amount); err != nil {
		return DepositEvent{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tok, err := e.token(asset)
	if err != nil {
		return DepositEvent{}, err
	}
	if err := tok.TransferFrom(account, amount); err != nil {
		return DepositEvent{}, fmt.Errorf("%w: deposit of %s: %v", ErrTransferFailed, asset.Hex(), err)
	}

	newBal := new(big.Int).Add(e.ledger.BalanceOf(asset, account), amount)
	batch := e.store.NewBatch()
	defer batch.Close()
	if err := batch.SetBalance(asset, account, newBal); err != nil {
		return DepositEvent{}, err
	}
	if err := batch.Commit(); err != nil {
		return DepositEvent{}, fmt.Errorf("failed to persist deposit: %w", err)
	}

	e.ledger.credit(asset, account, amount)
	ev := DepositEvent{Asset: asset, Account: account, Amount: amount, Balance: newBal}
	e.emit(ev)
	return ev, nil
}

// Withdraw debits (asset, account) and releases amount back across the
// custody boundary. A failed release leaves the ledger untouched.
func (e *Engine) Withdraw(asset Asset, account common.Address, amount *big.Int) (WithdrawEvent, error) {
	if err := checkAmount(amount); err != nil {
		return WithdrawEvent{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bal := e.ledger.BalanceOf(asset, account)
	if bal.Cmp(amount) < 0 {
		return WithdrawEvent{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, amount)
	}

	if asset.IsBase() {
		if err := e.bridge.Release(account, amount); err != nil {
			return WithdrawEvent{}, fmt.Errorf("%w: base withdrawal: %v", ErrTransferFailed, err)
		}
	} else {
		tok, err := e.token(asset)
		if err != nil {
			return WithdrawEvent{}, err
		}
		if err := tok.Transfer(account, amount); err != nil {
			return WithdrawEvent{}, fmt.Errorf("%w: withdrawal of %s: %v", ErrTransferFailed, asset.Hex(), err)
		}
	}

	newBal := new(big.Int).Sub(bal, amount)
	batch := e.store.NewBatch()
	defer batch.Close()
	if err := batch.SetBalance(asset, account, newBal); err != nil {
		return WithdrawEvent{}, err
	}
	if err := batch.Commit(); err != nil {
		return WithdrawEvent{}, fmt.Errorf("failed to persist withdrawal: %w", err)
	}

	if _, err := e.ledger.debit(asset, account, amount); err != nil {
		// Unreachable: sufficiency was checked above under the same lock.
		return WithdrawEvent{}, err
	}
	ev := WithdrawEvent{Asset: asset, Account: account, Amount: amount, Balance: newBal}
	e.emit(ev)
	return ev, nil
}

// BalanceOf returns the tracked custody balance for (asset, account).
func (e *Engine) BalanceOf(asset Asset, account common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.BalanceOf(asset, account)
}

// MakeOrder records a new resting order for maker. The maker's balance is
// deliberately not checked here: sufficiency is validated at fill time, so
// an order can rest even if the offered funds are not (yet) on deposit.
func (e *Engine) MakeOrder(maker common.Address, tokenGet Asset, amountGet *big.Int, tokenGive Asset, amountGive *big.Int) (OrderEvent, error) {
	if err := checkAmount(amountGet); err != nil {
		return OrderEvent{}, err
	}
	if err := checkAmount(amountGive); err != nil {
		return OrderEvent{}, err
	}
	if tokenGet == tokenGive {
		return OrderEvent{}, ErrSameAsset
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	order := &Order{
		ID:         e.orderCount + 1,
		User:       maker,
		TokenGet:   tokenGet,
		AmountGet:  new(big.Int).Set(amountGet),
		TokenGive:  tokenGive,
		AmountGive: new(big.Int).Set(amountGive),
		Timestamp:  e.timestamp(),
	}

	batch := e.store.NewBatch()
	defer batch.Close()
	if err := batch.PutOrder(order); err != nil {
		return OrderEvent{}, err
	}
	if err := batch.SetOrderCount(order.ID); err != nil {
		return OrderEvent{}, err
	}
	if err := batch.Commit(); err != nil {
		return OrderEvent{}, fmt.Errorf("failed to persist order: %w", err)
	}

	e.orderCount = order.ID
	e.orders[order.ID] = order

	ev := OrderEvent{
		ID:         order.ID,
		User:       order.User,
		TokenGet:   order.TokenGet,
		AmountGet:  order.AmountGet,
		TokenGive:  order.TokenGive,
		AmountGive: order.AmountGive,
		Timestamp:  order.Timestamp,
	}
	e.emit(ev)
	return ev, nil
}

// FillOrder settles an open order against taker. Settlement moves, in one
// atomic step: amountGet+fee of tokenGet from the taker, amountGet of it to
// the maker and the fee to the fee account, then amountGive of tokenGive
// from the maker to the taker. Fee = floor(amountGet * feePercent / 100),
// paid by the taker on top of the maker's ask.
func (e *Engine) FillOrder(id uint64, taker common.Address) (TradeEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok {
		return TradeEvent{}, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	if e.filled[id] {
		return TradeEvent{}, fmt.Errorf("%w: id %d", ErrOrderFilled, id)
	}
	if e.cancelled[id] {
		return TradeEvent{}, fmt.Errorf("%w: id %d", ErrOrderCancelled, id)
	}

	fee := new(big.Int).Mul(order.AmountGet, big.NewInt(e.feePercent))
	fee.Div(fee, big.NewInt(100))
	takerOwes := new(big.Int).Add(order.AmountGet, fee)

	// Settlement works against a staging view so that either every leg
	// lands or none does, even when maker, taker, and fee account alias.
	st := newStaging(e.ledger)
	if err := st.debit(order.TokenGet, taker, takerOwes); err != nil {
		return TradeEvent{}, fmt.Errorf("taker: %w", err)
	}
	st.credit(order.TokenGet, order.User, order.AmountGet)
	st.credit(order.TokenGet, e.feeAccount, fee)
	if err := st.debit(order.TokenGive, order.User, order.AmountGive); err != nil {
		return TradeEvent{}, fmt.Errorf("maker: %w", err)
	}
	st.credit(order.TokenGive, taker, order.AmountGive)

	ev := TradeEvent{
		ID:         order.ID,
		User:       order.User,
		TokenGet:   order.TokenGet,
		AmountGet:  order.AmountGet,
		TokenGive:  order.TokenGive,
		AmountGive: order.AmountGive,
		UserFill:   taker,
		Timestamp:  order.Timestamp,
	}

	batch := e.store.NewBatch()
	defer batch.Close()
	if err := st.stage(batch); err != nil {
		return TradeEvent{}, err
	}
	if err := batch.MarkFilled(id); err != nil {
		return TradeEvent{}, err
	}
	if err := batch.PutTrade(ev); err != nil {
		return TradeEvent{}, err
	}
	if err := batch.Commit(); err != nil {
		return TradeEvent{}, fmt.Errorf("failed to persist trade: %w", err)
	}

	st.apply(e.ledger)
	e.filled[id] = true
	e.emit(ev)
	return ev, nil
}

// CancelOrder marks an open order dead. Only the maker may cancel, and only
// once: cancelling a filled or already-cancelled order rejects.
func (e *Engine) CancelOrder(id uint64, caller common.Address) (CancelEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[id]
	if !ok {
		return CancelEvent{}, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	if caller != order.User {
		return CancelEvent{}, fmt.Errorf("%w: order %d belongs to %s", ErrNotMaker, id, order.User.Hex())
	}
	if e.filled[id] {
		return CancelEvent{}, fmt.Errorf("%w: id %d", ErrOrderFilled, id)
	}
	if e.cancelled[id] {
		return CancelEvent{}, fmt.Errorf("%w: id %d", ErrOrderCancelled, id)
	}

	batch := e.store.NewBatch()
	defer batch.Close()
	if err := batch.MarkCancelled(id); err != nil {
		return CancelEvent{}, err
	}
	if err := batch.Commit(); err != nil {
		return CancelEvent{}, fmt.Errorf("failed to persist cancel: %w", err)
	}

	e.cancelled[id] = true
	ev := CancelEvent{
		ID:         order.ID,
		User:       order.User,
		TokenGet:   order.TokenGet,
		AmountGet:  order.AmountGet,
		TokenGive:  order.TokenGive,
		AmountGive: order.AmountGive,
		Timestamp:  order.Timestamp,
	}
	e.emit(ev)
	return ev, nil
}

// Order returns a copy of the order with the given id.
func (e *Engine) Order(id uint64) (Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[id]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// OrderCount returns the id of the most recently created order.
func (e *Engine) OrderCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orderCount
}

// Status returns the lifecycle state of an order id.
func (e *Engine) Status(id uint64) (OrderStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.orders[id]; !ok {
		return 0, false
	}
	switch {
	case e.filled[id]:
		return OrderFilled, true
	case e.cancelled[id]:
		return OrderCancelled, true
	default:
		return OrderOpen, true
	}
}

// OpenOrders returns every order that is neither filled nor cancelled,
// ordered by id.
func (e *Engine) OpenOrders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := make([]Order, 0, len(e.orders))
	for id, order := range e.orders {
		if !e.filled[id] && !e.cancelled[id] {
			open = append(open, *order)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open
}

// Events returns a snapshot of everything emitted since the engine started.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// Trades returns up to limit settled trades, newest first, from durable
// history (so it survives restarts, unlike the in-memory event log).
func (e *Engine) Trades(limit int) ([]TradeEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.LoadRecentTrades(limit)
}

// TotalHeld returns the sum of all ledger balances for an asset.
func (e *Engine) TotalHeld(asset Asset) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.totalHeld(asset)
}

func (e *Engine) token(asset Asset) (Token, error) {
	if e.tokens == nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotRegistered, asset.Hex())
	}
	tok, ok := e.tokens.Token(asset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotRegistered, asset.Hex())
	}
	return tok, nil
}

// timestamp returns the current time in ms, clamped so order timestamps
// never decrease even if the wall clock does.
func (e *Engine) timestamp() int64 {
	now := e.clock.Now().UnixMilli()
	if now < e.lastStamp {
		now = e.lastStamp
	}
	e.lastStamp = now
	return now
}

func (e *Engine) emit(ev Event) {
	e.events = append(e.events, ev)
	e.log.Infow("event", "kind", ev.EventKind(), "detail", ev)
	if e.sink != nil {
		e.sink(ev)
	}
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
