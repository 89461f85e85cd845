package exchange

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store provides Pebble-based persistence for the exchange state: balances,
// orders, filled/cancelled marks, the order counter, and trade history.
// All writes for one public operation go through a single Batch so the
// durable state moves all-or-nothing, matching the engine's semantics.
//
// Key schema (prefix-based for range scans, zero-padded ids for
// lexicographic ordering):
//
//	bal:{asset}:{account}  -> balance (decimal string)
//	ord:{id:020d}          -> order (JSON)
//	filled:{id:020d}       -> marker
//	cancel:{id:020d}       -> marker
//	trade:{ts:020d}:{id:020d} -> trade event (JSON)
//	meta:ordercount        -> counter (decimal string)
const (
	prefixBalance   = "bal:"
	prefixOrder     = "ord:"
	prefixFilled    = "filled:"
	prefixCancelled = "cancel:"
	prefixTrade     = "trade:"
	keyOrderCount   = "meta:ordercount"
)

type Store struct {
	db *pebble.DB
}

// OpenStore opens (or creates) a Pebble database at path.
func OpenStore(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		MaxOpenFiles:          1000,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func balanceKey(asset Asset, account common.Address) []byte {
	return []byte(prefixBalance + asset.Hex() + ":" + account.Hex())
}

func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

func filledKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixFilled, id))
}

func cancelledKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixCancelled, id))
}

func tradeKey(timestamp int64, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%020d", prefixTrade, timestamp, id))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// LoadOrderCount reads the persisted order counter, zero if absent.
func (s *Store) LoadOrderCount() (uint64, error) {
	data, closer, err := s.db.Get([]byte(keyOrderCount))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get order count: %w", err)
	}
	defer closer.Close()

	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt order count %q: %w", data, err)
	}
	return n, nil
}

// LoadBalances replays every persisted balance into the ledger.
func (s *Store) LoadBalances(ledger *Ledger) error {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to iterate balances: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rest := strings.TrimPrefix(string(iter.Key()), prefixBalance)
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("corrupt balance key %q", iter.Key())
		}
		asset, ok := ParseAsset(parts[0])
		if !ok {
			return fmt.Errorf("corrupt asset in balance key %q", iter.Key())
		}
		if !common.IsHexAddress(parts[1]) {
			return fmt.Errorf("corrupt account in balance key %q", iter.Key())
		}
		amount, ok := new(big.Int).SetString(string(iter.Value()), 10)
		if !ok {
			return fmt.Errorf("corrupt balance value %q for key %q", iter.Value(), iter.Key())
		}
		ledger.set(asset, common.HexToAddress(parts[1]), amount)
	}
	return nil
}

// LoadOrders replays every persisted order, keyed by id.
func (s *Store) LoadOrders() (map[uint64]*Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	defer iter.Close()

	orders := make(map[uint64]*Order)
	for iter.First(); iter.Valid(); iter.Next() {
		var order Order
		if err := json.Unmarshal(iter.Value(), &order); err != nil {
			return nil, fmt.Errorf("corrupt order at key %q: %w", iter.Key(), err)
		}
		orders[order.ID] = &order
	}
	return orders, nil
}

// LoadMarks replays the filled or cancelled id set under the given prefix.
func (s *Store) loadMarks(prefix string) (map[uint64]bool, error) {
	lower := []byte(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: keyUpperBound(lower),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate %s marks: %w", prefix, err)
	}
	defer iter.Close()

	marks := make(map[uint64]bool)
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := strconv.ParseUint(strings.TrimPrefix(string(iter.Key()), prefix), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt mark key %q: %w", iter.Key(), err)
		}
		marks[id] = true
	}
	return marks, nil
}

// LoadFilled returns the persisted filled-order id set.
func (s *Store) LoadFilled() (map[uint64]bool, error) {
	return s.loadMarks(prefixFilled)
}

// LoadCancelled returns the persisted cancelled-order id set.
func (s *Store) LoadCancelled() (map[uint64]bool, error) {
	return s.loadMarks(prefixCancelled)
}

// LoadRecentTrades returns up to limit trades, newest first.
func (s *Store) LoadRecentTrades(limit int) ([]TradeEvent, error) {
	prefix := []byte(prefixTrade)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	defer iter.Close()

	var trades []TradeEvent
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var trade TradeEvent
		if err := json.Unmarshal(iter.Value(), &trade); err != nil {
			return nil, fmt.Errorf("corrupt trade at key %q: %w", iter.Key(), err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// Batch stages the writes of one engine operation for an atomic commit.
type Batch struct {
	batch *pebble.Batch
}

// NewBatch starts an empty write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// SetBalance stages the post-operation balance for (asset, account).
func (b *Batch) SetBalance(asset Asset, account common.Address, amount *big.Int) error {
	return b.batch.Set(balanceKey(asset, account), []byte(amount.String()), nil)
}

// PutOrder stages a newly created order.
func (b *Batch) PutOrder(order *Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", order.ID, err)
	}
	return b.batch.Set(orderKey(order.ID), data, nil)
}

// SetOrderCount stages the order counter.
func (b *Batch) SetOrderCount(n uint64) error {
	return b.batch.Set([]byte(keyOrderCount), []byte(strconv.FormatUint(n, 10)), nil)
}

// MarkFilled stages the filled mark for an order id.
func (b *Batch) MarkFilled(id uint64) error {
	return b.batch.Set(filledKey(id), []byte{1}, nil)
}

// MarkCancelled stages the cancelled mark for an order id.
func (b *Batch) MarkCancelled(id uint64) error {
	return b.batch.Set(cancelledKey(id), []byte{1}, nil)
}

// PutTrade stages a trade history record.
func (b *Batch) PutTrade(trade TradeEvent) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade %d: %w", trade.ID, err)
	}
	return b.batch.Set(tradeKey(trade.Timestamp, trade.ID), data, nil)
}

// Commit writes the batch durably and atomically.
func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.batch.Close()
}
