package exchange

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testToken = TokenAsset(common.HexToAddress("0x1000000000000000000000000000000000000001"))
	alice     = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob       = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func TestLedgerZeroByDefault(t *testing.T) {
	l := NewLedger()
	if got := l.BalanceOf(BaseAsset, alice); got.Sign() != 0 {
		t.Errorf("fresh balance = %s, want 0", got)
	}
}

func TestLedgerCreditDebit(t *testing.T) {
	l := NewLedger()

	bal := l.credit(testToken, alice, big.NewInt(100))
	if bal.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("balance after credit = %s, want 100", bal)
	}

	bal, err := l.debit(testToken, alice, big.NewInt(40))
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if bal.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("balance after debit = %s, want 60", bal)
	}
	if got := l.BalanceOf(testToken, alice); got.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("BalanceOf = %s, want 60", got)
	}
}

func TestLedgerDebitInsufficient(t *testing.T) {
	l := NewLedger()
	l.credit(testToken, alice, big.NewInt(10))

	if _, err := l.debit(testToken, alice, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := l.BalanceOf(testToken, alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("balance mutated on failed debit: %s", got)
	}

	// Debits against untouched (asset, account) pairs fail the same way.
	if _, err := l.debit(testToken, bob, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	if _, err := l.debit(BaseAsset, alice, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestLedgerBalanceOfReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.credit(testToken, alice, big.NewInt(5))

	got := l.BalanceOf(testToken, alice)
	got.SetInt64(999)
	if l.BalanceOf(testToken, alice).Cmp(big.NewInt(5)) != 0 {
		t.Error("BalanceOf leaked internal state")
	}
}

func TestLedgerTotalHeld(t *testing.T) {
	l := NewLedger()
	l.credit(testToken, alice, big.NewInt(30))
	l.credit(testToken, bob, big.NewInt(12))
	l.credit(BaseAsset, alice, big.NewInt(9))

	if got := l.totalHeld(testToken); got.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("totalHeld(token) = %s, want 42", got)
	}
	if got := l.totalHeld(BaseAsset); got.Cmp(big.NewInt(9)) != 0 {
		t.Errorf("totalHeld(base) = %s, want 9", got)
	}
}

func TestStagingAliasing(t *testing.T) {
	l := NewLedger()
	l.credit(testToken, alice, big.NewInt(100))

	// Two legs touching the same (asset, account) must see each other.
	st := newStaging(l)
	if err := st.debit(testToken, alice, big.NewInt(100)); err != nil {
		t.Fatalf("first debit: %v", err)
	}
	st.credit(testToken, alice, big.NewInt(30))
	if err := st.debit(testToken, alice, big.NewInt(31)); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("aliased debit err = %v, want ErrInsufficientBalance", err)
	}

	// Nothing applied: the live ledger is untouched.
	if got := l.BalanceOf(testToken, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("ledger mutated before apply: %s", got)
	}

	st.apply(l)
	if got := l.BalanceOf(testToken, alice); got.Cmp(big.NewInt(30)) != 0 {
		t.Errorf("ledger after apply = %s, want 30", got)
	}
}
