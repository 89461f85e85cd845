package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RunyiYang/ETHer-BIT/pkg/crypto"
	"github.com/RunyiYang/ETHer-BIT/pkg/exchange"
	"github.com/RunyiYang/ETHer-BIT/pkg/token"
)

var (
	feeAcct   = common.HexToAddress("0xFEE0000000000000000000000000000000000000")
	custody   = common.HexToAddress("0xCC00000000000000000000000000000000000000")
	deployer  = common.HexToAddress("0xD000000000000000000000000000000000000000")
	user1     = common.HexToAddress("0x1100000000000000000000000000000000000000")
	user2     = common.HexToAddress("0x2200000000000000000000000000000000000000")
	tokenAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
)

func units(s string) *big.Int {
	whole, frac, _ := strings.Cut(s, ".")
	frac = frac + strings.Repeat("0", 18-len(frac))
	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		panic("bad test amount: " + s)
	}
	return n
}

type testServer struct {
	srv    *httptest.Server
	native *token.Native
	tok    *token.Token
}

func newTestServer(t *testing.T, requireSigs bool) *testServer {
	t.Helper()

	native := token.NewNative()
	tok := token.New("BIT Token", "BIT", 18, deployer, units("1000000"))
	registry := token.NewRegistry()
	registry.Register(exchange.TokenAsset(tokenAddr), tok.Bind(custody))

	engine, err := exchange.New(exchange.Config{
		FeeAccount: feeAcct,
		FeePercent: 10,
		DBPath:     t.TempDir() + "/exchange.db",
		Bridge:     native,
		Tokens:     registry,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	srv := httptest.NewServer(NewServer(engine, nil, requireSigs).Handler())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, native: native, tok: tok}
}

func (ts *testServer) post(t *testing.T, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	resp, err := http.Post(ts.srv.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s failed: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, data []byte, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to decode %s: %v", data, err)
	}
}

func (ts *testServer) balance(t *testing.T, asset, account common.Address) *big.Int {
	t.Helper()
	_, body := ts.get(t, "/api/v1/balances/"+asset.Hex()+"/"+account.Hex())
	var resp BalanceResponse
	decode(t, body, &resp)
	n, ok := new(big.Int).SetString(resp.Balance, 10)
	if !ok {
		t.Fatalf("bad balance string: %q", resp.Balance)
	}
	return n
}

func TestGetConfig(t *testing.T) {
	ts := newTestServer(t, false)
	resp, body := ts.get(t, "/api/v1/config")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var cfg ConfigResponse
	decode(t, body, &cfg)
	if cfg.FeeAccount != feeAcct.Hex() || cfg.FeePercent != 10 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	resp, _ := ts.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

// TestExchangeLifecycle walks the full flow over HTTP: both users fund and
// deposit, user1 offers 1 base unit for 1 token, user2 fills, fee lands.
func TestExchangeLifecycle(t *testing.T) {
	ts := newTestServer(t, false)

	ts.native.Fund(user1, units("1"))
	ts.tok.Transfer(deployer, user2, units("2"))
	ts.tok.Approve(user2, custody, units("2"))

	resp, body := ts.post(t, "/api/v1/deposits/base", DepositBaseRequest{
		Account: user1.Hex(), Amount: units("1").String(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("base deposit status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = ts.post(t, "/api/v1/deposits/token", DepositTokenRequest{
		Token: tokenAddr.Hex(), Account: user2.Hex(), Amount: units("2").String(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token deposit status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = ts.post(t, "/api/v1/orders", MakeOrderRequest{
		Maker:      user1.Hex(),
		TokenGet:   tokenAddr.Hex(),
		AmountGet:  units("1").String(),
		TokenGive:  exchange.BaseAsset.Hex(),
		AmountGive: units("1").String(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("make order status = %d, body %s", resp.StatusCode, body)
	}
	var orderEv exchange.OrderEvent
	decode(t, body, &orderEv)
	if orderEv.ID != 1 {
		t.Fatalf("order id = %d, want 1", orderEv.ID)
	}

	_, body = ts.get(t, "/api/v1/orders")
	var open []OrderInfo
	decode(t, body, &open)
	if len(open) != 1 || open[0].ID != 1 || open[0].Status != "open" {
		t.Fatalf("open orders = %+v", open)
	}

	resp, body = ts.post(t, "/api/v1/orders/1/fill", FillOrderRequest{Taker: user2.Hex()})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fill status = %d, body %s", resp.StatusCode, body)
	}
	var tradeEv exchange.TradeEvent
	decode(t, body, &tradeEv)
	if tradeEv.UserFill != user2 || tradeEv.Timestamp != orderEv.Timestamp {
		t.Errorf("trade event = %+v", tradeEv)
	}

	base := exchange.BaseAsset.Address()
	if got := ts.balance(t, tokenAddr, user1); got.Cmp(units("1")) != 0 {
		t.Errorf("user1 tokens = %s, want 1e18", got)
	}
	if got := ts.balance(t, base, user2); got.Cmp(units("1")) != 0 {
		t.Errorf("user2 base = %s, want 1e18", got)
	}
	if got := ts.balance(t, base, user1); got.Sign() != 0 {
		t.Errorf("user1 base = %s, want 0", got)
	}
	if got := ts.balance(t, tokenAddr, user2); got.Cmp(units("0.9")) != 0 {
		t.Errorf("user2 tokens = %s, want 0.9e18", got)
	}
	if got := ts.balance(t, tokenAddr, feeAcct); got.Cmp(units("0.1")) != 0 {
		t.Errorf("fee account = %s, want 0.1e18", got)
	}

	// The filled order is gone from the open book but readable by id.
	_, body = ts.get(t, "/api/v1/orders")
	open = nil
	decode(t, body, &open)
	if len(open) != 0 {
		t.Errorf("open orders after fill = %+v", open)
	}
	_, body = ts.get(t, "/api/v1/orders/1")
	var info OrderInfo
	decode(t, body, &info)
	if info.Status != "filled" {
		t.Errorf("order status = %s, want filled", info.Status)
	}

	// Trade history records the fill.
	_, body = ts.get(t, "/api/v1/trades")
	var trades []TradeInfo
	decode(t, body, &trades)
	if len(trades) != 1 || trades[0].ID != 1 || trades[0].UserFill != user2.Hex() {
		t.Errorf("trades = %+v", trades)
	}

	// Maker withdraws the tokens back out to the token contract.
	resp, body = ts.post(t, "/api/v1/withdrawals", WithdrawRequest{
		Token: tokenAddr.Hex(), Account: user1.Hex(), Amount: units("1").String(),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw status = %d, body %s", resp.StatusCode, body)
	}
	if got := ts.tok.BalanceOf(user1); got.Cmp(units("1")) != 0 {
		t.Errorf("user1 token contract balance = %s, want 1e18", got)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t, false)
	ts.native.Fund(user1, units("1"))
	ts.post(t, "/api/v1/deposits/base", DepositBaseRequest{
		Account: user1.Hex(), Amount: units("1").String(),
	})
	ts.post(t, "/api/v1/orders", MakeOrderRequest{
		Maker:      user1.Hex(),
		TokenGet:   tokenAddr.Hex(),
		AmountGet:  units("1").String(),
		TokenGive:  exchange.BaseAsset.Hex(),
		AmountGive: units("1").String(),
	})

	// Unknown order id.
	resp, _ := ts.post(t, "/api/v1/orders/99999/fill", FillOrderRequest{Taker: user2.Hex()})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", resp.StatusCode)
	}

	// Non-maker cancel.
	resp, _ = ts.post(t, "/api/v1/orders/1/cancel", CancelOrderRequest{Caller: user2.Hex()})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-maker cancel status = %d, want 403", resp.StatusCode)
	}

	// Taker with no deposits.
	resp, _ = ts.post(t, "/api/v1/orders/1/fill", FillOrderRequest{Taker: user2.Hex()})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("insufficient fill status = %d, want 422", resp.StatusCode)
	}

	// Double cancel conflicts.
	ts.post(t, "/api/v1/orders/1/cancel", CancelOrderRequest{Caller: user1.Hex()})
	resp, _ = ts.post(t, "/api/v1/orders/1/cancel", CancelOrderRequest{Caller: user1.Hex()})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double cancel status = %d, want 409", resp.StatusCode)
	}

	// Malformed amount.
	resp, _ = ts.post(t, "/api/v1/deposits/base", DepositBaseRequest{
		Account: user1.Hex(), Amount: "not-a-number",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad amount status = %d, want 400", resp.StatusCode)
	}

	// Negative amount never reaches the engine.
	resp, _ = ts.post(t, "/api/v1/deposits/base", DepositBaseRequest{
		Account: user1.Hex(), Amount: "-5",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative amount status = %d, want 400", resp.StatusCode)
	}
}

func TestSignatureRequired(t *testing.T) {
	ts := newTestServer(t, true)

	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	maker := signer.Address()

	order := MakeOrderRequest{
		Maker:      maker.Hex(),
		TokenGet:   tokenAddr.Hex(),
		AmountGet:  units("1").String(),
		TokenGive:  exchange.BaseAsset.Hex(),
		AmountGive: units("1").String(),
	}

	// No signature.
	resp, _ := ts.post(t, "/api/v1/orders", order)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unsigned status = %d, want 401", resp.StatusCode)
	}

	// Signature from the wrong key.
	other, _ := crypto.GenerateKey()
	digest := crypto.OrderDigest(maker, tokenAddr, units("1"), exchange.BaseAsset.Address(), units("1"))
	badSig, _ := other.Sign(digest)
	order.Signature = hex.EncodeToString(badSig)
	resp, _ = ts.post(t, "/api/v1/orders", order)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong-key status = %d, want 401", resp.StatusCode)
	}

	// Valid signature.
	goodSig, _ := signer.Sign(digest)
	order.Signature = hex.EncodeToString(goodSig)
	resp, body := ts.post(t, "/api/v1/orders", order)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("signed status = %d, body %s", resp.StatusCode, body)
	}
}
