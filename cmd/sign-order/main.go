package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RunyiYang/ETHer-BIT/pkg/crypto"
)

// sign-order produces a signed order request ready to POST to
// /api/v1/orders. With no -key it generates a fresh keypair and prints the
// private key so the same identity can be reused.
func main() {
	var (
		keyHex     = flag.String("key", "", "maker private key (hex, no 0x); generated when empty")
		tokenGet   = flag.String("token-get", "", "asset the maker wants (hex address, zero = base)")
		amountGet  = flag.String("amount-get", "", "amount of token-get (decimal)")
		tokenGive  = flag.String("token-give", "", "asset the maker offers (hex address, zero = base)")
		amountGive = flag.String("amount-give", "", "amount of token-give (decimal)")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex == "" {
		signer, err = crypto.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated key: %s (keep secret)\n", signer.PrivateKeyHex())
	} else {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load key: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Maker: %s\n", signer.Address().Hex())

	if !common.IsHexAddress(*tokenGet) || !common.IsHexAddress(*tokenGive) {
		fmt.Fprintln(os.Stderr, "token-get and token-give must be hex addresses")
		os.Exit(1)
	}
	get, ok := new(big.Int).SetString(*amountGet, 10)
	if !ok || get.Sign() <= 0 {
		fmt.Fprintln(os.Stderr, "amount-get must be a positive decimal")
		os.Exit(1)
	}
	give, ok := new(big.Int).SetString(*amountGive, 10)
	if !ok || give.Sign() <= 0 {
		fmt.Fprintln(os.Stderr, "amount-give must be a positive decimal")
		os.Exit(1)
	}

	digest := crypto.OrderDigest(signer.Address(), common.HexToAddress(*tokenGet), get, common.HexToAddress(*tokenGive), give)
	sig, err := signer.Sign(digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}

	request := map[string]string{
		"maker":      signer.Address().Hex(),
		"tokenGet":   common.HexToAddress(*tokenGet).Hex(),
		"amountGet":  get.String(),
		"tokenGive":  common.HexToAddress(*tokenGive).Hex(),
		"amountGive": give.String(),
		"signature":  fmt.Sprintf("0x%x", sig),
	}
	out, _ := json.MarshalIndent(request, "", "  ")
	fmt.Printf("\nPOST /api/v1/orders\n%s\n", out)
}
