package crypto

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	// Private key hex is 64 chars (32 bytes)
	privHex := signer.PrivateKeyHex()
	if len(privHex) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(privHex))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	// Generate a key and use it for round-trip testing
	signer1, _ := GenerateKey()
	privHex := signer1.PrivateKeyHex()
	expectedAddr := signer1.Address()

	// Load from hex (no prefix)
	signer2, err := FromPrivateKeyHex(privHex)
	if err != nil {
		t.Fatalf("failed to load key: %v", err)
	}

	if signer2.Address() != expectedAddr {
		t.Errorf("address = %s, want %s", signer2.Address().Hex(), expectedAddr.Hex())
	}

	if signer2.PrivateKeyHex() != privHex {
		t.Errorf("private key mismatch after reload")
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, _ := GenerateKey()

	digest := OrderDigest(signer.Address(),
		common.HexToAddress("0x1000000000000000000000000000000000000001"), big.NewInt(100),
		common.Address{}, big.NewInt(50))

	signature, err := signer.Sign(digest)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	// Signature should be 65 bytes [R || S || V]
	if len(signature) != 65 {
		t.Errorf("signature length = %d, want 65", len(signature))
	}

	if !VerifySignature(signer.Address(), digest, signature) {
		t.Error("signature verification failed")
	}

	// Verify with wrong address
	wrongAddr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	if VerifySignature(wrongAddr, digest, signature) {
		t.Error("signature should not verify with wrong address")
	}
}

func TestRecoverAddress(t *testing.T) {
	signer, _ := GenerateKey()
	digest := FillDigest(7, signer.Address())

	signature, err := signer.Sign(digest)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	recoveredAddr, err := RecoverAddress(digest, signature)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}

	if recoveredAddr != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recoveredAddr.Hex(), signer.Address().Hex())
	}
}

func TestSignRejectsBadDigestLength(t *testing.T) {
	signer, _ := GenerateKey()
	if _, err := signer.Sign([]byte("short")); err == nil {
		t.Error("short digest accepted")
	}
}

func TestInvalidSignature(t *testing.T) {
	signer, _ := GenerateKey()
	digest := CancelDigest(1, signer.Address())

	// Invalid signature length
	if VerifySignature(signer.Address(), digest, []byte{1, 2, 3}) {
		t.Error("invalid signature should not verify")
	}

	// Invalid digest length
	validSig := make([]byte, 65)
	if VerifySignature(signer.Address(), []byte("short"), validSig) {
		t.Error("invalid digest should not verify")
	}
}

func TestDigestsDeterministic(t *testing.T) {
	maker := common.HexToAddress("0xAA00000000000000000000000000000000000000")
	tokenGet := common.HexToAddress("0x1000000000000000000000000000000000000001")

	a := OrderDigest(maker, tokenGet, big.NewInt(100), common.Address{}, big.NewInt(50))
	b := OrderDigest(maker, tokenGet, big.NewInt(100), common.Address{}, big.NewInt(50))
	if !bytes.Equal(a, b) {
		t.Error("identical inputs produced different digests")
	}
	if len(a) != 32 {
		t.Errorf("digest length = %d, want 32", len(a))
	}
}

func TestDigestsDistinct(t *testing.T) {
	maker := common.HexToAddress("0xAA00000000000000000000000000000000000000")
	tokenGet := common.HexToAddress("0x1000000000000000000000000000000000000001")

	digests := [][]byte{
		OrderDigest(maker, tokenGet, big.NewInt(100), common.Address{}, big.NewInt(50)),
		OrderDigest(maker, tokenGet, big.NewInt(101), common.Address{}, big.NewInt(50)),
		FillDigest(1, maker),
		FillDigest(2, maker),
		CancelDigest(1, maker), // same id as the fill, different operation
		WithdrawDigest(tokenGet, maker, big.NewInt(100)),
	}
	for i := range digests {
		for j := i + 1; j < len(digests); j++ {
			if bytes.Equal(digests[i], digests[j]) {
				t.Errorf("digests %d and %d collide", i, j)
			}
		}
	}
}
