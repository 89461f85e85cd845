package crypto

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Request digests bind a signature to one specific exchange operation.
// Layout: keccak256(domain || opcode || fixed-width fields), with addresses
// as 20 raw bytes, amounts as 32-byte big-endian, and ids as 8-byte
// big-endian. Any change here is a breaking protocol change.

const digestDomain = "ETHer-BIT/v1"

const (
	opOrder    = 0x01
	opFill     = 0x02
	opCancel   = 0x03
	opWithdraw = 0x04
)

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(digestDomain))
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func amountBytes(amount *big.Int) []byte {
	var buf [32]byte
	if amount != nil {
		amount.FillBytes(buf[:])
	}
	return buf[:]
}

func idBytes(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

// OrderDigest is what a maker signs to create an order.
func OrderDigest(maker, tokenGet common.Address, amountGet *big.Int, tokenGive common.Address, amountGive *big.Int) []byte {
	return keccak([]byte{opOrder}, maker.Bytes(),
		tokenGet.Bytes(), amountBytes(amountGet),
		tokenGive.Bytes(), amountBytes(amountGive))
}

// FillDigest is what a taker signs to fill order id.
func FillDigest(id uint64, taker common.Address) []byte {
	return keccak([]byte{opFill}, idBytes(id), taker.Bytes())
}

// CancelDigest is what a maker signs to cancel order id.
func CancelDigest(id uint64, caller common.Address) []byte {
	return keccak([]byte{opCancel}, idBytes(id), caller.Bytes())
}

// WithdrawDigest is what an account signs to withdraw.
func WithdrawDigest(asset, account common.Address, amount *big.Int) []byte {
	return keccak([]byte{opWithdraw}, asset.Bytes(), account.Bytes(), amountBytes(amount))
}
