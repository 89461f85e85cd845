package exchange

import (
	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies something the exchange can hold custody of: either the
// native base coin or a fungible token contract. The distinct type keeps
// asset identifiers from being mixed up with account addresses even though
// both are 20 bytes on the wire.
type Asset common.Address

// BaseAsset is the reserved sentinel for the native coin. It deliberately
// reuses the zero address so clients that speak the 0x000...000 convention
// work unchanged.
var BaseAsset = Asset{}

// TokenAsset wraps a token contract address as an Asset.
func TokenAsset(addr common.Address) Asset {
	return Asset(addr)
}

// IsBase reports whether the asset is the native base coin.
func (a Asset) IsBase() bool {
	return a == BaseAsset
}

// Address returns the underlying contract address. Only meaningful for
// token assets.
func (a Asset) Address() common.Address {
	return common.Address(a)
}

// Hex returns the EIP-55 checksummed hex form.
func (a Asset) Hex() string {
	return common.Address(a).Hex()
}

func (a Asset) String() string {
	return a.Hex()
}

// MarshalText serializes the asset as checksummed hex, the same wire form
// as an address.
func (a Asset) MarshalText() ([]byte, error) {
	return common.Address(a).MarshalText()
}

// UnmarshalText parses a hex asset identifier.
func (a *Asset) UnmarshalText(input []byte) error {
	return (*common.Address)(a).UnmarshalText(input)
}

// ParseAsset decodes a hex asset identifier. The zero address parses to
// BaseAsset.
func ParseAsset(s string) (Asset, bool) {
	if !common.IsHexAddress(s) {
		return Asset{}, false
	}
	return Asset(common.HexToAddress(s)), true
}
