package storage

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so each record family supports range
// scans: all markets, all books, all vaults.
const (
	prefixMarket = "mkt:"
	prefixBook   = "book:"
	prefixVault  = "vault:"
	keyCounters  = "seq"
)

// marketKey: "mkt:{symbol}"
func marketKey(symbol string) []byte {
	return []byte(prefixMarket + symbol)
}

// bookKey: "book:{symbol}"
func bookKey(symbol string) []byte {
	return []byte(prefixBook + symbol)
}

// vaultKey: "vault:{address}:{asset}"
func vaultKey(addr common.Address, asset string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixVault, addr.Hex(), asset))
}

// vaultKeyParse is the inverse of vaultKey, used when scanning.
func vaultKeyParse(key []byte) (common.Address, string, error) {
	rest := strings.TrimPrefix(string(key), prefixVault)
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 || !common.IsHexAddress(parts[0]) {
		return common.Address{}, "", fmt.Errorf("malformed vault key: %q", key)
	}
	return common.HexToAddress(parts[0]), parts[1], nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
