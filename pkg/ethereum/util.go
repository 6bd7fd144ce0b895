package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// RegistryKey converts a custodial asset or user id into the uint256 key
// of the registry's contracts mapping: the UUID's 16 bytes read as a
// big-endian integer ("0x" + hyphen-stripped hex).
func RegistryKey(id string) (*big.Int, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid registry id %q: %w", id, err)
	}
	return new(big.Int).SetBytes(parsed[:]), nil
}

// TxURL returns the block explorer link for a transaction hash
func TxURL(explorerURL, txHash string) string {
	return strings.TrimRight(explorerURL, "/") + "/tx/" + txHash
}
