// Package hash provides the digest functions used to fingerprint blocks and
// merkle tree nodes. Every function returns a fixed length, lowercase hex
// string without a 0x prefix so proof of work can be checked by looking for
// leading '0' characters.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Size is the number of hex characters every digest in this package produces.
const Size = 64

// Func represents a deterministic digest over arbitrary string input.
type Func func(input string) string

// Set of supported strategy names.
const (
	StrategySHA256    = "sha256"
	StrategyKeccak256 = "keccak256"
)

var strategies = map[string]Func{
	StrategySHA256:    SHA256,
	StrategyKeccak256: Keccak256,
}

// SHA256 returns the hex encoded SHA-256 digest of the input.
func SHA256(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Keccak256 returns the hex encoded Keccak-256 digest of the input, the
// hashing function used by Ethereum.
func Keccak256(input string) string {
	return hex.EncodeToString(crypto.Keccak256([]byte(input)))
}

// Lookup returns the digest function registered under the specified name.
func Lookup(name string) (Func, error) {
	fn, exists := strategies[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("hash strategy %q does not exist", name)
	}
	return fn, nil
}
