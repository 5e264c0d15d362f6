// Package signature provides helper functions for signing the values a peer
// reports about itself. Signatures identify the reporting peer. They never
// gate the acceptance of a block or chain.
package signature

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a signature can't be decoded or
// doesn't produce a public key.
var ErrInvalidSignature = errors.New("invalid signature")

// stampPrefix is mixed into every signed hash so a ledger signature can't be
// replayed as an ethereum personal message.
const stampPrefix = "\x19Ledger Signed Message:\n32"

// =============================================================================

// GenerateKey constructs a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Address returns the account address for the specified private key.
func Address(privateKey *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(privateKey.PublicKey).String()
}

// Sign uses the specified private key to sign the value and returns the
// signature as a 0x prefixed hex string.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	return hexutil.Encode(sig), nil
}

// FromAddress extracts the address of the account that signed the value. The
// exact value that was signed must be provided or a different address is
// produced.
func FromAddress(value any, sig string) (string, error) {
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	raw, err := hexutil.Decode(sig)
	if err != nil || len(raw) != crypto.SignatureLength {
		return "", ErrInvalidSignature
	}

	publicKey, err := crypto.SigToPub(data, raw)
	if err != nil {
		return "", ErrInvalidSignature
	}

	rs := raw[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return "", ErrInvalidSignature
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// Verify checks the value was signed by the specified address.
func Verify(value any, sig string, address string) error {
	from, err := FromAddress(value, sig)
	if err != nil {
		return err
	}

	if from != address {
		return fmt.Errorf("signed by %s, expected %s", from, address)
	}

	return nil
}

// =============================================================================

// stamp returns a 32 byte hash of the value with the ledger prefix embedded.
func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	return crypto.Keccak256([]byte(stampPrefix), crypto.Keccak256(v)), nil
}
