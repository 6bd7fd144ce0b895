// Package auth builds and verifies the wallet signatures used by bridge registration.
package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RegistrationPrefix is the fixed protocol prefix of the registration challenge
const RegistrationPrefix = "MVM:Bridge:Proxy:"

// RegistrationChallenge builds the plaintext challenge that binds a wallet
// address to the bridge proxy identified by proxyTag.
func RegistrationChallenge(proxyTag, address string) string {
	return RegistrationPrefix + proxyTag + ":" + address
}

// RegistrationMessage returns the message the wallet signs during registration:
// the keccak256 digest of the challenge as a 0x-prefixed hex string.
func RegistrationMessage(proxyTag, address string) string {
	return crypto.Keccak256Hash([]byte(RegistrationChallenge(proxyTag, address))).Hex()
}

// PersonalHash returns the EIP-191 personal_sign digest of message
func PersonalHash(message string) []byte {
	return accounts.TextHash([]byte(message))
}

// VerifyEIP191Signature verifies an EIP-191 personal_sign signature
// Returns the recovered Ethereum address if valid
func VerifyEIP191Signature(message, signature string) (common.Address, error) {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature hex: %w", err)
	}

	if len(sigBytes) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: expected %d, got %d", crypto.SignatureLength, len(sigBytes))
	}

	// v can be 0, 1, 27, or 28 - normalize to 0 or 1
	if sigBytes[crypto.RecoveryIDOffset] >= 27 {
		sigBytes[crypto.RecoveryIDOffset] -= 27
	}

	pubKey, err := crypto.SigToPub(PersonalHash(message), sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// ValidateEVMAddress checks if a string is a valid EVM address
func ValidateEVMAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") {
		return false
	}
	if len(address) != 42 {
		return false
	}
	_, err := hex.DecodeString(address[2:])
	return err == nil
}

// NormalizeAddress returns a checksummed EVM address
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// IsEmptyAddress reports whether addr is the zero address the registry
// returns for unknown keys.
func IsEmptyAddress(addr common.Address) bool {
	return addr == (common.Address{})
}
