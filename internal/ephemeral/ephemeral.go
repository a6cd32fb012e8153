// Package ephemeral derives the disposable intermediate wallet used to
// break the on-chain link between a swap's input and output addresses.
//
// The keypair is a pure function of the user's cached wallet signature:
// the same signature always reproduces the same address, which is what
// makes stuck funds recoverable after a failed swap without persisting
// any key material.
package ephemeral

import (
	"crypto/ed25519"
	"errors"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"
)

// derivationTag domain-separates ephemeral-wallet derivation from the
// privacy pool's own signature-derived encryption key. Changing it would
// orphan every wallet derived under the old tag, so it is frozen.
const derivationTag = "CircuitX-Ephemeral-Wallet"

// ErrEmptySignature is returned when no wallet signature is available.
var ErrEmptySignature = errors.New("signature is required to derive ephemeral wallet")

// DeriveKeypair returns the deterministic keypair for a wallet signature.
// Seed = Keccak-256(tag || signature), truncated to the ed25519 seed size.
func DeriveKeypair(signature []byte) (solana.PrivateKey, error) {
	if len(signature) == 0 {
		return nil, ErrEmptySignature
	}

	// Legacy Keccak-256, matching the hash the pool SDK uses for its
	// signature-derived keys (not NIST SHA3).
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(derivationTag))
	h.Write(signature)
	seed := h.Sum(nil)[:ed25519.SeedSize]

	priv := ed25519.NewKeyFromSeed(seed)
	return solana.PrivateKey(priv), nil
}

// DeriveAddress returns just the public key of the ephemeral wallet,
// for balance checks and display without holding the private half.
func DeriveAddress(signature []byte) (solana.PublicKey, error) {
	kp, err := DeriveKeypair(signature)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return kp.PublicKey(), nil
}
