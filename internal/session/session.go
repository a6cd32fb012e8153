// Package session holds the per-wallet sign-in state: the message
// signature that seeds both the privacy pool's encryption key and the
// ephemeral wallet. The signature is created once per wallet, cached
// under the wallet address, and never mutated; clearing it is the only
// logout mechanism.
package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/circuitx-labs/privacy-swap/internal/ephemeral"
)

// SignInMessage is the fixed message the wallet signs on first sign-in.
// The signature over this exact message is the root of determinism for
// the whole flow, so it must never change.
const SignInMessage = "Privacy Money account sign in"

// ErrNotSignedIn is returned when no cached signature exists for a wallet.
var ErrNotSignedIn = errors.New("no cached signature for wallet; sign in first")

// Session is the scoped sign-in state passed to the orchestrator and
// recovery components in place of the original's ambient globals.
type Session struct {
	Wallet    solana.PublicKey `json:"wallet"`
	Signature []byte           `json:"signature"`
	CreatedAt time.Time        `json:"created_at"`
}

// New validates and wraps a wallet's sign-in signature.
func New(wallet solana.PublicKey, signature []byte) (*Session, error) {
	if wallet.IsZero() {
		return nil, errors.New("wallet public key is required")
	}
	if len(signature) == 0 {
		return nil, ephemeral.ErrEmptySignature
	}
	return &Session{
		Wallet:    wallet,
		Signature: append([]byte(nil), signature...),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EphemeralKeypair re-derives the session's ephemeral wallet keypair.
func (s *Session) EphemeralKeypair() (solana.PrivateKey, error) {
	return ephemeral.DeriveKeypair(s.Signature)
}

// EphemeralAddress re-derives just the ephemeral wallet address.
func (s *Session) EphemeralAddress() (solana.PublicKey, error) {
	return ephemeral.DeriveAddress(s.Signature)
}

func (s *Session) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *Session) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}
