// Package balance reads public and shielded holdings for a wallet.
package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/chain"
	"github.com/circuitx-labs/privacy-swap/internal/privacypool"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
)

// ChainReader is the subset of chain reads the inspector needs.
type ChainReader interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Snapshot is one token's holdings for one owner, split by location.
// Base-unit integers carry the authoritative values; the UI floats are
// derived for display only.
type Snapshot struct {
	Token tokens.Token

	PublicBase  uint64
	PrivateBase uint64

	PublicUI  float64
	PrivateUI float64
}

func (s Snapshot) TotalBase() uint64 { return s.PublicBase + s.PrivateBase }

type Inspector struct {
	chain  ChainReader
	pool   privacypool.Pool
	logger *logrus.Logger
}

func NewInspector(chainReader ChainReader, pool privacypool.Pool, logger *logrus.Logger) *Inspector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Inspector{chain: chainReader, pool: pool, logger: logger}
}

// PublicNative returns the owner's lamport balance.
func (i *Inspector) PublicNative(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return i.chain.GetBalance(ctx, owner)
}

// PublicToken returns the owner's public balance of a token in base
// units. A token account that was never created reads as zero.
func (i *Inspector) PublicToken(ctx context.Context, owner solana.PublicKey, token tokens.Token) (uint64, error) {
	if token.IsNative() {
		return i.chain.GetBalance(ctx, owner)
	}

	ata, _, err := chain.FindAssociatedTokenAddress(owner, token.Mint)
	if err != nil {
		return 0, fmt.Errorf("derive token account for %s: %w", token.Symbol, err)
	}
	amount, err := i.chain.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		if errors.Is(err, chain.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return amount, nil
}

// Private returns the owner's shielded balance of a token in base units.
func (i *Inspector) Private(ctx context.Context, owner solana.PublicKey, token tokens.Token) (uint64, error) {
	if i.pool == nil {
		return 0, nil
	}
	return i.pool.PrivateBalance(ctx, owner, token)
}

// Inspect combines the public and shielded balances for one token.
func (i *Inspector) Inspect(ctx context.Context, owner solana.PublicKey, token tokens.Token) (Snapshot, error) {
	pub, err := i.PublicToken(ctx, owner, token)
	if err != nil {
		return Snapshot{}, fmt.Errorf("public balance: %w", err)
	}
	priv, err := i.Private(ctx, owner, token)
	if err != nil {
		return Snapshot{}, fmt.Errorf("shielded balance: %w", err)
	}

	return Snapshot{
		Token:       token,
		PublicBase:  pub,
		PrivateBase: priv,
		PublicUI:    tokens.FromBaseUnits(pub, token.Decimals),
		PrivateUI:   tokens.FromBaseUnits(priv, token.Decimals),
	}, nil
}

// InspectAll walks the token registry. Per-token failures are logged and
// skipped so one flaky mint does not blank the whole view.
func (i *Inspector) InspectAll(ctx context.Context, owner solana.PublicKey) (map[string]Snapshot, error) {
	out := make(map[string]Snapshot, len(tokens.Registry))
	for _, sym := range tokens.Symbols() {
		token := tokens.BySymbol(sym)
		snap, err := i.Inspect(ctx, owner, token)
		if err != nil {
			i.logger.WithError(err).WithFields(logrus.Fields{
				"owner": owner.String(),
				"token": sym,
			}).Warn("failed to inspect token balance")
			continue
		}
		out[sym] = snap
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no token balance could be read for %s", owner.String())
	}
	return out, nil
}
