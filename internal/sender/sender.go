// Package sender implements private sends outside of any swap: shielding
// funds into the pool, and unshielding them to an arbitrary recipient so
// the on-chain transfer never links sender and receiver.
package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/privacypool"
	"github.com/circuitx-labs/privacy-swap/internal/session"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
	"github.com/circuitx-labs/privacy-swap/internal/wallet"
)

// ErrNoRecipient is returned when an unshield names no destination.
var ErrNoRecipient = errors.New("recipient address is required")

type Service struct {
	pool   privacypool.Pool
	logger *logrus.Logger
}

func NewService(pool privacypool.Pool, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{pool: pool, logger: logger}
}

// Receipt reports one completed shield or unshield.
type Receipt struct {
	Signature  string `json:"signature"`
	Token      string `json:"token"`
	AmountBase uint64 `json:"amount_base_units"`
	Recipient  string `json:"recipient,omitempty"`
}

// Shield moves funds from the user's public wallet into the shielded
// pool. The signer authorizes the funding side of the deposit.
func (s *Service) Shield(ctx context.Context, sess *session.Session, signer wallet.Signer, token tokens.Token, amountUI float64) (*Receipt, error) {
	if sess == nil {
		return nil, session.ErrNotSignedIn
	}
	if signer == nil {
		return nil, fmt.Errorf("shield requires a wallet signer")
	}
	amountBase, err := tokens.ToBaseUnits(amountUI, token.Decimals)
	if err != nil {
		return nil, err
	}

	sig, err := s.pool.Deposit(ctx, sess.Wallet, token, amountBase, signer)
	if err != nil {
		return nil, fmt.Errorf("shield %s: %w", token.Symbol, err)
	}

	s.logger.WithFields(logrus.Fields{
		"wallet": sess.Wallet.String(),
		"token":  token.Symbol,
		"amount": amountBase,
	}).Info("funds shielded")

	return &Receipt{Signature: sig, Token: token.Symbol, AmountBase: amountBase}, nil
}

// Unshield withdraws shielded funds to an arbitrary recipient. The
// recipient sees a withdrawal from the pool, not a transfer from the
// sender's wallet.
func (s *Service) Unshield(ctx context.Context, sess *session.Session, token tokens.Token, amountUI float64, recipient solana.PublicKey) (*Receipt, error) {
	if sess == nil {
		return nil, session.ErrNotSignedIn
	}
	if recipient.IsZero() {
		return nil, ErrNoRecipient
	}
	amountBase, err := tokens.ToBaseUnits(amountUI, token.Decimals)
	if err != nil {
		return nil, err
	}

	have, err := s.pool.PrivateBalance(ctx, sess.Wallet, token)
	if err != nil {
		return nil, fmt.Errorf("read shielded balance: %w", err)
	}
	if have < amountBase {
		return nil, fmt.Errorf("unshield %s: have %d base units, need %d: %w",
			token.Symbol, have, amountBase, privacypool.ErrInsufficientShielded)
	}

	sig, err := s.pool.Withdraw(ctx, sess.Wallet, token, amountBase, recipient)
	if err != nil {
		return nil, fmt.Errorf("unshield %s: %w", token.Symbol, err)
	}

	s.logger.WithFields(logrus.Fields{
		"wallet":    sess.Wallet.String(),
		"token":     token.Symbol,
		"amount":    amountBase,
		"recipient": recipient.String(),
	}).Info("funds unshielded")

	return &Receipt{
		Signature:  sig,
		Token:      token.Symbol,
		AmountBase: amountBase,
		Recipient:  recipient.String(),
	}, nil
}
