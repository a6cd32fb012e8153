// Package recovery sweeps funds stranded in the ephemeral wallet after
// an interrupted flow. The ephemeral address is re-derived from the
// cached sign-in signature, so recovery works from the signature alone.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/chain"
	"github.com/circuitx-labs/privacy-swap/internal/session"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
	"github.com/circuitx-labs/privacy-swap/internal/wallet"
)

var (
	// ErrBalanceTooSmall is returned when the stranded native balance
	// cannot cover the rent-exemption floor plus the transfer fee.
	ErrBalanceTooSmall = errors.New("balance too small to recover")

	// ErrInsufficientFeeBalance is returned when a token recovery cannot
	// pay its own transaction fee. Recover native currency first.
	ErrInsufficientFeeBalance = errors.New("ephemeral wallet cannot pay the recovery fee, recover native balance first")

	// ErrNothingToRecover is returned when the requested asset has no
	// balance in the ephemeral wallet.
	ErrNothingToRecover = errors.New("nothing to recover")
)

// ChainClient is the chain surface recovery needs. Satisfied by
// *chain.Client.
type ChainClient interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error)
	SubmitWithFreshBlockhash(ctx context.Context, build chain.TxBuilder, maxAttempts int, confirmTimeout time.Duration) (string, error)
}

type Config struct {
	FeeEstimate    uint64 // lamports reserved for the recovery transfer's own fee
	MinFeeLamports uint64 // lamports a token recovery needs on hand
	ConfirmTimeout time.Duration
	SubmitRetries  int
}

type Recoverer struct {
	chain  ChainClient
	cfg    Config
	logger *logrus.Logger
}

func NewRecoverer(chainClient ChainClient, cfg Config, logger *logrus.Logger) *Recoverer {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.SubmitRetries < 1 {
		cfg.SubmitRetries = 1
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	return &Recoverer{chain: chainClient, cfg: cfg, logger: logger}
}

// Balances is the ephemeral wallet's stranded holdings. Token amounts
// are base units keyed by symbol; absent token accounts read as zero.
type Balances struct {
	Ephemeral      solana.PublicKey  `json:"ephemeral"`
	NativeLamports uint64            `json:"native_lamports"`
	Tokens         map[string]uint64 `json:"tokens"`
}

// CheckBalances re-derives the ephemeral address and reports everything
// it holds.
func (r *Recoverer) CheckBalances(ctx context.Context, sess *session.Session) (*Balances, error) {
	if sess == nil {
		return nil, session.ErrNotSignedIn
	}
	eph, err := sess.EphemeralAddress()
	if err != nil {
		return nil, err
	}

	lamports, err := r.chain.GetBalance(ctx, eph)
	if err != nil {
		return nil, fmt.Errorf("read ephemeral native balance: %w", err)
	}

	out := &Balances{
		Ephemeral:      eph,
		NativeLamports: lamports,
		Tokens:         make(map[string]uint64),
	}
	for _, sym := range tokens.Symbols() {
		token := tokens.BySymbol(sym)
		if token.IsNative() {
			continue
		}
		ata, _, err := chain.FindAssociatedTokenAddress(eph, token.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive token account for %s: %w", sym, err)
		}
		amount, err := r.chain.GetTokenAccountBalance(ctx, ata)
		if err != nil {
			if errors.Is(err, chain.ErrAccountNotFound) {
				continue
			}
			return nil, fmt.Errorf("read %s balance: %w", sym, err)
		}
		if amount > 0 {
			out.Tokens[sym] = amount
		}
	}
	return out, nil
}

// RecoverNative sweeps the ephemeral wallet's lamports back to the user,
// keeping the rent-exemption floor for a zero-data account plus an
// estimated fee. Returns the signature and the recovered amount.
func (r *Recoverer) RecoverNative(ctx context.Context, sess *session.Session) (string, uint64, error) {
	if sess == nil {
		return "", 0, session.ErrNotSignedIn
	}
	ephKey, err := sess.EphemeralKeypair()
	if err != nil {
		return "", 0, err
	}
	eph := ephKey.PublicKey()
	signer := wallet.NewKeypairSigner(ephKey)

	lamports, err := r.chain.GetBalance(ctx, eph)
	if err != nil {
		return "", 0, fmt.Errorf("read ephemeral balance: %w", err)
	}

	rentFloor, err := r.chain.GetMinimumBalanceForRentExemption(ctx, 0)
	if err != nil {
		return "", 0, fmt.Errorf("query rent exemption: %w", err)
	}
	reserve := rentFloor + r.cfg.FeeEstimate
	if lamports <= reserve {
		return "", 0, fmt.Errorf("%w: have %d lamports, reserve is %d", ErrBalanceTooSmall, lamports, reserve)
	}
	amount := lamports - reserve

	build := func(blockhash solana.Hash) (*solana.Transaction, error) {
		tx, err := solana.NewTransaction(
			[]solana.Instruction{chain.NewSystemTransferIx(eph, sess.Wallet, amount)},
			blockhash,
			solana.TransactionPayer(eph),
		)
		if err != nil {
			return nil, err
		}
		if err := signer.Sign(tx); err != nil {
			return nil, err
		}
		return tx, nil
	}

	sig, err := r.chain.SubmitWithFreshBlockhash(ctx, build, r.cfg.SubmitRetries, r.cfg.ConfirmTimeout)
	if err != nil {
		return "", 0, fmt.Errorf("recovery transfer failed: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"ephemeral": eph.String(),
		"wallet":    sess.Wallet.String(),
		"lamports":  amount,
		"signature": sig,
	}).Info("recovered native balance")
	return sig, amount, nil
}

// RecoverToken sweeps the ephemeral wallet's full balance of one token
// back to the user. The ephemeral wallet pays the fee, including the
// user's token account creation when it does not exist yet.
func (r *Recoverer) RecoverToken(ctx context.Context, sess *session.Session, token tokens.Token) (string, uint64, error) {
	if sess == nil {
		return "", 0, session.ErrNotSignedIn
	}
	if token.IsNative() {
		return "", 0, fmt.Errorf("use native recovery for %s", token.Symbol)
	}
	ephKey, err := sess.EphemeralKeypair()
	if err != nil {
		return "", 0, err
	}
	eph := ephKey.PublicKey()
	signer := wallet.NewKeypairSigner(ephKey)

	lamports, err := r.chain.GetBalance(ctx, eph)
	if err != nil {
		return "", 0, fmt.Errorf("read ephemeral balance: %w", err)
	}
	if lamports < r.cfg.MinFeeLamports {
		return "", 0, fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientFeeBalance, lamports, r.cfg.MinFeeLamports)
	}

	srcAta, _, err := chain.FindAssociatedTokenAddress(eph, token.Mint)
	if err != nil {
		return "", 0, fmt.Errorf("derive source token account: %w", err)
	}
	amount, err := r.chain.GetTokenAccountBalance(ctx, srcAta)
	if err != nil {
		if errors.Is(err, chain.ErrAccountNotFound) {
			return "", 0, fmt.Errorf("%w: no %s account", ErrNothingToRecover, token.Symbol)
		}
		return "", 0, fmt.Errorf("read %s balance: %w", token.Symbol, err)
	}
	if amount == 0 {
		return "", 0, fmt.Errorf("%w: %s balance is zero", ErrNothingToRecover, token.Symbol)
	}

	dstAta, _, err := chain.FindAssociatedTokenAddress(sess.Wallet, token.Mint)
	if err != nil {
		return "", 0, fmt.Errorf("derive destination token account: %w", err)
	}
	dstExists, err := r.chain.AccountExists(ctx, dstAta)
	if err != nil {
		return "", 0, fmt.Errorf("check destination token account: %w", err)
	}

	build := func(blockhash solana.Hash) (*solana.Transaction, error) {
		var ixs []solana.Instruction
		if !dstExists {
			ixs = append(ixs, chain.NewCreateAssociatedTokenAccountIx(eph, dstAta, sess.Wallet, token.Mint))
		}
		ixs = append(ixs, chain.NewTokenTransferIx(srcAta, dstAta, eph, amount))

		tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(eph))
		if err != nil {
			return nil, err
		}
		if err := signer.Sign(tx); err != nil {
			return nil, err
		}
		return tx, nil
	}

	sig, err := r.chain.SubmitWithFreshBlockhash(ctx, build, r.cfg.SubmitRetries, r.cfg.ConfirmTimeout)
	if err != nil {
		return "", 0, fmt.Errorf("recovery transfer failed: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"ephemeral": eph.String(),
		"wallet":    sess.Wallet.String(),
		"token":     token.Symbol,
		"amount":    amount,
		"signature": sig,
	}).Info("recovered token balance")
	return sig, amount, nil
}
