package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// TxBuilder constructs and signs a transaction against a given
// blockhash. It is re-invoked on every retry so the transaction always
// carries a fresh blockhash.
type TxBuilder func(blockhash solana.Hash) (*solana.Transaction, error)

// IsBlockhashExpired classifies the transient error family that warrants
// rebuilding with a fresh blockhash. Everything else aborts immediately.
func IsBlockhashExpired(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "blockhash not found") ||
		strings.Contains(msg, "block height exceeded") ||
		strings.Contains(msg, "blockhash") && strings.Contains(msg, "expired")
}

// SubmitWithFreshBlockhash sends a transaction, retrying only on
// blockhash-expiry errors with a freshly fetched blockhash each attempt,
// and waits for confirmation (falling back to direct status polling on
// timeout). The same primitive serves swap submission, ephemeral-wallet
// funding, dust sweeps, and stuck-fund recovery.
func (c *Client) SubmitWithFreshBlockhash(
	ctx context.Context,
	build TxBuilder,
	maxAttempts int,
	confirmTimeout time.Duration,
) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"max":     maxAttempts,
			}).Info("blockhash expired, resubmitting with fresh blockhash")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(1 * time.Second):
			}
		}

		blockhash, err := c.GetLatestBlockhash(ctx, "confirmed")
		if err != nil {
			return "", fmt.Errorf("failed to get blockhash: %w", err)
		}

		tx, err := build(blockhash)
		if err != nil {
			return "", fmt.Errorf("failed to build transaction: %w", err)
		}

		sig, err := c.SendTransaction(ctx, tx)
		if err != nil {
			if IsBlockhashExpired(err) {
				lastErr = err
				continue
			}
			return "", err
		}

		if err := c.ConfirmOrPoll(ctx, sig, confirmTimeout); err != nil {
			if IsBlockhashExpired(err) {
				lastErr = err
				continue
			}
			return sig, err
		}
		return sig, nil
	}

	return "", fmt.Errorf("transaction failed after %d attempts: %w", maxAttempts, lastErr)
}
