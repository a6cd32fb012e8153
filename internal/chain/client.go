// Package chain wraps the Solana JSON-RPC surface the swap flow needs:
// balance reads, transaction simulation, submission, and confirmation.
package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	projectrpc "github.com/circuitx-labs/privacy-swap/internal/rpc"
)

// ErrAccountNotFound marks chain reads against accounts that do not
// exist. Callers decide whether that means "zero balance" or a failure.
var ErrAccountNotFound = errors.New("account not found")

// ErrConfirmationTimeout marks a confirmation wait that hit its ceiling.
// The outcome is ambiguous, not failed; resolve it by polling status.
var ErrConfirmationTimeout = errors.New("transaction confirmation timeout")

type Client struct {
	rpc    *projectrpc.Client
	logger *logrus.Logger
}

type ClientConfig struct {
	RPCURL       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain: RPCURL is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	rpcClient := projectrpc.NewClient(projectrpc.ClientConfig{
		BaseURL:      cfg.RPCURL,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       cfg.Logger,
	})

	return &Client{rpc: rpcClient, logger: cfg.Logger}, nil
}

// GetBalance returns an account's lamport balance. A missing account
// reads as zero lamports on Solana, so there is no not-found case here.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	var resp struct {
		Result struct {
			Value uint64 `json:"value"`
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		pubkey.String(),
		map[string]any{"commitment": "confirmed"},
	}

	if err := c.rpc.Call(ctx, "getBalance", params, &resp); err != nil {
		return 0, fmt.Errorf("getBalance RPC failed: %w", err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getBalance error: %s", resp.Error.Message)
	}
	return resp.Result.Value, nil
}

// GetTokenAccountBalance returns the base-unit balance of a token
// account. A token account that was never created surfaces as
// ErrAccountNotFound.
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var resp struct {
		Result struct {
			Value projectrpc.TokenAmount `json:"value"`
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		account.String(),
		map[string]any{"commitment": "confirmed"},
	}

	if err := c.rpc.Call(ctx, "getTokenAccountBalance", params, &resp); err != nil {
		return 0, fmt.Errorf("getTokenAccountBalance RPC failed: %w", err)
	}
	if resp.Error != nil {
		if strings.Contains(resp.Error.Message, "could not find account") {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("getTokenAccountBalance error: %s", resp.Error.Message)
	}

	amount, err := strconv.ParseUint(resp.Result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q: %w", resp.Result.Value.Amount, err)
	}
	return amount, nil
}

// AccountExists checks if an account exists on-chain (getAccountInfo != nil).
func (c *Client) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	var resp struct {
		Result struct {
			Value any `json:"value"`
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		pubkey.String(),
		map[string]any{
			"encoding":   "base64",
			"commitment": "confirmed",
		},
	}

	if err := c.rpc.Call(ctx, "getAccountInfo", params, &resp); err != nil {
		return false, fmt.Errorf("getAccountInfo RPC failed: %w", err)
	}
	if resp.Error != nil {
		return false, fmt.Errorf("getAccountInfo error: %s", resp.Error.Message)
	}
	return resp.Result.Value != nil, nil
}

// GetMinimumBalanceForRentExemption queries the rent floor for an
// account of the given data size.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	var resp struct {
		Result uint64               `json:"result"`
		Error  *projectrpc.RPCError `json:"error"`
	}

	if err := c.rpc.Call(ctx, "getMinimumBalanceForRentExemption", []any{dataSize}, &resp); err != nil {
		return 0, fmt.Errorf("getMinimumBalanceForRentExemption RPC failed: %w", err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getMinimumBalanceForRentExemption error: %s", resp.Error.Message)
	}
	return resp.Result, nil
}

// GetLatestBlockhash fetches the most recent blockhash with commitment level
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment ...string) (solana.Hash, error) {
	commitmentLevel := "confirmed"
	if len(commitment) > 0 {
		commitmentLevel = commitment[0]
	}

	var resp struct {
		Result struct {
			Value struct {
				Blockhash            string `json:"blockhash"`
				LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
			} `json:"value"`
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		map[string]any{"commitment": commitmentLevel},
	}

	if err := c.rpc.Call(ctx, "getLatestBlockhash", params, &resp); err != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash failed: %w", err)
	}
	if resp.Error != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash error: %s", resp.Error.Message)
	}

	hash, err := solana.HashFromBase58(resp.Result.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("invalid blockhash format: %w", err)
	}
	return hash, nil
}

// SimulationResult contains simulation output. RawErr keeps the chain's
// error object verbatim so callers can decode program error codes.
type SimulationResult struct {
	Success bool
	RawErr  string
	Logs    []string
}

// SimulateTransaction runs a pre-flight simulation. A simulation that
// reports an on-chain error returns (result, nil): the call itself
// worked, the transaction would not.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	encodedTx := base64.StdEncoding.EncodeToString(txBytes)

	var resp struct {
		Result struct {
			Value struct {
				Err  json.RawMessage `json:"err"`
				Logs []string        `json:"logs"`
			} `json:"value"`
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		encodedTx,
		map[string]any{
			"encoding":               "base64",
			"commitment":             "processed",
			"replaceRecentBlockhash": true,
			"sigVerify":              false,
		},
	}

	if err := c.rpc.Call(ctx, "simulateTransaction", params, &resp); err != nil {
		return nil, fmt.Errorf("simulateTransaction failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("simulateTransaction error: %s", resp.Error.Message)
	}

	result := &SimulationResult{Logs: resp.Result.Value.Logs}
	if len(resp.Result.Value.Err) > 0 && string(resp.Result.Value.Err) != "null" {
		result.Success = false
		result.RawErr = string(resp.Result.Value.Err)
		return result, nil
	}
	result.Success = true
	return result, nil
}

// SendTransaction submits a signed transaction and returns its signature.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (string, error) {
	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	encodedTx := base64.StdEncoding.EncodeToString(txBytes)

	var resp struct {
		Result string               `json:"result"`
		Error  *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		encodedTx,
		map[string]any{
			"encoding":            "base64",
			"skipPreflight":       false,
			"preflightCommitment": "processed",
			"maxRetries":          3,
		},
	}

	if err := c.rpc.Call(ctx, "sendTransaction", params, &resp); err != nil {
		return "", fmt.Errorf("sendTransaction RPC failed: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("sendTransaction error: code=%d, message=%s",
			resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// GetSignatureStatus returns the current status of one signature, or
// nil if the chain has not seen it yet.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*projectrpc.SignatureStatus, error) {
	var resp struct {
		Result struct {
			Value []*projectrpc.SignatureStatus `json:"value"`
		} `json:"result"`
		Error *projectrpc.RPCError `json:"error"`
	}

	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	}

	if err := c.rpc.Call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return nil, fmt.Errorf("getSignatureStatuses failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getSignatureStatuses error: %s", resp.Error.Message)
	}
	if len(resp.Result.Value) == 0 || resp.Result.Value[0] == nil {
		return nil, nil
	}
	return resp.Result.Value[0], nil
}

// ConfirmTransaction polls signature status with exponential backoff
// until the requested commitment is reached or the timeout expires.
// Expiry yields ErrConfirmationTimeout, never a definite failure.
func (c *Client) ConfirmTransaction(ctx context.Context, signature string, commitment string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	backoff := 500 * time.Millisecond
	maxBackoff := 4 * time.Second

	for time.Now().Before(deadline) {
		status, err := c.GetSignatureStatus(ctx, signature)
		if err != nil {
			return fmt.Errorf("failed to check signature: %w", err)
		}

		if status != nil {
			if status.Err != nil {
				return fmt.Errorf("transaction failed: %v", status.Err)
			}
			if commitmentReached(status.ConfirmationStatus, commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return fmt.Errorf("%w after %v", ErrConfirmationTimeout, timeout)
}

// ConfirmOrPoll waits for confirmation, and on timeout checks status
// once more directly. A client-side wait expiring does not mean the
// transaction did not land.
func (c *Client) ConfirmOrPoll(ctx context.Context, signature string, timeout time.Duration) error {
	err := c.ConfirmTransaction(ctx, signature, "confirmed", timeout)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrConfirmationTimeout) {
		return err
	}

	c.logger.WithField("signature", signature).Warn("confirmation timed out, polling status directly")
	status, pollErr := c.GetSignatureStatus(ctx, signature)
	if pollErr != nil {
		return fmt.Errorf("status poll after timeout: %w", pollErr)
	}
	if status == nil {
		return fmt.Errorf("%w: transaction not yet visible, it may still land", ErrConfirmationTimeout)
	}
	if status.Err != nil {
		return fmt.Errorf("transaction failed: %v", status.Err)
	}
	if commitmentReached(status.ConfirmationStatus, "confirmed") {
		return nil
	}
	return fmt.Errorf("%w: status %q, it may still confirm", ErrConfirmationTimeout, status.ConfirmationStatus)
}

func commitmentReached(status, commitment string) bool {
	switch commitment {
	case "processed":
		return status != ""
	case "confirmed":
		return status == "confirmed" || status == "finalized"
	case "finalized":
		return status == "finalized"
	default:
		return status != ""
	}
}
