// Package privacypool is a thin client for the external shielded-pool
// relayer. Proof generation, UTXO selection, and the pool program itself
// live behind the relayer; this package only moves requests and
// signatures across the wire and maps relayer failures to typed errors.
package privacypool

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/circuitx-labs/privacy-swap/internal/tokens"
	"github.com/circuitx-labs/privacy-swap/internal/wallet"
)

// ErrNoUnspentUTXO is returned when the pool holds no spendable note of
// the requested asset. Callers branch on this to fall back to funding
// from the public wallet instead of string-matching error text.
var ErrNoUnspentUTXO = errors.New("no unspent UTXO for asset in shielded pool")

// ErrInsufficientShielded is returned when the pool balance cannot cover
// the requested amount.
var ErrInsufficientShielded = errors.New("insufficient shielded balance")

// Pool is the contract the orchestrator depends on. Amounts are integer
// base units throughout.
type Pool interface {
	// PrivateBalance sums the owner's unspent notes for a token.
	PrivateBalance(ctx context.Context, owner solana.PublicKey, token tokens.Token) (uint64, error)

	// Deposit shields amount base units from the depositor's public
	// account. The signer authorizes the funding side of the transaction
	// and may be the owner's wallet or the ephemeral wallet.
	Deposit(ctx context.Context, owner solana.PublicKey, token tokens.Token, amount uint64, signer wallet.Signer) (string, error)

	// Withdraw unshields amount base units to an arbitrary recipient.
	Withdraw(ctx context.Context, owner solana.PublicKey, token tokens.Token, amount uint64, recipient solana.PublicKey) (string, error)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP: &http.Client{
			// Withdrawals wait on relayer-side proof generation.
			Timeout: 120 * time.Second,
		},
	}
}

// HTTPError is a non-2xx relayer response.
type HTTPError struct {
	StatusCode int
	Code       string
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("pool relayer http %d", e.StatusCode)
	}
	return fmt.Sprintf("pool relayer http %d: %s", e.StatusCode, b)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) PrivateBalance(ctx context.Context, owner solana.PublicKey, token tokens.Token) (uint64, error) {
	q := url.Values{}
	q.Set("owner", owner.String())
	q.Set("mint", token.Mint.String())

	var out struct {
		BaseUnits uint64 `json:"baseUnits"`
	}
	if err := c.get(ctx, "/v1/balance?"+q.Encode(), &out); err != nil {
		return 0, fmt.Errorf("private balance for %s: %w", token.Symbol, err)
	}
	return out.BaseUnits, nil
}

func (c *Client) Deposit(ctx context.Context, owner solana.PublicKey, token tokens.Token, amount uint64, signer wallet.Signer) (string, error) {
	if amount == 0 {
		return "", fmt.Errorf("deposit %s: %w", token.Symbol, tokens.ErrInvalidAmount)
	}
	if signer == nil {
		return "", fmt.Errorf("deposit %s: signer is required", token.Symbol)
	}

	// The relayer assembles the shield transaction (proof included) with
	// the signer as the funding party; we add the funding signature and
	// hand it back for submission.
	var built struct {
		Transaction string `json:"transaction"` // base64
	}
	req := map[string]any{
		"owner":     owner.String(),
		"mint":      token.Mint.String(),
		"amount":    amount,
		"depositor": signer.PublicKey().String(),
	}
	if err := c.post(ctx, "/v1/deposit", req, &built); err != nil {
		return "", fmt.Errorf("build deposit for %s: %w", token.Symbol, err)
	}

	raw, err := base64.StdEncoding.DecodeString(built.Transaction)
	if err != nil {
		return "", fmt.Errorf("decode deposit transaction: %w", err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return "", fmt.Errorf("parse deposit transaction: %w", err)
	}
	if err := signer.Sign(tx); err != nil {
		return "", fmt.Errorf("sign deposit transaction: %w", err)
	}
	signed, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("serialize deposit transaction: %w", err)
	}

	var out struct {
		Signature string `json:"signature"`
	}
	relay := map[string]any{
		"transaction": base64.StdEncoding.EncodeToString(signed),
	}
	if err := c.post(ctx, "/v1/relay", relay, &out); err != nil {
		return "", fmt.Errorf("relay deposit for %s: %w", token.Symbol, err)
	}
	return out.Signature, nil
}

func (c *Client) Withdraw(ctx context.Context, owner solana.PublicKey, token tokens.Token, amount uint64, recipient solana.PublicKey) (string, error) {
	if amount == 0 {
		return "", fmt.Errorf("withdraw %s: %w", token.Symbol, tokens.ErrInvalidAmount)
	}

	// Withdrawals spend shielded notes, so only the relayer-side proof
	// authorizes them; no wallet signature is involved.
	var out struct {
		Signature string `json:"signature"`
	}
	req := map[string]any{
		"owner":     owner.String(),
		"mint":      token.Mint.String(),
		"amount":    amount,
		"recipient": recipient.String(),
	}
	if err := c.post(ctx, "/v1/withdraw", req, &out); err != nil {
		return "", fmt.Errorf("withdraw %s: %w", token.Symbol, err)
	}
	return out.Signature, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		switch eb.Code {
		case "NO_UNSPENT_UTXO":
			return ErrNoUnspentUTXO
		case "INSUFFICIENT_BALANCE":
			return ErrInsufficientShielded
		}
		return &HTTPError{StatusCode: res.StatusCode, Code: eb.Code, Body: body}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode relayer response: %w", err)
	}
	return nil
}
