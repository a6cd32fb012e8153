package server

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/balance"
	"github.com/circuitx-labs/privacy-swap/internal/history"
	"github.com/circuitx-labs/privacy-swap/internal/insights"
	"github.com/circuitx-labs/privacy-swap/internal/jupiter"
	"github.com/circuitx-labs/privacy-swap/internal/points"
	"github.com/circuitx-labs/privacy-swap/internal/privacypool"
	"github.com/circuitx-labs/privacy-swap/internal/recovery"
	"github.com/circuitx-labs/privacy-swap/internal/sender"
	"github.com/circuitx-labs/privacy-swap/internal/session"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Points             *points.Store       // Redis-backed loyalty ledger
	Sessions           *session.Store      // Cached sign-in signatures
	Inspector          *balance.Inspector  // Public + shielded balance reads
	Recoverer          *recovery.Recoverer // Ephemeral wallet sweeps
	Sender             *sender.Service     // Standalone shield / private send
	History            *history.Store      // ClickHouse swap history (optional)
	Insights           *insights.Agent     // NL insights over swap history (optional)
	InsightsBaseConfig insights.AgentConfig
	Jupiter            *jupiter.Client // Quote preview client (optional)
	DevMode            bool
	Logger             *logrus.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Balances returns public and shielded holdings for every supported
// token, keyed by symbol.
func (h *Handlers) Balances(c echo.Context) error {
	if h.Inspector == nil {
		return h.err(c, http.StatusBadRequest, "balance inspector is not configured", nil)
	}

	owner, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Param("wallet")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid wallet", map[string]any{"wallet": "must be base58"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	snaps, err := h.Inspector.InspectAll(ctx, owner)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to read balances", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"wallet": owner.String(), "balances": snaps})
}

// PointsAward credits one swap, idempotently per transaction signature
func (h *Handlers) PointsAward(c echo.Context) error {
	var req AwardRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Points.Award(ctx, req.Wallet, req.TxSignature, req.VolumeUsd)
	if err != nil {
		if errors.Is(err, points.ErrInvalidInput) {
			return h.err(c, http.StatusBadRequest, "invalid wallet or signature", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to award points", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// PointsGet returns a wallet's cumulative total
func (h *Handlers) PointsGet(c echo.Context) error {
	wallet := strings.TrimSpace(c.Param("wallet"))

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	total, err := h.Points.Points(ctx, wallet)
	if err != nil {
		if errors.Is(err, points.ErrInvalidInput) {
			return h.err(c, http.StatusBadRequest, "invalid wallet", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get points", nil)
	}
	return c.JSON(http.StatusOK, PointsResponse{Wallet: wallet, Points: total})
}

// Leaderboard returns the top wallets by points
// Accepts limit query parameter (default: 100, range: 1-1000)
func (h *Handlers) Leaderboard(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 1000"})
		}
		limit = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	board, err := h.Points.Leaderboard(ctx, limit)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get leaderboard", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": board})
}

// VolumeStats returns aggregate and daily swap volume
func (h *Handlers) VolumeStats(c echo.Context) error {
	days := 30
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			return h.err(c, http.StatusBadRequest, "invalid days", map[string]any{"days": "min 1 max 365"})
		}
		days = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Points.Volume(ctx, days)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get volume stats", nil)
	}
	return c.JSON(http.StatusOK, stats)
}

// SignIn verifies and caches a wallet's sign-in signature. The signature
// must be over the fixed sign-in message; everything downstream derives
// from it.
func (h *Handlers) SignIn(c echo.Context) error {
	if h.Sessions == nil {
		return h.err(c, http.StatusBadRequest, "sessions are not configured", nil)
	}

	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	wallet, err := solana.PublicKeyFromBase58(strings.TrimSpace(req.Wallet))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid wallet", map[string]any{"wallet": "must be base58"})
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.Signature))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid signature", map[string]any{"signature": "must be base64"})
	}
	if !ed25519.Verify(ed25519.PublicKey(wallet.Bytes()), []byte(session.SignInMessage), sig) {
		return h.err(c, http.StatusUnauthorized, "signature does not verify against the sign-in message", nil)
	}

	sess, err := session.New(wallet, sig)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid session", map[string]any{"err": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.Put(ctx, sess); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to cache session", nil)
	}
	return h.sessionJSON(c, sess)
}

// SessionStatus reports whether a wallet is signed in and its derived
// ephemeral address
func (h *Handlers) SessionStatus(c echo.Context) error {
	if h.Sessions == nil {
		return h.err(c, http.StatusBadRequest, "sessions are not configured", nil)
	}
	wallet, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Param("wallet")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid wallet", map[string]any{"wallet": "must be base58"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, session.ErrNotSignedIn) {
			return h.err(c, http.StatusNotFound, "not signed in", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to load session", nil)
	}
	return h.sessionJSON(c, sess)
}

// SignOut clears the cached signature, forcing a re-sign on next use
func (h *Handlers) SignOut(c echo.Context) error {
	if h.Sessions == nil {
		return h.err(c, http.StatusBadRequest, "sessions are not configured", nil)
	}
	wallet, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Param("wallet")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid wallet", map[string]any{"wallet": "must be base58"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Sessions.Clear(ctx, wallet); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to clear session", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"wallet": wallet.String(), "signed_out": true})
}

func (h *Handlers) sessionJSON(c echo.Context, sess *session.Session) error {
	eph, err := sess.EphemeralAddress()
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to derive ephemeral wallet", nil)
	}
	return c.JSON(http.StatusOK, SessionResponse{
		Wallet:    sess.Wallet.String(),
		Ephemeral: eph.String(),
		CreatedAt: sess.CreatedAt,
	})
}

// sessionFromRequest reconstructs the sign-in session from the signature
// the client submitted, falling back to the server-side cache when the
// request carries only a wallet address.
func (h *Handlers) sessionFromRequest(ctx context.Context, req RecoveryRequest) (*session.Session, error) {
	wallet, err := solana.PublicKeyFromBase58(strings.TrimSpace(req.Wallet))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Signature) == "" {
		if h.Sessions == nil {
			return nil, session.ErrNotSignedIn
		}
		return h.Sessions.Get(ctx, wallet)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.Signature))
	if err != nil {
		return nil, err
	}
	return session.New(wallet, sig)
}

// RecoveryCheck re-derives the ephemeral wallet and reports everything
// stranded in it
func (h *Handlers) RecoveryCheck(c echo.Context) error {
	if h.Recoverer == nil {
		return h.err(c, http.StatusBadRequest, "recovery is not configured", nil)
	}

	var req RecoveryRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	sess, err := h.sessionFromRequest(ctx, req)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid wallet or signature", map[string]any{"err": err.Error()})
	}

	bal, err := h.Recoverer.CheckBalances(ctx, sess)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to check ephemeral balances", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, bal)
}

// Recover sweeps native currency or one token from the ephemeral wallet
// back to the user's public wallet
func (h *Handlers) Recover(c echo.Context) error {
	if h.Recoverer == nil {
		return h.err(c, http.StatusBadRequest, "recovery is not configured", nil)
	}

	var req RecoveryRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	sess, err := h.sessionFromRequest(c.Request().Context(), req)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid wallet or signature", map[string]any{"err": err.Error()})
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Token))
	if symbol == "" {
		symbol = tokens.Native
	}
	token, err := tokens.Lookup(symbol)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "unsupported token", map[string]any{"token": symbol})
	}

	// Recovery waits on confirmation, so give it room.
	ctx, cancel := h.withTimeout(c.Request().Context(), 90*time.Second)
	defer cancel()

	var (
		sig    string
		amount uint64
	)
	if token.IsNative() {
		sig, amount, err = h.Recoverer.RecoverNative(ctx, sess)
	} else {
		sig, amount, err = h.Recoverer.RecoverToken(ctx, sess, token)
	}
	if err != nil {
		switch {
		case errors.Is(err, recovery.ErrBalanceTooSmall),
			errors.Is(err, recovery.ErrInsufficientFeeBalance),
			errors.Is(err, recovery.ErrNothingToRecover):
			return h.err(c, http.StatusConflict, err.Error(), nil)
		default:
			return h.err(c, http.StatusBadGateway, "recovery failed", map[string]any{"err": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, RecoveryResponse{Signature: sig, Token: token.Symbol, Amount: amount})
}

// PoolWithdraw unshields funds to an arbitrary recipient. Withdrawals
// are authorized by the pool-side proof, so the server can serve them
// from the cached sign-in signature without a wallet signature on the
// transaction. Shielding needs the wallet to sign and happens client-side.
func (h *Handlers) PoolWithdraw(c echo.Context) error {
	if h.Sender == nil {
		return h.err(c, http.StatusBadRequest, "private send is not configured", nil)
	}

	var req PoolWithdrawRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	token, err := tokens.Lookup(req.Token)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "unsupported token", map[string]any{"token": req.Token})
	}
	recipient, err := solana.PublicKeyFromBase58(strings.TrimSpace(req.Recipient))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid recipient", map[string]any{"recipient": "must be base58"})
	}

	// Withdrawals wait on relayer-side proof generation.
	ctx, cancel := h.withTimeout(c.Request().Context(), 120*time.Second)
	defer cancel()

	sess, err := h.sessionFromRequest(ctx, RecoveryRequest{Wallet: req.Wallet, Signature: req.Signature})
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid wallet or signature", map[string]any{"err": err.Error()})
	}

	receipt, err := h.Sender.Unshield(ctx, sess, token, req.Amount, recipient)
	if err != nil {
		if errors.Is(err, privacypool.ErrInsufficientShielded) {
			return h.err(c, http.StatusConflict, err.Error(), nil)
		}
		return h.err(c, http.StatusBadGateway, "unshield failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, receipt)
}

// RecentSwaps returns the latest completed swaps, optionally filtered by
// wallet. Accepts limit query parameter (default: 50, range: 1-200)
func (h *Handlers) RecentSwaps(c echo.Context) error {
	if h.History == nil {
		return h.err(c, http.StatusBadRequest, "history is not configured", nil)
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
		}
		limit = n
	}
	wallet := strings.TrimSpace(c.QueryParam("wallet"))

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.History.RecentSwaps(ctx, wallet, limit)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get swaps", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// InsightsAsk answers natural language questions about swap activity
// Supports optional model override for one-off requests
func (h *Handlers) InsightsAsk(c echo.Context) error {
	if h.Insights == nil {
		return h.err(c, http.StatusBadRequest, "insights are not configured", nil)
	}

	var req InsightsAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	agent := h.Insights
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.InsightsBaseConfig
		cfg.Model = m
		tmp, err := insights.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create insights agent", nil)
		}
		agent = tmp
		defer func() {
			_ = tmp.Close()
		}()
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "insights ask failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, InsightsAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
