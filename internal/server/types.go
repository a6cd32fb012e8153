package server

import "time"

// ErrorResponse is the standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"`
}

// AwardRequest credits one swap to the loyalty ledger
type AwardRequest struct {
	Wallet      string  `json:"wallet"`
	TxSignature string  `json:"tx_signature"`
	VolumeUsd   float64 `json:"volume_usd"`
}

// PointsResponse carries a wallet's cumulative total
type PointsResponse struct {
	Wallet string `json:"wallet"`
	Points int64  `json:"points"`
}

// SignInRequest registers a wallet's signature over the fixed sign-in
// message. The signature is base64-encoded.
type SignInRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
}

// SessionResponse reports a signed-in wallet and its derived ephemeral
// address
type SessionResponse struct {
	Wallet    string    `json:"wallet"`
	Ephemeral string    `json:"ephemeral"`
	CreatedAt time.Time `json:"created_at"`
}

// RecoveryRequest identifies a session by its cached sign-in signature.
// The signature is base64-encoded; when omitted, the server-side session
// cache is consulted. The ephemeral wallet is re-derived from the
// signature either way.
type RecoveryRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature,omitempty"`
	Token     string `json:"token,omitempty"` // symbol; empty or "SOL" sweeps native
}

// RecoveryResponse reports one completed sweep
type RecoveryResponse struct {
	Signature string `json:"signature"`
	Token     string `json:"token"`
	Amount    uint64 `json:"amount_base_units"`
}

// PoolWithdrawRequest unshields funds to an arbitrary recipient. The
// signature is base64-encoded and optional when a cached session exists.
type PoolWithdrawRequest struct {
	Wallet    string  `json:"wallet"`
	Signature string  `json:"signature,omitempty"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Recipient string  `json:"recipient"`
}

// InsightsAskRequest is a natural language query about swap activity
type InsightsAskRequest struct {
	Question string `json:"question"`
	Model    string `json:"model"` // Optional model override
}

// InsightsAskResponse carries the generated SQL and answer
type InsightsAskResponse struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
	TookMs int64  `json:"took_ms"`
}
