package swap

import (
	"errors"
	"fmt"

	"github.com/circuitx-labs/privacy-swap/internal/tokens"
)

var (
	// ErrSameToken rejects swaps where input and output are identical.
	ErrSameToken = errors.New("input and output tokens must differ")

	// ErrPrivacyNotInitialized is returned when the public-balance path
	// would apply but private mode is off or the pool session is missing.
	ErrPrivacyNotInitialized = errors.New("privacy mode is not initialized for this wallet")

	// ErrInvalidOutputAmount is returned when the post-swap balance
	// measurement finds nothing to re-shield. The swap leg may have
	// partially failed; manual recovery is required.
	ErrInvalidOutputAmount = errors.New("measured swap output is zero, recover funds manually")
)

// InsufficientBalanceError reports a shortfall with both sides of the
// comparison so the caller can render an actionable message.
type InsufficientBalanceError struct {
	Token     tokens.Token
	Required  uint64
	Available uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: need %s, have %s",
		e.Token.Symbol,
		formatBase(e.Required, e.Token.Decimals),
		formatBase(e.Available, e.Token.Decimals))
}

// SimulationError is a pre-flight failure caught before any fee was
// spent. Hint carries a decoded explanation for known aggregator error
// codes.
type SimulationError struct {
	RawErr string
	Logs   []string
	Hint   string
}

func (e *SimulationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("swap simulation failed: %s (%s)", e.Hint, e.RawErr)
	}
	return fmt.Sprintf("swap simulation failed: %s", e.RawErr)
}

// StepError annotates a failure with the orchestration step it occurred
// in and the signatures collected before it, so a partially completed
// flow can be finished manually through recovery.
type StepError struct {
	Step       string
	Signatures []StepSignature
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func formatBase(amount uint64, decimals uint8) string {
	return fmt.Sprintf("%g", tokens.FromBaseUnits(amount, decimals))
}
