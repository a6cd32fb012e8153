package swap

import "github.com/circuitx-labs/privacy-swap/internal/tokens"

// Path names the two eligible routing strategies.
type Path string

const (
	// PathPrivate swaps directly from an already-shielded balance.
	PathPrivate Path = "private"

	// PathPublic round-trips public funds through the pool around the
	// swap: shield, withdraw to ephemeral, swap, re-shield, withdraw out.
	PathPublic Path = "public"
)

// FundingSource tags where the ephemeral wallet's fee buffer comes from.
// The pool is tried first; the public wallet covers a pool with no
// native-asset note to spend.
type FundingSource string

const (
	FromShieldedPool FundingSource = "shielded_pool"
	FromPublicWallet FundingSource = "public_wallet"
)

// choosePath picks exactly one of the two paths or fails. Evaluation
// order is fixed: the private-balance condition wins when it holds, the
// public-balance condition is only consulted after it does not, and a
// sufficient public balance without an initialized privacy session is an
// error rather than a fallthrough.
func choosePath(token tokens.Token, privateBase, publicBase, required uint64, privateMode, poolReady bool) (Path, error) {
	if privateMode && privateBase >= required {
		return PathPrivate, nil
	}
	if publicBase >= required {
		if !privateMode || !poolReady {
			return "", ErrPrivacyNotInitialized
		}
		return PathPublic, nil
	}

	available := publicBase
	if privateMode && privateBase > available {
		available = privateBase
	}
	return "", &InsufficientBalanceError{
		Token:     token,
		Required:  required,
		Available: available,
	}
}
