package swap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circuitx-labs/privacy-swap/internal/tokens"
)

func TestChoosePath(t *testing.T) {
	sol := tokens.BySymbol("SOL")

	tests := []struct {
		name        string
		private     uint64
		public      uint64
		required    uint64
		privateMode bool
		poolReady   bool
		wantPath    Path
		wantErr     error
	}{
		{
			name:        "private balance covers it",
			private:     2_000_000_000,
			public:      0,
			required:    1_000_000_000,
			privateMode: true,
			poolReady:   true,
			wantPath:    PathPrivate,
		},
		{
			name:        "private short, public covers it",
			private:     100,
			public:      2_000_000_000,
			required:    1_000_000_000,
			privateMode: true,
			poolReady:   true,
			wantPath:    PathPublic,
		},
		{
			name:        "public covers it but private mode off",
			private:     0,
			public:      2_000_000_000,
			required:    1_000_000_000,
			privateMode: false,
			poolReady:   true,
			wantErr:     ErrPrivacyNotInitialized,
		},
		{
			name:        "public covers it but pool session missing",
			private:     0,
			public:      2_000_000_000,
			required:    1_000_000_000,
			privateMode: true,
			poolReady:   false,
			wantErr:     ErrPrivacyNotInitialized,
		},
		{
			name:        "private ignored when private mode off",
			private:     2_000_000_000,
			public:      0,
			required:    1_000_000_000,
			privateMode: false,
			poolReady:   true,
			wantErr:     &InsufficientBalanceError{},
		},
		{
			name:        "nothing covers it",
			private:     10,
			public:      20,
			required:    1_000_000_000,
			privateMode: true,
			poolReady:   true,
			wantErr:     &InsufficientBalanceError{},
		},
		{
			name:        "exact private balance qualifies",
			private:     1_000_000_000,
			public:      0,
			required:    1_000_000_000,
			privateMode: true,
			poolReady:   true,
			wantPath:    PathPrivate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := choosePath(sol, tt.private, tt.public, tt.required, tt.privateMode, tt.poolReady)

			switch want := tt.wantErr.(type) {
			case nil:
				require.NoError(t, err)
				assert.Equal(t, tt.wantPath, path)
			case *InsufficientBalanceError:
				var ib *InsufficientBalanceError
				require.ErrorAs(t, err, &ib)
				assert.Equal(t, tt.required, ib.Required)
			default:
				require.ErrorIs(t, err, want)
			}
		})
	}
}

// Exactly one outcome must hold for every balance combination.
func TestChoosePathExhaustive(t *testing.T) {
	sol := tokens.BySymbol("SOL")
	amounts := []uint64{0, 500, 1000, 5000}
	const required = 1000

	for _, private := range amounts {
		for _, public := range amounts {
			for _, mode := range []bool{true, false} {
				path, err := choosePath(sol, private, public, required, mode, true)

				outcomes := 0
				if err == nil {
					outcomes++
					assert.Contains(t, []Path{PathPrivate, PathPublic}, path)
				}
				var ib *InsufficientBalanceError
				if errors.As(err, &ib) {
					outcomes++
				}
				if errors.Is(err, ErrPrivacyNotInitialized) {
					outcomes++
				}
				assert.Equal(t, 1, outcomes,
					"private=%d public=%d mode=%t", private, public, mode)
			}
		}
	}
}

func TestInsufficientBalanceErrorMessage(t *testing.T) {
	err := &InsufficientBalanceError{
		Token:     tokens.BySymbol("USDC"),
		Required:  1_500_000,
		Available: 250_000,
	}
	assert.Contains(t, err.Error(), "USDC")
	assert.Contains(t, err.Error(), "1.5")
	assert.Contains(t, err.Error(), "0.25")
}
