package sender

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circuitx-labs/privacy-swap/internal/privacypool"
	"github.com/circuitx-labs/privacy-swap/internal/session"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
	"github.com/circuitx-labs/privacy-swap/internal/wallet"
)

type poolOp struct {
	kind      string // deposit | withdraw
	token     string
	amount    uint64
	recipient string
	signer    string
}

type fakePool struct {
	balances map[string]uint64
	ops      []poolOp
}

func newFakePool() *fakePool {
	return &fakePool{balances: map[string]uint64{}}
}

func (f *fakePool) PrivateBalance(_ context.Context, _ solana.PublicKey, token tokens.Token) (uint64, error) {
	return f.balances[token.Symbol], nil
}

func (f *fakePool) Deposit(_ context.Context, _ solana.PublicKey, token tokens.Token, amount uint64, signer wallet.Signer) (string, error) {
	f.ops = append(f.ops, poolOp{
		kind:   "deposit",
		token:  token.Symbol,
		amount: amount,
		signer: signer.PublicKey().String(),
	})
	return fmt.Sprintf("pool-sig-%d", len(f.ops)), nil
}

func (f *fakePool) Withdraw(_ context.Context, _ solana.PublicKey, token tokens.Token, amount uint64, recipient solana.PublicKey) (string, error) {
	f.ops = append(f.ops, poolOp{
		kind:      "withdraw",
		token:     token.Symbol,
		amount:    amount,
		recipient: recipient.String(),
	})
	return fmt.Sprintf("pool-sig-%d", len(f.ops)), nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestSession(t *testing.T) (*session.Session, wallet.Signer) {
	t.Helper()
	w := solana.NewWallet()
	sess, err := session.New(w.PublicKey(), []byte("test signature for "+w.PublicKey().String()))
	require.NoError(t, err)
	return sess, wallet.NewKeypairSigner(w.PrivateKey)
}

func TestShieldDepositsWithUserSigner(t *testing.T) {
	sess, signer := newTestSession(t)
	pool := newFakePool()
	svc := NewService(pool, testLogger())

	receipt, err := svc.Shield(context.Background(), sess, signer, tokens.BySymbol("USDC"), 25.0)
	require.NoError(t, err)

	assert.Equal(t, "USDC", receipt.Token)
	assert.Equal(t, uint64(25_000_000), receipt.AmountBase)
	assert.NotEmpty(t, receipt.Signature)

	require.Len(t, pool.ops, 1)
	assert.Equal(t, poolOp{
		kind:   "deposit",
		token:  "USDC",
		amount: 25_000_000,
		signer: signer.PublicKey().String(),
	}, pool.ops[0])
}

func TestShieldRequiresSigner(t *testing.T) {
	sess, _ := newTestSession(t)
	svc := NewService(newFakePool(), testLogger())

	_, err := svc.Shield(context.Background(), sess, nil, tokens.BySymbol("SOL"), 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signer")
}

func TestShieldRejectsInvalidAmount(t *testing.T) {
	sess, signer := newTestSession(t)
	svc := NewService(newFakePool(), testLogger())

	_, err := svc.Shield(context.Background(), sess, signer, tokens.BySymbol("SOL"), 0)
	assert.ErrorIs(t, err, tokens.ErrInvalidAmount)
}

func TestUnshieldToArbitraryRecipient(t *testing.T) {
	sess, _ := newTestSession(t)
	recipient := solana.NewWallet().PublicKey()

	pool := newFakePool()
	pool.balances["SOL"] = 2_000_000_000
	svc := NewService(pool, testLogger())

	receipt, err := svc.Unshield(context.Background(), sess, tokens.BySymbol("SOL"), 1.5, recipient)
	require.NoError(t, err)

	assert.Equal(t, uint64(1_500_000_000), receipt.AmountBase)
	assert.Equal(t, recipient.String(), receipt.Recipient)

	require.Len(t, pool.ops, 1)
	assert.Equal(t, poolOp{
		kind:      "withdraw",
		token:     "SOL",
		amount:    1_500_000_000,
		recipient: recipient.String(),
	}, pool.ops[0])
}

func TestUnshieldChecksShieldedBalance(t *testing.T) {
	sess, _ := newTestSession(t)

	pool := newFakePool()
	pool.balances["SOL"] = 1_000_000_000
	svc := NewService(pool, testLogger())

	_, err := svc.Unshield(context.Background(), sess, tokens.BySymbol("SOL"), 1.5, solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, privacypool.ErrInsufficientShielded)
	assert.Empty(t, pool.ops, "no withdrawal may be attempted on a shortfall")
}

func TestUnshieldRequiresRecipient(t *testing.T) {
	sess, _ := newTestSession(t)
	svc := NewService(newFakePool(), testLogger())

	_, err := svc.Unshield(context.Background(), sess, tokens.BySymbol("SOL"), 1.0, solana.PublicKey{})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestSenderRequiresSession(t *testing.T) {
	svc := NewService(newFakePool(), testLogger())

	_, err := svc.Shield(context.Background(), nil, nil, tokens.BySymbol("SOL"), 1.0)
	assert.ErrorIs(t, err, session.ErrNotSignedIn)

	_, err = svc.Unshield(context.Background(), nil, tokens.BySymbol("SOL"), 1.0, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, session.ErrNotSignedIn)
}
