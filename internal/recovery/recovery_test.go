package recovery

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circuitx-labs/privacy-swap/internal/chain"
	"github.com/circuitx-labs/privacy-swap/internal/session"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
)

type fakeChain struct {
	mu            sync.Mutex
	lamports      map[string]uint64
	tokenBalances map[string]uint64
	accounts      map[string]bool
	rentFloor     uint64
	submitted     []*solana.Transaction
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		lamports:      map[string]uint64{},
		tokenBalances: map[string]uint64{},
		accounts:      map[string]bool{},
		rentFloor:     890_880,
	}
}

func (f *fakeChain) GetBalance(_ context.Context, pubkey solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lamports[pubkey.String()], nil
}

func (f *fakeChain) GetTokenAccountBalance(_ context.Context, account solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amt, ok := f.tokenBalances[account.String()]
	if !ok {
		return 0, chain.ErrAccountNotFound
	}
	return amt, nil
}

func (f *fakeChain) AccountExists(_ context.Context, pubkey solana.PublicKey) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[pubkey.String()], nil
}

func (f *fakeChain) GetMinimumBalanceForRentExemption(_ context.Context, _ uint64) (uint64, error) {
	return f.rentFloor, nil
}

func (f *fakeChain) SubmitWithFreshBlockhash(_ context.Context, build chain.TxBuilder, _ int, _ time.Duration) (string, error) {
	tx, err := build(solana.Hash{})
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, tx)
	return fmt.Sprintf("recover-sig-%d", len(f.submitted)), nil
}

func testConfig() Config {
	return Config{
		FeeEstimate:    100_000,
		MinFeeLamports: 5000,
		ConfirmTimeout: time.Second,
		SubmitRetries:  3,
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestSession(t *testing.T) (*session.Session, solana.PublicKey) {
	t.Helper()
	w := solana.NewWallet()
	sess, err := session.New(w.PublicKey(), []byte("recovery test signature"))
	require.NoError(t, err)
	eph, err := sess.EphemeralAddress()
	require.NoError(t, err)
	return sess, eph
}

func TestCheckBalances(t *testing.T) {
	sess, eph := newTestSession(t)
	usdc := tokens.BySymbol("USDC")

	fc := newFakeChain()
	fc.lamports[eph.String()] = 1_234_567
	ata, _, err := chain.FindAssociatedTokenAddress(eph, usdc.Mint)
	require.NoError(t, err)
	fc.tokenBalances[ata.String()] = 42_000_000

	r := NewRecoverer(fc, testConfig(), testLogger())
	bal, err := r.CheckBalances(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, eph, bal.Ephemeral)
	assert.Equal(t, uint64(1_234_567), bal.NativeLamports)
	assert.Equal(t, map[string]uint64{"USDC": 42_000_000}, bal.Tokens)
}

func TestRecoverNativeKeepsReserve(t *testing.T) {
	sess, eph := newTestSession(t)

	fc := newFakeChain()
	fc.lamports[eph.String()] = 5_000_000

	r := NewRecoverer(fc, testConfig(), testLogger())
	sig, amount, err := r.RecoverNative(context.Background(), sess)
	require.NoError(t, err)

	assert.NotEmpty(t, sig)
	wantReserve := fc.rentFloor + testConfig().FeeEstimate
	assert.Equal(t, uint64(5_000_000)-wantReserve, amount)

	require.Len(t, fc.submitted, 1)
	data := fc.submitted[0].Message.Instructions[0].Data
	assert.Equal(t, amount, binary.LittleEndian.Uint64(data[4:12]))
}

func TestRecoverNativeBalanceTooSmall(t *testing.T) {
	sess, eph := newTestSession(t)

	// 0.00089 SOL against a combined reserve of ~0.00099 SOL.
	fc := newFakeChain()
	fc.lamports[eph.String()] = 890_000

	r := NewRecoverer(fc, testConfig(), testLogger())
	_, _, err := r.RecoverNative(context.Background(), sess)

	require.ErrorIs(t, err, ErrBalanceTooSmall)
	assert.Empty(t, fc.submitted, "no transfer should be attempted")
}

func TestRecoverTokenNeedsFeeBalance(t *testing.T) {
	sess, eph := newTestSession(t)
	usdc := tokens.BySymbol("USDC")

	fc := newFakeChain()
	fc.lamports[eph.String()] = 4999
	ata, _, err := chain.FindAssociatedTokenAddress(eph, usdc.Mint)
	require.NoError(t, err)
	fc.tokenBalances[ata.String()] = 1_000_000

	r := NewRecoverer(fc, testConfig(), testLogger())
	_, _, err = r.RecoverToken(context.Background(), sess, usdc)

	require.ErrorIs(t, err, ErrInsufficientFeeBalance)
	assert.Empty(t, fc.submitted)
}

func TestRecoverTokenCreatesDestinationAccount(t *testing.T) {
	sess, eph := newTestSession(t)
	usdc := tokens.BySymbol("USDC")

	fc := newFakeChain()
	fc.lamports[eph.String()] = 1_000_000
	srcAta, _, err := chain.FindAssociatedTokenAddress(eph, usdc.Mint)
	require.NoError(t, err)
	fc.tokenBalances[srcAta.String()] = 7_500_000

	r := NewRecoverer(fc, testConfig(), testLogger())
	sig, amount, err := r.RecoverToken(context.Background(), sess, usdc)
	require.NoError(t, err)

	assert.NotEmpty(t, sig)
	assert.Equal(t, uint64(7_500_000), amount)

	// Destination account missing: create-ATA instruction precedes the transfer.
	require.Len(t, fc.submitted, 1)
	assert.Len(t, fc.submitted[0].Message.Instructions, 2)
}

func TestRecoverTokenExistingDestination(t *testing.T) {
	sess, eph := newTestSession(t)
	usdc := tokens.BySymbol("USDC")

	fc := newFakeChain()
	fc.lamports[eph.String()] = 1_000_000
	srcAta, _, err := chain.FindAssociatedTokenAddress(eph, usdc.Mint)
	require.NoError(t, err)
	fc.tokenBalances[srcAta.String()] = 7_500_000
	dstAta, _, err := chain.FindAssociatedTokenAddress(sess.Wallet, usdc.Mint)
	require.NoError(t, err)
	fc.accounts[dstAta.String()] = true

	r := NewRecoverer(fc, testConfig(), testLogger())
	_, _, err = r.RecoverToken(context.Background(), sess, usdc)
	require.NoError(t, err)

	require.Len(t, fc.submitted, 1)
	assert.Len(t, fc.submitted[0].Message.Instructions, 1)
}

func TestRecoverTokenNothingToRecover(t *testing.T) {
	sess, eph := newTestSession(t)

	fc := newFakeChain()
	fc.lamports[eph.String()] = 1_000_000

	r := NewRecoverer(fc, testConfig(), testLogger())
	_, _, err := r.RecoverToken(context.Background(), sess, tokens.BySymbol("USDC"))
	assert.ErrorIs(t, err, ErrNothingToRecover)
}

func TestRecoverTokenRejectsNative(t *testing.T) {
	sess, _ := newTestSession(t)
	r := NewRecoverer(newFakeChain(), testConfig(), testLogger())
	_, _, err := r.RecoverToken(context.Background(), sess, tokens.BySymbol("SOL"))
	assert.Error(t, err)
}
