package session

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	return client
}

func cleanupTestRedis(client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

func signedInSession(t *testing.T) *Session {
	w := solana.NewWallet()
	sig, err := w.PrivateKey.Sign([]byte(SignInMessage))
	require.NoError(t, err)
	sess, err := New(w.PublicKey(), sig[:])
	require.NoError(t, err)
	return sess
}

func TestStoreRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()
	sess := signedInSession(t)

	require.NoError(t, store.Put(ctx, sess))

	got, err := store.Get(ctx, sess.Wallet)
	require.NoError(t, err)
	assert.Equal(t, sess.Wallet, got.Wallet)
	assert.Equal(t, sess.Signature, got.Signature)

	// The round-tripped session must derive the same ephemeral wallet.
	want, err := sess.EphemeralAddress()
	require.NoError(t, err)
	have, err := got.EphemeralAddress()
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestGetUnknownWallet(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestClearForcesResign(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	ctx := context.Background()
	sess := signedInSession(t)

	require.NoError(t, store.Put(ctx, sess))
	require.NoError(t, store.Clear(ctx, sess.Wallet))

	_, err = store.Get(ctx, sess.Wallet)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestClearIsIdempotent(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client)
	require.NoError(t, err)

	assert.NoError(t, store.Clear(context.Background(), solana.NewWallet().PublicKey()))
}
