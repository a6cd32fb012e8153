package points

import (
	"context"
	"errors"
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

func testWallet() string {
	return solana.NewWallet().PublicKey().String()
}

// testSignature fabricates a plausible base58 transaction signature.
func testSignature() string {
	w := solana.NewWallet()
	sig, _ := w.PrivateKey.Sign([]byte("points test payload"))
	return sig.String()
}

func TestAwardIsIdempotentPerSignature(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client, 10)
	require.NoError(t, err)

	ctx := context.Background()
	wallet := testWallet()
	sig := testSignature()

	first, err := store.Award(ctx, wallet, sig, 120.5)
	require.NoError(t, err)
	assert.True(t, first.Awarded)
	assert.False(t, first.AlreadyClaimed)
	assert.Equal(t, int64(10), first.Points)

	second, err := store.Award(ctx, wallet, sig, 120.5)
	require.NoError(t, err)
	assert.False(t, second.Awarded)
	assert.True(t, second.AlreadyClaimed)
	assert.Equal(t, int64(10), second.Points, "replay must not increment")

	stats, err := store.Volume(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalSwaps)
	assert.InDelta(t, 120.5, stats.TotalVolumeUsd, 1e-9)
}

func TestAwardAccumulatesAcrossSignatures(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client, 10)
	require.NoError(t, err)

	ctx := context.Background()
	wallet := testWallet()

	for i := 0; i < 3; i++ {
		res, err := store.Award(ctx, wallet, testSignature(), 50)
		require.NoError(t, err)
		assert.True(t, res.Awarded)
	}

	total, err := store.Points(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)

	stats, err := store.Volume(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalSwaps)
	assert.InDelta(t, 150.0, stats.TotalVolumeUsd, 1e-9)
	require.NotEmpty(t, stats.Daily)
	assert.Equal(t, int64(3), stats.Daily[0].Swaps)
}

func TestLeaderboardOrdering(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client, 10)
	require.NoError(t, err)

	ctx := context.Background()
	low := testWallet()
	high := testWallet()

	_, err = store.Award(ctx, low, testSignature(), 10)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = store.Award(ctx, high, testSignature(), 10)
		require.NoError(t, err)
	}

	board, err := store.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, high, board[0].Wallet)
	assert.Equal(t, int64(30), board[0].Points)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, low, board[1].Wallet)
	assert.Equal(t, 2, board[1].Rank)
}

func TestPointsUnknownWalletIsZero(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client, 10)
	require.NoError(t, err)

	total, err := store.Points(context.Background(), testWallet())
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

// failingPipeliner queues normally but fails on Exec, standing in for a
// connection dropped between the claim write and the counter updates.
type failingPipeliner struct {
	redis.Pipeliner
}

func (p failingPipeliner) Exec(ctx context.Context) ([]redis.Cmder, error) {
	return nil, errors.New("connection reset by peer")
}

type failingPipelineClient struct {
	redis.Cmdable
}

func (c failingPipelineClient) TxPipeline() redis.Pipeliner {
	return failingPipeliner{c.Cmdable.TxPipeline()}
}

func TestAwardReleasesClaimWhenCountersFail(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	broken, err := NewStore(failingPipelineClient{client}, 10)
	require.NoError(t, err)

	ctx := context.Background()
	wallet := testWallet()
	sig := testSignature()

	_, err = broken.Award(ctx, wallet, sig, 75)
	require.Error(t, err)

	// The failed award must not have consumed the signature: a retry
	// against a healthy client awards in full.
	store, err := NewStore(client, 10)
	require.NoError(t, err)

	res, err := store.Award(ctx, wallet, sig, 75)
	require.NoError(t, err)
	assert.True(t, res.Awarded)
	assert.False(t, res.AlreadyClaimed)
	assert.Equal(t, int64(10), res.Points)

	stats, err := store.Volume(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalSwaps)
}

func TestAwardRejectsMalformedInput(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	store, err := NewStore(client, 10)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Award(ctx, "not a wallet", testSignature(), 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = store.Award(ctx, testWallet(), "", 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
