package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sessions:"

// Store persists sign-in sessions keyed by wallet address.
type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

// Put caches a session. Sessions have no TTL: the signature stays valid
// until the user explicitly clears it.
func (s *Store) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return fmt.Errorf("session is nil")
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.Wallet), b, 0).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Get loads the cached session for a wallet, or ErrNotSignedIn.
func (s *Store) Get(ctx context.Context, wallet solana.PublicKey) (*Session, error) {
	val, err := s.client.Get(ctx, sessionKey(wallet)).Result()
	if err == redis.Nil {
		return nil, ErrNotSignedIn
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Clear drops the cached signature. This forces a re-sign on next use
// and is the only logout mechanism.
func (s *Store) Clear(ctx context.Context, wallet solana.PublicKey) error {
	if err := s.client.Del(ctx, sessionKey(wallet)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func sessionKey(wallet solana.PublicKey) string {
	return keyPrefix + wallet.String()
}
