// Package points keeps the loyalty ledger: per-wallet point totals, an
// at-most-once claim per swap signature, and aggregate volume counters.
package points

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	claimsKey      = "points:claims"
	leaderboardKey = "points:leaderboard"
	totalUsdKey    = "volume:total_usd"
	totalSwapsKey  = "volume:total_swaps"
	daysKey        = "volume:days"
	dailyUsdPrefix = "volume:daily_usd:"
	dailySwapsPre  = "volume:daily_swaps:"
)

var base58Re = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,90}$`)

type Store struct {
	client        redis.Cmdable
	pointsPerSwap int64
}

func NewStore(client redis.Cmdable, pointsPerSwap int) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if pointsPerSwap <= 0 {
		pointsPerSwap = 10
	}
	return &Store{client: client, pointsPerSwap: int64(pointsPerSwap)}, nil
}

func validate(wallet, txSignature string) error {
	if !base58Re.MatchString(wallet) || !base58Re.MatchString(txSignature) {
		return ErrInvalidInput
	}
	return nil
}

// Award credits one swap. The claim table enforces at-most-one award
// per transaction signature: a replay reports AlreadyClaimed and leaves
// every counter untouched.
func (s *Store) Award(ctx context.Context, wallet, txSignature string, volumeUsd float64) (*AwardResult, error) {
	if err := validate(wallet, txSignature); err != nil {
		return nil, err
	}
	if volumeUsd < 0 {
		volumeUsd = 0
	}

	claimed, err := s.client.HSetNX(ctx, claimsKey, txSignature, wallet).Result()
	if err != nil {
		return nil, fmt.Errorf("claim signature: %w", err)
	}
	if !claimed {
		total, err := s.Points(ctx, wallet)
		if err != nil {
			return nil, err
		}
		return &AwardResult{Wallet: wallet, Points: total, AlreadyClaimed: true}, nil
	}

	day := time.Now().UTC().Format("2006-01-02")
	pipe := s.client.TxPipeline()
	incr := pipe.ZIncrBy(ctx, leaderboardKey, float64(s.pointsPerSwap), wallet)
	pipe.IncrByFloat(ctx, totalUsdKey, volumeUsd)
	pipe.Incr(ctx, totalSwapsKey)
	pipe.IncrByFloat(ctx, dailyUsdPrefix+day, volumeUsd)
	pipe.Incr(ctx, dailySwapsPre+day)
	pipe.SAdd(ctx, daysKey, day)
	if _, err := pipe.Exec(ctx); err != nil {
		// Release the claim, otherwise the signature stays marked as
		// awarded with no points or volume ever recorded and no retry
		// can fix it.
		if delErr := s.client.HDel(ctx, claimsKey, txSignature).Err(); delErr != nil {
			return nil, fmt.Errorf("award points: %v (claim rollback failed: %w)", err, delErr)
		}
		return nil, fmt.Errorf("award points: %w", err)
	}

	return &AwardResult{
		Wallet:  wallet,
		Points:  int64(incr.Val()),
		Awarded: true,
	}, nil
}

// Points returns a wallet's cumulative total; unknown wallets read as zero.
func (s *Store) Points(ctx context.Context, wallet string) (int64, error) {
	if !base58Re.MatchString(wallet) {
		return 0, ErrInvalidInput
	}
	score, err := s.client.ZScore(ctx, leaderboardKey, wallet).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read points: %w", err)
	}
	return int64(score), nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	entries, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	out := make([]LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		wallet, ok := e.Member.(string)
		if !ok {
			continue
		}
		out = append(out, LeaderboardEntry{
			Rank:   i + 1,
			Wallet: wallet,
			Points: int64(e.Score),
		})
	}
	return out, nil
}

// Volume returns the aggregate counters plus the most recent daily
// buckets, newest first.
func (s *Store) Volume(ctx context.Context, maxDays int) (*VolumeStats, error) {
	if maxDays <= 0 || maxDays > 365 {
		maxDays = 30
	}

	stats := &VolumeStats{Daily: []DailyVolume{}}

	if v, err := s.client.Get(ctx, totalUsdKey).Float64(); err == nil {
		stats.TotalVolumeUsd = v
	} else if err != redis.Nil {
		return nil, fmt.Errorf("read total volume: %w", err)
	}
	if v, err := s.client.Get(ctx, totalSwapsKey).Int64(); err == nil {
		stats.TotalSwaps = v
	} else if err != redis.Nil {
		return nil, fmt.Errorf("read total swaps: %w", err)
	}

	days, err := s.client.SMembers(ctx, daysKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read day index: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	if len(days) > maxDays {
		days = days[:maxDays]
	}

	for _, day := range days {
		d := DailyVolume{Date: day}
		if v, err := s.client.Get(ctx, dailyUsdPrefix+day).Result(); err == nil {
			d.VolumeUsd, _ = strconv.ParseFloat(v, 64)
		}
		if v, err := s.client.Get(ctx, dailySwapsPre+day).Int64(); err == nil {
			d.Swaps = v
		}
		stats.Daily = append(stats.Daily, d)
	}
	return stats, nil
}

// ReportSwap lets the orchestrator award points in-process when the
// ledger and the swap engine share a deployment.
func (s *Store) ReportSwap(ctx context.Context, wallet, txSignature string, volumeUsd float64) error {
	_, err := s.Award(ctx, wallet, txSignature, volumeUsd)
	return err
}
