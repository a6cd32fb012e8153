package points

import "errors"

// ErrInvalidInput rejects malformed wallet addresses or signatures
// before they reach Redis.
var ErrInvalidInput = errors.New("invalid wallet or signature")

// AwardResult reports one award attempt. AlreadyClaimed means the
// signature had been awarded before; Points always carries the wallet's
// current total.
type AwardResult struct {
	Wallet         string `json:"wallet"`
	Points         int64  `json:"points"`
	Awarded        bool   `json:"awarded"`
	AlreadyClaimed bool   `json:"already_claimed"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Wallet string `json:"wallet"`
	Points int64  `json:"points"`
}

type DailyVolume struct {
	Date      string  `json:"date"` // YYYY-MM-DD, UTC
	VolumeUsd float64 `json:"volume_usd"`
	Swaps     int64   `json:"swaps"`
}

type VolumeStats struct {
	TotalVolumeUsd float64       `json:"total_volume_usd"`
	TotalSwaps     int64         `json:"total_swaps"`
	Daily          []DailyVolume `json:"daily"`
}
