package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// RPC settings
	RPCUrl       string
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Jupiter aggregator
	JupiterBaseURL  string
	JupiterPriceURL string
	JupiterAPIKey   string

	// Privacy pool relayer
	PoolRelayerURL string

	// Swap tuning. The fee buffer and reserves are network/product tuning
	// values, not structural constants, so they live here.
	SlippageBps       uint16
	PlatformFeeBps    uint16
	PlatformFeeWallet string
	NativeFeeBuffer   float64       // SOL moved to the ephemeral wallet to cover swap fees
	DustReserve       uint64        // lamports left behind when sweeping the ephemeral wallet
	SweepMinProfit    uint64        // lamports; sweeps below this are not worth the tx fee
	RecoveryFeeEst    uint64        // lamports reserved for the recovery transfer's own fee
	MinFeeLamports    uint64        // lamports required to pay for a single transaction
	ConfirmTimeout    time.Duration // ceiling on one confirmation wait
	SubmitRetries     int           // blockhash-expiry resubmission bound

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Points service
	PointsAPIURL  string
	PointsPerSwap int

	// API server
	APIAddr string
	APIKey  string
	DevMode bool

	// Insights agent
	OpenRouterAPIKey string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:       getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 1*time.Second),

		// Jupiter
		JupiterBaseURL:  getEnv("JUPITER_BASE_URL", "https://api.jup.ag/swap/v1"),
		JupiterPriceURL: getEnv("JUPITER_PRICE_URL", "https://api.jup.ag/price/v3"),
		JupiterAPIKey:   getEnv("JUPITER_API_KEY", ""),

		// Privacy pool
		PoolRelayerURL: getEnv("POOL_RELAYER_URL", ""),

		// Swap tuning
		SlippageBps:       uint16(getIntEnv("SLIPPAGE_BPS", 50)),
		PlatformFeeBps:    uint16(getIntEnv("PLATFORM_FEE_BPS", 60)),
		PlatformFeeWallet: getEnv("PLATFORM_FEE_WALLET", "8u9WS6ZkTDwCzqU9rofef7MXS9NvCAwFstVcmwQ8mKmZ"),
		NativeFeeBuffer:   getFloatEnv("NATIVE_FEE_BUFFER_SOL", 0.03),
		DustReserve:       uint64(getIntEnv("DUST_RESERVE_LAMPORTS", 5000)),
		SweepMinProfit:    uint64(getIntEnv("SWEEP_MIN_PROFIT_LAMPORTS", 1_000_000)),
		RecoveryFeeEst:    uint64(getIntEnv("RECOVERY_FEE_LAMPORTS", 100_000)),
		MinFeeLamports:    uint64(getIntEnv("MIN_FEE_LAMPORTS", 5000)),
		ConfirmTimeout:    getDurationEnv("CONFIRM_TIMEOUT", 60*time.Second),
		SubmitRetries:     getIntEnv("SUBMIT_RETRIES", 3),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "circuitx"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Points
		PointsAPIURL:  getEnv("POINTS_API_URL", ""),
		PointsPerSwap: getIntEnv("POINTS_PER_SWAP", 10),

		// API server
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Insights
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
	}
}

// Validate checks settings that have no sane fallback.
func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if c.SlippageBps == 0 || c.SlippageBps > 10_000 {
		return fmt.Errorf("SLIPPAGE_BPS must be in (0, 10000]")
	}
	if c.PlatformFeeBps > 10_000 {
		return fmt.Errorf("PLATFORM_FEE_BPS must be <= 10000")
	}
	if c.NativeFeeBuffer <= 0 {
		return fmt.Errorf("NATIVE_FEE_BUFFER_SOL must be positive")
	}
	if c.SubmitRetries < 1 {
		return fmt.Errorf("SUBMIT_RETRIES must be at least 1")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
