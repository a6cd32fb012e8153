package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/balance"
	"github.com/circuitx-labs/privacy-swap/internal/chain"
	"github.com/circuitx-labs/privacy-swap/internal/config"
	"github.com/circuitx-labs/privacy-swap/internal/history"
	"github.com/circuitx-labs/privacy-swap/internal/insights"
	"github.com/circuitx-labs/privacy-swap/internal/jupiter"
	"github.com/circuitx-labs/privacy-swap/internal/points"
	"github.com/circuitx-labs/privacy-swap/internal/privacypool"
	"github.com/circuitx-labs/privacy-swap/internal/recovery"
	"github.com/circuitx-labs/privacy-swap/internal/sender"
	"github.com/circuitx-labs/privacy-swap/internal/server"
	"github.com/circuitx-labs/privacy-swap/internal/session"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main initializes all dependencies and starts the HTTP server with
// graceful shutdown
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Redis backs the loyalty ledger
	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	pointsStore, err := points.NewStore(rclient, cfg.PointsPerSwap)
	if err != nil {
		logger.WithError(err).Fatal("failed to create points store")
	}
	sessionStore, err := session.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create session store")
	}

	chainClient, err := chain.NewClient(chain.ClientConfig{
		RPCURL:       cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create chain client")
	}

	// Pool relayer is optional; without it only public balances are served
	var pool privacypool.Pool
	if cfg.PoolRelayerURL != "" {
		pool = privacypool.NewClient(cfg.PoolRelayerURL)
	} else {
		logger.Warn("POOL_RELAYER_URL not set, shielded balances disabled")
	}

	var sendSvc *sender.Service
	if pool != nil {
		sendSvc = sender.NewService(pool, logger)
	}

	inspector := balance.NewInspector(chainClient, pool, logger)
	recoverer := recovery.NewRecoverer(chainClient, recovery.Config{
		FeeEstimate:    cfg.RecoveryFeeEst,
		MinFeeLamports: cfg.MinFeeLamports,
		ConfirmTimeout: cfg.ConfirmTimeout,
		SubmitRetries:  cfg.SubmitRetries,
	}, logger)

	// Swap history is optional; skip it when ClickHouse is unreachable
	var histStore *history.Store
	if hs, err := history.NewStore(history.Options{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUsername,
		Password: cfg.ClickHousePassword,
	}); err != nil {
		logger.WithError(err).Warn("swap history disabled")
	} else {
		histStore = hs
		if err := histStore.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Warn("failed to ensure history schema")
		}
		defer func() {
			_ = histStore.Close()
		}()
	}

	// Insights agent is optional, gated on the OpenRouter key
	var agent *insights.Agent
	insightsBase := insights.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              "openai/gpt-4.1-mini",
		Logger:             logger,
	}
	if cfg.OpenRouterAPIKey != "" {
		a, err := insights.NewAgent(ctx, insightsBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize insights agent")
		} else {
			agent = a
			defer func() {
				_ = agent.Close()
			}()
		}
	}

	h := &server.Handlers{
		Points:             pointsStore,
		Sessions:           sessionStore,
		Inspector:          inspector,
		Recoverer:          recoverer,
		Sender:             sendSvc,
		History:            histStore,
		Insights:           agent,
		InsightsBaseConfig: insightsBase,
		Jupiter:            jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterPriceURL, cfg.JupiterAPIKey),
		DevMode:            cfg.DevMode,
		Logger:             logger,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
