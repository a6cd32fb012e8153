package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/chain"
	"github.com/circuitx-labs/privacy-swap/internal/config"
	"github.com/circuitx-labs/privacy-swap/internal/recovery"
	"github.com/circuitx-labs/privacy-swap/internal/session"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
	"github.com/circuitx-labs/privacy-swap/internal/wallet"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "check", "check | recover")
	symbol := flag.String("token", "SOL", "token symbol to recover (recover mode)")
	keyStr := flag.String("key", "", "wallet private key (base58 or JSON array); falls back to WALLET_PRIVATE_KEY")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(1)
	}

	if *keyStr == "" {
		*keyStr = os.Getenv("WALLET_PRIVATE_KEY")
	}
	if *keyStr == "" {
		fmt.Println("missing -key (or WALLET_PRIVATE_KEY)")
		os.Exit(2)
	}
	priv, err := wallet.ParsePrivateKey(*keyStr)
	if err != nil {
		fmt.Println("invalid private key:", err)
		os.Exit(2)
	}

	// Re-create the sign-in signature; the ephemeral wallet and anything
	// stranded in it follow deterministically from it.
	msgSig, err := priv.Sign([]byte(session.SignInMessage))
	if err != nil {
		fmt.Println("failed to sign in:", err)
		os.Exit(1)
	}
	sess, err := session.New(priv.PublicKey(), msgSig[:])
	if err != nil {
		fmt.Println("failed to create session:", err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	chainClient, err := chain.NewClient(chain.ClientConfig{
		RPCURL:       cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		fmt.Println("failed to init chain client:", err)
		os.Exit(1)
	}

	r := recovery.NewRecoverer(chainClient, recovery.Config{
		FeeEstimate:    cfg.RecoveryFeeEst,
		MinFeeLamports: cfg.MinFeeLamports,
		ConfirmTimeout: cfg.ConfirmTimeout,
		SubmitRetries:  cfg.SubmitRetries,
	}, logger)

	ctx := context.Background()

	switch *mode {
	case "check":
		bal, err := r.CheckBalances(ctx, sess)
		if err != nil {
			fmt.Println("check failed:", err)
			os.Exit(1)
		}
		fmt.Printf("ephemeral=%s\n", bal.Ephemeral.String())
		fmt.Printf("  SOL %d lamports (%.9f)\n", bal.NativeLamports, tokens.FromBaseUnits(bal.NativeLamports, 9))
		for sym, amount := range bal.Tokens {
			token := tokens.BySymbol(sym)
			fmt.Printf("  %s %d (%.6f)\n", sym, amount, tokens.FromBaseUnits(amount, token.Decimals))
		}
	case "recover":
		token, err := tokens.Lookup(strings.ToUpper(strings.TrimSpace(*symbol)))
		if err != nil {
			fmt.Println("invalid -token:", err)
			os.Exit(2)
		}
		var (
			sig    string
			amount uint64
		)
		if token.IsNative() {
			sig, amount, err = r.RecoverNative(ctx, sess)
		} else {
			sig, amount, err = r.RecoverToken(ctx, sess, token)
		}
		if err != nil {
			fmt.Println("recover failed:", err)
			os.Exit(1)
		}
		fmt.Printf("recovered %d %s sig=%s\n", amount, token.Symbol, sig)
	default:
		fmt.Println("invalid -mode (use check|recover)")
		os.Exit(2)
	}
}
