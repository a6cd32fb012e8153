package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/chain"
	"github.com/circuitx-labs/privacy-swap/internal/config"
	"github.com/circuitx-labs/privacy-swap/internal/jupiter"
	"github.com/circuitx-labs/privacy-swap/internal/points"
	"github.com/circuitx-labs/privacy-swap/internal/privacypool"
	"github.com/circuitx-labs/privacy-swap/internal/session"
	"github.com/circuitx-labs/privacy-swap/internal/swap"
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

	mode := flag.String("mode", "quote", "quote | execute")
	inTok := flag.String("in", "SOL", "input token symbol (e.g. SOL)")
	outTok := flag.String("out", "USDC", "output token symbol (e.g. USDC)")
	amt := flag.Float64("amt", 0, "amount in human units (e.g. 0.1)")
	private := flag.Bool("private", true, "spend from the shielded balance when possible")
	keyStr := flag.String("key", "", "wallet private key (base58 or JSON array); falls back to WALLET_PRIVATE_KEY")
	flag.Parse()

	if *amt <= 0 {
		fmt.Println("missing -amt (must be > 0)")
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid configuration:", err)
		os.Exit(1)
	}

	inToken, err := tokens.Lookup(*inTok)
	if err != nil {
		fmt.Println("invalid -in:", err)
		os.Exit(2)
	}
	outToken, err := tokens.Lookup(*outTok)
	if err != nil {
		fmt.Println("invalid -out:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	agg := jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterPriceURL, cfg.JupiterAPIKey)

	switch *mode {
	case "quote":
		runQuote(ctx, cfg, agg, inToken, outToken, *amt)
	case "execute":
		runExecute(ctx, cfg, agg, inToken, outToken, *amt, *private, *keyStr)
	default:
		fmt.Println("invalid -mode (use quote|execute)")
		os.Exit(2)
	}
}

func runQuote(ctx context.Context, cfg *config.Config, agg *jupiter.Client, in, out tokens.Token, amt float64) {
	amountBase, err := tokens.ToBaseUnits(amt, in.Decimals)
	if err != nil {
		fmt.Println("invalid amount:", err)
		os.Exit(2)
	}

	slip := cfg.SlippageBps
	q, err := agg.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   in.Mint.String(),
		OutputMint:  out.Mint.String(),
		Amount:      strconv.FormatUint(amountBase, 10),
		SlippageBps: &slip,
	})
	if err != nil {
		fmt.Println("quote failed:", err)
		os.Exit(1)
	}

	outBase, _ := strconv.ParseUint(q.OutAmount, 10, 64)
	fmt.Printf("in=%s %s out=%s %s (%.6f %s) price_impact=%s slippage_bps=%d\n",
		q.InAmount, in.Symbol, q.OutAmount, out.Symbol,
		tokens.FromBaseUnits(outBase, out.Decimals), out.Symbol,
		q.PriceImpactPct, q.SlippageBps)
}

func runExecute(ctx context.Context, cfg *config.Config, agg *jupiter.Client, in, out tokens.Token, amt float64, private bool, keyStr string) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if keyStr == "" {
		keyStr = os.Getenv("WALLET_PRIVATE_KEY")
	}
	if keyStr == "" {
		fmt.Println("missing -key (or WALLET_PRIVATE_KEY)")
		os.Exit(2)
	}
	priv, err := wallet.ParsePrivateKey(keyStr)
	if err != nil {
		fmt.Println("invalid private key:", err)
		os.Exit(2)
	}
	userSigner := wallet.NewKeypairSigner(priv)

	// The sign-in signature seeds the ephemeral wallet, so the CLI signs
	// the fixed message locally instead of going through a wallet app.
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

	if cfg.PoolRelayerURL == "" {
		fmt.Println("POOL_RELAYER_URL is required for execute mode")
		os.Exit(1)
	}
	pool := privacypool.NewClient(cfg.PoolRelayerURL)

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

	var reporter swap.Reporter
	if cfg.PointsAPIURL != "" {
		reporter = points.NewClient(cfg.PointsAPIURL, cfg.APIKey)
	}

	feeWallet, err := solana.PublicKeyFromBase58(cfg.PlatformFeeWallet)
	if err != nil {
		fmt.Println("invalid PLATFORM_FEE_WALLET:", err)
		os.Exit(1)
	}
	feeBuffer, err := tokens.ToBaseUnits(cfg.NativeFeeBuffer, 9)
	if err != nil {
		fmt.Println("invalid NATIVE_FEE_BUFFER_SOL:", err)
		os.Exit(1)
	}

	orch := swap.NewOrchestrator(chainClient, pool, agg, reporter, nil, swap.Config{
		SlippageBps:       cfg.SlippageBps,
		PlatformFeeBps:    cfg.PlatformFeeBps,
		PlatformFeeWallet: feeWallet,
		FeeBufferLamports: feeBuffer,
		DustReserve:       cfg.DustReserve,
		SweepMinProfit:    cfg.SweepMinProfit,
		ConfirmTimeout:    cfg.ConfirmTimeout,
		SubmitRetries:     cfg.SubmitRetries,
	}, logger)

	res, err := orch.Execute(ctx, swap.Request{
		Session:     sess,
		UserSigner:  userSigner,
		InputToken:  in,
		OutputToken: out,
		AmountUI:    amt,
		PrivateMode: private,
	})
	if err != nil {
		var stepErr *swap.StepError
		if errors.As(err, &stepErr) {
			fmt.Printf("swap failed at step %s: %v\n", stepErr.Step, stepErr.Err)
			for _, s := range stepErr.Signatures {
				fmt.Printf("  completed %s sig=%s\n", s.Step, s.Signature)
			}
			fmt.Println("funds may be stranded in the ephemeral wallet; run the recover tool")
		} else {
			fmt.Println("swap failed:", err)
		}
		os.Exit(1)
	}

	fmt.Printf("path=%s in=%d %s out=%d %s fee_funding=%s\n",
		res.Path, res.InputBase, res.InputToken, res.OutputBase, res.OutputToken, res.FeeFunding)
	for _, s := range res.Signatures {
		fmt.Printf("  %s sig=%s\n", s.Step, s.Signature)
	}
}
