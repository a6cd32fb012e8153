package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/config"
	"github.com/circuitx-labs/privacy-swap/internal/privacypool"
	"github.com/circuitx-labs/privacy-swap/internal/sender"
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

	mode := flag.String("mode", "shield", "shield | unshield")
	symbol := flag.String("token", "SOL", "token symbol (e.g. SOL)")
	amt := flag.Float64("amt", 0, "amount in human units (e.g. 0.1)")
	to := flag.String("to", "", "recipient address (unshield mode)")
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
	if cfg.PoolRelayerURL == "" {
		fmt.Println("POOL_RELAYER_URL is required")
		os.Exit(1)
	}

	token, err := tokens.Lookup(*symbol)
	if err != nil {
		fmt.Println("invalid -token:", err)
		os.Exit(2)
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

	svc := sender.NewService(privacypool.NewClient(cfg.PoolRelayerURL), logger)
	ctx := context.Background()

	switch *mode {
	case "shield":
		receipt, err := svc.Shield(ctx, sess, wallet.NewKeypairSigner(priv), token, *amt)
		if err != nil {
			fmt.Println("shield failed:", err)
			os.Exit(1)
		}
		fmt.Printf("shielded %d %s sig=%s\n", receipt.AmountBase, receipt.Token, receipt.Signature)
	case "unshield":
		if *to == "" {
			fmt.Println("missing -to (recipient address)")
			os.Exit(2)
		}
		recipient, err := solana.PublicKeyFromBase58(*to)
		if err != nil {
			fmt.Println("invalid -to:", err)
			os.Exit(2)
		}
		receipt, err := svc.Unshield(ctx, sess, token, *amt, recipient)
		if err != nil {
			fmt.Println("unshield failed:", err)
			os.Exit(1)
		}
		fmt.Printf("unshielded %d %s to %s sig=%s\n", receipt.AmountBase, receipt.Token, receipt.Recipient, receipt.Signature)
	default:
		fmt.Println("invalid -mode (use shield|unshield)")
		os.Exit(2)
	}
}
