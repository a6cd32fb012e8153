// Package swap sequences the multi-step private swap flow through the
// ephemeral wallet: fund, swap via the aggregator, re-shield, sweep.
package swap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/circuitx-labs/privacy-swap/internal/chain"
	"github.com/circuitx-labs/privacy-swap/internal/jupiter"
	"github.com/circuitx-labs/privacy-swap/internal/privacypool"
	"github.com/circuitx-labs/privacy-swap/internal/session"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
	"github.com/circuitx-labs/privacy-swap/internal/wallet"
)

// Step labels used in StepError and in the per-step signature report.
const (
	StepShieldInput     = "shield_input"
	StepShieldFeeBuffer = "shield_fee_buffer"
	StepWithdrawInput   = "withdraw_input"
	StepFundFees        = "fund_fees"
	StepSwap            = "swap"
	StepReshieldOutput  = "reshield_output"
	StepWithdrawOutput  = "withdraw_output"
	StepSweep           = "sweep_dust"
)

// StepSignature pairs a completed step with its transaction signature.
type StepSignature struct {
	Step      string `json:"step"`
	Signature string `json:"signature"`
}

// ChainClient is the chain surface the orchestrator needs. Satisfied by
// *chain.Client.
type ChainClient interface {
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*chain.SimulationResult, error)
	SubmitWithFreshBlockhash(ctx context.Context, build chain.TxBuilder, maxAttempts int, confirmTimeout time.Duration) (string, error)
}

// Aggregator is the swap-quoting surface. Satisfied by *jupiter.Client.
type Aggregator interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
	BuildSwap(ctx context.Context, req jupiter.SwapRequest) (*jupiter.SwapResponse, error)
	PriceUsd(ctx context.Context, mint string) (float64, error)
}

// Reporter receives the post-swap loyalty report. Failures are swallowed.
type Reporter interface {
	ReportSwap(ctx context.Context, wallet, txSignature string, volumeUsd float64) error
}

// Record is one completed swap for the history store.
type Record struct {
	Wallet      string
	Signature   string
	Path        string
	InputToken  string
	OutputToken string
	InputBase   uint64
	OutputBase  uint64
	VolumeUsd   float64
	ExecutedAt  time.Time
}

// Recorder persists completed swaps. Failures are swallowed.
type Recorder interface {
	RecordSwap(ctx context.Context, rec Record) error
}

type Config struct {
	SlippageBps       uint16
	PlatformFeeBps    uint16
	PlatformFeeWallet solana.PublicKey
	FeeBufferLamports uint64
	DustReserve       uint64
	SweepMinProfit    uint64
	ConfirmTimeout    time.Duration
	SubmitRetries     int
}

type Orchestrator struct {
	chain   ChainClient
	pool    privacypool.Pool
	agg     Aggregator
	points  Reporter // optional
	history Recorder // optional
	cfg     Config
	logger  *logrus.Logger
}

func NewOrchestrator(chainClient ChainClient, pool privacypool.Pool, agg Aggregator, points Reporter, history Recorder, cfg Config, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.SubmitRetries < 1 {
		cfg.SubmitRetries = 1
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	return &Orchestrator{
		chain:   chainClient,
		pool:    pool,
		agg:     agg,
		points:  points,
		history: history,
		cfg:     cfg,
		logger:  logger,
	}
}

// Request is one swap invocation. UserSigner authorizes the
// public-wallet legs (shielding, fee-buffer fallback) and may be nil
// when the flow never needs to touch the public wallet.
type Request struct {
	Session     *session.Session
	UserSigner  wallet.Signer
	InputToken  tokens.Token
	OutputToken tokens.Token
	AmountUI    float64
	PrivateMode bool
}

// Result reports a completed swap with its per-step signatures.
type Result struct {
	Path        Path            `json:"path"`
	InputToken  string          `json:"input_token"`
	OutputToken string          `json:"output_token"`
	InputBase   uint64          `json:"input_base_units"`
	OutputBase  uint64          `json:"output_base_units"`
	FeeFunding  FundingSource   `json:"fee_funding,omitempty"`
	Signatures  []StepSignature `json:"signatures"`
}

// Execute runs one swap end to end. Steps are strictly sequential; each
// step's confirmed outcome feeds the next. There is no mid-flow
// cancellation once funds reach the ephemeral wallet, only recovery.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Session == nil {
		return nil, session.ErrNotSignedIn
	}
	if req.InputToken.Mint.Equals(req.OutputToken.Mint) {
		return nil, ErrSameToken
	}

	amountBase, err := tokens.ToBaseUnits(req.AmountUI, req.InputToken.Decimals)
	if err != nil {
		return nil, err
	}

	ephKey, err := req.Session.EphemeralKeypair()
	if err != nil {
		return nil, fmt.Errorf("derive ephemeral wallet: %w", err)
	}

	f := &flow{
		o:          o,
		req:        req,
		amountBase: amountBase,
		ephSigner:  wallet.NewKeypairSigner(ephKey),
		ephAddr:    ephKey.PublicKey(),
	}

	// Native-asset swaps carry the fee buffer inside the funded amount,
	// so the balance requirement includes it up front.
	required := amountBase
	if req.InputToken.IsNative() {
		required += o.cfg.FeeBufferLamports
	}

	privateBase := uint64(0)
	if req.PrivateMode && o.pool != nil {
		privateBase, err = o.pool.PrivateBalance(ctx, req.Session.Wallet, req.InputToken)
		if err != nil {
			return nil, fmt.Errorf("read shielded balance: %w", err)
		}
	}
	publicBase, err := f.publicBalance(ctx, req.Session.Wallet, req.InputToken)
	if err != nil {
		return nil, fmt.Errorf("read public balance: %w", err)
	}

	path, err := choosePath(req.InputToken, privateBase, publicBase, required, req.PrivateMode, o.pool != nil)
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(logrus.Fields{
		"wallet":    req.Session.Wallet.String(),
		"ephemeral": f.ephAddr.String(),
		"path":      path,
		"input":     req.InputToken.Symbol,
		"output":    req.OutputToken.Symbol,
		"amount":    amountBase,
	}).Info("starting swap")

	switch path {
	case PathPrivate:
		return f.runPrivate(ctx)
	default:
		return f.runPublic(ctx)
	}
}

// flow carries one invocation's transient state: the derived signer and
// the signatures collected so far.
type flow struct {
	o          *Orchestrator
	req        Request
	amountBase uint64
	ephSigner  wallet.Signer
	ephAddr    solana.PublicKey

	sigs       []StepSignature
	feeFunding FundingSource
}

func (f *flow) record(step, sig string) {
	f.sigs = append(f.sigs, StepSignature{Step: step, Signature: sig})
}

func (f *flow) fail(step string, err error) error {
	return &StepError{Step: step, Signatures: f.sigs, Err: err}
}

// runPrivate swaps from an already-shielded balance:
// withdraw to ephemeral, fund fees, swap, re-shield, sweep.
func (f *flow) runPrivate(ctx context.Context) (*Result, error) {
	owner := f.req.Session.Wallet

	withdrawAmt := f.amountBase
	if f.req.InputToken.IsNative() {
		withdrawAmt += f.o.cfg.FeeBufferLamports
	}
	sig, err := f.o.pool.Withdraw(ctx, owner, f.req.InputToken, withdrawAmt, f.ephAddr)
	if err != nil {
		return nil, f.fail(StepWithdrawInput, err)
	}
	f.record(StepWithdrawInput, sig)

	if !f.req.InputToken.IsNative() {
		if err := f.fundFees(ctx); err != nil {
			return nil, err
		}
	}

	measured, swapSig, err := f.swapLeg(ctx)
	if err != nil {
		return nil, err
	}

	f.sweep(ctx)
	f.report(swapSig, PathPrivate, measured)

	return f.result(PathPrivate, measured), nil
}

// runPublic round-trips public funds through the pool: shield, withdraw
// to ephemeral, swap, re-shield, withdraw the output back out.
func (f *flow) runPublic(ctx context.Context) (*Result, error) {
	owner := f.req.Session.Wallet
	if f.req.UserSigner == nil {
		return nil, fmt.Errorf("public-balance path requires a wallet signer")
	}

	// Non-native inputs shield the fee buffer from the public wallet in a
	// second deposit. Verify the native balance is there before any funds
	// move; failing at the fee-buffer step would leave the input already
	// shielded.
	if !f.req.InputToken.IsNative() {
		lamports, err := f.o.chain.GetBalance(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("read native fee balance: %w", err)
		}
		if lamports < f.o.cfg.FeeBufferLamports {
			return nil, &InsufficientBalanceError{
				Token:     tokens.BySymbol(tokens.Native),
				Required:  f.o.cfg.FeeBufferLamports,
				Available: lamports,
			}
		}
	}

	shieldAmt := f.amountBase
	if f.req.InputToken.IsNative() {
		shieldAmt += f.o.cfg.FeeBufferLamports
	}
	sig, err := f.o.pool.Deposit(ctx, owner, f.req.InputToken, shieldAmt, f.req.UserSigner)
	if err != nil {
		return nil, f.fail(StepShieldInput, err)
	}
	f.record(StepShieldInput, sig)

	if !f.req.InputToken.IsNative() {
		// Shield the fee buffer separately so the pool can fund the
		// ephemeral wallet's fees without touching the public wallet again.
		sig, err := f.o.pool.Deposit(ctx, owner, tokens.BySymbol(tokens.Native), f.o.cfg.FeeBufferLamports, f.req.UserSigner)
		if err != nil {
			return nil, f.fail(StepShieldFeeBuffer, err)
		}
		f.record(StepShieldFeeBuffer, sig)
	}

	sig, err = f.o.pool.Withdraw(ctx, owner, f.req.InputToken, shieldAmt, f.ephAddr)
	if err != nil {
		return nil, f.fail(StepWithdrawInput, err)
	}
	f.record(StepWithdrawInput, sig)

	if !f.req.InputToken.IsNative() {
		if err := f.fundFees(ctx); err != nil {
			return nil, err
		}
	}

	measured, swapSig, err := f.swapLeg(ctx)
	if err != nil {
		return nil, err
	}

	sig, err = f.o.pool.Withdraw(ctx, owner, f.req.OutputToken, measured, owner)
	if err != nil {
		return nil, f.fail(StepWithdrawOutput, err)
	}
	f.record(StepWithdrawOutput, sig)

	f.sweep(ctx)
	f.report(swapSig, PathPublic, measured)

	return f.result(PathPublic, measured), nil
}

// fundFees tops up the ephemeral wallet's native balance to cover swap
// fees. The shielded pool is tried first; a pool with no native note to
// spend falls back to a direct transfer from the public wallet.
func (f *flow) fundFees(ctx context.Context) error {
	owner := f.req.Session.Wallet
	buffer := f.o.cfg.FeeBufferLamports
	native := tokens.BySymbol(tokens.Native)

	sig, err := f.o.pool.Withdraw(ctx, owner, native, buffer, f.ephAddr)
	if err == nil {
		f.feeFunding = FromShieldedPool
		f.record(StepFundFees, sig)
		return nil
	}
	if !errors.Is(err, privacypool.ErrNoUnspentUTXO) && !errors.Is(err, privacypool.ErrInsufficientShielded) {
		return f.fail(StepFundFees, err)
	}

	if f.req.UserSigner == nil {
		return f.fail(StepFundFees, fmt.Errorf("pool has no native note and no wallet signer is available: %w", err))
	}

	f.o.logger.WithField("ephemeral", f.ephAddr.String()).
		Info("no native note in pool, funding fees from public wallet")

	user := f.req.UserSigner.PublicKey()
	build := func(blockhash solana.Hash) (*solana.Transaction, error) {
		tx, err := solana.NewTransaction(
			[]solana.Instruction{chain.NewSystemTransferIx(user, f.ephAddr, buffer)},
			blockhash,
			solana.TransactionPayer(user),
		)
		if err != nil {
			return nil, err
		}
		if err := f.req.UserSigner.Sign(tx); err != nil {
			return nil, err
		}
		return tx, nil
	}
	sig, err = f.o.chain.SubmitWithFreshBlockhash(ctx, build, f.o.cfg.SubmitRetries, f.o.cfg.ConfirmTimeout)
	if err != nil {
		return f.fail(StepFundFees, err)
	}
	f.feeFunding = FromPublicWallet
	f.record(StepFundFees, sig)
	return nil
}

// swapLeg runs the aggregator swap from the ephemeral wallet and
// re-shields the measured proceeds. The output amount is re-read from
// the chain rather than trusted from the quote, to absorb slippage and
// fee variance.
func (f *flow) swapLeg(ctx context.Context) (uint64, string, error) {
	cfg := f.o.cfg
	in, out := f.req.InputToken, f.req.OutputToken

	before, err := f.outputBalance(ctx)
	if err != nil {
		return 0, "", f.fail(StepSwap, fmt.Errorf("read pre-swap balance: %w", err))
	}

	feeAccount, _, err := chain.FindAssociatedTokenAddress(cfg.PlatformFeeWallet, out.Mint)
	if err != nil {
		return 0, "", f.fail(StepSwap, fmt.Errorf("derive platform fee account: %w", err))
	}

	// The aggregator embeds its own blockhash, so each attempt rebuilds
	// from a fresh quote instead of patching the blockhash in place.
	// Quotes expire quickly; the preview quote is never reused here.
	simulated := false
	build := func(_ solana.Hash) (*solana.Transaction, error) {
		slippage := cfg.SlippageBps
		platformFee := cfg.PlatformFeeBps
		wrapSol := true
		quote, err := f.o.agg.Quote(ctx, jupiter.QuoteRequest{
			InputMint:      in.Mint.String(),
			OutputMint:     out.Mint.String(),
			Amount:         strconv.FormatUint(f.amountBase, 10),
			SlippageBps:    &slippage,
			PlatformFeeBps: &platformFee,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch quote: %w", err)
		}

		swapResp, err := f.o.agg.BuildSwap(ctx, jupiter.SwapRequest{
			QuoteResponse:    quote,
			UserPublicKey:    f.ephAddr.String(),
			WrapAndUnwrapSol: &wrapSol,
			FeeAccount:       feeAccount.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("build swap transaction: %w", err)
		}

		tx, err := solana.TransactionFromBase64(swapResp.SwapTransaction)
		if err != nil {
			return nil, fmt.Errorf("decode swap transaction: %w", err)
		}
		if err := f.ephSigner.Sign(tx); err != nil {
			return nil, fmt.Errorf("sign swap transaction: %w", err)
		}

		// Simulate once, before any fee is spent. Retries after a real
		// submission skip it; the first send already proved the shape.
		if !simulated {
			sim, err := f.o.chain.SimulateTransaction(ctx, tx)
			if err != nil {
				return nil, fmt.Errorf("simulate swap: %w", err)
			}
			if !sim.Success {
				return nil, &SimulationError{
					RawErr: sim.RawErr,
					Logs:   sim.Logs,
					Hint:   decodeAggregatorError(sim.RawErr),
				}
			}
			simulated = true
		}
		return tx, nil
	}

	swapSig, err := f.o.chain.SubmitWithFreshBlockhash(ctx, build, cfg.SubmitRetries, cfg.ConfirmTimeout)
	if err != nil {
		return 0, "", f.fail(StepSwap, err)
	}
	f.record(StepSwap, swapSig)

	after, err := f.outputBalance(ctx)
	if err != nil {
		return 0, "", f.fail(StepReshieldOutput, fmt.Errorf("measure swap output: %w", err))
	}
	if after <= before {
		return 0, "", f.fail(StepReshieldOutput, ErrInvalidOutputAmount)
	}
	measured := after - before

	sig, err := f.o.pool.Deposit(ctx, f.req.Session.Wallet, out, measured, f.ephSigner)
	if err != nil {
		return 0, "", f.fail(StepReshieldOutput, err)
	}
	f.record(StepReshieldOutput, sig)

	return measured, swapSig, nil
}

// sweep returns leftover native dust from the ephemeral wallet to the
// user. Failures are logged, never fatal: dust is not fund-threatening
// and must not mask a completed swap.
func (f *flow) sweep(ctx context.Context) {
	lamports, err := f.o.chain.GetBalance(ctx, f.ephAddr)
	if err != nil {
		f.o.logger.WithError(err).Warn("dust sweep skipped: balance read failed")
		return
	}
	if lamports <= f.o.cfg.DustReserve {
		return
	}
	amount := lamports - f.o.cfg.DustReserve
	if amount < f.o.cfg.SweepMinProfit {
		return
	}

	user := f.req.Session.Wallet
	build := func(blockhash solana.Hash) (*solana.Transaction, error) {
		tx, err := solana.NewTransaction(
			[]solana.Instruction{chain.NewSystemTransferIx(f.ephAddr, user, amount)},
			blockhash,
			solana.TransactionPayer(f.ephAddr),
		)
		if err != nil {
			return nil, err
		}
		if err := f.ephSigner.Sign(tx); err != nil {
			return nil, err
		}
		return tx, nil
	}
	sig, err := f.o.chain.SubmitWithFreshBlockhash(ctx, build, f.o.cfg.SubmitRetries, f.o.cfg.ConfirmTimeout)
	if err != nil {
		f.o.logger.WithError(err).WithField("lamports", amount).Warn("dust sweep failed")
		return
	}
	f.record(StepSweep, sig)
}

// report fires the loyalty and history writes in the background. Both
// are best effort and never affect the swap's reported outcome.
func (f *flow) report(swapSig string, path Path, measured uint64) {
	o := f.o
	if o.points == nil && o.history == nil {
		return
	}

	out := f.req.OutputToken
	in := f.req.InputToken
	walletAddr := f.req.Session.Wallet.String()
	inputBase := f.amountBase

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		volumeUsd := 0.0
		price, err := o.agg.PriceUsd(ctx, out.Mint.String())
		if err != nil {
			o.logger.WithError(err).Debug("price lookup failed, reporting zero volume")
		} else {
			volumeUsd = price * tokens.FromBaseUnits(measured, out.Decimals)
		}

		if o.points != nil {
			if err := o.points.ReportSwap(ctx, walletAddr, swapSig, volumeUsd); err != nil {
				o.logger.WithError(err).Warn("points report failed")
			}
		}
		if o.history != nil {
			rec := Record{
				Wallet:      walletAddr,
				Signature:   swapSig,
				Path:        string(path),
				InputToken:  in.Symbol,
				OutputToken: out.Symbol,
				InputBase:   inputBase,
				OutputBase:  measured,
				VolumeUsd:   volumeUsd,
				ExecutedAt:  time.Now().UTC(),
			}
			if err := o.history.RecordSwap(ctx, rec); err != nil {
				o.logger.WithError(err).Warn("history record failed")
			}
		}
	}()
}

func (f *flow) result(path Path, measured uint64) *Result {
	return &Result{
		Path:        path,
		InputToken:  f.req.InputToken.Symbol,
		OutputToken: f.req.OutputToken.Symbol,
		InputBase:   f.amountBase,
		OutputBase:  measured,
		FeeFunding:  f.feeFunding,
		Signatures:  f.sigs,
	}
}

// outputBalance reads the ephemeral wallet's holding of the output
// asset. A never-created token account reads as zero.
func (f *flow) outputBalance(ctx context.Context) (uint64, error) {
	return f.balanceOf(ctx, f.ephAddr, f.req.OutputToken)
}

func (f *flow) publicBalance(ctx context.Context, owner solana.PublicKey, token tokens.Token) (uint64, error) {
	return f.balanceOf(ctx, owner, token)
}

func (f *flow) balanceOf(ctx context.Context, owner solana.PublicKey, token tokens.Token) (uint64, error) {
	if token.IsNative() {
		return f.o.chain.GetBalance(ctx, owner)
	}
	ata, _, err := chain.FindAssociatedTokenAddress(owner, token.Mint)
	if err != nil {
		return 0, err
	}
	amount, err := f.o.chain.GetTokenAccountBalance(ctx, ata)
	if err != nil {
		if errors.Is(err, chain.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return amount, nil
}

// decodeAggregatorError maps known aggregator program error codes to a
// human-readable hint. Code 6025 is InvalidTokenAccount, which in this
// flow almost always means the platform fee account for the output mint
// was never initialized.
func decodeAggregatorError(rawErr string) string {
	if strings.Contains(rawErr, "6025") {
		return "platform fee token account for the output mint is not initialized"
	}
	return ""
}
