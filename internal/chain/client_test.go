package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler dispatches fake JSON-RPC responses per method and counts
// calls so tests can assert retry behavior.
type rpcHandler struct {
	mu       sync.Mutex
	calls    map[string]int
	respond  map[string]func(n int) string
	fallback string
}

func newRPCHandler() *rpcHandler {
	return &rpcHandler{
		calls:    make(map[string]int),
		respond:  make(map[string]func(n int) string),
		fallback: `{"jsonrpc":"2.0","id":1,"result":null}`,
	}
}

func (h *rpcHandler) on(method string, fn func(n int) string) {
	h.respond[method] = fn
}

func (h *rpcHandler) count(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[method]
}

func (h *rpcHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Method string `json:"method"`
	}
	_ = json.Unmarshal(body, &req)

	h.mu.Lock()
	h.calls[req.Method]++
	n := h.calls[req.Method]
	fn := h.respond[req.Method]
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fn == nil {
		_, _ = w.Write([]byte(h.fallback))
		return
	}
	_, _ = w.Write([]byte(fn(n)))
}

func newTestClient(t *testing.T, h *rpcHandler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c, err := NewClient(ClientConfig{
		RPCURL:       srv.URL,
		Timeout:      5 * time.Second,
		MaxRetries:   0,
		RetryBackoff: 10 * time.Millisecond,
		Logger:       logger,
	})
	require.NoError(t, err)
	return c, srv
}

func signedTransfer(t *testing.T) *solana.Transaction {
	from := solana.NewWallet()
	to := solana.NewWallet().PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{NewSystemTransferIx(from.PublicKey(), to, 1000)},
		solana.Hash{},
		solana.TransactionPayer(from.PublicKey()),
	)
	require.NoError(t, err)

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(from.PublicKey()) {
			return &from.PrivateKey
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func TestGetBalance(t *testing.T) {
	h := newRPCHandler()
	h.on("getBalance", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":1500000}}`
	})
	c, _ := newTestClient(t, h)

	got, err := c.GetBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1500000), got)
}

func TestGetTokenAccountBalance(t *testing.T) {
	h := newRPCHandler()
	h.on("getTokenAccountBalance", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":{"amount":"250000","decimals":6,"uiAmountString":"0.25"}}}`
	})
	c, _ := newTestClient(t, h)

	got, err := c.GetTokenAccountBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(250000), got)
}

func TestGetTokenAccountBalanceMissingAccount(t *testing.T) {
	h := newRPCHandler()
	h.on("getTokenAccountBalance", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param: could not find account"}}`
	})
	c, _ := newTestClient(t, h)

	_, err := c.GetTokenAccountBalance(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSimulateTransactionReportsProgramError(t *testing.T) {
	h := newRPCHandler()
	h.on("simulateTransaction", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":{"err":{"InstructionError":[2,{"Custom":6025}]},"logs":["Program log: failed"]}}}`
	})
	c, _ := newTestClient(t, h)

	res, err := c.SimulateTransaction(context.Background(), signedTransfer(t))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.RawErr, "6025")
	assert.Equal(t, []string{"Program log: failed"}, res.Logs)
}

func TestSimulateTransactionSuccess(t *testing.T) {
	h := newRPCHandler()
	h.on("simulateTransaction", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":{"err":null,"logs":[]}}}`
	})
	c, _ := newTestClient(t, h)

	res, err := c.SimulateTransaction(context.Background(), signedTransfer(t))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.RawErr)
}

// A confirmation wait that expires must resolve through a direct status
// poll instead of declaring failure.
func TestConfirmOrPollResolvesAfterTimeout(t *testing.T) {
	h := newRPCHandler()
	h.on("getSignatureStatuses", func(n int) string {
		if n == 1 {
			return `{"jsonrpc":"2.0","id":1,"result":{"value":[null]}}`
		}
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[{"slot":100,"confirmations":5,"confirmationStatus":"confirmed","err":null}]}}`
	})
	c, _ := newTestClient(t, h)

	err := c.ConfirmOrPoll(context.Background(), "testsig", 100*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h.count("getSignatureStatuses"), 2)
}

func TestConfirmTransactionReportsOnChainFailure(t *testing.T) {
	h := newRPCHandler()
	h.on("getSignatureStatuses", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[{"slot":100,"confirmationStatus":"confirmed","err":{"InstructionError":[0,"Custom"]}}]}}`
	})
	c, _ := newTestClient(t, h)

	err := c.ConfirmTransaction(context.Background(), "testsig", "confirmed", 2*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction failed")
}

func TestSubmitWithFreshBlockhashRetriesOnExpiry(t *testing.T) {
	h := newRPCHandler()
	h.on("getLatestBlockhash", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":{"blockhash":"11111111111111111111111111111111","lastValidBlockHeight":500}}}`
	})
	h.on("sendTransaction", func(n int) string {
		if n == 1 {
			return `{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Blockhash not found"}}`
		}
		return `{"jsonrpc":"2.0","id":1,"result":"testsig"}`
	})
	h.on("getSignatureStatuses", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":[{"slot":100,"confirmationStatus":"confirmed","err":null}]}}`
	})
	c, _ := newTestClient(t, h)

	builds := 0
	build := func(blockhash solana.Hash) (*solana.Transaction, error) {
		builds++
		return signedTransfer(t), nil
	}

	sig, err := c.SubmitWithFreshBlockhash(context.Background(), build, 3, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "testsig", sig)
	assert.Equal(t, 2, builds, "each attempt must rebuild against a fresh blockhash")
	assert.Equal(t, 2, h.count("sendTransaction"))
}

func TestSubmitWithFreshBlockhashAbortsOnOtherErrors(t *testing.T) {
	h := newRPCHandler()
	h.on("getLatestBlockhash", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"value":{"blockhash":"11111111111111111111111111111111","lastValidBlockHeight":500}}}`
	})
	h.on("sendTransaction", func(int) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32003,"message":"insufficient funds for fee"}}`
	})
	c, _ := newTestClient(t, h)

	build := func(blockhash solana.Hash) (*solana.Transaction, error) {
		return signedTransfer(t), nil
	}

	_, err := c.SubmitWithFreshBlockhash(context.Background(), build, 3, time.Second)
	require.Error(t, err)
	assert.Equal(t, 1, h.count("sendTransaction"), "non-expiry errors must not be retried")
}

func TestIsBlockhashExpired(t *testing.T) {
	assert.False(t, IsBlockhashExpired(nil))
	assert.True(t, IsBlockhashExpired(fmt.Errorf("sendTransaction error: Blockhash not found")))
	assert.True(t, IsBlockhashExpired(fmt.Errorf("block height exceeded")))
	assert.False(t, IsBlockhashExpired(fmt.Errorf("insufficient funds")))
}
