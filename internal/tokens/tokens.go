package tokens

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Token describes one asset supported for private swaps.
type Token struct {
	Symbol   string
	Mint     solana.PublicKey
	Decimals uint8
	Name     string
}

// Native is the symbol of the chain's native asset.
const Native = "SOL"

// NativeDecimals is the precision of the native asset (lamports per SOL = 1e9).
const NativeDecimals uint8 = 9

// Registry holds the fixed set of supported tokens, keyed by symbol.
var Registry = map[string]Token{
	"SOL": {
		Symbol:   "SOL",
		Mint:     solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		Decimals: 9,
		Name:     "Solana",
	},
	"USDC": {
		Symbol:   "USDC",
		Mint:     solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		Decimals: 6,
		Name:     "USD Coin",
	},
	"USDT": {
		Symbol:   "USDT",
		Mint:     solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"),
		Decimals: 6,
		Name:     "Tether",
	},
	"ZEC": {
		Symbol:   "ZEC",
		Mint:     solana.MustPublicKeyFromBase58("A7bdiYdS5GjqGFtxf17ppRHtDKPkkRqbKtR27dxvQXaS"),
		Decimals: 8,
		Name:     "Zcash",
	},
	"ORE": {
		Symbol:   "ORE",
		Mint:     solana.MustPublicKeyFromBase58("oreoU2P8bN6jkk3jbaiVxYnG1dCXcYxwhwyK9jSybcp"),
		Decimals: 11,
		Name:     "ORE",
	},
	"STORE": {
		Symbol:   "STORE",
		Mint:     solana.MustPublicKeyFromBase58("sTorERYB6xAZ1SSbwpK3zoK2EEwbBrc7TZAzg1uCGiH"),
		Decimals: 11,
		Name:     "STORE",
	},
}

// Lookup returns the token for a symbol (case-insensitive).
func Lookup(symbol string) (Token, error) {
	t, ok := Registry[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Token{}, fmt.Errorf("unsupported token %q", symbol)
	}
	return t, nil
}

// BySymbol is like Lookup but panics on unknown symbols. For use with
// symbols from the registry itself.
func BySymbol(symbol string) Token {
	t, err := Lookup(symbol)
	if err != nil {
		panic(err)
	}
	return t
}

// SymbolForMint maps a mint address back to its registry symbol, if known.
func SymbolForMint(mint solana.PublicKey) (string, bool) {
	for sym, t := range Registry {
		if t.Mint.Equals(mint) {
			return sym, true
		}
	}
	return "", false
}

// Symbols returns all supported symbols, native asset first.
func Symbols() []string {
	out := []string{Native}
	for sym := range Registry {
		if sym != Native {
			out = append(out, sym)
		}
	}
	return out
}

// IsNative reports whether the token is the chain's native asset.
func (t Token) IsNative() bool {
	return t.Symbol == Native
}
