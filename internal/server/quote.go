package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/circuitx-labs/privacy-swap/internal/jupiter"
	"github.com/circuitx-labs/privacy-swap/internal/tokens"
)

// QuotePreview fetches an advisory quote for display. The returned
// values expire quickly and are never reused for execution; the
// orchestrator always re-quotes right before building the swap.
func (h *Handlers) QuotePreview(c echo.Context) error {
	if h.Jupiter == nil {
		return h.err(c, http.StatusBadRequest, "jupiter is not configured", nil)
	}

	inToken, err := tokens.Lookup(c.QueryParam("inputToken"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid inputToken", map[string]any{"inputToken": err.Error()})
	}
	outToken, err := tokens.Lookup(c.QueryParam("outputToken"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid outputToken", map[string]any{"outputToken": err.Error()})
	}
	if inToken.Mint.Equals(outToken.Mint) {
		return h.err(c, http.StatusBadRequest, "tokens must differ", nil)
	}

	amountStr := strings.TrimSpace(c.QueryParam("amount"))
	amountUI, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be a decimal"})
	}
	amountBase, err := tokens.ToBaseUnits(amountUI, inToken.Decimals)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": err.Error()})
	}

	var slippageBps *uint16
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "must be uint16"})
		}
		tmp := uint16(n)
		slippageBps = &tmp
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	out, err := h.Jupiter.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   inToken.Mint.String(),
		OutputMint:  outToken.Mint.String(),
		Amount:      strconv.FormatUint(amountBase, 10),
		SlippageBps: slippageBps,
	})
	if err != nil {
		return h.err(c, http.StatusBadGateway, "quote failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, out)
}
