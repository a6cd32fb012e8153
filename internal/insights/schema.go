package insights

// privateSwapsSchemaDescription describes the ClickHouse schema used for
// NL→SQL prompting.
//
// Keep it in sync with the table created by history.Store.EnsureSchema.
const privateSwapsSchemaDescription = `
Database: circuitx
Table: private_swaps

Columns:
  - signature   String    -- Solana transaction signature of the swap leg (unique id)
  - wallet      String    -- User wallet address the swap was executed for
  - path        String    -- Routing path: "private" (from shielded balance) or "public" (round-trip through the pool)
  - token_in    String    -- Symbol of token sold, e.g. "SOL"
  - token_out   String    -- Symbol of token bought, e.g. "USDC"
  - amount_in   UInt64    -- Input amount in token base units (divide by 10^decimals for display)
  - amount_out  UInt64    -- Measured output amount in token base units
  - volume_usd  Float64   -- USD value of the output at execution time
  - executed_at DateTime  -- Completion time of the flow (UTC)

Notes:
  - For volume questions prefer SUM(volume_usd), which is already USD-normalized.
  - Time filters should use executed_at, e.g. executed_at >= now() - INTERVAL 24 HOUR.
  - COUNT(DISTINCT wallet) gives unique users.
`
