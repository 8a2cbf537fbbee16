package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

const bytesPerGB = 1_000_000_000.0
const scanCostPerTB = 5.0 // USD, on-demand BigQuery pricing

// CostTracker enforces a per-question limit on bytes scanned. Backends that
// do not report scanned bytes are never limited.
type CostTracker struct {
	maxBytes int64
}

func NewCostTracker(maxBytes int64) *CostTracker {
	return &CostTracker{maxBytes: maxBytes}
}

// CheckLimits returns false and a message if bytes exceed the limit.
// A non-positive limit disables the check.
func (ct *CostTracker) CheckLimits(bytesProcessed int64) (bool, string) {
	if ct.maxBytes <= 0 || bytesProcessed <= ct.maxBytes {
		return true, ""
	}
	processedGB := float64(bytesProcessed) / bytesPerGB
	limitGB := float64(ct.maxBytes) / bytesPerGB
	return false, fmt.Sprintf(
		"Query cost limit exceeded. Processed: %.2fGB, Limit: %.2fGB",
		processedGB, limitGB,
	)
}

// LogQueryCost logs the scan size of an executed query with hashed identifiers
func (ct *CostTracker) LogQueryCost(sql string, bytesProcessed int64, sessionID string, durationMs int64) {
	if bytesProcessed <= 0 {
		return
	}
	processedGB := float64(bytesProcessed) / bytesPerGB
	costUSD := processedGB / 1000.0 * scanCostPerTB

	log.Info().
		Str("event", "query_cost").
		Str("sql_hash", shortHash(sql)).
		Str("session_hash", shortHash(sessionID)).
		Float64("cost_gb", processedGB).
		Float64("cost_usd", costUSD).
		Int64("duration_ms", durationMs).
		Msgf("Query cost: %.4fGB ($%.4f) | Duration: %dms", processedGB, costUSD, durationMs)
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}

func shortHash(s string) string {
	return hashStr(s)[:16]
}
