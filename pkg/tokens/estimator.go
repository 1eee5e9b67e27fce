// Package tokens provides the character-based token and cost heuristic
// used for usage metering. The gateway never parses provider wire
// formats, so token counts are estimated from raw body size: roughly
// four bytes per token, with output tokens unknown and counted as zero.
package tokens

// Heuristic constants. The flat per-token price stands in for real
// per-model pricing until response usage data is parsed.
const (
	// DefaultCharsPerToken is the byte-to-token divisor.
	DefaultCharsPerToken = 4

	// DefaultUnitPrice is the flat USD price per token.
	DefaultUnitPrice = 0.000002
)

// Estimator converts request body sizes into token and cost estimates.
// The zero value is not usable; construct with NewEstimator.
type Estimator struct {
	charsPerToken int
	unitPrice     float64
}

// NewEstimator returns an estimator with the default heuristic.
func NewEstimator() *Estimator {
	return &Estimator{
		charsPerToken: DefaultCharsPerToken,
		unitPrice:     DefaultUnitPrice,
	}
}

// EstimateBody estimates input tokens for a request body of the given
// size in bytes. The division truncates, matching the persisted format
// consumers already expect.
func (e *Estimator) EstimateBody(size int) int {
	if size <= 0 {
		return 0
	}
	return size / e.charsPerToken
}

// Cost returns the estimated USD cost for a token count pair.
func (e *Estimator) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens+outputTokens) * e.unitPrice
}
