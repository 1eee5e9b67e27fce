// Package stats maintains the gateway's aggregate usage counters plus two
// bounded recency buffers, persisting the whole aggregate to disk after
// every recorded request.
package stats

// Capacity limits for the recency buffers.
const (
	// RecentRequestLimit caps the newest-first recent request ring.
	RecentRequestLimit = 50

	// HourlyActivityLimit caps the oldest-first hourly bucket list.
	HourlyActivityLimit = 24
)

// RequestLog is one proxied provider attempt. Every attempt produces
// exactly one log, including failed attempts that fell through to the
// next candidate.
type RequestLog struct {
	ID          string  `json:"id"`
	Timestamp   int64   `json:"timestamp"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Status      int     `json:"status"`
	DurationMS  int64   `json:"duration_ms"`
	InputTokens int     `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Cost        float64 `json:"cost"`
	Path        string  `json:"path"`
	ClientAgent string  `json:"client_agent"`
}

// HourlyStat aggregates all requests whose timestamps fall in the same
// hour-aligned bucket. Timestamp is the start of the hour in epoch
// seconds.
type HourlyStat struct {
	Timestamp    int64   `json:"timestamp"`
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// GatewayStats is the full persisted aggregate. CacheHits and
// CacheMisses are reserved for a future response cache and stay zero.
type GatewayStats struct {
	TotalRequests     uint64       `json:"total_requests"`
	TotalInputTokens  uint64       `json:"total_input_tokens"`
	TotalOutputTokens uint64       `json:"total_output_tokens"`
	TotalCost         float64      `json:"total_cost"`
	CacheHits         uint64       `json:"cache_hits"`
	CacheMisses       uint64       `json:"cache_misses"`
	RecentRequests    []RequestLog `json:"recent_requests"`
	HourlyActivity    []HourlyStat `json:"hourly_activity"`
}

// Clone returns a deep copy of the aggregate, so snapshots handed to
// callers are isolated from subsequent records.
func (s GatewayStats) Clone() GatewayStats {
	out := s
	if s.RecentRequests != nil {
		out.RecentRequests = make([]RequestLog, len(s.RecentRequests))
		copy(out.RecentRequests, s.RecentRequests)
	}
	if s.HourlyActivity != nil {
		out.HourlyActivity = make([]HourlyStat, len(s.HourlyActivity))
		copy(out.HourlyActivity, s.HourlyActivity)
	}
	return out
}

// hourBucket returns the hour-aligned bucket start for a timestamp.
func hourBucket(ts int64) int64 {
	return (ts / 3600) * 3600
}
