package stats

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

// Manager owns the gateway usage aggregate. A single exclusive lock
// serializes all reads and writes; every Record rewrites the stats file
// inside the critical section. That makes persistence the throughput
// ceiling, which is acceptable for the personal-tool request volumes
// this gateway is built for.
type Manager struct {
	mu    sync.Mutex
	stats GatewayStats
	path  string
}

// NewManager loads the persisted aggregate from path, tolerating a
// missing or corrupt file by starting from zero. Unlike the gateway
// config, stats are reconstructible diagnostics, so a bad file is
// logged and discarded rather than surfaced.
func NewManager(path string) *Manager {
	m := &Manager{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read stats file, starting fresh", "path", path, "error", err)
		}
		return m
	}
	if err := json.Unmarshal(data, &m.stats); err != nil {
		slog.Warn("failed to parse stats file, starting fresh", "path", path, "error", err)
		m.stats = GatewayStats{}
	}
	return m
}

// Record folds one request log into the aggregate and persists it. The
// four running totals increment unconditionally, including for failed
// and fallback attempts. A persistence failure is logged and swallowed:
// the in-memory aggregate has already advanced and memory and disk may
// diverge until the next successful write.
func (m *Manager) Record(log RequestLog) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalRequests++
	m.stats.TotalInputTokens += uint64(log.InputTokens)
	m.stats.TotalOutputTokens += uint64(log.OutputTokens)
	m.stats.TotalCost += log.Cost

	// Newest first; drop the oldest from the tail past the cap.
	m.stats.RecentRequests = append([]RequestLog{log}, m.stats.RecentRequests...)
	if len(m.stats.RecentRequests) > RecentRequestLimit {
		m.stats.RecentRequests = m.stats.RecentRequests[:RecentRequestLimit]
	}

	m.foldHourly(log)

	m.persistLocked()
}

// foldHourly accumulates the log into the last hourly bucket when the
// timestamps share an hour-aligned bucket, otherwise appends a new
// bucket and drops the oldest from the head past the cap. Only the last
// bucket is ever merged into: an out-of-order timestamp from an older
// hour opens a fresh bucket rather than rewriting history.
func (m *Manager) foldHourly(log RequestLog) {
	bucket := hourBucket(log.Timestamp)

	if n := len(m.stats.HourlyActivity); n > 0 && m.stats.HourlyActivity[n-1].Timestamp == bucket {
		last := &m.stats.HourlyActivity[n-1]
		last.Requests++
		last.InputTokens += log.InputTokens
		last.OutputTokens += log.OutputTokens
		last.Cost += log.Cost
		return
	}

	m.stats.HourlyActivity = append(m.stats.HourlyActivity, HourlyStat{
		Timestamp:    bucket,
		Requests:     1,
		InputTokens:  log.InputTokens,
		OutputTokens: log.OutputTokens,
		Cost:         log.Cost,
	})
	if len(m.stats.HourlyActivity) > HourlyActivityLimit {
		m.stats.HourlyActivity = m.stats.HourlyActivity[len(m.stats.HourlyActivity)-HourlyActivityLimit:]
	}
}

// persistLocked rewrites the entire aggregate to disk. Callers hold mu.
func (m *Manager) persistLocked() {
	data, err := json.MarshalIndent(&m.stats, "", "  ")
	if err != nil {
		slog.Error("failed to serialize stats", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		slog.Error("failed to save stats", "path", m.path, "error", err)
	}
}

// Snapshot returns a read-only copy of the current aggregate.
func (m *Manager) Snapshot() GatewayStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.Clone()
}
