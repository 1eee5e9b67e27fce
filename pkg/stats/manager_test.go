package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "gateway_stats.json"))
}

func sampleLog(id string, ts int64) RequestLog {
	return RequestLog{
		ID:          id,
		Timestamp:   ts,
		Provider:    "test-provider",
		Model:       "unknown",
		Status:      200,
		DurationMS:  12,
		InputTokens: 10,
		Cost:        0.00002,
		Path:        "/v1/messages",
		ClientAgent: "test",
	}
}

func TestRecordIncrementsTotalsUnconditionally(t *testing.T) {
	m := newTestManager(t)

	ok := sampleLog("a", 1000)
	failed := sampleLog("b", 1001)
	failed.Status = 500

	m.Record(ok)
	m.Record(failed)

	s := m.Snapshot()
	if s.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2 (failed attempts count too)", s.TotalRequests)
	}
	if s.TotalInputTokens != 20 {
		t.Errorf("TotalInputTokens = %d, want 20", s.TotalInputTokens)
	}
	if diff := s.TotalCost - 0.00004; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("TotalCost = %v, want 0.00004", s.TotalCost)
	}
}

func TestRecentRequestsNewestFirstCapped(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < RecentRequestLimit+10; i++ {
		m.Record(sampleLog(fmt.Sprintf("req-%d", i), int64(1000+i)))
	}

	s := m.Snapshot()
	if len(s.RecentRequests) != RecentRequestLimit {
		t.Fatalf("recent length = %d, want %d", len(s.RecentRequests), RecentRequestLimit)
	}
	if s.RecentRequests[0].ID != fmt.Sprintf("req-%d", RecentRequestLimit+9) {
		t.Errorf("newest entry = %q, want the last recorded", s.RecentRequests[0].ID)
	}
	// The oldest surviving entry is the one 50 back from the newest.
	last := s.RecentRequests[RecentRequestLimit-1]
	if last.ID != "req-10" {
		t.Errorf("oldest surviving entry = %q, want req-10", last.ID)
	}
}

func TestHourlyActivityMergesSameHour(t *testing.T) {
	m := newTestManager(t)

	base := int64(7200) // exactly on an hour boundary
	m.Record(sampleLog("a", base+10))
	m.Record(sampleLog("b", base+3000))

	s := m.Snapshot()
	if len(s.HourlyActivity) != 1 {
		t.Fatalf("buckets = %d, want 1", len(s.HourlyActivity))
	}
	b := s.HourlyActivity[0]
	if b.Timestamp != base {
		t.Errorf("bucket timestamp = %d, want %d", b.Timestamp, base)
	}
	if b.Requests != 2 || b.InputTokens != 20 {
		t.Errorf("bucket = %+v, want 2 requests / 20 tokens", b)
	}
}

func TestHourlyActivityAppendsNewHour(t *testing.T) {
	m := newTestManager(t)

	m.Record(sampleLog("a", 7200))
	m.Record(sampleLog("b", 7200+3600))

	s := m.Snapshot()
	if len(s.HourlyActivity) != 2 {
		t.Fatalf("buckets = %d, want 2", len(s.HourlyActivity))
	}
	if s.HourlyActivity[0].Timestamp != 7200 || s.HourlyActivity[1].Timestamp != 10800 {
		t.Errorf("bucket timestamps = %d, %d", s.HourlyActivity[0].Timestamp, s.HourlyActivity[1].Timestamp)
	}
}

func TestHourlyActivityOnlyMergesLastBucket(t *testing.T) {
	m := newTestManager(t)

	m.Record(sampleLog("a", 7200))
	m.Record(sampleLog("b", 7200+3600))
	// Out-of-order log from the older hour opens a fresh bucket.
	m.Record(sampleLog("c", 7200+5))

	s := m.Snapshot()
	if len(s.HourlyActivity) != 3 {
		t.Fatalf("buckets = %d, want 3 (no merging into non-last buckets)", len(s.HourlyActivity))
	}
	if s.HourlyActivity[2].Timestamp != 7200 || s.HourlyActivity[2].Requests != 1 {
		t.Errorf("out-of-order bucket = %+v", s.HourlyActivity[2])
	}
}

func TestHourlyActivityCappedOldestDropped(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < HourlyActivityLimit+5; i++ {
		m.Record(sampleLog(fmt.Sprintf("r%d", i), int64(i)*3600))
	}

	s := m.Snapshot()
	if len(s.HourlyActivity) != HourlyActivityLimit {
		t.Fatalf("buckets = %d, want %d", len(s.HourlyActivity), HourlyActivityLimit)
	}
	// Oldest first: the head must be the oldest surviving bucket.
	if s.HourlyActivity[0].Timestamp != 5*3600 {
		t.Errorf("head bucket = %d, want %d", s.HourlyActivity[0].Timestamp, 5*3600)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	m := newTestManager(t)
	m.Record(sampleLog("a", 1000))

	snap := m.Snapshot()
	snap.RecentRequests[0].Provider = "mutated"
	snap.HourlyActivity[0].Requests = 999

	fresh := m.Snapshot()
	if fresh.RecentRequests[0].Provider != "test-provider" {
		t.Error("snapshot mutation leaked into manager state")
	}
	if fresh.HourlyActivity[0].Requests != 1 {
		t.Error("snapshot mutation leaked into hourly buckets")
	}
}

func TestSnapshotStableWithoutRecord(t *testing.T) {
	m := newTestManager(t)
	m.Record(sampleLog("a", 1000))

	first := m.Snapshot()
	second := m.Snapshot()

	if first.TotalRequests != second.TotalRequests ||
		first.TotalInputTokens != second.TotalInputTokens ||
		first.TotalCost != second.TotalCost ||
		len(first.RecentRequests) != len(second.RecentRequests) ||
		len(first.HourlyActivity) != len(second.HourlyActivity) {
		t.Errorf("snapshots differ without intervening record:\n%+v\n%+v", first, second)
	}
	if first.RecentRequests[0] != second.RecentRequests[0] {
		t.Error("recent entries differ between snapshots")
	}
}

func TestRecordPersistsAggregate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway_stats.json")
	m := NewManager(path)
	m.Record(sampleLog("a", 1000))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("stats file not written: %v", err)
	}
	var persisted GatewayStats
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("stats file not valid JSON: %v", err)
	}
	if persisted.TotalRequests != 1 || len(persisted.RecentRequests) != 1 {
		t.Errorf("persisted aggregate = %+v", persisted)
	}
}

func TestNewManagerLoadsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway_stats.json")
	m := NewManager(path)
	m.Record(sampleLog("a", 1000))

	reopened := NewManager(path)
	s := reopened.Snapshot()
	if s.TotalRequests != 1 {
		t.Errorf("TotalRequests after reopen = %d, want 1", s.TotalRequests)
	}
}

func TestNewManagerToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway_stats.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if got := m.Snapshot().TotalRequests; got != 0 {
		t.Errorf("TotalRequests = %d, want fresh zero state", got)
	}

	// The manager must still be able to record over the bad file.
	m.Record(sampleLog("a", 1000))
	if got := m.Snapshot().TotalRequests; got != 1 {
		t.Errorf("TotalRequests after record = %d, want 1", got)
	}
}
