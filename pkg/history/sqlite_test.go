package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vibehub/gateway/pkg/stats"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewArchive(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewArchive() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func archivedLog(id string, ts int64) stats.RequestLog {
	return stats.RequestLog{
		ID:          id,
		Timestamp:   ts,
		Provider:    "prov",
		Model:       "unknown",
		Status:      200,
		DurationMS:  5,
		InputTokens: 3,
		Cost:        0.000006,
		Path:        "/v1/messages",
		ClientAgent: "test",
	}
}

func TestArchiveInsertAndRecent(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	for i, id := range []string{"first", "second", "third"} {
		if err := a.Insert(archivedLog(id, int64(1000+i))); err != nil {
			t.Fatalf("Insert(%s) error = %v", id, err)
		}
	}

	logs, err := a.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("got %d logs, want 3", len(logs))
	}
	// Newest first.
	if logs[0].ID != "third" || logs[2].ID != "first" {
		t.Errorf("order = %s, %s, %s, want third..first", logs[0].ID, logs[1].ID, logs[2].ID)
	}
	if logs[0].Provider != "prov" || logs[0].InputTokens != 3 {
		t.Errorf("row fields lost: %+v", logs[0])
	}
}

func TestArchiveRecentLimit(t *testing.T) {
	a := newTestArchive(t)

	for i := 0; i < 5; i++ {
		if err := a.Insert(archivedLog(string(rune('a'+i)), int64(1000+i))); err != nil {
			t.Fatal(err)
		}
	}

	logs, err := a.Recent(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Errorf("got %d logs, want limit 2", len(logs))
	}
}

func TestArchivePruneBefore(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	if err := a.Insert(archivedLog("old", old.Unix())); err != nil {
		t.Fatal(err)
	}
	if err := a.Insert(archivedLog("new", recent.Unix())); err != nil {
		t.Fatal(err)
	}

	deleted, err := a.PruneBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	logs, err := a.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].ID != "new" {
		t.Errorf("surviving logs = %+v, want only the recent one", logs)
	}
}

func TestArchiveRecordSwallowsErrors(t *testing.T) {
	a := newTestArchive(t)
	log := archivedLog("dup", 1000)

	a.Record(log)
	// Duplicate primary key: the insert fails but Record must not panic.
	a.Record(log)

	logs, err := a.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Errorf("got %d logs, want 1", len(logs))
	}
}

func TestArchiveCloseIdempotent(t *testing.T) {
	a, err := NewArchive(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestArchiveEmptyPath(t *testing.T) {
	if _, err := NewArchive(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
