package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vibehub/gateway/pkg/config"
	"vibehub/gateway/pkg/history"
	"vibehub/gateway/pkg/proxy"
	"vibehub/gateway/pkg/stats"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := config.NewStore(filepath.Join(dir, "gateway_config.json"))
	if err != nil {
		t.Fatal(err)
	}
	statsManager := stats.NewManager(filepath.Join(dir, "gateway_stats.json"))
	return NewServer("127.0.0.1:0", store, statsManager, opts)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, Options{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestGetConfig(t *testing.T) {
	s := newTestServer(t, Options{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/gateway/config", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var cfg config.GatewayConfig
	if err := json.NewDecoder(w.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != config.DefaultPort {
		t.Errorf("port = %d, want default", cfg.Port)
	}
}

func TestPutConfig(t *testing.T) {
	s := newTestServer(t, Options{})

	body := `{
		"port": 8080,
		"enabled": true,
		"providers": [
			{"id": "p1", "name": "one", "base_url": "https://api.example.com", "api_key": "", "model_mapping": {}, "enabled": true}
		],
		"fallback_enabled": true
	}`
	req := httptest.NewRequest(http.MethodPut, "/api/gateway/config", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := s.store.Get(); got.Port != 8080 || len(got.Providers) != 1 {
		t.Errorf("store not updated: %+v", got)
	}
	// The replacement must be on disk too.
	onDisk, err := config.Load(s.store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if onDisk.Port != 8080 {
		t.Errorf("persisted port = %d, want 8080", onDisk.Port)
	}
}

func TestPutConfigRejectsInvalid(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{broken"},
		{"invalid document", `{"port": 0, "enabled": true, "providers": [], "fallback_enabled": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/gateway/config", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	// The default document must still be in effect.
	if got := s.store.Get(); got.Port != config.DefaultPort {
		t.Errorf("store changed after rejected replacements: %+v", got)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestServer(t, Options{})
	s.stats.Record(stats.RequestLog{ID: "a", Timestamp: 1000, Provider: "p", InputTokens: 5})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/gateway/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got stats.GatewayStats
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.TotalRequests != 1 || got.TotalInputTokens != 5 {
		t.Errorf("stats = %+v", got)
	}
}

func TestHistoryRecent(t *testing.T) {
	archive, err := history.NewArchive(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	if err := archive.Insert(stats.RequestLog{ID: "a", Timestamp: 1000, Provider: "p"}); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(t, Options{Archive: archive})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/recent", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var logs []stats.RequestLog
	if err := json.NewDecoder(w.Body).Decode(&logs); err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].ID != "a" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestHistoryRecentBadLimit(t *testing.T) {
	archive, err := history.NewArchive(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	s := newTestServer(t, Options{Archive: archive})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/recent?limit=zero", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHistoryDisabledWhenNoArchive(t *testing.T) {
	s := newTestServer(t, Options{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/recent", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when history is disabled", w.Code)
	}
}

func TestScanWorkspace(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "proj"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "proj", "go.mod"), []byte("module proj\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newTestServer(t, Options{})
	body, _ := json.Marshal(map[string]string{"root": root})
	req := httptest.NewRequest(http.MethodPost, "/api/workspaces/scan", strings.NewReader(string(body)))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var projects []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&projects); err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 || projects[0]["name"] != "proj" {
		t.Errorf("projects = %+v", projects)
	}
}

func TestScanWorkspaceMissingRoot(t *testing.T) {
	s := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/workspaces/scan", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEventBrokerDelivers(t *testing.T) {
	b := NewEventBroker()
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	event := proxy.StatusEvent{ProviderID: "p1", Status: proxy.StatusPending}
	b.Publish(event)

	select {
	case got := <-ch:
		if got != event {
			t.Errorf("got %v, want %v", got, event)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventBrokerNonBlocking(t *testing.T) {
	b := NewEventBroker()
	ch := b.subscribe()
	defer b.unsubscribe(ch)

	// Saturate the subscriber buffer and keep publishing; Publish must
	// never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Publish(proxy.StatusEvent{ProviderID: "p", Status: proxy.StatusPending})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestEventBrokerClose(t *testing.T) {
	b := NewEventBroker()
	ch := b.subscribe()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("subscriber channel not closed")
	}
	// Publishing after close must not panic.
	b.Publish(proxy.StatusEvent{ProviderID: "p", Status: proxy.StatusError})
}

func TestEventsEndpointStreams(t *testing.T) {
	s := newTestServer(t, Options{})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// Give the handler a moment to register its subscriber.
	time.Sleep(100 * time.Millisecond)
	s.Broker().Publish(proxy.StatusEvent{ProviderID: "p1", Status: proxy.StatusSuccess})

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	frame := string(buf[:n])
	if !strings.Contains(frame, "event: provider-status") {
		t.Errorf("frame missing event name: %q", frame)
	}
	if !strings.Contains(frame, `"provider_id":"p1"`) || !strings.Contains(frame, `"status":"success"`) {
		t.Errorf("frame missing payload: %q", frame)
	}
}
