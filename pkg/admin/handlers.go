package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"vibehub/gateway/pkg/config"
	"vibehub/gateway/pkg/scanner"
	"vibehub/gateway/pkg/stats"
)

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetConfig returns the current gateway document.
func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Get())
}

// handlePutConfig replaces the gateway document. The document is
// persisted before it takes effect; on failure the previous document
// stays live and the error is returned to the caller.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.GatewayConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config document: "+err.Error())
		return
	}

	if err := s.store.Replace(cfg); err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("gateway config replaced",
		"providers", len(cfg.Providers),
		"enabled", cfg.Enabled,
		"fallback_enabled", cfg.FallbackEnabled,
	)
	writeJSON(w, http.StatusOK, s.store.Get())
}

// handleStats returns the usage aggregate.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// handleHistoryRecent returns archived request logs, newest first. An
// optional limit query parameter caps the result; it defaults to the
// recency ring size.
func (s *Server) handleHistoryRecent(w http.ResponseWriter, r *http.Request) {
	limit := stats.RecentRequestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := s.archive.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query request history")
		return
	}
	if logs == nil {
		logs = []stats.RequestLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// handleUpdateCheck queries the release feed for a newer version.
func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	result, err := s.updates.Check(r.Context())
	if err != nil {
		slog.Error("update check failed", "error", err)
		writeError(w, http.StatusBadGateway, "update check failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type scanRequest struct {
	Root string `json:"root"`
}

// handleScan discovers projects under the requested workspace root.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan request: "+err.Error())
		return
	}
	if req.Root == "" {
		writeError(w, http.StatusBadRequest, "root is required")
		return
	}

	projects, err := scanner.Scan(req.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if projects == nil {
		projects = []scanner.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}
