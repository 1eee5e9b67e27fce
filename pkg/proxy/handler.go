package proxy

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vibehub/gateway/pkg/config"
	"vibehub/gateway/pkg/stats"
)

// Response texts for requests the gateway answers itself.
const (
	msgGatewayDisabled = "Gateway is disabled"
	msgBodyReadFailed  = "Failed to read body"
	msgNoProviders     = "No active providers"
	msgAllFailed       = "All providers failed"
)

// anthropicVersion is the fixed API version header sent to
// Claude-family providers alongside the x-api-key credential.
const anthropicVersion = "2023-06-01"

// Attempt outcomes for metrics.
const (
	outcomeForwarded      = "forwarded"
	outcomeFallback       = "fallback"
	outcomeTransportError = "transport_error"
)

// handleProxy runs the fallback loop for one inbound request. The
// request body is buffered in full so the same body can be retried
// against multiple candidates; very large uploads are bounded only by
// memory, an accepted limitation for this gateway's workloads.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cfg := s.store.Get()

	if !cfg.Enabled {
		http.Error(w, msgGatewayDisabled, http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, msgBodyReadFailed, http.StatusBadRequest)
		return
	}

	path := r.URL.Path
	kind, classified := ClassifyPath(path)
	candidates := selectCandidates(cfg.Providers, kind, classified)
	if len(candidates) == 0 {
		http.Error(w, msgNoProviders, http.StatusServiceUnavailable)
		return
	}

	userAgent := r.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}
	inputTokens := s.estimator.EstimateBody(len(body))

	for i, provider := range candidates {
		last := i == len(candidates)-1

		s.notifier.Publish(StatusEvent{ProviderID: provider.ID, Status: StatusPending})

		resp, release, err := s.forward(r, provider, body)
		if err != nil {
			s.notifier.Publish(StatusEvent{ProviderID: provider.ID, Status: StatusError})
			s.record(provider, http.StatusBadGateway, start, path, userAgent, 0, 0)
			s.observe(provider, http.StatusBadGateway, outcomeTransportError, start)

			if cfg.FallbackEnabled && !last {
				slog.Warn("provider unreachable, trying next candidate",
					"provider", provider.Name,
					"error", err,
				)
				continue
			}
			http.Error(w, "Provider failed: "+err.Error(), http.StatusBadGateway)
			return
		}

		if fallbackEligible(resp.StatusCode) && cfg.FallbackEnabled && !last {
			resp.Body.Close()
			release()

			s.notifier.Publish(StatusEvent{ProviderID: provider.ID, Status: StatusError})
			s.record(provider, resp.StatusCode, start, path, userAgent, inputTokens, 0)
			s.observe(provider, resp.StatusCode, outcomeFallback, start)

			slog.Warn("provider rejected request, trying next candidate",
				"provider", provider.Name,
				"status", resp.StatusCode,
			)
			continue
		}

		// Accepted: even a non-2xx status is passed through verbatim
		// when it is not fallback-eligible, fallback is disabled, or
		// this was the last candidate.
		s.notifier.Publish(StatusEvent{ProviderID: provider.ID, Status: StatusSuccess})
		cost := s.estimator.Cost(inputTokens, 0)
		s.record(provider, resp.StatusCode, start, path, userAgent, inputTokens, cost)
		s.observe(provider, resp.StatusCode, outcomeForwarded, start)
		s.metrics.RecordUsage(provider.Name, inputTokens, 0, cost)

		copyResponseHeaders(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		streamBody(w, resp.Body)
		resp.Body.Close()
		release()
		return
	}

	http.Error(w, msgAllFailed, http.StatusBadGateway)
}

// forward sends the buffered request to one provider. The returned
// release func must be called once the response body is fully consumed.
// The attempt timeout covers dial through response headers only, so an
// accepted streaming response is never cut off mid-stream.
func (s *Server) forward(r *http.Request, p config.Provider, body []byte) (*http.Response, context.CancelFunc, error) {
	url := strings.TrimRight(p.BaseURL, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	ctx, cancel := context.WithCancel(r.Context())
	req, err := http.NewRequestWithContext(ctx, r.Method, url, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, nil, err
	}

	copyRequestHeaders(req.Header, r.Header)
	applyProviderAuth(req.Header, p)

	slog.Debug("forwarding request", "provider", p.Name, "url", url)

	var timer *time.Timer
	if s.attemptTimeout > 0 {
		timer = time.AfterFunc(s.attemptTimeout, cancel)
	}
	resp, err := s.client.Do(req)
	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

// fallbackEligible reports whether a provider response status should
// move the request on to the next candidate: any 5xx, or the specific
// client errors that signal a provider-side account problem rather than
// a bad request.
func fallbackEligible(status int) bool {
	if status >= 500 && status < 600 {
		return true
	}
	switch status {
	case http.StatusUnauthorized,
		http.StatusPaymentRequired,
		http.StatusForbidden,
		http.StatusGone,
		http.StatusTooManyRequests:
		return true
	}
	return false
}

// copyRequestHeaders forwards all inbound headers except the three the
// gateway owns: Host, Authorization and Content-Length.
func copyRequestHeaders(dst, src http.Header) {
	for key, values := range src {
		switch http.CanonicalHeaderKey(key) {
		case "Host", "Authorization", "Content-Length":
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// applyProviderAuth sets upstream credentials. Providers with an empty
// key are forwarded bare. Claude-family providers (name containing
// "claude" or "anthropic") additionally get Anthropic's native headers;
// this is an open per-provider-family rule set, extended case by case
// rather than generalized.
func applyProviderAuth(h http.Header, p config.Provider) {
	if p.APIKey == "" {
		return
	}
	h.Set("Authorization", "Bearer "+p.APIKey)

	name := strings.ToLower(p.Name)
	if strings.Contains(name, "claude") || strings.Contains(name, "anthropic") {
		h.Set("x-api-key", p.APIKey)
		h.Set("anthropic-version", anthropicVersion)
	}
}

// copyResponseHeaders copies the accepted upstream response headers
// verbatim.
func copyResponseHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

// streamBody copies the upstream body to the client without buffering,
// flushing after every read so server-sent event streams are delivered
// as they arrive.
func streamBody(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

// record emits one RequestLog for an attempted candidate. The model is
// always "unknown": the gateway does not parse request bodies.
func (s *Server) record(p config.Provider, status int, start time.Time, path, userAgent string, inputTokens int, cost float64) {
	s.recorder.Record(stats.RequestLog{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().Unix(),
		Provider:     p.Name,
		Model:        "unknown",
		Status:       status,
		DurationMS:   time.Since(start).Milliseconds(),
		InputTokens:  inputTokens,
		OutputTokens: 0,
		Cost:         cost,
		Path:         path,
		ClientAgent:  userAgent,
	})
}

// observe instruments one attempt.
func (s *Server) observe(p config.Provider, status int, outcome string, start time.Time) {
	s.metrics.RecordAttempt(p.Name, status, outcome, time.Since(start))
	if outcome != outcomeForwarded {
		s.metrics.RecordFallback(p.Name)
	}
}
