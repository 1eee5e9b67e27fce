package proxy

import (
	"strings"

	"vibehub/gateway/pkg/config"
)

// Provider kinds inferred from the request path. The kind is an informal
// preference, not a hard filter: when no provider matches the kind, all
// enabled providers become candidates.
const (
	// KindClaude marks Anthropic Messages API traffic (/v1/messages).
	KindClaude = "claude"

	// KindCodex marks OpenAI Responses API traffic (/responses).
	KindCodex = "codex"
)

// ClassifyPath infers the provider kind from the request path prefix.
// The second return value is false for unclassified paths.
func ClassifyPath(path string) (string, bool) {
	switch {
	case strings.HasPrefix(path, "/v1/messages"):
		return KindClaude, true
	case strings.HasPrefix(path, "/responses"):
		return KindCodex, true
	default:
		return "", false
	}
}

// matchesKind reports whether a provider's name or id contains the kind
// substring, case-insensitively. Substring matching is deliberate parity
// with the persisted schema, which has no explicit kind field; a
// provider named "declaude-mirror" would match "claude".
func matchesKind(p config.Provider, kind string) bool {
	return strings.Contains(strings.ToLower(p.Name), kind) ||
		strings.Contains(strings.ToLower(p.ID), kind)
}

// selectCandidates builds the ordered candidate list for a request:
// enabled providers matching the path's kind, in configured order. If
// the path is unclassified or the kind matches nothing, every enabled
// provider is a candidate.
func selectCandidates(providers []config.Provider, kind string, classified bool) []config.Provider {
	var candidates []config.Provider
	if classified {
		for _, p := range providers {
			if p.Enabled && matchesKind(p, kind) {
				candidates = append(candidates, p)
			}
		}
	}

	if len(candidates) == 0 {
		for _, p := range providers {
			if p.Enabled {
				candidates = append(candidates, p)
			}
		}
	}
	return candidates
}
