package routing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowlist_LoadsAndHasCriticalRules(t *testing.T) {
	serverRules, err := LoadAllowlist("", "server")
	require.NoError(t, err)
	require.NotEmpty(t, serverRules)

	requireAllowlistRule(t, serverRules, "/api/funding", RouteClassPublicAPI)
	requireAllowlistRule(t, serverRules, "/api/funding/ws", RouteClassWebsocket)
	requireAllowlistRule(t, serverRules, "/health", RouteClassOps)
	requireAllowlistRule(t, serverRules, "/debug/prometheus", RouteClassOps)
}

func TestClassifyPath(t *testing.T) {
	rules, err := LoadAllowlist("", "server")
	require.NoError(t, err)
	classifier := NewClassifier(rules)

	require.Equal(t, RouteClassWebsocket, classifier.ClassifyPath("/api/funding/ws"))
	require.Equal(t, RouteClassPublicAPI, classifier.ClassifyPath("/api/funding/data"))
	require.Equal(t, RouteClassOps, classifier.ClassifyPath("/health"))
	require.Equal(t, RouteClassUI, classifier.ClassifyPath("/dashboard"))
}

func TestHasPathPrefixOnBoundary(t *testing.T) {
	require.True(t, HasPathPrefixOnBoundary("/api/funding/data", "/api/funding"))
	require.True(t, HasPathPrefixOnBoundary("/api/funding", "/api/funding"))
	require.False(t, HasPathPrefixOnBoundary("/api/fundingx", "/api/funding"))
}

func requireAllowlistRule(t *testing.T, rules []AllowlistRule, prefix string, class RouteClass) {
	t.Helper()

	for _, rule := range rules {
		if rule.Prefix == prefix && rule.Class == class {
			return
		}
	}
	t.Fatalf("allowlist missing rule: %q -> %q", prefix, class)
}
