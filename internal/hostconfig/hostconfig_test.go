package hostconfig

import (
	"testing"

	"github.com/mcluseau/kingress/internal/endpoint"
)

func testEP(namespace, service string, port int32) endpoint.Endpoint {
	return endpoint.Endpoint{Namespace: namespace, Service: service, Port: endpoint.Number(port)}
}

func TestEndpointForPrefersExactOverPrefixOverAny(t *testing.T) {
	h := NewHostConfig()
	h.ExactMatches["/login"] = testEP("default", "auth", 8080)
	h.PrefixMatches["/"] = testEP("default", "web", 80)
	h.PrefixMatches["/api/"] = testEP("default", "api", 8081)
	any := testEP("default", "catchall", 9090)
	h.AnyMatch = &any

	cases := []struct {
		path string
		want string
	}{
		{"/login", "default/auth"},
		{"/api/users", "default/api"},
		{"/api/", "default/api"},
		{"/", "default/web"},
		{"/anything/else", "default/web"},
	}
	for _, c := range cases {
		got, ok := h.EndpointFor(c.path)
		if !ok {
			t.Fatalf("path %q: expected a match", c.path)
		}
		if id := got.Namespace + "/" + got.Service; id != c.want {
			t.Errorf("path %q: got %q, want %q", c.path, id, c.want)
		}
	}
}

func TestEndpointForFallsBackToAnyMatch(t *testing.T) {
	h := NewHostConfig()
	any := testEP("default", "catchall", 9090)
	h.AnyMatch = &any

	got, ok := h.EndpointFor("/unrouted")
	if !ok || got.Service != "catchall" {
		t.Fatalf("expected AnyMatch fallback, got %+v ok=%v", got, ok)
	}
}

func TestEndpointForNoMatchReturnsFalse(t *testing.T) {
	h := NewHostConfig()
	if _, ok := h.EndpointFor("/nowhere"); ok {
		t.Fatal("expected no match on an empty HostConfig")
	}
}

func TestLongestPrefixWinsOnOverlap(t *testing.T) {
	h := NewHostConfig()
	h.PrefixMatches["/api/"] = testEP("default", "api", 8081)
	h.PrefixMatches["/api/v2/"] = testEP("default", "api-v2", 8082)

	got, ok := h.EndpointFor("/api/v2/users")
	if !ok || got.Service != "api-v2" {
		t.Fatalf("expected the longer, more specific prefix to win, got %+v ok=%v", got, ok)
	}

	got, ok = h.EndpointFor("/api/v1/users")
	if !ok || got.Service != "api" {
		t.Fatalf("expected the shorter prefix to win when the longer one doesn't match, got %+v ok=%v", got, ok)
	}
}

func TestIsAnyOnlyAndIsH2Ready(t *testing.T) {
	h := NewHostConfig()
	if !h.IsAnyOnly() {
		t.Fatal("an empty HostConfig should be any-only")
	}
	any := testEP("default", "svc", 443)
	any.Opts.SecureBackends = true
	any.Opts.HTTP2 = true
	h.AnyMatch = &any
	if !h.IsH2Ready() {
		t.Fatal("AnyMatch-only with secure+HTTP2 backend should be h2-ready")
	}

	h.ExactMatches["/x"] = testEP("default", "other", 80)
	if h.IsAnyOnly() || h.IsH2Ready() {
		t.Fatal("adding an exact match should disqualify AnyMatch-only and h2 readiness")
	}
}

func TestHasRoute(t *testing.T) {
	h := NewHostConfig()
	if h.HasRoute() {
		t.Fatal("empty HostConfig should report no route")
	}
	h.ExactMatches["/x"] = testEP("default", "svc", 80)
	if !h.HasRoute() {
		t.Fatal("HostConfig with an exact match should report a route")
	}
}

func TestSnapshotPublishAndLoad(t *testing.T) {
	s := NewSnapshot()
	if _, ok := s.Host("example.com"); ok {
		t.Fatal("expected no hosts in a fresh snapshot")
	}

	hc := NewHostConfig()
	any := testEP("default", "svc", 80)
	hc.AnyMatch = &any
	s.Publish(Hosts{"example.com": hc})

	got, ok := s.Host("example.com")
	if !ok || got != hc {
		t.Fatalf("expected published HostConfig to round-trip, got %+v ok=%v", got, ok)
	}
	if _, ok := s.Host("other.example.com"); ok {
		t.Fatal("expected no match for an unpublished host")
	}
}
