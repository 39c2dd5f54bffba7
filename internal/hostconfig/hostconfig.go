// Package hostconfig holds the per-host routing table and the immutable
// snapshot of all virtual hosts that the config assembler publishes and the
// connection handler reads.
package hostconfig

import (
	"crypto/tls"
	"sort"
	"strings"

	"github.com/mcluseau/kingress/internal/endpoint"
)

// ObjectKey identifies a Kubernetes object by namespace and name.
type ObjectKey struct {
	Namespace string
	Name      string
}

func (k ObjectKey) String() string { return k.Namespace + "/" + k.Name }

// CertifiedKey is a PEM-loaded private key and certificate pair, shared
// read-only among every connection that terminates TLS for a given host.
type CertifiedKey struct {
	Cert tls.Certificate
}

// X509KeyPair parses a PEM certificate and private key pair, exactly as
// they arrive in a Kubernetes TLS secret's tls.crt/tls.key data fields.
func X509KeyPair(certPEM, keyPEM []byte) (tls.Certificate, error) {
	return tls.X509KeyPair(certPEM, keyPEM)
}

// HostConfig is the routing table for a single virtual host.
//
// Invariants: at most one Endpoint per exact path (map enforces this); a
// HostConfig is h2-ready iff it carries only AnyMatch and that endpoint has
// both SecureBackends and HTTP2 set (see IsH2Ready).
type HostConfig struct {
	TLSSecret    *ObjectKey
	TLSKeyCert   *CertifiedKey
	ExactMatches map[string]endpoint.Endpoint
	// PrefixMatches is iterated in reverse lexical key order by
	// EndpointFor, which sorts the keys on every lookup.
	PrefixMatches map[string]endpoint.Endpoint
	AnyMatch      *endpoint.Endpoint
}

// NewHostConfig returns an empty, ready-to-populate HostConfig.
func NewHostConfig() *HostConfig {
	return &HostConfig{
		ExactMatches:  map[string]endpoint.Endpoint{},
		PrefixMatches: map[string]endpoint.Endpoint{},
	}
}

// IsAnyOnly reports whether the only possible route is AnyMatch.
func (h *HostConfig) IsAnyOnly() bool {
	return len(h.ExactMatches) == 0 && len(h.PrefixMatches) == 0
}

// IsH2Ready reports whether this host may negotiate ALPN h2: it must have
// no exact/prefix routes at all, and its sole AnyMatch endpoint must be a
// secure, HTTP/2-capable backend.
func (h *HostConfig) IsH2Ready() bool {
	if !h.IsAnyOnly() || h.AnyMatch == nil {
		return false
	}
	return h.AnyMatch.Opts.SecureBackends && h.AnyMatch.Opts.HTTP2
}

// sortedPrefixKeys returns PrefixMatches keys in reverse sorted order, so
// the first prefix that matches the path is also the one that should win
// (longer/later-inserted prefixes sort after shorter ones lexically in the
// common case, and reverse order is the chosen tie-break for overlapping
// prefixes).
func (h *HostConfig) sortedPrefixKeys() []string {
	keys := make([]string, 0, len(h.PrefixMatches))
	for k := range h.PrefixMatches {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

// EndpointFor routes a request path to an Endpoint: exact match first, then
// the first (in reverse-sorted order) prefix match whose key is a prefix of
// path, then the fallback AnyMatch. Returns false if nothing matches.
func (h *HostConfig) EndpointFor(path string) (endpoint.Endpoint, bool) {
	if ep, ok := h.ExactMatches[path]; ok {
		return ep, true
	}
	for _, k := range h.sortedPrefixKeys() {
		if strings.HasPrefix(path, k) {
			return h.PrefixMatches[k], true
		}
	}
	if h.AnyMatch != nil {
		return *h.AnyMatch, true
	}
	return endpoint.Endpoint{}, false
}

// HasRoute reports whether this HostConfig can ever produce a match. Every
// published HostConfig is expected to carry AnyMatch or at least one
// exact/prefix entry; this is how callers can assert that invariant.
func (h *HostConfig) HasRoute() bool {
	return h.AnyMatch != nil || len(h.ExactMatches) > 0 || len(h.PrefixMatches) > 0
}

// Hosts is the full routing table: host name (lowercased) to HostConfig.
// Values are never mutated after a Hosts value is published; see Snapshot.
type Hosts map[string]*HostConfig
