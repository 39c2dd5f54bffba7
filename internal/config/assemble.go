package config

import (
	"strings"

	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/hostconfig"
)

// buildHosts recomputes the full Hosts snapshot from the current ingress
// and secret state. It is a pure function so the routing-precedence and
// TLS-attachment rules can be tested without touching Kubernetes types or
// goroutines at all.
func buildHosts(ingresses map[hostconfig.ObjectKey]ParsedIngress, secrets map[hostconfig.ObjectKey]TLSData) hostconfig.Hosts {
	hosts := hostconfig.Hosts{}

	for _, ing := range ingresses {
		if ing.Host == "" {
			continue
		}
		hc, ok := hosts[ing.Host]
		if !ok {
			hc = hostconfig.NewHostConfig()
			hosts[ing.Host] = hc
		}

		if ing.TLSSecret != nil {
			hc.TLSSecret = ing.TLSSecret
			if data, ok := secrets[*ing.TLSSecret]; ok {
				if ck, ok := loadCertifiedKey(data); ok {
					hc.TLSKeyCert = ck
				}
			}
		}

		for _, m := range ing.Matches {
			ep := endpoint.Endpoint{Namespace: ing.Namespace, Service: m.Service, Port: m.Port, Opts: ing.Opts}
			switch classifyPath(m) {
			case PathExact:
				hc.ExactMatches[m.Path] = ep
			case PathPrefix:
				hc.PrefixMatches[m.Path] = ep
			default:
				e := ep
				hc.AnyMatch = &e
			}
		}
	}

	return hosts
}

// classifyPath re-derives the effective routing class of a match: an
// Exact match is always exact; a Prefix (or ImplementationSpecific) match
// with a non-empty, non-"/" path is a prefix match; anything else (no
// path, empty path, or "/") falls back to any_match.
func classifyPath(m Match) PathType {
	if m.Type == PathExact {
		return PathExact
	}
	if m.Path == "" || m.Path == "/" {
		return PathAny
	}
	if m.Type == PathPrefix || m.Type == PathImplementationSpecific {
		return PathPrefix
	}
	return PathAny
}

func loadCertifiedKey(data TLSData) (*hostconfig.CertifiedKey, bool) {
	cert, err := hostconfig.X509KeyPair(data.CertPEM, data.KeyPEM)
	if err != nil {
		return nil, false
	}
	return &hostconfig.CertifiedKey{Cert: cert}, true
}

// normalizeHost lowercases and trims an ingress rule's host for use as a
// Hosts snapshot key. The connection handler has its own normalizeHost
// (internal/proxy), which additionally strips a :port suffix.
func normalizeHost(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
