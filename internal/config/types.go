// Package config assembles the live Hosts snapshot from Kubernetes object
// streams: it folds Init/InitApply/InitDone/Apply/Delete events for
// ingress-like rules and TLS secrets (and, when the chosen resolver variant
// needs it, services and endpoint slices) into per-kind maps, and rebuilds
// the published snapshot once every stream has reached its first InitDone.
package config

import (
	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/hostconfig"
)

// PathType mirrors the three Kubernetes Ingress path-match kinds plus the
// synthesized "any" case used when a rule carries no path at all.
type PathType int

const (
	PathExact PathType = iota
	PathPrefix
	PathImplementationSpecific
	PathAny
)

// Match is one rule.http.paths[] entry, reduced to what the assembler needs.
type Match struct {
	Type    PathType
	Path    string
	Service string
	Port    endpoint.PortRef
}

// ParsedIngress is one ingress-like object reduced to the fields the
// assembler folds into a HostConfig: the virtual host it targets, the TLS
// secret it names (if any), the endpoint options derived once from its
// annotations, and its path rules.
type ParsedIngress struct {
	Namespace string
	Host      string
	TLSSecret *hostconfig.ObjectKey
	Opts      endpoint.Options
	Matches   []Match
}

// TLSData is a secret's raw, still-PEM-encoded key material, keyed by the
// same ObjectKey an ingress's TLSSecret field names.
type TLSData struct {
	CertPEM []byte
	KeyPEM  []byte
}
