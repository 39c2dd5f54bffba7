// Package endpoint defines the abstract reference to a backend service that
// the rest of kingress routes and resolves against.
package endpoint

import "fmt"

// PortRef is either a numeric port or a symbolic port name, matching a
// Kubernetes ServicePort's "port" vs "targetPort name" duality.
type PortRef struct {
	name   string
	number int32
	named  bool
}

// Number builds a numeric PortRef.
func Number(n int32) PortRef { return PortRef{number: n} }

// Name builds a symbolic PortRef.
func Name(n string) PortRef { return PortRef{name: n, named: true} }

// IsName reports whether the port is symbolic.
func (p PortRef) IsName() bool { return p.named }

// NumberValue returns the numeric port. Only meaningful if !IsName().
func (p PortRef) NumberValue() int32 { return p.number }

// NameValue returns the port name. Only meaningful if IsName().
func (p PortRef) NameValue() string { return p.name }

func (p PortRef) String() string {
	if p.named {
		return p.name
	}
	return fmt.Sprintf("%d", p.number)
}

// Options carries the per-endpoint routing behavior parsed from ingress
// annotations.
type Options struct {
	SecureBackends bool // dial the backend with TLS
	SSLRedirect    bool // redirect plain-HTTP requests to https
	HTTP2          bool // backend is HTTP/2 capable (only meaningful with SecureBackends)
}

// Endpoint is the abstract reference to a backend: a namespaced service port
// plus the routing options that apply to it. Equality and ordering are
// structural, which is what lets it serve as both a map key and a stable
// cache key via its String rendering.
type Endpoint struct {
	Namespace string
	Service   string
	Port      PortRef
	Opts      Options
}

// String renders the canonical cache-key form: service.namespace:port.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s.%s:%s", e.Service, e.Namespace, e.Port)
}

// Equal reports full structural equality, options included: two rules that
// point at the same service port but carry different ssl-redirect/http2
// annotations are different routing targets even though they'd resolve to
// the same backend addresses.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.Namespace == o.Namespace && e.Service == o.Service && e.Port == o.Port && e.Opts == o.Opts
}
