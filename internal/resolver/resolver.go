// Package resolver turns an Endpoint into the set of backend addresses it
// currently maps to, via one of two variants (DNS-host or cluster API),
// optionally fronted by an LRU cache with single-flight semantics per key.
package resolver

import (
	"context"
	"errors"
	"net"

	"github.com/mcluseau/kingress/internal/endpoint"
)

// ErrSymbolicPortUnsupported is returned by the DNS-host variant when asked
// to resolve an Endpoint with a symbolic (named) port: a plain DNS lookup
// has no way to map a port name to a number.
var ErrSymbolicPortUnsupported = errors.New("resolver: dns-host variant requires a numeric port")

// ErrPortNotFound is returned by the cluster-API variant when an Endpoint's
// port reference (name or number) doesn't match any of the Service's
// declared ports.
var ErrPortNotFound = errors.New("resolver: no matching service port")

// Variant resolves one Endpoint to its backend addresses, or returns an
// error if the lookup itself failed (as opposed to succeeding with zero
// addresses, which is a valid answer passed through as-is).
type Variant interface {
	Resolve(ctx context.Context, ep endpoint.Endpoint) ([]net.Addr, error)
}
