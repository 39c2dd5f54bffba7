// Package backend dials the backend connection for one proxied request:
// resolve the endpoint's addresses, shuffle them, try each in turn, and
// optionally wrap the winning TCP connection in a TLS client handshake.
package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"math/rand/v2"
	"net"

	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/metrics"
)

var (
	// ErrLookupFailed means the resolver returned no usable addresses.
	ErrLookupFailed = errors.New("backend: lookup failed")
	// ErrConnectFailed means every address failed to connect (or, for a
	// secure backend, the TLS handshake failed).
	ErrConnectFailed = errors.New("backend: connect failed")
)

// Resolver is the narrow dependency backend.Dial needs: resolve an Endpoint
// to its current address set (empty slice, not an error, on a cache miss
// that resolved to nothing).
type Resolver interface {
	Resolve(ctx context.Context, ep endpoint.Endpoint) []net.Addr
}

// Conn is a dialed backend connection plus the address that was actually
// used, so callers can log or attribute metrics to it.
type Conn struct {
	net.Conn
	Addr net.Addr
}

// Dial resolves ep, shuffles its candidate addresses, and connects to the
// first one that accepts a TCP connection. If ep.Opts.SecureBackends, the
// returned connection is additionally wrapped in a TLS client handshake
// advertising alpn.
//
// Known weakness, carried over unchanged: secure backend handshakes use
// InsecureSkipVerify, since cluster-internal backend certificates are not,
// in general, signed by anything the proxy can verify against without
// additional cluster-specific trust configuration this core doesn't model.
func Dial(ctx context.Context, resolver Resolver, ep endpoint.Endpoint, alpn string) (*Conn, error) {
	addrs := resolver.Resolve(ctx, ep)
	if len(addrs) == 0 {
		metrics.BackendDialFailures.WithLabelValues("lookup_failed").Inc()
		return nil, ErrLookupFailed
	}

	shuffled := make([]net.Addr, len(addrs))
	copy(shuffled, addrs)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var dialer net.Dialer
	var lastErr error
	for _, addr := range shuffled {
		conn, err := dialer.DialContext(ctx, addr.Network(), addr.String())
		if err != nil {
			lastErr = err
			continue
		}

		if !ep.Opts.SecureBackends {
			return &Conn{Conn: conn, Addr: addr}, nil
		}

		tlsConn := tls.Client(conn, &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{alpn},
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			lastErr = err
			continue
		}
		return &Conn{Conn: tlsConn, Addr: addr}, nil
	}

	if lastErr == nil {
		lastErr = ErrConnectFailed
	}
	metrics.BackendDialFailures.WithLabelValues("connect_failed").Inc()
	return nil, errors.Join(ErrConnectFailed, lastErr)
}

// Shutdown closes c. When reusable (= no error up to this point) and the
// connection supports it, the write side is half-closed first so the peer
// sees a clean end of stream; the connection is then fully closed in
// either case.
func Shutdown(c *Conn, reusable bool) error {
	if c == nil {
		return nil
	}
	if reusable {
		if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
	}
	return c.Close()
}
