// Package proxy is the connection handler: one accept loop per listening
// socket, one goroutine per accepted connection, driving the HTTP/1
// per-connection state machine (or, for TLS connections that negotiate
// ALPN h2, an opaque byte-for-byte forward) against a routed backend.
package proxy

import (
	"crypto/tls"
	"net"

	"github.com/mcluseau/kingress/internal/backend"
	"github.com/mcluseau/kingress/internal/hostconfig"
	"github.com/mcluseau/kingress/internal/logging"
	"github.com/mcluseau/kingress/internal/metrics"
)

const (
	// connBudgetBytes is the cumulative byte budget for one request's
	// line+header parsing, refreshed at the start of every keep-alive
	// iteration.
	connBudgetBytes        = 16 * 1024
	requestLineBudgetBytes = 8 * 1024
	hostHeaderBudgetBytes  = 512
	headerLineBudgetBytes  = 4 * 1024
)

// Server routes accepted connections against a live Hosts snapshot and
// dials backends through resolve.
type Server struct {
	Hosts   *hostconfig.Snapshot
	Resolve backend.Resolver
	Log     *logging.Logger
}

// New returns a Server ready to accept connections.
func New(hosts *hostconfig.Snapshot, resolve backend.Resolver, log *logging.Logger) *Server {
	return &Server{Hosts: hosts, Resolve: resolve, Log: log}
}

// ServePlain runs the plain-HTTP accept loop on ln. It returns when ln
// stops accepting connections (typically because it was closed).
func (s *Server) ServePlain(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		metrics.ConnectionsAccepted.WithLabelValues("http").Inc()
		go s.handleConn(conn, "http")
	}
}

// ServeTLS runs the HTTPS accept loop on ln: each connection completes its
// TLS handshake before dispatch, then branches to the opaque h2 forward
// path if ALPN negotiated h2, or the HTTP/1 state machine otherwise.
func (s *Server) ServeTLS(ln net.Listener, tlsConf *tls.Config) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			return err
		}
		metrics.ConnectionsAccepted.WithLabelValues("https").Inc()
		go s.handleTLSConn(raw, tlsConf)
	}
}
