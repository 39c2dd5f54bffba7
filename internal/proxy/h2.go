package proxy

import (
	"context"
	"crypto/tls"
	"io"
	"net"

	"github.com/mcluseau/kingress/internal/backend"
)

// handleTLSConn completes the TLS handshake on raw and dispatches either to
// the opaque h2 forward path or the HTTP/1 state machine, depending on the
// negotiated ALPN protocol.
func (s *Server) handleTLSConn(raw net.Conn, tlsConf *tls.Config) {
	tlsConn := tls.Server(raw, tlsConf)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		s.Log.Debug("tls handshake failed", map[string]any{
			"remote": raw.RemoteAddr().String(),
			"err":    err.Error(),
		})
		tlsConn.Close()
		return
	}

	if tlsConn.ConnectionState().NegotiatedProtocol == "h2" {
		s.handleH2(tlsConn)
		return
	}
	s.handleConn(tlsConn, "https")
}

// handleH2 implements the opaque h2 forward path: re-derive the routed host
// from the handshake's server_name, take its any_match endpoint, dial the
// backend with ALPN h2, and copy bytes in both directions without
// inspecting HTTP/2 framing at all.
func (s *Server) handleH2(tlsConn *tls.Conn) {
	defer tlsConn.Close()

	host := normalizeHost(tlsConn.ConnectionState().ServerName)
	hc, ok := s.Hosts.Host(host)
	if !ok || hc.AnyMatch == nil {
		s.Log.Debug("h2 forward: no any_match route", map[string]any{"host": host})
		return
	}

	bc, err := backend.Dial(context.Background(), s.Resolve, *hc.AnyMatch, "h2")
	if err != nil {
		s.Log.Debug("h2 forward: backend dial failed", map[string]any{"host": host, "err": err.Error()})
		return
	}
	defer backend.Shutdown(bc, false)

	done := make(chan struct{}, 2)
	go func() { io.Copy(bc, tlsConn); done <- struct{}{} }()
	go func() { io.Copy(tlsConn, bc); done <- struct{}{} }()
	<-done
	<-done
}
