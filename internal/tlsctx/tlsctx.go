// Package tlsctx builds the single server-side tls.Config used by the
// HTTPS listener: certificate selection by SNI and protocol negotiation by
// ALPN, both driven by whatever Hosts snapshot is current at handshake
// time rather than anything configured statically ahead of time.
package tlsctx

import (
	"crypto/tls"
	"errors"

	"github.com/mcluseau/kingress/internal/hostconfig"
	"github.com/mcluseau/kingress/internal/logging"
)

var (
	// ErrNoServerName is returned (and turns into a handshake alert) when a
	// client completes TLS without sending SNI.
	ErrNoServerName = errors.New("tlsctx: no server name in client hello")
	// ErrUnknownHost is returned when the SNI name isn't in the current
	// Hosts snapshot.
	ErrUnknownHost = errors.New("tlsctx: unknown host")
	// ErrNoCertificate is returned when the matched host has no attached
	// certificate/key pair.
	ErrNoCertificate = errors.New("tlsctx: host has no certificate")
)

// Context builds *tls.Config instances whose GetCertificate and
// GetConfigForClient callbacks consult snapshot on every handshake.
type Context struct {
	snapshot *hostconfig.Snapshot
	log      *logging.Logger

	// MinVersion defaults to TLS 1.2; no legacy cipher suite list is
	// needed since crypto/tls already restricts TLS 1.3 cipher
	// negotiation and we don't override CipherSuites for 1.2 beyond the
	// stdlib's own secure default order.
	MinVersion uint16
}

// New returns a Context reading from snapshot.
func New(snapshot *hostconfig.Snapshot) *Context {
	return &Context{
		snapshot:   snapshot,
		log:        logging.New("tlsctx"),
		MinVersion: tls.VersionTLS12,
	}
}

// Build returns the tls.Config to hand to tls.NewListener / tls.Server.
// GetConfigForClient is set (rather than a static NextProtos) so ALPN
// advertisement can depend on whether the matched host is h2-ready.
func (c *Context) Build() *tls.Config {
	return &tls.Config{
		MinVersion:         c.MinVersion,
		GetConfigForClient: c.getConfigForClient,
	}
}

func (c *Context) getConfigForClient(hello *tls.ClientHelloInfo) (*tls.Config, error) {
	host, err := c.hostFor(hello.ServerName)
	if err != nil {
		c.log.Debug("handshake rejected", map[string]any{"error": err.Error(), "server_name": hello.ServerName})
		return nil, err
	}

	protos := []string{"http/1.1"}
	if host.IsH2Ready() {
		protos = []string{"h2", "http/1.1"}
	}

	return &tls.Config{
		MinVersion: c.MinVersion,
		NextProtos: protos,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			if host.TLSKeyCert == nil {
				return nil, ErrNoCertificate
			}
			return &host.TLSKeyCert.Cert, nil
		},
	}, nil
}

func (c *Context) hostFor(serverName string) (*hostconfig.HostConfig, error) {
	if serverName == "" {
		return nil, ErrNoServerName
	}
	host, ok := c.snapshot.Host(normalizeSNI(serverName))
	if !ok {
		return nil, ErrUnknownHost
	}
	if host.TLSKeyCert == nil {
		return nil, ErrNoCertificate
	}
	return host, nil
}

func normalizeSNI(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
