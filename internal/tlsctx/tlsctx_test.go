package tlsctx

import (
	"crypto/tls"
	"testing"

	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/hostconfig"
)

func snapshotWithHost(name string, hc *hostconfig.HostConfig) *hostconfig.Snapshot {
	s := hostconfig.NewSnapshot()
	s.Publish(hostconfig.Hosts{name: hc})
	return s
}

func TestHostForNoServerName(t *testing.T) {
	c := New(hostconfig.NewSnapshot())
	if _, err := c.hostFor(""); err != ErrNoServerName {
		t.Fatalf("got %v, want ErrNoServerName", err)
	}
}

func TestHostForUnknownHost(t *testing.T) {
	c := New(hostconfig.NewSnapshot())
	if _, err := c.hostFor("example.com"); err != ErrUnknownHost {
		t.Fatalf("got %v, want ErrUnknownHost", err)
	}
}

func TestHostForNoCertificate(t *testing.T) {
	hc := hostconfig.NewHostConfig()
	c := New(snapshotWithHost("example.com", hc))
	if _, err := c.hostFor("Example.COM"); err != ErrNoCertificate {
		t.Fatalf("got %v (SNI normalization + no-cert path), want ErrNoCertificate", err)
	}
}

func TestGetConfigForClientALPNSelection(t *testing.T) {
	hc := hostconfig.NewHostConfig()
	hc.TLSKeyCert = &hostconfig.CertifiedKey{Cert: tls.Certificate{}}
	any := endpoint.Endpoint{Service: "svc", Port: endpoint.Number(80), Opts: endpoint.Options{SecureBackends: true, HTTP2: true}}
	hc.AnyMatch = &any

	c := New(snapshotWithHost("example.com", hc))
	cfg, err := c.getConfigForClient(&tls.ClientHelloInfo{ServerName: "example.com"})
	if err != nil {
		t.Fatalf("getConfigForClient: %v", err)
	}
	if len(cfg.NextProtos) != 2 || cfg.NextProtos[0] != "h2" {
		t.Fatalf("NextProtos = %v, want [h2 http/1.1] for an h2-ready host", cfg.NextProtos)
	}
}

func TestGetConfigForClientHTTP1Only(t *testing.T) {
	hc := hostconfig.NewHostConfig()
	hc.TLSKeyCert = &hostconfig.CertifiedKey{Cert: tls.Certificate{}}
	any := endpoint.Endpoint{Service: "svc", Port: endpoint.Number(80)}
	hc.AnyMatch = &any

	c := New(snapshotWithHost("example.com", hc))
	cfg, err := c.getConfigForClient(&tls.ClientHelloInfo{ServerName: "example.com"})
	if err != nil {
		t.Fatalf("getConfigForClient: %v", err)
	}
	if len(cfg.NextProtos) != 1 || cfg.NextProtos[0] != "http/1.1" {
		t.Fatalf("NextProtos = %v, want [http/1.1] for a non-h2-ready host", cfg.NextProtos)
	}
}
