package proxy

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/hostconfig"
	"github.com/mcluseau/kingress/internal/logging"
)

type fixedResolver struct{ addr net.Addr }

func (f fixedResolver) Resolve(context.Context, endpoint.Endpoint) []net.Addr {
	if f.addr == nil {
		return nil
	}
	return []net.Addr{f.addr}
}

// fakeBackend runs a tiny hand-written HTTP/1 server good enough to drive
// the proxy's forwarding logic: it reads one request line + headers (very
// permissively) and writes back a canned response.
func fakeBackend(t *testing.T, respond func(reqLine string, headers map[string]string) string) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				br := bufio.NewReader(conn)
				for {
					reqLine, err := br.ReadString('\n')
					if err != nil {
						return
					}
					headers := map[string]string{}
					for {
						line, err := br.ReadString('\n')
						if err != nil {
							return
						}
						trimmed := strings.TrimRight(line, "\r\n")
						if trimmed == "" {
							break
						}
						parts := strings.SplitN(trimmed, ":", 2)
						if len(parts) == 2 {
							headers[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
						}
					}
					conn.Write([]byte(respond(strings.TrimRight(reqLine, "\r\n"), headers)))
				}
			}()
		}
	}()
	return ln
}

func newTestServer(hosts hostconfig.Hosts, resolver fixedResolver) *Server {
	snap := hostconfig.NewSnapshot()
	snap.Publish(hosts)
	logging.SetDefaultOutput(&discardWriter{})
	return New(snap, resolver, logging.New("test"))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func dialAndSend(t *testing.T, ln net.Listener, request string) string {
	t.Helper()
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	if _, err := conn.Write([]byte(request)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 8192)
	n, _ := conn.Read(buf)
	return string(buf[:n])
}

func TestProxyRoutesToAnyMatch(t *testing.T) {
	backendLn := fakeBackend(t, func(string, map[string]string) string {
		return "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"
	})
	defer backendLn.Close()

	hc := hostconfig.NewHostConfig()
	ep := endpoint.Endpoint{Namespace: "default", Service: "web", Port: endpoint.Number(80)}
	hc.AnyMatch = &ep
	hosts := hostconfig.Hosts{"example.com": hc}

	srv := newTestServer(hosts, fixedResolver{addr: backendLn.Addr()})

	proxyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer proxyLn.Close()
	go srv.ServePlain(proxyLn)

	resp := dialAndSend(t, proxyLn, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if !strings.Contains(resp, "200 OK") || !strings.HasSuffix(resp, "ok") {
		t.Fatalf("got %q, want a 200 response ending in \"ok\"", resp)
	}
}

func TestProxyUnknownHostIs404(t *testing.T) {
	hosts := hostconfig.Hosts{}
	srv := newTestServer(hosts, fixedResolver{})

	proxyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer proxyLn.Close()
	go srv.ServePlain(proxyLn)

	resp := dialAndSend(t, proxyLn, "GET / HTTP/1.1\r\nHost: nowhere.example\r\n\r\n")
	if !strings.Contains(resp, "404") || !strings.Contains(resp, "Unknown host") {
		t.Fatalf("got %q, want a 404 with body \"Unknown host\"", resp)
	}
}

func TestProxyMissingHostHeaderIs400(t *testing.T) {
	hosts := hostconfig.Hosts{}
	srv := newTestServer(hosts, fixedResolver{})

	proxyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer proxyLn.Close()
	go srv.ServePlain(proxyLn)

	resp := dialAndSend(t, proxyLn, "GET / HTTP/1.1\r\nUser-Agent: x\r\nHost: example.com\r\n\r\n")
	if !strings.Contains(resp, "400") {
		t.Fatalf("got %q, want a 400 when Host is not the first header", resp)
	}
}

func TestProxySSLRedirect(t *testing.T) {
	hc := hostconfig.NewHostConfig()
	ep := endpoint.Endpoint{Namespace: "default", Service: "web", Port: endpoint.Number(80), Opts: endpoint.Options{SSLRedirect: true}}
	hc.AnyMatch = &ep
	hosts := hostconfig.Hosts{"example.com": hc}

	srv := newTestServer(hosts, fixedResolver{})

	proxyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer proxyLn.Close()
	go srv.ServePlain(proxyLn)

	resp := dialAndSend(t, proxyLn, "GET /path?q=1 HTTP/1.1\r\nHost: example.com\r\n\r\n")
	if !strings.Contains(resp, "301") || !strings.Contains(resp, "Location: https://example.com/path?q=1") {
		t.Fatalf("got %q, want a 301 to https://example.com/path?q=1", resp)
	}
}

func TestProxyForwardsXForwardedHeaders(t *testing.T) {
	seen := make(chan map[string]string, 1)
	backendLn := fakeBackend(t, func(_ string, headers map[string]string) string {
		select {
		case seen <- headers:
		default:
		}
		return "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"
	})
	defer backendLn.Close()

	hc := hostconfig.NewHostConfig()
	ep := endpoint.Endpoint{Namespace: "default", Service: "web", Port: endpoint.Number(80)}
	hc.AnyMatch = &ep
	hosts := hostconfig.Hosts{"example.com": hc}

	srv := newTestServer(hosts, fixedResolver{addr: backendLn.Addr()})

	proxyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer proxyLn.Close()
	go srv.ServePlain(proxyLn)

	dialAndSend(t, proxyLn, "GET / HTTP/1.1\r\nHost: example.com\r\nX-Forwarded-For: evil\r\n\r\n")

	select {
	case headers := <-seen:
		if headers["x-forwarded-proto"] != "http" {
			t.Fatalf("got headers %v, want x-forwarded-proto: http", headers)
		}
		if headers["x-forwarded-for"] == "evil" {
			t.Fatal("client-supplied X-Forwarded-For must be overridden, not passed through")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received a request")
	}
}
