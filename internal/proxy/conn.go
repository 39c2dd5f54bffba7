package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/mcluseau/kingress/internal/backend"
	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/http1"
)

// forwardedDrop is the set of inbound headers the connection handler
// never passes through verbatim, since it synthesizes its own versions of
// them from the accepted connection's own remote address and protocol.
var forwardedDrop = map[string]bool{
	"forwarded":         true,
	"x-forwarded-for":   true,
	"x-forwarded-proto": true,
	"x-forwarded-host":  true,
}

// carry is the backend connection optionally reused across a keep-alive
// connection's requests, along with the endpoint it was dialed for.
type carry struct {
	ep   endpoint.Endpoint
	conn *backend.Conn
	have bool
}

// handleConn drives the HTTP/1 per-connection state machine: peek for
// bytes, parse one request, route it, proxy it to a backend, and loop
// while both sides agree the connection is reusable.
func (s *Server) handleConn(conn net.Conn, proto string) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	rd := http1.NewReader(conn, connBudgetBytes)

	var c carry
	defer func() {
		if c.have {
			backend.Shutdown(c.conn, false)
		}
	}()

	for {
		rd.Reset()

		if _, err := rd.Peek(1); err != nil {
			return
		}

		if !s.serveOne(conn, rd, remote, proto, &c) {
			return
		}
	}
}

// serveOne parses and proxies exactly one request. It returns whether the
// client connection may be reused for a subsequent request.
func (s *Server) serveOne(conn net.Conn, rd *http1.Reader, remote, proto string, c *carry) bool {
	reqLine, err := rd.ReadRequestLine(requestLineBudgetBytes)
	if err != nil {
		if errors.Is(err, http1.ErrLimitReached) {
			writeSimple(conn, 414, "URI Too Long", "")
		} else {
			writeSimple(conn, 400, "Bad Request", "")
		}
		return false
	}

	hostName, err := rd.ReadHeaderName()
	if err != nil {
		writeSimple(conn, 400, "Bad Request", "")
		return false
	}
	if hostName.EndOfHeader || !strings.EqualFold(hostName.Name, "Host") {
		writeSimple(conn, 400, "Bad Request", "")
		return false
	}
	hostValue, err := rd.ReadHeaderValue(hostHeaderBudgetBytes)
	if err != nil {
		if errors.Is(err, http1.ErrLimitReached) {
			writeSimple(conn, 413, "Content Too Large", "")
		} else {
			writeSimple(conn, 400, "Bad Request", "")
		}
		return false
	}
	hostRaw := string(hostValue)
	host := normalizeHost(hostRaw)
	path := routingPath(reqLine.Path)

	hc, ok := s.Hosts.Host(host)
	if !ok {
		writeSimple(conn, 404, "Not Found", "Unknown host")
		return false
	}

	ep, ok := hc.EndpointFor(path)
	if !ok {
		writeSimple(conn, 503, "Service Unavailable", "")
		return false
	}

	if ep.Opts.SSLRedirect && proto != "https" {
		writeRedirect(conn, "https://"+host+reqLine.Path)
		return false
	}

	out := http1.NewWriter(512)
	out.RequestLine(reqLine.Method, reqLine.Path, reqLine.Proto)
	out.Header("Host", hostRaw)
	out.Header("Forwarded", `for="`+remote+`";proto=`+proto+`;host=`+host)
	out.Header("X-Forwarded-For", remote)
	out.Header("X-Forwarded-Proto", proto)
	out.Header("X-Forwarded-Host", host)

	var summary http1.HeaderSummary
	if err := summary.Observe("host", hostValue); err != nil {
		writeSimple(conn, 400, "Bad Request", "")
		return false
	}

	for {
		hn, err := rd.ReadHeaderName()
		if err != nil {
			s.Log.Debug("client header read failed", map[string]any{"remote": remote, "err": err.Error()})
			return false
		}
		if hn.EndOfHeader {
			out.CRLF()
			break
		}
		val, err := rd.ReadHeaderValue(headerLineBudgetBytes)
		if err != nil {
			if errors.Is(err, http1.ErrLimitReached) {
				writeSimple(conn, 413, "Content Too Large", "")
			} else {
				writeSimple(conn, 400, "Bad Request", "")
			}
			return false
		}
		if !http1.ValidHeaderName(hn.Name) || !http1.ValidHeaderValue(string(val)) {
			writeSimple(conn, 400, "Bad Request", "")
			return false
		}
		if err := summary.Observe(hn.Name, val); err != nil {
			writeSimple(conn, 400, "Bad Request", "")
			return false
		}
		if forwardedDrop[strings.ToLower(hn.Name)] {
			continue
		}
		out.Header(hn.Name, string(val))
	}

	reqBodyLen := http1.RequestBodyLength(reqLine.Method, summary)

	reuseBackend := c.have && c.ep.Equal(ep)
	var bc *backend.Conn
	if reuseBackend {
		bc = c.conn
	} else {
		if c.have {
			backend.Shutdown(c.conn, false)
			c.have = false
		}
		dialed, err := backend.Dial(context.Background(), s.Resolve, ep, "http/1.1")
		if err != nil {
			if errors.Is(err, backend.ErrLookupFailed) {
				writeSimple(conn, 503, "Service Unavailable", "")
			} else {
				writeSimple(conn, 502, "Bad Gateway", "")
			}
			return false
		}
		bc = dialed
	}

	if _, err := bc.Write(out.Bytes()); err != nil {
		backend.Shutdown(bc, false)
		c.have = false
		return false
	}

	type streamResult struct {
		isResponse bool
		err        error
		bodyLen    *uint64
	}
	results := make(chan streamResult, 2)

	go func() {
		err := streamBody(bc, rd.Raw(), reqBodyLen)
		results <- streamResult{err: err}
	}()
	go func() {
		bodyLen, err := copyResponse(conn, bc)
		results <- streamResult{isResponse: true, err: err, bodyLen: bodyLen}
	}()

	var reqErr, respErr error
	var respBodyLen *uint64
	for i := 0; i < 2; i++ {
		r := <-results
		if r.isResponse {
			respErr, respBodyLen = r.err, r.bodyLen
		} else {
			reqErr = r.err
		}
	}

	clientReusable := reqErr == nil && respErr == nil && reqBodyLen != nil
	backendReusable := clientReusable && respBodyLen != nil

	if backendReusable {
		c.ep, c.conn, c.have = ep, bc, true
	} else {
		backend.Shutdown(bc, backendReusable)
		c.have = false
	}

	return clientReusable
}

// streamBody copies exactly n bytes from src to dst, or until src returns
// EOF/closes if n is nil (unknown length, per the request-body framing
// rules).
func streamBody(dst io.Writer, src io.Reader, n *uint64) error {
	if n == nil {
		_, err := io.Copy(dst, src)
		return err
	}
	if *n == 0 {
		return nil
	}
	_, err := io.CopyN(dst, src, int64(*n))
	return err
}

// copyResponse parses the backend's status line and headers through a
// tee'd reader that forwards every byte it reads to client as a side
// effect of the read itself, so the body phase below only needs to drain
// (not re-copy) whatever it reads next.
func copyResponse(client net.Conn, bc *backend.Conn) (*uint64, error) {
	tee := io.TeeReader(bc, client)
	rd := http1.NewReader(tee, 0)

	status, err := rd.ReadStatusLine(requestLineBudgetBytes)
	if err != nil {
		return nil, err
	}

	var summary http1.HeaderSummary
	for {
		hn, err := rd.ReadHeaderName()
		if err != nil {
			return nil, err
		}
		if hn.EndOfHeader {
			break
		}
		val, err := rd.ReadHeaderValue(headerLineBudgetBytes)
		if err != nil {
			return nil, err
		}
		if !http1.ValidHeaderName(hn.Name) || !http1.ValidHeaderValue(string(val)) {
			// The bytes are already forwarded to the client via tee by
			// this point, so there's no status line left to replace with
			// an error reply; ending the response is all that's left.
			return nil, http1.ErrInvalidInput
		}
		if err := summary.Observe(hn.Name, val); err != nil {
			return nil, err
		}
	}

	bodyLen := http1.ResponseBodyLength(status.StatusCode, summary)
	if bodyLen == nil {
		_, err := io.Copy(io.Discard, rd.Raw())
		return nil, err
	}
	if *bodyLen > 0 {
		if _, err := io.CopyN(io.Discard, rd.Raw(), int64(*bodyLen)); err != nil {
			return bodyLen, err
		}
	}
	return bodyLen, nil
}
