package proxy

import (
	"net"

	"github.com/mcluseau/kingress/internal/http1"
)

// writeSimple writes a minimal plain-text response and returns whatever
// error the underlying write produced (callers close the connection
// regardless, so the error is only used for logging). The body always
// carries a trailing newline, matching "<message>\n" (an empty body
// renders as a bare newline).
func writeSimple(conn net.Conn, status int, reason, body string) error {
	content := body + "\n"
	w := http1.NewWriter(128 + len(content))
	w.StatusLine(status, reason)
	w.Header("Content-Type", "text/plain; charset=utf-8")
	w.Header("Connection", "close")
	w.ContentLengthBody([]byte(content))
	_, err := conn.Write(w.Bytes())
	return err
}

// writeRedirect writes a 301 with the given Location and a short HTML
// body, per the ssl_redirect behavior: the connection is never kept alive
// across a redirect.
func writeRedirect(conn net.Conn, location string) error {
	body := "<html><head><title>Moved</title></head><body>Moved to <a href=\"" +
		location + "\">" + location + "</a></body></html>"
	w := http1.NewWriter(128 + len(body))
	w.StatusLine(301, "Moved Permanently")
	w.Header("Location", location)
	w.Header("Content-Type", "text/html; charset=utf-8")
	w.Header("Connection", "close")
	w.ContentLengthBody([]byte(body))
	_, err := conn.Write(w.Bytes())
	return err
}
