package http1

import "testing"

func TestWriterStatusLineAndHeaders(t *testing.T) {
	w := NewWriter(0)
	w.StatusLine(200, "OK").
		Header("Content-Type", "text/plain").
		Header("X-Request-Id", "abc123").
		CRLF()
	got := string(w.Bytes())
	want := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nX-Request-Id: abc123\r\n\r\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriterContentLengthBody(t *testing.T) {
	w := NewWriter(0)
	w.StatusLine(200, "OK").ContentLengthBody([]byte("hello"))
	got := string(w.Bytes())
	want := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWriterReset(t *testing.T) {
	w := NewWriter(0)
	w.StatusLine(500, "Internal Server Error")
	w.Reset()
	if len(w.Bytes()) != 0 {
		t.Fatalf("Reset did not clear buffer: %q", w.Bytes())
	}
}
