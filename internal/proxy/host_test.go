package proxy

import "testing"

func TestNormalizeHost(t *testing.T) {
	cases := map[string]string{
		"Example.COM":     "example.com",
		"example.com:443": "example.com",
		"  example.com  ": "example.com",
		"":                "",
	}
	for in, want := range cases {
		if got := normalizeHost(in); got != want {
			t.Errorf("normalizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoutingPath(t *testing.T) {
	cases := map[string]string{
		"/foo":           "/foo",
		"/foo?a=1":       "/foo",
		"/":              "/",
		"/a/b/c?x=y&z=1": "/a/b/c",
	}
	for in, want := range cases {
		if got := routingPath(in); got != want {
			t.Errorf("routingPath(%q) = %q, want %q", in, got, want)
		}
	}
}
