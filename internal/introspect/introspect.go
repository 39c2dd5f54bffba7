// Package introspect exposes the current routing snapshot as read-only
// JSON, for operators to inspect what the proxy currently believes the
// cluster's ingress state to be. It is a debugging aid, not part of the
// proxying data path, and carries none of its performance constraints.
package introspect

import (
	"encoding/json"
	"net/http"

	"github.com/mcluseau/kingress/internal/config"
	"github.com/mcluseau/kingress/internal/hostconfig"
)

// hostView is the JSON-safe projection of a HostConfig: TLS certificates
// and raw endpoint option bits are summarized, never the key material.
type hostView struct {
	HasTLS        bool              `json:"has_tls"`
	ExactMatches  map[string]string `json:"exact_matches"`
	PrefixMatches map[string]string `json:"prefix_matches"`
	AnyMatch      string            `json:"any_match,omitempty"`
}

func renderHost(h *hostconfig.HostConfig) hostView {
	v := hostView{
		HasTLS:        h.TLSKeyCert != nil,
		ExactMatches:  make(map[string]string, len(h.ExactMatches)),
		PrefixMatches: make(map[string]string, len(h.PrefixMatches)),
	}
	for k, ep := range h.ExactMatches {
		v.ExactMatches[k] = ep.String()
	}
	for k, ep := range h.PrefixMatches {
		v.PrefixMatches[k] = ep.String()
	}
	if h.AnyMatch != nil {
		v.AnyMatch = h.AnyMatch.String()
	}
	return v
}

// Handler serves GET /hosts (the full routing table) and GET /dns (the
// supplemental DNS view, when tracked) as JSON.
type Handler struct {
	Snapshot *hostconfig.Snapshot
	DNSViews *config.DNSViewSnapshot // nil when the resolver variant doesn't track services
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/hosts", "/":
		h.serveHosts(w, r)
	case "/dns":
		h.serveDNS(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) serveHosts(w http.ResponseWriter, r *http.Request) {
	hosts := h.Snapshot.Load()
	out := make(map[string]hostView, len(hosts))
	for name, hc := range hosts {
		out[name] = renderHost(hc)
	}
	writeJSON(w, out)
}

func (h *Handler) serveDNS(w http.ResponseWriter, r *http.Request) {
	if h.DNSViews == nil {
		writeJSON(w, map[string][]config.DNSEntry{})
		return
	}
	writeJSON(w, h.DNSViews.Load())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
