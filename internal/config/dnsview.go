package config

import (
	"net"
	"sort"
	"sync/atomic"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"

	"github.com/mcluseau/kingress/internal/hostconfig"
)

// DNSEntry is one address a service's cluster-internal name resolves to.
type DNSEntry struct {
	Addr net.IP
	// CNAME is set instead of Addr for ExternalName services.
	CNAME string
}

// DNSView is a supplemental snapshot the assembler derives from the same
// Service/EndpointSlice state the cluster-API resolver variant already
// tracks: a map from a service's cluster-internal hostname to the
// addresses (or CNAME target) it currently resolves to. Nothing in this
// proxy consumes it to reconfigure an actual DNS server — it exists purely
// as a read-only view exposed through the introspection endpoint, the way
// the original project's sibling binary fed a split-horizon DNS zone from
// the same watched state.
type DNSView map[string][]DNSEntry

// DNSViewSnapshot publishes DNSView values atomically, the same pattern as
// hostconfig.Snapshot.
type DNSViewSnapshot struct {
	v atomic.Pointer[DNSView]
}

// NewDNSViewSnapshot returns a snapshot holding an empty view.
func NewDNSViewSnapshot() *DNSViewSnapshot {
	s := &DNSViewSnapshot{}
	empty := DNSView{}
	s.v.Store(&empty)
	return s
}

// Publish atomically replaces the current view.
func (s *DNSViewSnapshot) Publish(v DNSView) { s.v.Store(&v) }

// Load returns the view current as of the call.
func (s *DNSViewSnapshot) Load() DNSView { return *s.v.Load() }

type serviceTargetKind int

const (
	serviceTargetNone serviceTargetKind = iota
	serviceTargetHeadless
	serviceTargetClusterIPs
	serviceTargetExternalName
)

type serviceInfo struct {
	namespace    string
	name         string
	kind         serviceTargetKind
	clusterIPs   []net.IP
	externalName string
	ports        map[string]int32 // port name -> port number
}

func serviceKey(s *corev1.Service) (hostconfig.ObjectKey, bool) {
	if s == nil || s.Namespace == "" || s.Name == "" {
		return hostconfig.ObjectKey{}, false
	}
	return hostconfig.ObjectKey{Namespace: s.Namespace, Name: s.Name}, true
}

func parseService(s *corev1.Service) (serviceInfo, bool) {
	info := serviceInfo{namespace: s.Namespace, name: s.Name, ports: map[string]int32{}}
	if s.Spec.Type == corev1.ServiceTypeExternalName {
		if s.Spec.ExternalName == "" {
			return serviceInfo{}, false
		}
		info.kind = serviceTargetExternalName
		info.externalName = s.Spec.ExternalName
		return info, true
	}

	headless := false
	var ips []net.IP
	for _, ip := range s.Spec.ClusterIPs {
		if ip == "None" {
			headless = true
			continue
		}
		if parsed := net.ParseIP(ip); parsed != nil {
			ips = append(ips, parsed)
		}
	}
	for _, p := range s.Spec.Ports {
		if p.Name != "" {
			info.ports[p.Name] = p.Port
		}
	}
	switch {
	case headless:
		info.kind = serviceTargetHeadless
	case len(ips) > 0:
		info.kind = serviceTargetClusterIPs
		info.clusterIPs = ips
	default:
		info.kind = serviceTargetNone
	}
	return info, true
}

type endpointSliceInfo struct {
	serviceName string
	addresses   []net.IP
	ports       map[string]int32
}

func endpointSliceKey(eps *discoveryv1.EndpointSlice) (hostconfig.ObjectKey, bool) {
	if eps == nil || eps.Namespace == "" || eps.Name == "" {
		return hostconfig.ObjectKey{}, false
	}
	return hostconfig.ObjectKey{Namespace: eps.Namespace, Name: eps.Name}, true
}

func parseEndpointSlice(eps *discoveryv1.EndpointSlice) (endpointSliceInfo, bool) {
	svcName := eps.Labels["kubernetes.io/service-name"]
	if svcName == "" {
		return endpointSliceInfo{}, false
	}
	info := endpointSliceInfo{serviceName: svcName, ports: map[string]int32{}}
	for _, p := range eps.Ports {
		if p.Name != nil && p.Port != nil {
			info.ports[*p.Name] = *p.Port
		}
	}
	for _, ep := range eps.Endpoints {
		ready := ep.Conditions.Ready == nil || *ep.Conditions.Ready
		if !ready {
			continue
		}
		for _, a := range ep.Addresses {
			if ip := net.ParseIP(a); ip != nil {
				info.addresses = append(info.addresses, ip)
			}
		}
	}
	return info, true
}

// buildDNSView derives the hostname->addresses map from the current
// service/endpoint-slice state: a ClusterIP service resolves to its own
// cluster IPs; a headless service resolves to the union of its endpoint
// slices' ready addresses; an ExternalName service resolves to a CNAME.
func buildDNSView(services map[hostconfig.ObjectKey]serviceInfo, slices map[hostconfig.ObjectKey]endpointSliceInfo) DNSView {
	byService := map[string][]net.IP{}
	for key, s := range slices {
		svcKey := key.Namespace + "/" + s.serviceName
		byService[svcKey] = append(byService[svcKey], s.addresses...)
	}

	view := DNSView{}
	for key, svc := range services {
		hostname := key.Name + "." + key.Namespace
		switch svc.kind {
		case serviceTargetExternalName:
			view[hostname] = []DNSEntry{{CNAME: svc.externalName}}
		case serviceTargetClusterIPs:
			entries := make([]DNSEntry, 0, len(svc.clusterIPs))
			for _, ip := range svc.clusterIPs {
				entries = append(entries, DNSEntry{Addr: ip})
			}
			view[hostname] = entries
		case serviceTargetHeadless:
			addrs := append([]net.IP(nil), byService[key.Namespace+"/"+key.Name]...)
			sort.Slice(addrs, func(i, j int) bool { return addrs[i].String() < addrs[j].String() })
			entries := make([]DNSEntry, 0, len(addrs))
			for _, ip := range addrs {
				entries = append(entries, DNSEntry{Addr: ip})
			}
			view[hostname] = entries
		}
	}
	return view
}
