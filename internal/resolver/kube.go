package resolver

import (
	"context"
	"net"

	"golang.org/x/sync/singleflight"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/metrics"
)

// Kube is the cluster-API resolver variant: it queries the Service object
// directly (and, for headless services or when a zone filter is
// configured, the service's EndpointSlices) instead of relying on DNS.
//
// Concurrent resolves for the same Endpoint are coalesced through a
// singleflight.Group: a burst of connections opening to the same backend
// at once triggers exactly one round trip to the API server, not one per
// connection. This is a narrower, API-call-scoped coalescing than the
// cache's own per-slot single-flight, which governs reuse of the
// *resolved result* rather than in-flight API calls.
type Kube struct {
	Client kubernetes.Interface
	// Zone restricts EndpointSlice enumeration to endpoints in this
	// topology zone; empty means no filter.
	Zone string

	group singleflight.Group
}

// Resolve implements Variant.
func (k *Kube) Resolve(ctx context.Context, ep endpoint.Endpoint) ([]net.Addr, error) {
	v, err, shared := k.group.Do(ep.String(), func() (any, error) {
		return k.resolve(ctx, ep)
	})
	if shared {
		metrics.ResolverCoalesced.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.([]net.Addr), nil
}

func (k *Kube) resolve(ctx context.Context, ep endpoint.Endpoint) ([]net.Addr, error) {
	svc, err := k.Client.CoreV1().Services(ep.Namespace).Get(ctx, ep.Service, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}

	headless := isHeadless(svc)
	if !headless && k.Zone == "" {
		return k.clusterIPAddrs(svc, ep)
	}
	return k.endpointSliceAddrs(ctx, svc, ep)
}

func isHeadless(svc *corev1.Service) bool {
	for _, ip := range svc.Spec.ClusterIPs {
		if ip == "None" {
			return true
		}
	}
	return svc.Spec.ClusterIP == "None"
}

func (k *Kube) clusterIPAddrs(svc *corev1.Service, ep endpoint.Endpoint) ([]net.Addr, error) {
	port, err := portNumberFor(svc, ep.Port)
	if err != nil {
		return nil, err
	}
	ips := svc.Spec.ClusterIPs
	if len(ips) == 0 && svc.Spec.ClusterIP != "" {
		ips = []string{svc.Spec.ClusterIP}
	}
	var addrs []net.Addr
	for _, ip := range ips {
		if ip == "" || ip == "None" {
			continue
		}
		if parsed := net.ParseIP(ip); parsed != nil {
			addrs = append(addrs, &net.TCPAddr{IP: parsed, Port: int(port)})
		}
	}
	return addrs, nil
}

func (k *Kube) endpointSliceAddrs(ctx context.Context, svc *corev1.Service, ep endpoint.Endpoint) ([]net.Addr, error) {
	// An EndpointSlice's ports[].port is the pod's target port, which in
	// general differs from the Service's own port number (e.g. port 80
	// mapping to targetPort 8080). The Service's port name is the only
	// thing both sides agree on, so a numeric Endpoint port must first be
	// resolved to its Service port name before it can be matched against
	// slice ports; a symbolic Endpoint port is already that name.
	portName, err := portNameFor(svc, ep.Port)
	if err != nil {
		return nil, err
	}

	slices, err := k.Client.DiscoveryV1().EndpointSlices(ep.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "kubernetes.io/service-name=" + svc.Name,
	})
	if err != nil {
		return nil, err
	}

	var addrs []net.Addr
	for _, slice := range slices.Items {
		var port int32
		found := false
		for _, p := range slice.Ports {
			if p.Port == nil {
				continue
			}
			name := ""
			if p.Name != nil {
				name = *p.Name
			}
			if name == portName {
				port = *p.Port
				found = true
				break
			}
		}
		if !found {
			continue
		}
		for _, endp := range slice.Endpoints {
			if k.Zone != "" && (endp.Zone == nil || *endp.Zone != k.Zone) {
				continue
			}
			ready := endp.Conditions.Ready == nil || *endp.Conditions.Ready
			if !ready {
				continue
			}
			for _, a := range endp.Addresses {
				if ip := net.ParseIP(a); ip != nil {
					addrs = append(addrs, &net.TCPAddr{IP: ip, Port: int(port)})
				}
			}
		}
	}
	return addrs, nil
}

func portNumberFor(svc *corev1.Service, port endpoint.PortRef) (int32, error) {
	if !port.IsName() {
		return int32(port.NumberValue()), nil
	}
	for _, p := range svc.Spec.Ports {
		if p.Name == port.NameValue() {
			return p.Port, nil
		}
	}
	return 0, ErrPortNotFound
}

// portNameFor resolves port to the Service port name EndpointSlice ports
// are matched against: a symbolic port already is that name; a numeric
// port is the Service's port number, looked up in svc.Spec.Ports to find
// the name mapped to it.
func portNameFor(svc *corev1.Service, port endpoint.PortRef) (string, error) {
	if port.IsName() {
		return port.NameValue(), nil
	}
	for _, p := range svc.Spec.Ports {
		if p.Port == int32(port.NumberValue()) {
			return p.Name, nil
		}
	}
	return "", ErrPortNotFound
}
