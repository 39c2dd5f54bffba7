package resolver

import (
	"context"
	"net"

	"github.com/mcluseau/kingress/internal/endpoint"
)

// DNSHost is the DNS-host resolver variant: it builds the in-cluster DNS
// name of the target Service and performs a plain address lookup. It only
// understands numeric ports, since there is no DNS record that maps a
// symbolic port name to a number.
type DNSHost struct {
	// ClusterDomain is appended after "svc", e.g. "cluster.local". Empty
	// means a bare "<service>.<namespace>.svc" lookup, relying on the
	// client's own search domains to complete it.
	ClusterDomain string
	// Resolver lets tests substitute a fake net.Resolver-shaped lookup;
	// nil means net.DefaultResolver.
	Resolver *net.Resolver
}

func (d *DNSHost) resolver() *net.Resolver {
	if d.Resolver != nil {
		return d.Resolver
	}
	return net.DefaultResolver
}

func (d *DNSHost) hostname(ep endpoint.Endpoint) string {
	name := ep.Service + "." + ep.Namespace + ".svc"
	if d.ClusterDomain != "" {
		// Anchored as an FQDN so the lookup never falls through to the
		// resolver's own search domains once a cluster domain is known.
		name += "." + d.ClusterDomain + "."
	}
	return name
}

// Resolve implements Variant.
func (d *DNSHost) Resolve(ctx context.Context, ep endpoint.Endpoint) ([]net.Addr, error) {
	if ep.Port.IsName() {
		return nil, ErrSymbolicPortUnsupported
	}

	ips, err := d.resolver().LookupIPAddr(ctx, d.hostname(ep))
	if err != nil {
		return nil, err
	}

	addrs := make([]net.Addr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, &net.TCPAddr{IP: ip.IP, Port: int(ep.Port.NumberValue()), Zone: ip.Zone})
	}
	return addrs, nil
}
