package config

import (
	networkingv1 "k8s.io/api/networking/v1"

	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/hostconfig"
)

func ingressKey(ing *networkingv1.Ingress) (hostconfig.ObjectKey, bool) {
	if ing == nil || ing.Namespace == "" || ing.Name == "" {
		return hostconfig.ObjectKey{}, false
	}
	return hostconfig.ObjectKey{Namespace: ing.Namespace, Name: ing.Name}, true
}

// ingressToParsed reduces one rule of an Ingress object to a ParsedIngress
// for that rule's host. Real ingress objects can carry multiple rules (one
// per host); ingressesToHostEntries calls this once per rule, so a
// multi-host ingress object becomes one ParsedIngress per host.
func ingressToParsed(ing *networkingv1.Ingress, rule networkingv1.IngressRule) (ParsedIngress, bool) {
	if rule.Host == "" || rule.HTTP == nil {
		return ParsedIngress{}, false
	}

	p := ParsedIngress{
		Namespace: ing.Namespace,
		Host:      normalizeHost(rule.Host),
		Opts:      optionsFromAnnotations(ing.Annotations),
	}

	for _, tls := range ing.Spec.TLS {
		if tls.SecretName == "" {
			continue
		}
		for _, h := range tls.Hosts {
			if normalizeHost(h) == p.Host {
				p.TLSSecret = &hostconfig.ObjectKey{Namespace: ing.Namespace, Name: tls.SecretName}
			}
		}
		if len(tls.Hosts) == 0 {
			p.TLSSecret = &hostconfig.ObjectKey{Namespace: ing.Namespace, Name: tls.SecretName}
		}
	}

	for _, path := range rule.HTTP.Paths {
		svcName, port, ok := backendFor(&path.Backend, ing.Spec.DefaultBackend)
		if !ok {
			continue
		}

		pt := PathImplementationSpecific
		if path.PathType != nil {
			switch *path.PathType {
			case networkingv1.PathTypeExact:
				pt = PathExact
			case networkingv1.PathTypePrefix:
				pt = PathPrefix
			}
		}

		p.Matches = append(p.Matches, Match{
			Type:    pt,
			Path:    path.Path,
			Service: svcName,
			Port:    port,
		})
	}

	return p, len(p.Matches) > 0
}

// backendFor resolves a path's service backend, falling back to the
// Ingress's spec-level DefaultBackend when the path itself names none,
// the same fallback order used for a missing per-path backend.
func backendFor(path, def *networkingv1.IngressBackend) (service string, port endpoint.PortRef, ok bool) {
	if service, port, ok := servicePort(path); ok {
		return service, port, true
	}
	return servicePort(def)
}

func servicePort(b *networkingv1.IngressBackend) (string, endpoint.PortRef, bool) {
	if b == nil || b.Service == nil {
		return "", endpoint.PortRef{}, false
	}
	if b.Service.Port.Number != 0 {
		return b.Service.Name, endpoint.Number(b.Service.Port.Number), true
	}
	if b.Service.Port.Name != "" {
		return b.Service.Name, endpoint.Name(b.Service.Port.Name), true
	}
	return "", endpoint.PortRef{}, false
}

// ingressesToHostEntries expands one Ingress object's every rule into
// separate map entries, since the assembler's per-kind map is keyed by
// object identity but a single ingress may target several hosts.
func ingressesToHostEntries(ing *networkingv1.Ingress) map[string]ParsedIngress {
	out := map[string]ParsedIngress{}
	for _, rule := range ing.Spec.Rules {
		if p, ok := ingressToParsed(ing, rule); ok {
			out[p.Host] = p
		}
	}
	return out
}
