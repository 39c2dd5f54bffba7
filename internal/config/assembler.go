package config

import (
	"context"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	networkingv1 "k8s.io/api/networking/v1"

	"github.com/mcluseau/kingress/internal/hostconfig"
	"github.com/mcluseau/kingress/internal/logging"
	"github.com/mcluseau/kingress/internal/watch"
)

// Assembler folds the four Kubernetes object streams into the published
// Hosts snapshot (and, supplementally, a DNSView). Streams are consumed
// through a single internal job queue: every stream's forwarding goroutine
// turns its next event into a closure and enqueues it, and one loop drains
// the queue and applies closures strictly one at a time. This gives the
// same "exactly one event processed per step" serialization the original
// select-based multiplexer has, without needing a dynamically-sized select.
type Assembler struct {
	log        *logging.Logger
	snapshot   *hostconfig.Snapshot
	dnsViews   *DNSViewSnapshot
	trackSvc   bool // whether services/endpointslices are tracked at all (kube resolver variant)
	retryDelay time.Duration

	ingresses map[hostconfig.ObjectKey]map[string]ParsedIngress // per-object: host -> parsed rule
	secrets   map[hostconfig.ObjectKey]TLSData
	services  map[hostconfig.ObjectKey]serviceInfo
	epSlices  map[hostconfig.ObjectKey]endpointSliceInfo

	ingressReady, secretReady, serviceReady, epsReady bool
}

// NewAssembler builds an Assembler that publishes to snapshot. trackServices
// enables the services/endpointslices streams and the DNSView; it should be
// true exactly when the configured resolver variant is the cluster API
// resolver, which needs that same state.
func NewAssembler(snapshot *hostconfig.Snapshot, dnsViews *DNSViewSnapshot, trackServices bool, retryDelay time.Duration) *Assembler {
	return &Assembler{
		log:        logging.New("config"),
		snapshot:   snapshot,
		dnsViews:   dnsViews,
		trackSvc:   trackServices,
		retryDelay: retryDelay,
		ingresses:  map[hostconfig.ObjectKey]map[string]ParsedIngress{},
		secrets:    map[hostconfig.ObjectKey]TLSData{},
		services:   map[hostconfig.ObjectKey]serviceInfo{},
		epSlices:   map[hostconfig.ObjectKey]endpointSliceInfo{},
	}
}

type job func(a *Assembler)

// Run consumes every stream until ctx is canceled. Each stream is expected
// to already apply its own retry backoff (see watch.RunWithBackoff); Run
// itself only multiplexes events already flowing on the four channels.
func (a *Assembler) Run(
	ctx context.Context,
	ingressCh <-chan watch.Event[*networkingv1.Ingress],
	secretCh <-chan watch.Event[*corev1.Secret],
	serviceCh <-chan watch.Event[*corev1.Service],
	epsCh <-chan watch.Event[*discoveryv1.EndpointSlice],
) error {
	jobs := make(chan job, 64)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ingressCh:
				if !ok {
					return
				}
				jobs <- func(a *Assembler) { a.ingestIngress(ev) }
			}
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-secretCh:
				if !ok {
					return
				}
				jobs <- func(a *Assembler) { a.ingestSecret(ev) }
			}
		}
	}()
	if a.trackSvc {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-serviceCh:
					if !ok {
						return
					}
					jobs <- func(a *Assembler) { a.ingestService(ev) }
				}
			}
		}()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-epsCh:
					if !ok {
						return
					}
					jobs <- func(a *Assembler) { a.ingestEndpointSlice(ev) }
				}
			}
		}()
	} else {
		a.serviceReady = true
		a.epsReady = true
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-jobs:
			j(a)
			if a.allReady() {
				a.republish()
			}
		}
	}
}

func (a *Assembler) allReady() bool {
	return a.ingressReady && a.secretReady && a.serviceReady && a.epsReady
}

func (a *Assembler) ingestIngress(ev watch.Event[*networkingv1.Ingress]) {
	key, _ := ingressKey(ev.Value)
	ready := ingestEvent(a.ingresses, ev.Kind, ev.Value,
		func(*networkingv1.Ingress) (hostconfig.ObjectKey, bool) { return key, key != (hostconfig.ObjectKey{}) },
		func(ing *networkingv1.Ingress) (map[string]ParsedIngress, bool) {
			m := ingressesToHostEntries(ing)
			return m, len(m) > 0
		},
	)
	a.ingressReady = ready
}

func (a *Assembler) ingestSecret(ev watch.Event[*corev1.Secret]) {
	ready := ingestEvent(a.secrets, ev.Kind, ev.Value,
		func(s *corev1.Secret) (hostconfig.ObjectKey, bool) {
			if s == nil || s.Namespace == "" || s.Name == "" {
				return hostconfig.ObjectKey{}, false
			}
			return hostconfig.ObjectKey{Namespace: s.Namespace, Name: s.Name}, true
		},
		func(s *corev1.Secret) (TLSData, bool) {
			crt, ok1 := s.Data["tls.crt"]
			key, ok2 := s.Data["tls.key"]
			if !ok1 || !ok2 {
				return TLSData{}, false
			}
			return TLSData{CertPEM: crt, KeyPEM: key}, true
		},
	)
	a.secretReady = ready
}

func (a *Assembler) ingestService(ev watch.Event[*corev1.Service]) {
	ready := ingestEvent(a.services, ev.Kind, ev.Value, serviceKey, parseService)
	a.serviceReady = ready
}

func (a *Assembler) ingestEndpointSlice(ev watch.Event[*discoveryv1.EndpointSlice]) {
	ready := ingestEvent(a.epSlices, ev.Kind, ev.Value, endpointSliceKey, parseEndpointSlice)
	a.epsReady = ready
}

// republish flattens the per-ingress-object host maps into a single
// ParsedIngress-per-host view and rebuilds the Hosts snapshot (and, if
// tracked, the DNSView) from the current state.
func (a *Assembler) republish() {
	flat := map[hostconfig.ObjectKey]ParsedIngress{}
	for objKey, byHost := range a.ingresses {
		i := 0
		for _, p := range byHost {
			// Sub-key each rule so multi-host ingress objects don't
			// collide in the flattened map; only the values matter to
			// buildHosts, which ranges over the map.
			flat[hostconfig.ObjectKey{Namespace: objKey.Namespace, Name: objKey.Name + "#" + strconv.Itoa(i)}] = p
			i++
		}
	}
	hosts := buildHosts(flat, a.secrets)
	a.snapshot.Publish(hosts)
	a.log.Debug("republished hosts snapshot", map[string]any{"hosts": len(hosts)})

	if a.trackSvc && a.dnsViews != nil {
		a.dnsViews.Publish(buildDNSView(a.services, a.epSlices))
	}
}
