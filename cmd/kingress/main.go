// Command kingress runs the ingress proxy: it watches Kubernetes Ingress,
// Secret, and (for the cluster-API resolver variant) Service and
// EndpointSlice objects, assembles them into a routing table, and proxies
// HTTP/1 and opaque h2 connections against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	apiwatch "k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/mcluseau/kingress/internal/backend"
	"github.com/mcluseau/kingress/internal/config"
	"github.com/mcluseau/kingress/internal/hostconfig"
	"github.com/mcluseau/kingress/internal/introspect"
	"github.com/mcluseau/kingress/internal/logging"
	"github.com/mcluseau/kingress/internal/proxy"
	"github.com/mcluseau/kingress/internal/resolver"
	"github.com/mcluseau/kingress/internal/tlsctx"
	"github.com/mcluseau/kingress/internal/watch"
)

// Config holds every flag relevant to core behavior, populated directly by
// flag.*Var rather than a third-party CLI framework.
type Config struct {
	Namespace string

	HTTPBind       string
	HTTPSBind      string
	IntrospectBind string
	IntrospectOn   bool

	ResolverVariant string
	CacheSize       int
	PositiveTTL     time.Duration
	NegativeTTL     time.Duration
	ClusterDomain   string
	Zone            string

	RetryDelay time.Duration
	LogLevel   string
	Kubeconfig string
}

func parseFlags() *Config {
	c := &Config{}
	flag.StringVar(&c.Namespace, "namespace", "", "restrict watched objects to this namespace (empty means all namespaces)")
	flag.StringVar(&c.HTTPBind, "http-bind", ":80", "plain HTTP listen address")
	flag.StringVar(&c.HTTPSBind, "https-bind", ":443", "HTTPS listen address")
	flag.StringVar(&c.IntrospectBind, "introspect-bind", "[::1]:2287", "introspection (JSON routing table + Prometheus metrics) listen address")
	flag.BoolVar(&c.IntrospectOn, "introspect", true, "enable the introspection endpoint")
	flag.StringVar(&c.ResolverVariant, "resolver", "dns-host", "backend resolver variant: dns-host | kube")
	flag.IntVar(&c.CacheSize, "resolver-cache-size", 1024, "resolver cache capacity (0 disables caching)")
	flag.DurationVar(&c.PositiveTTL, "resolver-cache-positive-ttl", 5*time.Second, "resolver cache TTL for successful resolutions")
	flag.DurationVar(&c.NegativeTTL, "resolver-cache-negative-ttl", time.Second, "resolver cache TTL for failed or empty resolutions")
	flag.StringVar(&c.ClusterDomain, "cluster-domain", "cluster.local", "cluster DNS suffix, used by the dns-host resolver variant")
	flag.StringVar(&c.Zone, "zone", "", "restrict the kube resolver variant's EndpointSlice lookups to this topology zone")
	flag.DurationVar(&c.RetryDelay, "watch-retry-delay", time.Second, "delay before retrying a failed watch stream")
	flag.StringVar(&c.LogLevel, "log-level", "info", "log level: trace | debug | info | warn | error")
	flag.StringVar(&c.Kubeconfig, "kubeconfig", "", "path to a kubeconfig file (empty uses in-cluster config)")
	flag.Parse()
	return c
}

func main() {
	cfg := parseFlags()
	logging.SetDefaultLevel(logging.ParseLevel(cfg.LogLevel))
	log := logging.New("main")

	restConfig, err := buildRESTConfig(cfg.Kubeconfig)
	if err != nil {
		log.Error("building kube config failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Error("building kube client failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}

	snapshot := hostconfig.NewSnapshot()
	dnsViews := config.NewDNSViewSnapshot()
	trackServices := cfg.ResolverVariant == "kube"

	variant, err := buildResolverVariant(cfg, client)
	if err != nil {
		log.Error("building resolver variant failed", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
	cachedResolver := resolver.NewCache(variant, cfg.CacheSize, cfg.PositiveTTL, cfg.NegativeTTL)

	var resolve backend.Resolver = cachedResolver

	proxySrv := proxy.New(snapshot, resolve, logging.New("proxy"))
	tlsCtx := tlsctx.New(snapshot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runAssembler(ctx, cfg, client, snapshot, dnsViews, trackServices) })

	g.Go(func() error {
		ln, err := net.Listen("tcp", cfg.HTTPBind)
		if err != nil {
			return fmt.Errorf("http listen: %w", err)
		}
		return proxySrv.ServePlain(ln)
	})

	g.Go(func() error {
		ln, err := net.Listen("tcp", cfg.HTTPSBind)
		if err != nil {
			return fmt.Errorf("https listen: %w", err)
		}
		return proxySrv.ServeTLS(ln, tlsCtx.Build())
	})

	if cfg.IntrospectOn {
		g.Go(func() error { return runIntrospect(cfg, snapshot, dnsViews, trackServices) })
	}

	// The group cancels ctx with the first task error as its cause. The
	// listener tasks do not watch ctx, so g.Wait would never return here.
	<-ctx.Done()
	log.Error("a supervised task exited", map[string]any{"err": fmt.Sprint(context.Cause(ctx))})
	os.Exit(1)
}

func buildRESTConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	return rest.InClusterConfig()
}

func buildResolverVariant(cfg *Config, client *kubernetes.Clientset) (resolver.Variant, error) {
	switch cfg.ResolverVariant {
	case "dns-host":
		return &resolver.DNSHost{ClusterDomain: cfg.ClusterDomain}, nil
	case "kube":
		return &resolver.Kube{Client: client, Zone: cfg.Zone}, nil
	default:
		return nil, fmt.Errorf("unknown resolver variant %q", cfg.ResolverVariant)
	}
}

func runIntrospect(cfg *Config, snapshot *hostconfig.Snapshot, dnsViews *config.DNSViewSnapshot, trackServices bool) error {
	mux := http.NewServeMux()
	h := &introspect.Handler{Snapshot: snapshot}
	if trackServices {
		h.DNSViews = dnsViews
	}
	mux.Handle("/", h)
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(cfg.IntrospectBind, mux)
}

func runAssembler(
	ctx context.Context,
	cfg *Config,
	client *kubernetes.Clientset,
	snapshot *hostconfig.Snapshot,
	dnsViews *config.DNSViewSnapshot,
	trackServices bool,
) error {
	ingressCh := make(chan watch.Event[*networkingv1.Ingress], 64)
	secretCh := make(chan watch.Event[*corev1.Secret], 64)
	serviceCh := make(chan watch.Event[*corev1.Service], 64)
	epsCh := make(chan watch.Event[*discoveryv1.EndpointSlice], 64)

	ingressSrc := watch.NewInformerSource[*networkingv1.Ingress]("ingress", watch.ListWatch{
		List: func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
			return client.NetworkingV1().Ingresses(cfg.Namespace).List(ctx, opts)
		},
		Watch: func(ctx context.Context, opts metav1.ListOptions) (apiwatch.Interface, error) {
			return client.NetworkingV1().Ingresses(cfg.Namespace).Watch(ctx, opts)
		},
	})
	secretSrc := watch.NewInformerSource[*corev1.Secret]("secret", watch.ListWatch{
		List: func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
			return client.CoreV1().Secrets(cfg.Namespace).List(ctx, opts)
		},
		Watch: func(ctx context.Context, opts metav1.ListOptions) (apiwatch.Interface, error) {
			return client.CoreV1().Secrets(cfg.Namespace).Watch(ctx, opts)
		},
	})

	go watch.RunWithBackoff[*networkingv1.Ingress](ctx, "ingress", ingressSrc, ingressCh, cfg.RetryDelay)
	go watch.RunWithBackoff[*corev1.Secret](ctx, "secret", secretSrc, secretCh, cfg.RetryDelay)

	if trackServices {
		serviceSrc := watch.NewInformerSource[*corev1.Service]("service", watch.ListWatch{
			List: func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
				return client.CoreV1().Services(cfg.Namespace).List(ctx, opts)
			},
			Watch: func(ctx context.Context, opts metav1.ListOptions) (apiwatch.Interface, error) {
				return client.CoreV1().Services(cfg.Namespace).Watch(ctx, opts)
			},
		})
		epsSrc := watch.NewInformerSource[*discoveryv1.EndpointSlice]("endpointslice", watch.ListWatch{
			List: func(ctx context.Context, opts metav1.ListOptions) (runtime.Object, error) {
				return client.DiscoveryV1().EndpointSlices(cfg.Namespace).List(ctx, opts)
			},
			Watch: func(ctx context.Context, opts metav1.ListOptions) (apiwatch.Interface, error) {
				return client.DiscoveryV1().EndpointSlices(cfg.Namespace).Watch(ctx, opts)
			},
		})
		go watch.RunWithBackoff[*corev1.Service](ctx, "service", serviceSrc, serviceCh, cfg.RetryDelay)
		go watch.RunWithBackoff[*discoveryv1.EndpointSlice](ctx, "endpointslice", epsSrc, epsCh, cfg.RetryDelay)
	}

	asm := config.NewAssembler(snapshot, dnsViews, trackServices, cfg.RetryDelay)
	return asm.Run(ctx, ingressCh, secretCh, serviceCh, epsCh)
}
