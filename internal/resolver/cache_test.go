package resolver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcluseau/kingress/internal/endpoint"
)

type countingVariant struct {
	calls atomic.Int32
	addrs []net.Addr
	err   error
}

func (c *countingVariant) Resolve(context.Context, endpoint.Endpoint) ([]net.Addr, error) {
	c.calls.Add(1)
	return c.addrs, c.err
}

func testEndpoint(service string) endpoint.Endpoint {
	return endpoint.Endpoint{Namespace: "default", Service: service, Port: endpoint.Number(80)}
}

func TestCacheHitsDontReResolve(t *testing.T) {
	v := &countingVariant{addrs: []net.Addr{&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 80}}}
	c := NewCache(v, 8, time.Minute, time.Minute)

	ep := testEndpoint("a")
	for i := 0; i < 5; i++ {
		addrs := c.Resolve(context.Background(), ep)
		if len(addrs) != 1 {
			t.Fatalf("iteration %d: got %d addrs, want 1", i, len(addrs))
		}
	}
	if v.calls.Load() != 1 {
		t.Fatalf("got %d underlying resolves, want 1", v.calls.Load())
	}
}

func TestCacheExpiryReResolves(t *testing.T) {
	v := &countingVariant{addrs: []net.Addr{&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 80}}}
	c := NewCache(v, 8, time.Millisecond, time.Millisecond)

	ep := testEndpoint("a")
	c.Resolve(context.Background(), ep)
	time.Sleep(5 * time.Millisecond)
	c.Resolve(context.Background(), ep)

	if v.calls.Load() != 2 {
		t.Fatalf("got %d underlying resolves, want 2", v.calls.Load())
	}
}

func TestCacheNegativeTTLOnError(t *testing.T) {
	v := &countingVariant{err: errors.New("boom")}
	c := NewCache(v, 8, time.Minute, time.Minute)

	ep := testEndpoint("a")
	addrs := c.Resolve(context.Background(), ep)
	if addrs != nil {
		t.Fatalf("got %v, want nil on error", addrs)
	}
	c.Resolve(context.Background(), ep)
	if v.calls.Load() != 1 {
		t.Fatalf("got %d underlying resolves, want 1 (negative TTL should suppress the second)", v.calls.Load())
	}
}

func TestCacheCapacityZeroBypasses(t *testing.T) {
	v := &countingVariant{addrs: []net.Addr{&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 80}}}
	c := NewCache(v, 0, time.Minute, time.Minute)

	ep := testEndpoint("a")
	c.Resolve(context.Background(), ep)
	c.Resolve(context.Background(), ep)
	if v.calls.Load() != 2 {
		t.Fatalf("got %d underlying resolves, want 2 (capacity 0 must bypass caching)", v.calls.Load())
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	v := &countingVariant{addrs: []net.Addr{&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 80}}}
	c := NewCache(v, 2, time.Minute, time.Minute)

	a, b, d := testEndpoint("a"), testEndpoint("b"), testEndpoint("d")
	c.Resolve(context.Background(), a)
	c.Resolve(context.Background(), b)
	c.Resolve(context.Background(), d) // evicts a, the least recently used

	calls := v.calls.Load()
	c.Resolve(context.Background(), a)
	if v.calls.Load() != calls+1 {
		t.Fatal("expected a to have been evicted and re-resolved")
	}
}

func TestCacheConcurrentMissesSingleFlight(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	v := &blockingVariant{block: block, started: started}
	c := NewCache(v, 8, time.Minute, time.Minute)

	ep := testEndpoint("a")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Resolve(context.Background(), ep)
		}()
	}

	<-started
	close(block)
	wg.Wait()

	if v.calls.Load() != 1 {
		t.Fatalf("got %d underlying resolves for 10 concurrent misses on one key, want 1", v.calls.Load())
	}
}

type blockingVariant struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
}

func (b *blockingVariant) Resolve(context.Context, endpoint.Endpoint) ([]net.Addr, error) {
	b.calls.Add(1)
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.block
	return []net.Addr{&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 80}}, nil
}
