package resolver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/mcluseau/kingress/internal/endpoint"
	"github.com/mcluseau/kingress/internal/metrics"
)

// lruNode and lruList mirror a plain doubly-linked-list LRU: most recently
// used keys live at the front, eviction takes from the back.
type lruNode struct {
	key  endpoint.Endpoint
	prev *lruNode
	next *lruNode
}

type lruList struct {
	head *lruNode
	tail *lruNode
	size int
}

func (l *lruList) pushFront(key endpoint.Endpoint) *lruNode {
	node := &lruNode{key: key}
	if l.head == nil {
		l.head = node
		l.tail = node
	} else {
		node.next = l.head
		l.head.prev = node
		l.head = node
	}
	l.size++
	return node
}

func (l *lruList) remove(node *lruNode) {
	if node == nil {
		return
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	l.size--
}

func (l *lruList) moveToFront(node *lruNode) {
	if node == nil || node == l.head {
		return
	}
	if node.prev != nil {
		node.prev.next = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
}

func (l *lruList) back() *lruNode { return l.tail }

// slot holds one cached resolution. Its own mutex is held for the
// duration of a miss-fill, so concurrent lookups for the same key block on
// each other rather than each issuing their own Variant.Resolve call
// (per-key single-flight). The cache's own mutex is only ever held long
// enough to find-or-create a slot and touch the LRU list.
type slot struct {
	mu      sync.Mutex
	addrs   []net.Addr
	err     error
	expires time.Time
	filled  bool
}

func (s *slot) expired(now time.Time) bool {
	return !s.filled || now.After(s.expires)
}

// Cache fronts a Variant with an LRU of at most Capacity keys, each cached
// for PositiveTTL (on a successful resolve with at least one address) or
// NegativeTTL (on a resolve error, or a successful resolve with zero
// addresses). Capacity of 0 disables caching entirely: every call is
// forwarded straight to the underlying Variant.
//
// Cache implements backend.Resolver: Variant.Resolve's error return is
// swallowed into an empty address slice, since backend.Dial already treats
// a resolver returning no addresses as a lookup failure.
type Cache struct {
	Variant     Variant
	Capacity    int
	PositiveTTL time.Duration
	NegativeTTL time.Duration

	mu    sync.Mutex
	slots map[endpoint.Endpoint]*slot
	nodes map[endpoint.Endpoint]*lruNode
	order lruList
}

// NewCache builds a Cache. capacity <= 0 disables caching.
func NewCache(variant Variant, capacity int, positiveTTL, negativeTTL time.Duration) *Cache {
	return &Cache{
		Variant:     variant,
		Capacity:    capacity,
		PositiveTTL: positiveTTL,
		NegativeTTL: negativeTTL,
		slots:       make(map[endpoint.Endpoint]*slot),
		nodes:       make(map[endpoint.Endpoint]*lruNode),
	}
}

// Resolve implements backend.Resolver.
func (c *Cache) Resolve(ctx context.Context, ep endpoint.Endpoint) []net.Addr {
	if c.Capacity <= 0 {
		addrs, err := c.Variant.Resolve(ctx, ep)
		if err != nil {
			return nil
		}
		return addrs
	}

	s := c.acquireSlot(ep)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.expired(time.Now()) {
		metrics.CacheHits.Inc()
		return s.addrs
	}
	metrics.CacheMisses.Inc()

	addrs, err := c.Variant.Resolve(ctx, ep)
	s.addrs, s.err = addrs, err
	s.filled = true
	if err != nil || len(addrs) == 0 {
		s.expires = time.Now().Add(c.NegativeTTL)
	} else {
		s.expires = time.Now().Add(c.PositiveTTL)
	}

	if err != nil {
		return nil
	}
	return addrs
}

// acquireSlot finds or creates ep's slot, evicting the least recently used
// entry if the cache is at capacity, and marks ep as most recently used.
func (c *Cache) acquireSlot(ep endpoint.Endpoint) *slot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.nodes[ep]; ok {
		c.order.moveToFront(node)
		return c.slots[ep]
	}

	if c.order.size >= c.Capacity {
		if victim := c.order.back(); victim != nil {
			c.order.remove(victim)
			delete(c.nodes, victim.key)
			delete(c.slots, victim.key)
			metrics.CacheEvictions.Inc()
		}
	}

	node := c.order.pushFront(ep)
	c.nodes[ep] = node
	s := &slot{}
	c.slots[ep] = s
	return s
}
