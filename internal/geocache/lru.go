package geocache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// LRUStore keeps the most recently used entries in process memory in front of
// a durable Store. Evicting from the local tier never deletes from the
// durable store.
//
// Delete only clears the local tier of the process that handles it. Other
// processes sharing the durable store keep their local copy until it is
// older than localTTL, after which they read the durable store again.
type LRUStore struct {
	durable Store
	local   *lruCache
}

// NewLRUStore wraps durable with a local tier holding at most maxEntries.
// A localTTL of zero keeps local entries until they are evicted.
func NewLRUStore(durable Store, maxEntries int, localTTL time.Duration) *LRUStore {
	local := newLRUCache(maxEntries)
	local.ttl = localTTL
	return &LRUStore{
		durable: durable,
		local:   local,
	}
}

func (s *LRUStore) Get(ctx context.Context, addresses []string) (map[string]Entry, error) {
	found := make(map[string]Entry, len(addresses))
	var missing []string
	for _, addr := range addresses {
		if e, ok := s.local.get(addr); ok {
			found[addr] = e
			continue
		}
		missing = append(missing, addr)
	}
	if len(missing) == 0 {
		return found, nil
	}

	fromDurable, err := s.durable.Get(ctx, missing)
	if err != nil {
		return found, err
	}
	for addr, e := range fromDurable {
		s.local.put(addr, e)
		found[addr] = e
	}
	return found, nil
}

// Put writes through to the durable store and only then updates the local tier.
func (s *LRUStore) Put(ctx context.Context, entry Entry) error {
	if err := s.durable.Put(ctx, entry); err != nil {
		return err
	}
	s.local.put(entry.Address, entry)
	return nil
}

func (s *LRUStore) Delete(ctx context.Context, address string) error {
	s.local.remove(address)
	return s.durable.Delete(ctx, address)
}

// lruCache is a thread-safe LRU map of cache entries.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*node
	head       *node // most recently used
	tail       *node // least recently used
}

type node struct {
	key      string
	value    Entry
	storedAt time.Time
	prev     *node
	next     *node
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		clock:      clockwork.NewRealClock(),
		entries:    make(map[string]*node),
	}
}

func (c *lruCache) get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if c.ttl > 0 && c.clock.Since(n.storedAt) >= c.ttl {
		delete(c.entries, key)
		c.unlink(n)
		return Entry{}, false
	}
	c.moveToFront(n)
	return n.value, true
}

func (c *lruCache) put(key string, value Entry) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if n, ok := c.entries[key]; ok {
		n.value = value
		n.storedAt = now
		c.moveToFront(n)
		return
	}

	n := &node{key: key, value: value, storedAt: now}
	c.entries[key] = n
	c.pushFront(n)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.unlink(n)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(n *node) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *lruCache) pushFront(n *node) {
	n.next = c.head
	n.prev = nil
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *lruCache) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
