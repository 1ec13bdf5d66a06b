package reputation

import (
	"database/sql"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/deemkeen/smilodon/domain"
)

// Store is the durable source of instance policy records.
type Store interface {
	ReadInstancePolicyByDomain(domainName string) (error, *domain.InstancePolicy)
	ReadWildcardInstancePolicies() (error, *[]domain.InstancePolicy)
}

// Cache keeps per-host policy lookups in memory. Entries are populated
// lazily on miss and carry no TTL: whoever writes an instance policy record
// MUST call Invalidate for the affected domain (or Clear for bulk changes),
// otherwise readers keep seeing the stale flags forever. The admin handlers
// honor this contract; any new writer has to as well.
//
// A nil entry is a cached negative: the host was looked up and has no policy
// on file. Store failures are never cached, so a broken store degrades to
// "no policy" (fail open) and heals on its own.
type Cache struct {
	store Store

	mu      sync.RWMutex
	entries map[string]*domain.InstancePolicy
}

func NewCache(store Store) *Cache {
	return &Cache{
		store:   store,
		entries: make(map[string]*domain.InstancePolicy),
	}
}

// Lookup returns the policy flags for a host, or nil when none apply.
// Implements the pipeline's PolicySource.
func (c *Cache) Lookup(host string) *domain.InstancePolicy {
	host = domain.NormalizeHost(host)
	if host == "" {
		return nil
	}

	c.mu.RLock()
	policy, cached := c.entries[host]
	c.mu.RUnlock()
	if cached {
		return policy
	}

	policy, ok := c.load(host)
	if !ok {
		return nil
	}

	c.mu.Lock()
	c.entries[host] = policy
	c.mu.Unlock()
	return policy
}

// load resolves a host against the store: exact record first, then any
// matching wildcard record. ok=false means the store failed and the result
// must not be cached.
func (c *Cache) load(host string) (policy *domain.InstancePolicy, ok bool) {
	err, record := c.store.ReadInstancePolicyByDomain(host)
	if err == nil {
		return record, true
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Printf("Warning: policy lookup for %s failed, treating as no policy on file: %v", host, err)
		return nil, false
	}

	err, wildcards := c.store.ReadWildcardInstancePolicies()
	if err != nil {
		log.Printf("Warning: wildcard policy scan for %s failed, treating as no policy on file: %v", host, err)
		return nil, false
	}
	for i := range *wildcards {
		if domain.MatchDomain((*wildcards)[i].Domain, host) {
			return &(*wildcards)[i], true
		}
	}

	// Definitive miss, cache the negative result
	return nil, true
}

// Invalidate drops the cached entry for a domain. Invalidating a wildcard
// record clears the whole cache, since any number of cached hosts may have
// matched it.
func (c *Cache) Invalidate(domainName string) {
	domainName = domain.NormalizeHost(domainName)
	if strings.HasPrefix(domainName, "*.") {
		c.Clear()
		return
	}

	c.mu.Lock()
	delete(c.entries, domainName)
	c.mu.Unlock()
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*domain.InstancePolicy)
	c.mu.Unlock()
}

// Len returns the number of cached entries, negatives included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Hosts returns the cached host names in sorted order.
func (c *Cache) Hosts() []string {
	c.mu.RLock()
	hosts := make([]string, 0, len(c.entries))
	for host := range c.entries {
		hosts = append(hosts, host)
	}
	c.mu.RUnlock()

	sort.Strings(hosts)
	return hosts
}
