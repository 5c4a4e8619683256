package dai

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"restobject/internal/codec"
)

// DefaultCacheSize bounds an LRUCache built with a non-positive size.
const DefaultCacheSize = 256

// Cache stores references by command name and package.
type Cache interface {
	Get(name string, pack *Package) *Reference
	// Set stores ref unless the key is taken or cannot be derived; it
	// reports whether ref was stored.
	Set(name string, pack *Package, ref *Reference) bool
	// Remove drops the entry for (name, pack) when it still holds ref.
	Remove(name string, pack *Package, ref *Reference) bool
}

// PackageKey derives the content key for (name, pack). Packages without a
// known target, or carrying references whose identity is unknown, have no key.
func PackageKey(name string, pack *Package) (string, error) {
	if pack == nil || pack.Target == "" {
		return "", errIdentityUnknown
	}
	return codec.Key(name, pack)
}

// LRUCache is a bounded Cache evicting the least recently used entry.
type LRUCache struct {
	entries *lru.Cache[string, *Reference]
}

func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *Reference](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{entries: entries}, nil
}

func (c *LRUCache) Get(name string, pack *Package) *Reference {
	key, err := PackageKey(name, pack)
	if err != nil {
		return nil
	}
	ref, _ := c.entries.Get(key)
	return ref
}

func (c *LRUCache) Set(name string, pack *Package, ref *Reference) bool {
	if ref == nil {
		return false
	}
	key, err := PackageKey(name, pack)
	if err != nil {
		return false
	}
	found, _ := c.entries.ContainsOrAdd(key, ref)
	return !found
}

func (c *LRUCache) Remove(name string, pack *Package, ref *Reference) bool {
	key, err := PackageKey(name, pack)
	if err != nil {
		return false
	}
	if current, ok := c.entries.Peek(key); !ok || current != ref {
		return false
	}
	return c.entries.Remove(key)
}

func (c *LRUCache) Len() int { return c.entries.Len() }

func (c *LRUCache) Purge() { c.entries.Purge() }
