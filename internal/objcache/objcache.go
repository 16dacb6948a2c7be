// Package objcache provides a bounded in-memory cache of decompressed
// object payloads in front of the on-disk object store.
package objcache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rvs-vcs/rvs/pkg/object"
)

type entry struct {
	objType object.ObjectType
	data    []byte
}

// Cache is a fixed-size LRU cache satisfying object.Store's ObjectCache
// interface, grounded on the golang-lru/v2 cache the retrieval pack's gitpack
// implementation uses in front of its own object reads.
type Cache struct {
	lru *lru.Cache[object.Hash, entry]
}

// New creates a Cache holding up to size decompressed objects.
func New(size int) *Cache {
	c, _ := lru.New[object.Hash, entry](size)
	return &Cache{lru: c}
}

func (c *Cache) Get(h object.Hash) (object.ObjectType, []byte, bool) {
	e, ok := c.lru.Get(h)
	if !ok {
		return "", nil, false
	}
	return e.objType, e.data, true
}

func (c *Cache) Add(h object.Hash, objType object.ObjectType, data []byte) {
	c.lru.Add(h, entry{objType: objType, data: data})
}
