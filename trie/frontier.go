package trie

import (
	lru "github.com/hashicorp/golang-lru"

	"hextrie/trie/trienode"
)

// frontierEntry caches the node body sitting one segment
// above a walk frontier prefix.
type frontierEntry struct {
	node    trienode.Node
	segment []byte
}

// FrontierCache keeps recently-seen node bodies keyed by
// the walk prefixes beneath them, so a walker can resume
// with TraverseFrom on the cached parent instead of a
// root-down Traverse. The cache is LRU-bounded by the
// caller; consistency is the caller's burden — evict when
// the trie mutates.
type FrontierCache struct {
	cache *lru.Cache
}

// NewFrontierCache creates a cache holding at most size
// frontier entries.
func NewFrontierCache(size int) (*FrontierCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &FrontierCache{cache: cache}, nil
}

// Get looks up the cached parent for a frontier prefix. It
// returns the parent node body and the segment remaining
// from that node down to the prefix.
func (f *FrontierCache) Get(prefix []byte) (trienode.Node, []byte, bool) {
	v, ok := f.cache.Get(string(prefix))
	if !ok {
		return nil, nil, false
	}
	entry := v.(frontierEntry)
	return entry.node, entry.segment, true
}

// Add records the node just explored at prefix under each
// of its outgoing sub-segments, making it the resume point
// for every child prefix.
func (f *FrontierCache) Add(prefix []byte, node trienode.Node, subSegments [][]byte) {
	for _, segment := range subSegments {
		child := appendNibbles(prefix, segment...)
		f.cache.Add(string(child), frontierEntry{node: node, segment: segment})
	}
}

// Remove evicts a consumed frontier entry.
func (f *FrontierCache) Remove(prefix []byte) {
	f.cache.Remove(string(prefix))
}

// Purge evicts everything; call after the trie mutates.
func (f *FrontierCache) Purge() {
	f.cache.Purge()
}

// Len returns the number of cached entries.
func (f *FrontierCache) Len() int {
	return f.cache.Len()
}
