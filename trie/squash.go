package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hextrie/storage"
)

// Squash is a transactional view of a trie that batches
// every mutation into one store commit. Intermediate node
// bodies live in an in-memory overlay until Commit; a
// missing-node fault at any point discards the overlay and
// restores the pre-transaction root, leaving the store
// untouched.
type Squash struct {
	parent   *Trie
	scratch  *Trie
	overlay  *overlayStore
	prevRoot common.Hash
	closed   bool
}

// SquashChanges opens a batched mutation transaction over
// the trie. With prune enabled, bodies superseded inside
// the transaction are dropped from the overlay as it runs
// and stale store bodies are deleted on Commit.
func (t *Trie) SquashChanges(prune bool) *Squash {
	overlay := newOverlayStore(t.db.store)
	scratch := New(t.root, &Database{store: overlay, log: t.db.log}, prune)

	return &Squash{
		parent:   t,
		scratch:  scratch,
		overlay:  overlay,
		prevRoot: t.root,
	}
}

// Get retrieves key through the overlay view.
func (s *Squash) Get(key []byte) ([]byte, error) {
	value, err := s.scratch.Get(key)
	return value, s.guard(err)
}

// Has reports whether key is present in the overlay view.
func (s *Squash) Has(key []byte) (bool, error) {
	ok, err := s.scratch.Has(key)
	return ok, s.guard(err)
}

// Put stages an insert or update.
func (s *Squash) Put(key, value []byte) error {
	return s.guard(s.scratch.Put(key, value))
}

// Delete stages a removal.
func (s *Squash) Delete(key []byte) error {
	return s.guard(s.scratch.Delete(key))
}

// RootHash returns the root of the staged state.
func (s *Squash) RootHash() common.Hash {
	return s.scratch.RootHash()
}

// Commit flushes the overlay to the backing store and
// publishes the staged root on the parent trie. A
// transaction that staged nothing leaves the store
// byte-identical and the root unchanged.
func (s *Squash) Commit() error {
	if s.closed {
		return fmt.Errorf("squash transaction already closed")
	}
	s.closed = true

	if !s.overlay.dirty() && s.scratch.root == s.prevRoot {
		return nil
	}
	if err := s.overlay.flush(); err != nil {
		return err
	}
	s.parent.root = s.scratch.root
	return nil
}

// Discard closes the transaction without applying it.
func (s *Squash) Discard() {
	s.closed = true
	s.overlay.reset()
	s.scratch.root = s.prevRoot
}

// guard rolls the transaction back when an operation hit a
// missing node body, restoring the pre-transaction root and
// dropping everything staged.
func (s *Squash) guard(err error) error {
	if err == nil {
		return nil
	}
	var miss *MissingNodeError
	if errors.As(err, &miss) {
		s.overlay.reset()
		s.scratch.root = s.prevRoot
		s.scratch.abortMutation()
	}
	return err
}

// overlayStore shadows a key-value store: reads fall
// through to the inner store, writes and deletes stage in
// memory until flush.
type overlayStore struct {
	inner   storage.KeyValStore
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newOverlayStore(inner storage.KeyValStore) *overlayStore {
	return &overlayStore{
		inner:   inner,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *overlayStore) Has(key []byte) (bool, error) {
	if _, ok := o.writes[string(key)]; ok {
		return true, nil
	}
	if _, ok := o.deletes[string(key)]; ok {
		return false, nil
	}
	return o.inner.Has(key)
}

func (o *overlayStore) Get(key []byte) ([]byte, error) {
	if val, ok := o.writes[string(key)]; ok {
		return storage.CopyBytes(val), nil
	}
	if _, ok := o.deletes[string(key)]; ok {
		return nil, storage.ErrKeyNotFound
	}
	return o.inner.Get(key)
}

func (o *overlayStore) Put(key, value []byte) error {
	delete(o.deletes, string(key))
	o.writes[string(key)] = storage.CopyBytes(value)
	return nil
}

func (o *overlayStore) Delete(key []byte) error {
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

func (o *overlayStore) Close() error {
	return nil
}

// dirty reports whether anything is staged.
func (o *overlayStore) dirty() bool {
	return len(o.writes) > 0 || len(o.deletes) > 0
}

// reset drops everything staged.
func (o *overlayStore) reset() {
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

// flush applies staged writes, then staged deletes, to the
// inner store, through a batch when the store offers one.
func (o *overlayStore) flush() error {
	var w storage.KeyValWriter = o.inner
	batch := storage.Batch(nil)
	if batcher, ok := o.inner.(storage.Batcher); ok {
		batch = batcher.NewBatch()
		w = batch
	}

	for key, val := range o.writes {
		if err := w.Put([]byte(key), val); err != nil {
			return err
		}
	}
	for key := range o.deletes {
		if err := w.Delete([]byte(key)); err != nil {
			return err
		}
	}

	if batch != nil {
		if err := batch.Write(); err != nil {
			return err
		}
	}

	o.reset()
	return nil
}
