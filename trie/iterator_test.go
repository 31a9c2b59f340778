package trie

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"hextrie/trie/trienode"
)

func TestNodeIterator(t *testing.T) {
	pairs := map[string]string{
		"my-key":       "some-value",
		"my-other-key": "another-value",
		"do":           "verb",
		"dog":          "puppy",
		"doge":         "coin",
		"horse":        "stallion",
	}

	build := func(t *testing.T) *Trie {
		t.Helper()
		tr, _ := newTestTrie(false)
		for k, v := range pairs {
			if err := tr.Put([]byte(k), []byte(v)); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		return tr
	}

	t.Run("should yield every pair in lexicographic key order", func(t *testing.T) {
		tr := build(t)

		var keys []string
		found := make(map[string]string)

		it := tr.NewNodeIterator()
		for it.Next() {
			if key := it.Key(); key != nil {
				keys = append(keys, string(key))
				found[string(key)] = string(it.Value())
			}
		}
		it.Release()

		if err := it.Error(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(found) != len(pairs) {
			t.Fatalf("expected %d pairs, got %d", len(pairs), len(found))
		}
		for k, v := range pairs {
			if found[k] != v {
				t.Errorf("key %q: expected %q, got %q", k, v, found[k])
			}
		}

		if !sort.StringsAreSorted(keys) {
			t.Errorf("expected keys in order, got %q", keys)
		}
	})

	t.Run("should visit nodes with their nibble paths", func(t *testing.T) {
		tr := newScenarioTrie(t)

		var paths [][]byte
		it := tr.NewNodeIterator()
		for it.Next() {
			if it.Node() == nil {
				t.Errorf("expected a node at every position")
			}
			paths = append(paths, bytes.Clone(it.Path()))
		}
		if err := it.Error(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		// Root extension, branch, two inlined leaves.
		want := [][]byte{
			{},
			sharedPrefix,
			append(append([]byte{}, sharedPrefix...), 0xb),
			append(append([]byte{}, sharedPrefix...), 0xf),
		}
		if len(paths) != len(want) {
			t.Fatalf("expected %d nodes, got %d", len(want), len(paths))
		}
		for i := range want {
			if !bytes.Equal(paths[i], want[i]) {
				t.Errorf("node %d: expected path %x, got %x", i, want[i], paths[i])
			}
		}
	})

	t.Run("should stay empty on the empty trie", func(t *testing.T) {
		tr, _ := newTestTrie(false)

		it := tr.NewNodeIterator()
		if it.Next() {
			t.Errorf("expected no nodes")
		}
		if err := it.Error(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("should restart from a fresh iterator", func(t *testing.T) {
		tr := build(t)

		count := func() int {
			n := 0
			it := tr.NewNodeIterator()
			for it.Next() {
				if it.Key() != nil {
					n++
				}
			}
			return n
		}

		if first, second := count(), count(); first != second {
			t.Errorf("expected identical passes, got %d and %d", first, second)
		}
	})

	t.Run("should stop after release", func(t *testing.T) {
		tr := build(t)

		it := tr.NewNodeIterator()
		if !it.Next() {
			t.Fatalf("expected a first node")
		}
		it.Release()
		if it.Next() {
			t.Errorf("expected no nodes after release")
		}
	})

	t.Run("should surface a store fault", func(t *testing.T) {
		tr := newScenarioTrie(t)

		ann, err := tr.Traverse(nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		ref := ann.Raw.(*trienode.ExtensionNode).Child.(trienode.HashNode)
		if err := tr.db.store.Delete(ref); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		it := tr.NewNodeIterator()
		for it.Next() {
		}

		var miss *MissingTraversalError
		if !errors.As(it.Error(), &miss) {
			t.Errorf("expected MissingTraversalError, got %v", it.Error())
		}
	})
}
