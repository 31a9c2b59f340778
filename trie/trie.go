package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hextrie/trie/trienode"
)

// Trie is a hexary Merkle Patricia trie over a node
// database. It holds the current root hash, the database
// handle and its pruning state; every node body lives in
// the store.
//
// A trie is not safe for concurrent mutation. Readers
// against a frozen root are safe if the backing store
// supports concurrent reads.
type Trie struct {
	db    *Database
	root  common.Hash
	prune bool

	// Per-mutation pruning state: bodies superseded by the
	// current operation, and bodies written by it. Stale
	// bodies are deleted only after the new root is
	// committed, and never when they were re-written by
	// the same operation.
	stale []common.Hash
	fresh map[common.Hash]struct{}
}

// New creates a trie rooted at the given hash. The root
// node is resolved lazily; a stale or missing root shows
// up as a MissingNodeError on first use. With prune
// enabled, superseded node bodies are deleted from the
// store after each successful mutation.
//
// Pruning is only safe against a store whose residency is
// owned by this trie alone: a body that predates the trie,
// or that is shared with another trie in the same store,
// is deleted as soon as any one position stops referencing
// it.
func New(root common.Hash, db *Database, prune bool) *Trie {
	return &Trie{
		db:    db,
		root:  root,
		prune: prune,
	}
}

// RootHash returns the current root hash. The empty trie
// reports the well-known empty root.
func (t *Trie) RootHash() common.Hash {
	return t.root
}

// Get retrieves the value stored under key, or nil if the
// key is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	root, err := t.resolveRoot(key, false)
	if err != nil {
		return nil, err
	}
	return t.lookup(root, nil, trienode.ToNibbles(key), key)
}

// Has reports whether key is present.
func (t *Trie) Has(key []byte) (bool, error) {
	value, err := t.Get(key)
	if err != nil {
		return false, err
	}
	return len(value) > 0, nil
}

// Put inserts or updates the value stored under key. An
// empty value deletes the key instead; values are never
// empty inside the trie.
func (t *Trie) Put(key, value []byte) error {
	if len(value) == 0 {
		return t.Delete(key)
	}

	t.beginMutation()
	root, err := t.resolveRoot(key, true)
	if err != nil {
		t.abortMutation()
		return err
	}

	newRoot, err := t.insert(root, nil, trienode.ToNibbles(key), value, key)
	if err != nil {
		t.abortMutation()
		return err
	}

	if err := t.commitRoot(newRoot); err != nil {
		t.abortMutation()
		return err
	}
	t.finishMutation()
	return nil
}

// Delete removes key from the trie. Deleting an absent key
// is a no-op that touches neither the store nor the root.
func (t *Trie) Delete(key []byte) error {
	t.beginMutation()
	root, err := t.resolveRoot(key, true)
	if err != nil {
		t.abortMutation()
		return err
	}

	newRoot, changed, err := t.remove(root, nil, trienode.ToNibbles(key), key)
	if err != nil {
		t.abortMutation()
		return err
	}
	if !changed {
		t.abortMutation()
		return nil
	}

	if err := t.commitRoot(newRoot); err != nil {
		t.abortMutation()
		return err
	}
	t.finishMutation()
	return nil
}

// lookup walks the resolved node n at prefix, consuming
// path until the key terminus or a divergence.
func (t *Trie) lookup(n trienode.Node, prefix, path []byte, key []byte) ([]byte, error) {
	switch v := n.(type) {
	case nil:
		return nil, nil

	case *trienode.LeafNode:
		if bytes.Equal(v.Path, path) {
			return v.Value, nil
		}
		return nil, nil

	case *trienode.ExtensionNode:
		if len(path) < len(v.Path) || !bytes.Equal(v.Path, path[:len(v.Path)]) {
			return nil, nil
		}
		at := appendNibbles(prefix, v.Path...)
		child, err := t.resolveNode(v.Child, at, key, false)
		if err != nil {
			return nil, err
		}
		return t.lookup(child, at, path[len(v.Path):], key)

	case *trienode.BranchNode:
		if len(path) == 0 {
			if len(v.Value) == 0 {
				return nil, nil
			}
			return v.Value, nil
		}
		at := appendNibbles(prefix, path[0])
		child, err := t.resolveNode(v.Children[path[0]], at, key, false)
		if err != nil {
			return nil, err
		}
		return t.lookup(child, at, path[1:], key)

	default:
		return nil, fmt.Errorf("%w: unresolved %T during lookup", ErrBadInvariant, n)
	}
}

// insert returns the replacement subtree for n after
// storing value under the remaining path. Children of the
// returned node are already committed references; the node
// itself is committed by its parent.
func (t *Trie) insert(n trienode.Node, prefix, path []byte, value []byte, key []byte) (trienode.Node, error) {
	switch v := n.(type) {
	case nil:
		return &trienode.LeafNode{Path: path, Value: value}, nil

	case *trienode.LeafNode:
		match := trienode.CommonPrefixLen(v.Path, path)
		if match == len(v.Path) && match == len(path) {
			return &trienode.LeafNode{Path: path, Value: value}, nil
		}
		branch := &trienode.BranchNode{}
		if err := t.branchOut(branch, v.Path[match:], v.Value, nil); err != nil {
			return nil, err
		}
		if err := t.branchOut(branch, path[match:], value, nil); err != nil {
			return nil, err
		}
		return t.wrapPrefix(branch, path[:match])

	case *trienode.ExtensionNode:
		match := trienode.CommonPrefixLen(v.Path, path)
		if match == len(v.Path) {
			at := appendNibbles(prefix, v.Path...)
			child, err := t.resolveNode(v.Child, at, key, true)
			if err != nil {
				return nil, err
			}
			newChild, err := t.insert(child, at, path[match:], value, key)
			if err != nil {
				return nil, err
			}
			ref, err := t.commitRef(newChild)
			if err != nil {
				return nil, err
			}
			return &trienode.ExtensionNode{Path: v.Path, Child: ref}, nil
		}
		branch := &trienode.BranchNode{}
		if err := t.branchOut(branch, v.Path[match:], nil, v.Child); err != nil {
			return nil, err
		}
		if err := t.branchOut(branch, path[match:], value, nil); err != nil {
			return nil, err
		}
		return t.wrapPrefix(branch, path[:match])

	case *trienode.BranchNode:
		if len(path) == 0 {
			nb := v.Copy()
			nb.Value = value
			return nb, nil
		}
		at := appendNibbles(prefix, path[0])
		child, err := t.resolveNode(v.Children[path[0]], at, key, true)
		if err != nil {
			return nil, err
		}
		newChild, err := t.insert(child, at, path[1:], value, key)
		if err != nil {
			return nil, err
		}
		ref, err := t.commitRef(newChild)
		if err != nil {
			return nil, err
		}
		nb := v.Copy()
		nb.Children[path[0]] = ref
		return nb, nil

	default:
		return nil, fmt.Errorf("%w: unresolved %T during insert", ErrBadInvariant, n)
	}
}

// branchOut places one side of a split into the branch: a
// value terminus when rest is empty, otherwise a truncated
// leaf (value set) or extension/direct reference (child
// set) under the slot named by the first nibble of rest.
func (t *Trie) branchOut(branch *trienode.BranchNode, rest []byte, value []byte, child trienode.Node) error {
	if len(rest) == 0 {
		if child != nil {
			return fmt.Errorf("%w: extension remainder cannot be empty", ErrBadInvariant)
		}
		branch.Value = value
		return nil
	}

	var entry trienode.Node
	if child != nil {
		if len(rest) == 1 {
			// The branch slot consumes the last nibble; the
			// existing reference is reused untouched.
			branch.Children[rest[0]] = child
			return nil
		}
		entry = &trienode.ExtensionNode{Path: rest[1:], Child: child}
	} else {
		entry = &trienode.LeafNode{Path: rest[1:], Value: value}
	}

	ref, err := t.commitRef(entry)
	if err != nil {
		return err
	}
	branch.Children[rest[0]] = ref
	return nil
}

// wrapPrefix precedes the split branch with an extension on
// the common prefix, when there is one.
func (t *Trie) wrapPrefix(branch *trienode.BranchNode, commonPrefix []byte) (trienode.Node, error) {
	if len(commonPrefix) == 0 {
		return branch, nil
	}
	ref, err := t.commitRef(branch)
	if err != nil {
		return nil, err
	}
	return &trienode.ExtensionNode{Path: commonPrefix, Child: ref}, nil
}

// remove returns the replacement subtree for n after
// deleting the remaining path, and whether anything
// changed. Nothing is written to the store until a change
// is confirmed at the terminus.
func (t *Trie) remove(n trienode.Node, prefix, path []byte, key []byte) (trienode.Node, bool, error) {
	switch v := n.(type) {
	case nil:
		return nil, false, nil

	case *trienode.LeafNode:
		if bytes.Equal(v.Path, path) {
			return nil, true, nil
		}
		return n, false, nil

	case *trienode.ExtensionNode:
		if len(path) < len(v.Path) || !bytes.Equal(v.Path, path[:len(v.Path)]) {
			return n, false, nil
		}
		at := appendNibbles(prefix, v.Path...)
		child, err := t.resolveNode(v.Child, at, key, true)
		if err != nil {
			return nil, false, err
		}
		newChild, changed, err := t.remove(child, at, path[len(v.Path):], key)
		if err != nil || !changed {
			return n, changed, err
		}

		switch c := newChild.(type) {
		case nil:
			return nil, true, nil
		case *trienode.LeafNode:
			return &trienode.LeafNode{Path: appendNibbles(v.Path, c.Path...), Value: c.Value}, true, nil
		case *trienode.ExtensionNode:
			return &trienode.ExtensionNode{Path: appendNibbles(v.Path, c.Path...), Child: c.Child}, true, nil
		case *trienode.BranchNode:
			ref, err := t.commitRef(c)
			if err != nil {
				return nil, false, err
			}
			return &trienode.ExtensionNode{Path: v.Path, Child: ref}, true, nil
		default:
			return nil, false, fmt.Errorf("%w: unexpected %T under extension", ErrBadInvariant, newChild)
		}

	case *trienode.BranchNode:
		if len(path) == 0 {
			if len(v.Value) == 0 {
				return n, false, nil
			}
			nb := v.Copy()
			nb.Value = nil
			return t.collapseBranch(nb, prefix, key)
		}

		if v.Children[path[0]] == nil {
			return n, false, nil
		}
		at := appendNibbles(prefix, path[0])
		child, err := t.resolveNode(v.Children[path[0]], at, key, true)
		if err != nil {
			return nil, false, err
		}
		newChild, changed, err := t.remove(child, at, path[1:], key)
		if err != nil || !changed {
			return n, changed, err
		}

		nb := v.Copy()
		if newChild == nil {
			nb.Children[path[0]] = nil
			return t.collapseBranch(nb, prefix, key)
		}
		ref, err := t.commitRef(newChild)
		if err != nil {
			return nil, false, err
		}
		nb.Children[path[0]] = ref
		return nb, true, nil

	default:
		return nil, false, fmt.Errorf("%w: unresolved %T during delete", ErrBadInvariant, n)
	}
}

// collapseBranch restores canonical form after a branch
// lost a child or its value.
func (t *Trie) collapseBranch(b *trienode.BranchNode, prefix, key []byte) (trienode.Node, bool, error) {
	count := b.ChildCount()
	switch {
	case count >= 2:
		return b, true, nil
	case count == 1 && len(b.Value) > 0:
		return b, true, nil
	case count == 0 && len(b.Value) > 0:
		// The leaf path is empty; a parent extension merges
		// it, and at the root it stands alone.
		return &trienode.LeafNode{Value: b.Value}, true, nil
	case count == 0:
		return nil, true, nil
	}

	// A single child and no value: the branch folds into
	// its survivor, the slot nibble rejoining the path.
	var idx byte
	for i, child := range b.Children {
		if child != nil {
			idx = byte(i)
			break
		}
	}
	childRef := b.Children[idx]
	at := appendNibbles(prefix, idx)
	child, err := t.resolveNode(childRef, at, key, false)
	if err != nil {
		return nil, false, err
	}

	switch c := child.(type) {
	case *trienode.LeafNode:
		t.stage(childRef)
		return &trienode.LeafNode{Path: appendNibbles([]byte{idx}, c.Path...), Value: c.Value}, true, nil
	case *trienode.ExtensionNode:
		t.stage(childRef)
		return &trienode.ExtensionNode{Path: appendNibbles([]byte{idx}, c.Path...), Child: c.Child}, true, nil
	case *trienode.BranchNode:
		// The surviving branch body keeps its reference; it
		// only gains an extension on top.
		return &trienode.ExtensionNode{Path: []byte{idx}, Child: childRef}, true, nil
	default:
		return nil, false, fmt.Errorf("%w: blank child slot survived collapse", ErrBadInvariant)
	}
}

// resolveRoot loads the root node, or nil for the empty
// trie.
func (t *Trie) resolveRoot(key []byte, mutating bool) (trienode.Node, error) {
	if t.root == EmptyRoot {
		return nil, nil
	}
	return t.resolveNode(trienode.HashNode(t.root.Bytes()), nil, key, mutating)
}

// resolveNode loads n from the store when it is a hash
// reference and returns it unchanged otherwise. During a
// mutation the resolved body is staged for pruning, since
// every node on the traversed spine is about to be
// superseded.
func (t *Trie) resolveNode(n trienode.Node, prefix, key []byte, mutating bool) (trienode.Node, error) {
	hash, ok := n.(trienode.HashNode)
	if !ok {
		return n, nil
	}

	h := common.BytesToHash(hash)
	resolved, err := t.db.Node(h)
	if err != nil {
		if errors.Is(err, errNodeMissing) {
			return nil, &MissingNodeError{
				NodeHash: h,
				Key:      append([]byte{}, key...),
				Prefix:   prefix,
				Root:     t.root,
			}
		}
		return nil, err
	}

	if mutating {
		t.stage(n)
	}
	return resolved, nil
}

// commitRef turns a rebuilt node into the reference its
// parent embeds: the node itself when its encoding is
// shorter than 32 bytes, otherwise the hash of the body
// written to the store.
func (t *Trie) commitRef(n trienode.Node) (trienode.Node, error) {
	switch n.(type) {
	case nil, trienode.HashNode:
		return n, nil
	}

	enc, err := trienode.EncodeNode(n)
	if err != nil {
		return nil, err
	}
	if len(enc) < trienode.HashLen {
		return n, nil
	}

	hash, err := t.db.insert(enc)
	if err != nil {
		return nil, err
	}
	t.markFresh(hash)
	return trienode.HashNode(hash.Bytes()), nil
}

// commitRoot persists the new root node and moves the root
// hash. The root body is always stored by hash, whatever
// its size; the blank root is never persisted.
func (t *Trie) commitRoot(n trienode.Node) error {
	if n == nil {
		t.root = EmptyRoot
		return nil
	}

	enc, err := trienode.EncodeNode(n)
	if err != nil {
		return err
	}
	hash, err := t.db.insert(enc)
	if err != nil {
		return err
	}
	t.markFresh(hash)
	t.root = hash
	return nil
}

// beginMutation resets the pruning ledger for one public
// mutation.
func (t *Trie) beginMutation() {
	t.stale = t.stale[:0]
	if t.prune {
		t.fresh = make(map[common.Hash]struct{})
	}
}

// abortMutation discards staged prune candidates after a
// fault or a no-op.
func (t *Trie) abortMutation() {
	t.stale = nil
	t.fresh = nil
}

// finishMutation deletes superseded bodies now that the new
// root is committed. Bodies re-written by this mutation are
// kept; so is the current root.
func (t *Trie) finishMutation() {
	if !t.prune {
		t.stale = nil
		return
	}

	for _, h := range t.stale {
		if _, ok := t.fresh[h]; ok {
			continue
		}
		if h == t.root {
			continue
		}
		t.db.remove(h)
	}
	t.stale = nil
	t.fresh = nil
}

// stage records a superseded hash reference for deletion.
// Inlined nodes have no storage key and are never staged.
func (t *Trie) stage(n trienode.Node) {
	if !t.prune {
		return
	}
	if hash, ok := n.(trienode.HashNode); ok {
		t.stale = append(t.stale, common.BytesToHash(hash))
	}
}

// markFresh records a body written by this mutation so a
// matching stale entry does not delete it again.
func (t *Trie) markFresh(hash common.Hash) {
	if t.fresh != nil {
		t.fresh[hash] = struct{}{}
	}
}

// appendNibbles concatenates nibble sequences into a fresh
// slice, so recursion frames never share backing arrays.
func appendNibbles(prefix []byte, nibbles ...byte) []byte {
	out := make([]byte, 0, len(prefix)+len(nibbles))
	out = append(out, prefix...)
	return append(out, nibbles...)
}
