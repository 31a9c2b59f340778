package trie

import (
	"hextrie/trie/trienode"
)

// iterState is one frame of the iterator's explicit stack.
type iterState struct {
	node trienode.Node
	path []byte
	next int
}

// NodeIterator is a lazy depth-first walk over the current
// root. Nodes are visited in pre-order, which yields key
// termini in nibble-lexicographic order. Key and Value are
// non-nil only at termini: leaves, and branches carrying a
// value.
//
// An iterator reads the trie's root on its first Next call
// and keeps walking that root's nodes afterwards; restart
// by creating a fresh one.
type NodeIterator struct {
	trie     *Trie
	stack    []*iterState
	err      error
	started  bool
	released bool
}

// NewNodeIterator creates an iterator positioned before the
// root node.
func (t *Trie) NewNodeIterator() *NodeIterator {
	return &NodeIterator{trie: t}
}

// Next moves the iterator to the next node and reports
// whether one exists.
func (it *NodeIterator) Next() bool {
	if it.err != nil || it.released {
		return false
	}

	if !it.started {
		it.started = true
		if it.trie.root == EmptyRoot {
			return false
		}
		root, err := it.trie.resolveTraversal(trienode.HashNode(it.trie.root.Bytes()), nil)
		if err != nil {
			it.err = err
			return false
		}
		it.stack = append(it.stack, &iterState{node: root})
		return true
	}

	for len(it.stack) > 0 {
		top := it.stack[len(it.stack)-1]

		switch v := top.node.(type) {
		case *trienode.LeafNode:
			it.pop()

		case *trienode.ExtensionNode:
			if top.next > 0 {
				it.pop()
				continue
			}
			top.next = 1
			if !it.push(v.Child, appendNibbles(top.path, v.Path...)) {
				return false
			}
			return true

		case *trienode.BranchNode:
			descended := false
			for top.next < trienode.BranchWidth {
				idx := top.next
				top.next++
				if v.Children[idx] == nil {
					continue
				}
				if !it.push(v.Children[idx], appendNibbles(top.path, byte(idx))) {
					return false
				}
				descended = true
				break
			}
			if descended {
				return true
			}
			it.pop()

		default:
			it.pop()
		}
	}
	return false
}

// push resolves a child reference and makes it the current
// node.
func (it *NodeIterator) push(n trienode.Node, path []byte) bool {
	resolved, err := it.trie.resolveTraversal(n, path)
	if err != nil {
		it.err = err
		return false
	}
	it.stack = append(it.stack, &iterState{node: resolved, path: path})
	return true
}

func (it *NodeIterator) pop() {
	it.stack = it.stack[:len(it.stack)-1]
}

// Node returns the current node body, or nil if the
// iterator is not positioned.
func (it *NodeIterator) Node() trienode.Node {
	if len(it.stack) == 0 {
		return nil
	}
	return it.stack[len(it.stack)-1].node
}

// Path returns the nibble position of the current node.
func (it *NodeIterator) Path() []byte {
	if len(it.stack) == 0 {
		return nil
	}
	return it.stack[len(it.stack)-1].path
}

// Key returns the full byte key terminating at the current
// node, or nil if the current node is not a terminus.
func (it *NodeIterator) Key() []byte {
	if len(it.stack) == 0 {
		return nil
	}
	top := it.stack[len(it.stack)-1]

	switch v := top.node.(type) {
	case *trienode.LeafNode:
		key, err := trienode.FromNibbles(appendNibbles(top.path, v.Path...))
		if err != nil {
			return nil
		}
		return key
	case *trienode.BranchNode:
		if len(v.Value) == 0 {
			return nil
		}
		key, err := trienode.FromNibbles(top.path)
		if err != nil {
			return nil
		}
		return key
	default:
		return nil
	}
}

// Value returns the value terminating at the current node,
// or nil if the current node is not a terminus.
func (it *NodeIterator) Value() []byte {
	if len(it.stack) == 0 {
		return nil
	}

	switch v := it.stack[len(it.stack)-1].node.(type) {
	case *trienode.LeafNode:
		return v.Value
	case *trienode.BranchNode:
		if len(v.Value) == 0 {
			return nil
		}
		return v.Value
	default:
		return nil
	}
}

// Error returns any store fault hit during the walk.
func (it *NodeIterator) Error() error {
	return it.err
}

// Release releases the iterator; further Next calls return
// false.
func (it *NodeIterator) Release() {
	it.stack = nil
	it.released = true
}
