package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hextrie/trie/trienode"
)

var (
	// ErrInvalidProof is returned when proof verification
	// fails structurally: a malformed node body, a digest
	// mismatch, or a reference into a body the proof does
	// not contain.
	ErrInvalidProof = errors.New("invalid proof")

	// ErrPerfectVisibility is returned by a fog with no
	// unexplored prefixes left anywhere.
	ErrPerfectVisibility = errors.New("fog fully explored")

	// ErrFullDirectionalVisibility is returned by a fog
	// with no unexplored prefixes at or right of the
	// requested target.
	ErrFullDirectionalVisibility = errors.New("fog fully explored rightwards")

	// ErrBadInvariant wraps internal consistency failures.
	// It is never produced by well-formed input.
	ErrBadInvariant = errors.New("trie invariant violated")
)

// MissingNodeError is returned by trie operations when a
// referenced node body cannot be resolved from the store.
type MissingNodeError struct {
	// NodeHash is the storage key that could not be read.
	NodeHash common.Hash

	// Key is the full key the failing operation was
	// working on.
	Key []byte

	// Prefix holds the nibbles traversed from the root up
	// to the missing reference.
	Prefix []byte

	// Root is the trie root hash at the time of the fault.
	Root common.Hash
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("missing trie node %x (key %x, prefix %x, root %x)",
		e.NodeHash, e.Key, e.Prefix, e.Root)
}

// MissingTraversalError is the traversal-side twin of
// MissingNodeError. Traversals operate on nibble prefixes
// rather than user keys, so only the prefix is known.
type MissingTraversalError struct {
	NodeHash common.Hash
	Prefix   []byte
}

func (e *MissingTraversalError) Error() string {
	return fmt.Sprintf("missing trie node %x at prefix %x", e.NodeHash, e.Prefix)
}

// PartialPathError signals that a traversal target ended
// inside the compact path of a leaf or extension node. It
// is non-fatal: the simulated node carries the unconsumed
// tail as a standalone node, letting a walker resume from
// the traversal point.
type PartialPathError struct {
	// Prefix is the position of the node whose path the
	// traversal stopped inside.
	Prefix []byte

	// Consumed is the part of the node's path covered by
	// the traversal target.
	Consumed []byte

	// Simulated is the tail of the sliced node: a leaf or
	// extension whose path is the unconsumed portion.
	Simulated trienode.Node
}

func (e *PartialPathError) Error() string {
	return fmt.Sprintf("traversal ended inside node path at prefix %x (consumed %x)",
		e.Prefix, e.Consumed)
}

// Annotation reports the simulated tail node in annotated
// form, ready for fog exploration.
func (e *PartialPathError) Annotation() AnnotatedNode {
	return annotate(e.Simulated)
}
