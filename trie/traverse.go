package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"hextrie/trie/trienode"
)

// AnnotatedNode is the walker-facing view of a trie node at
// a traversal position.
type AnnotatedNode struct {
	// Raw is the decoded node body, blank for an empty
	// position.
	Raw trienode.Node

	// SubSegments lists the nibble edges leading out of
	// this node: one single-nibble segment per occupied
	// branch slot, the full path for an extension, nothing
	// for a leaf or blank node.
	SubSegments [][]byte

	// Value is the terminal value carried at or below this
	// position: a branch's value slot, or a leaf's value
	// (reached after Suffix more nibbles).
	Value []byte

	// Suffix is a leaf's remaining path.
	Suffix []byte
}

// Traverse walks down from the root, consuming exactly the
// given nibble path, and annotates the node it lands on. A
// blank annotation means nothing is stored at or below that
// position. A path ending inside a leaf's or extension's
// segment fails with a PartialPathError carrying the
// sliced-off tail.
func (t *Trie) Traverse(path []byte) (AnnotatedNode, error) {
	if t.root == EmptyRoot {
		return AnnotatedNode{}, nil
	}
	return t.traverse(trienode.HashNode(t.root.Bytes()), nil, path)
}

// TraverseFrom behaves like Traverse but starts at the
// supplied node body instead of the root, saving the walk
// down. Prefixes in errors are relative to the given node.
func (t *Trie) TraverseFrom(n trienode.Node, path []byte) (AnnotatedNode, error) {
	return t.traverse(n, nil, path)
}

func (t *Trie) traverse(n trienode.Node, consumed, path []byte) (AnnotatedNode, error) {
	for {
		resolved, err := t.resolveTraversal(n, consumed)
		if err != nil {
			return AnnotatedNode{}, err
		}
		n = resolved

		if len(path) == 0 {
			return annotate(n), nil
		}

		switch v := n.(type) {
		case nil:
			return AnnotatedNode{}, nil

		case *trienode.LeafNode:
			match := trienode.CommonPrefixLen(v.Path, path)
			if match == len(path) && match < len(v.Path) {
				return AnnotatedNode{}, &PartialPathError{
					Prefix:    consumed,
					Consumed:  path,
					Simulated: &trienode.LeafNode{Path: v.Path[match:], Value: v.Value},
				}
			}
			if match == len(v.Path) && match == len(path) {
				return annotate(&trienode.LeafNode{Value: v.Value}), nil
			}
			// The target diverges from, or continues past,
			// the leaf: nothing is stored there.
			return AnnotatedNode{}, nil

		case *trienode.ExtensionNode:
			match := trienode.CommonPrefixLen(v.Path, path)
			if match == len(path) && match < len(v.Path) {
				return AnnotatedNode{}, &PartialPathError{
					Prefix:    consumed,
					Consumed:  path,
					Simulated: &trienode.ExtensionNode{Path: v.Path[match:], Child: v.Child},
				}
			}
			if match < len(v.Path) {
				return AnnotatedNode{}, nil
			}
			consumed = appendNibbles(consumed, v.Path...)
			path = path[match:]
			n = v.Child

		case *trienode.BranchNode:
			child := v.Children[path[0]]
			if child == nil {
				return AnnotatedNode{}, nil
			}
			consumed = appendNibbles(consumed, path[0])
			path = path[1:]
			n = child

		default:
			return AnnotatedNode{}, fmt.Errorf("%w: unresolved %T during traversal", ErrBadInvariant, n)
		}
	}
}

// resolveTraversal loads a hash reference for a traversal,
// reporting a miss without user-key context.
func (t *Trie) resolveTraversal(n trienode.Node, prefix []byte) (trienode.Node, error) {
	hash, ok := n.(trienode.HashNode)
	if !ok {
		return n, nil
	}

	h := common.BytesToHash(hash)
	resolved, err := t.db.Node(h)
	if err != nil {
		if errors.Is(err, errNodeMissing) {
			return nil, &MissingTraversalError{NodeHash: h, Prefix: prefix}
		}
		return nil, err
	}
	return resolved, nil
}

// annotate builds the walker view of a resolved node.
func annotate(n trienode.Node) AnnotatedNode {
	switch v := n.(type) {
	case nil:
		return AnnotatedNode{}

	case *trienode.LeafNode:
		return AnnotatedNode{Raw: v, Value: v.Value, Suffix: v.Path}

	case *trienode.ExtensionNode:
		return AnnotatedNode{Raw: v, SubSegments: [][]byte{v.Path}}

	case *trienode.BranchNode:
		segments := make([][]byte, 0, trienode.BranchWidth)
		for i, child := range v.Children {
			if child != nil {
				segments = append(segments, []byte{byte(i)})
			}
		}
		return AnnotatedNode{Raw: v, SubSegments: segments, Value: v.Value}

	default:
		return AnnotatedNode{Raw: n}
	}
}
