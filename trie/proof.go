package trie

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"hextrie/trie/trienode"
)

// Prove builds a Merkle proof for key: the ordered node
// bodies on the path from the root to the key's value, or
// to the divergence point showing the key absent. Inlined
// nodes ride along inside their parent's body and get no
// element of their own. The proof for any key of the empty
// trie is empty.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	proof := make([][]byte, 0, 8)
	if t.root == EmptyRoot {
		return proof, nil
	}

	var (
		n      trienode.Node = trienode.HashNode(t.root.Bytes())
		path                 = trienode.ToNibbles(key)
		prefix []byte
	)
	for {
		if hash, ok := n.(trienode.HashNode); ok {
			resolved, err := t.resolveNode(hash, prefix, key, false)
			if err != nil {
				return nil, err
			}
			body, err := trienode.EncodeNode(resolved)
			if err != nil {
				return nil, err
			}
			proof = append(proof, body)
			n = resolved
		}

		switch v := n.(type) {
		case nil:
			return proof, nil

		case *trienode.LeafNode:
			return proof, nil

		case *trienode.ExtensionNode:
			if len(path) < len(v.Path) || !bytes.Equal(v.Path, path[:len(v.Path)]) {
				return proof, nil
			}
			prefix = appendNibbles(prefix, v.Path...)
			path = path[len(v.Path):]
			n = v.Child

		case *trienode.BranchNode:
			if len(path) == 0 {
				return proof, nil
			}
			child := v.Children[path[0]]
			if child == nil {
				return proof, nil
			}
			prefix = appendNibbles(prefix, path[0])
			path = path[1:]
			n = child

		default:
			return nil, fmt.Errorf("%w: unexpected %T during proof", ErrBadInvariant, n)
		}
	}
}

// VerifyProof checks a proof against a claimed root hash
// and walks it for key. It returns the proven value for an
// inclusion proof, nil for a valid exclusion proof, and
// ErrInvalidProof when any referenced body is malformed or
// its digest does not match.
func VerifyProof(root common.Hash, key []byte, proof [][]byte) ([]byte, error) {
	if root == EmptyRoot && len(proof) == 0 {
		return nil, nil
	}

	bodies := make(map[common.Hash][]byte, len(proof))
	for _, body := range proof {
		bodies[crypto.Keccak256Hash(body)] = body
	}

	var (
		n    trienode.Node = trienode.HashNode(root.Bytes())
		path               = trienode.ToNibbles(key)
	)
	for {
		switch v := n.(type) {
		case trienode.HashNode:
			body, ok := bodies[common.BytesToHash(v)]
			if !ok {
				return nil, fmt.Errorf("%w: no body for node %x", ErrInvalidProof, []byte(v))
			}
			decoded, err := trienode.DecodeNode(body)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidProof, err)
			}
			n = decoded

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
			path = path[len(v.Path):]
			n = v.Child

		case *trienode.BranchNode:
			if len(path) == 0 {
				if len(v.Value) == 0 {
					return nil, nil
				}
				return v.Value, nil
			}
			child := v.Children[path[0]]
			if child == nil {
				return nil, nil
			}
			path = path[1:]
			n = child

		default:
			return nil, fmt.Errorf("%w: unexpected node %T", ErrInvalidProof, n)
		}
	}
}
