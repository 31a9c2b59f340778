package trienode

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

const (
	// shortNodeItems is the RLP item count of a leaf
	// or extension node.
	shortNodeItems = 2

	// fullNodeItems is the RLP item count of a branch node.
	fullNodeItems = BranchWidth + 1
)

// HashLen is the length of a node storage key.
const HashLen = 32

// DecodeNode parses an RLP-encoded node body into its typed
// form. Inlined children are decoded recursively. The empty
// byte string decodes to the blank node (nil).
func DecodeNode(raw []byte) (Node, error) {
	var items interface{}
	if err := rlp.DecodeBytes(raw, &items); err != nil {
		return nil, fmt.Errorf("malformed node body: %w", err)
	}

	switch v := items.(type) {
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("node body is a %d-byte string, expected list", len(v))
	case []interface{}:
		return decodeItems(v)
	default:
		return nil, fmt.Errorf("unexpected node shape %T", items)
	}
}

// EncodeNode serializes a typed node back to its RLP body.
// The blank node encodes to the empty byte string.
func EncodeNode(n Node) ([]byte, error) {
	item, err := nodeItem(n)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(item)
}

// decodeItems converts a decoded RLP list into a typed node.
func decodeItems(items []interface{}) (Node, error) {
	switch len(items) {
	case shortNodeItems:
		return decodeShort(items)
	case fullNodeItems:
		return decodeFull(items)
	default:
		return nil, fmt.Errorf("invalid node item count %d", len(items))
	}
}

// decodeShort decodes a 2-item list into a leaf or extension
// node, dispatching on the compact path flag.
func decodeShort(items []interface{}) (Node, error) {
	compact, ok := items[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("short node path is not a byte string")
	}

	isLeaf, path, err := DecodeCompact(compact)
	if err != nil {
		return nil, fmt.Errorf("short node path: %w", err)
	}

	if isLeaf {
		value, ok := items[1].([]byte)
		if !ok {
			return nil, fmt.Errorf("leaf value is not a byte string")
		}
		return &LeafNode{Path: path, Value: value}, nil
	}

	child, err := decodeRef(items[1])
	if err != nil {
		return nil, fmt.Errorf("extension child: %w", err)
	}
	if child == nil {
		return nil, fmt.Errorf("extension with blank child")
	}
	return &ExtensionNode{Path: path, Child: child}, nil
}

// decodeFull decodes a 17-item list into a branch node.
func decodeFull(items []interface{}) (Node, error) {
	branch := &BranchNode{}
	for i := 0; i < BranchWidth; i++ {
		child, err := decodeRef(items[i])
		if err != nil {
			return nil, fmt.Errorf("branch slot %x: %w", i, err)
		}
		branch.Children[i] = child
	}

	value, ok := items[BranchWidth].([]byte)
	if !ok {
		return nil, fmt.Errorf("branch value is not a byte string")
	}
	branch.Value = value
	return branch, nil
}

// decodeRef decodes a child reference: the empty string is
// blank, a 32-byte string is a storage key, and a nested
// list is an inlined node body.
func decodeRef(item interface{}) (Node, error) {
	switch v := item.(type) {
	case []byte:
		switch len(v) {
		case 0:
			return nil, nil
		case HashLen:
			return HashNode(v), nil
		default:
			return nil, fmt.Errorf("invalid reference length %d", len(v))
		}
	case []interface{}:
		return decodeItems(v)
	default:
		return nil, fmt.Errorf("unexpected reference shape %T", item)
	}
}

// nodeItem converts a typed node into the nested byte-list
// form consumed by the RLP encoder.
func nodeItem(n Node) (interface{}, error) {
	switch v := n.(type) {
	case nil:
		return []byte{}, nil
	case *LeafNode:
		return []interface{}{EncodeCompact(true, v.Path), v.Value}, nil
	case *ExtensionNode:
		child, err := refItem(v.Child)
		if err != nil {
			return nil, err
		}
		return []interface{}{EncodeCompact(false, v.Path), child}, nil
	case *BranchNode:
		items := make([]interface{}, fullNodeItems)
		for i, c := range v.Children {
			ref, err := refItem(c)
			if err != nil {
				return nil, err
			}
			items[i] = ref
		}
		items[BranchWidth] = v.Value
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected node type %T", n)
	}
}

// refItem converts a child reference into its RLP item:
// blank becomes the empty string, a hash reference its raw
// bytes, and anything else the inlined node body.
func refItem(n Node) (interface{}, error) {
	switch v := n.(type) {
	case nil:
		return []byte{}, nil
	case HashNode:
		return []byte(v), nil
	default:
		return nodeItem(n)
	}
}
