package trie

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"hextrie/trie/trienode"
)

// Fog tracks the unexplored prefixes of a logical trie
// walk. A fresh fog holds the single empty prefix: nothing
// is known yet. Fog values are immutable; Explore returns a
// new fog. The fog knows nothing about an actual trie — a
// walker pairs it with Traverse calls.
type Fog struct {
	// prefixes is kept in nibble-lexicographic order.
	prefixes [][]byte
}

// NewFog creates a fog covering the whole keyspace.
func NewFog() Fog {
	return Fog{prefixes: [][]byte{{}}}
}

// IsComplete reports whether no unexplored prefixes remain.
func (f Fog) IsComplete() bool {
	return len(f.prefixes) == 0
}

// NearestUnknown returns the unexplored prefix closest to
// target in nibble-lexicographic distance, ties broken by
// the smaller (leftward) neighbor. Passing a nil target
// yields the leftmost unexplored prefix. A complete fog
// fails with ErrPerfectVisibility.
func (f Fog) NearestUnknown(target []byte) ([]byte, error) {
	if f.IsComplete() {
		return nil, ErrPerfectVisibility
	}

	idx := sort.Search(len(f.prefixes), func(i int) bool {
		return bytes.Compare(f.prefixes[i], target) >= 0
	})
	switch idx {
	case 0:
		return f.prefixes[0], nil
	case len(f.prefixes):
		return f.prefixes[idx-1], nil
	}

	left, right := f.prefixes[idx-1], f.prefixes[idx]
	if prefixDistance(right, target).Cmp(prefixDistance(left, target)) < 0 {
		return right, nil
	}
	return left, nil
}

// NearestRight returns the smallest unexplored prefix at or
// right of target. An unexplored prefix of the target
// itself counts: it covers keys at and beyond the target.
// Fails with ErrFullDirectionalVisibility when everything
// rightward is explored.
func (f Fog) NearestRight(target []byte) ([]byte, error) {
	idx := sort.Search(len(f.prefixes), func(i int) bool {
		return bytes.Compare(f.prefixes[i], target) >= 0
	})
	if idx > 0 && bytes.HasPrefix(target, f.prefixes[idx-1]) {
		return f.prefixes[idx-1], nil
	}
	if idx < len(f.prefixes) {
		return f.prefixes[idx], nil
	}
	return nil, ErrFullDirectionalVisibility
}

// Explore produces a fog where prefix is resolved into its
// outgoing edges: the prefix itself disappears and each
// sub-segment extends it as a new unexplored prefix. A leaf
// or blank position explores with no sub-segments and
// simply clears. Exploring a prefix already absent returns
// the fog unchanged.
func (f Fog) Explore(prefix []byte, subSegments [][]byte) Fog {
	idx := sort.Search(len(f.prefixes), func(i int) bool {
		return bytes.Compare(f.prefixes[i], prefix) >= 0
	})
	if idx == len(f.prefixes) || !bytes.Equal(f.prefixes[idx], prefix) {
		return f
	}

	next := make([][]byte, 0, len(f.prefixes)+len(subSegments)-1)
	next = append(next, f.prefixes[:idx]...)
	for _, seg := range subSegments {
		next = append(next, appendNibbles(prefix, seg...))
	}
	next = append(next, f.prefixes[idx+1:]...)

	sort.Slice(next, func(i, j int) bool {
		return bytes.Compare(next[i], next[j]) < 0
	})
	return Fog{prefixes: next}
}

// Serialize encodes the fog for storage or transfer.
func (f Fog) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(f.prefixes)
}

// DeserializeFog restores a fog from its serialized form.
func DeserializeFog(data []byte) (Fog, error) {
	var prefixes [][]byte
	if err := rlp.DecodeBytes(data, &prefixes); err != nil {
		return Fog{}, fmt.Errorf("malformed fog: %w", err)
	}

	for _, prefix := range prefixes {
		for _, nib := range prefix {
			if nib >= trienode.BranchWidth {
				return Fog{}, fmt.Errorf("malformed fog: nibble %#x out of range", nib)
			}
		}
	}
	sort.Slice(prefixes, func(i, j int) bool {
		return bytes.Compare(prefixes[i], prefixes[j]) < 0
	})
	return Fog{prefixes: prefixes}, nil
}

func (f Fog) String() string {
	return fmt.Sprintf("Fog{%d unexplored}", len(f.prefixes))
}

// prefixDistance measures how far apart two nibble
// sequences sit in the keyspace, reading each as a
// left-aligned base-16 fraction. A sequence that is a
// prefix of the other contains it: distance zero.
func prefixDistance(a, b []byte) *big.Int {
	if bytes.HasPrefix(a, b) || bytes.HasPrefix(b, a) {
		return new(big.Int)
	}

	width := len(a)
	if len(b) > width {
		width = len(b)
	}
	d := new(big.Int).Sub(alignNibbles(a, width), alignNibbles(b, width))
	return d.Abs(d)
}

// alignNibbles reads a nibble sequence as an integer,
// right-padded with zeros to the given width.
func alignNibbles(p []byte, width int) *big.Int {
	v := new(big.Int)
	for _, nib := range p {
		v.Lsh(v, 4)
		v.Or(v, big.NewInt(int64(nib)))
	}
	return v.Lsh(v, uint(4*(width-len(p))))
}
