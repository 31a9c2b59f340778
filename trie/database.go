package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"hextrie/log"
	"hextrie/storage"
	"hextrie/trie/trienode"
)

// EmptyRoot is the root hash of the empty trie: the keccak
// of the RLP encoding of the empty byte string. The empty
// root body is never persisted.
var EmptyRoot = types.EmptyRootHash

// errNodeMissing distinguishes an absent node body from
// other store failures.
var errNodeMissing = errors.New("node body not found")

// Database reads and writes node bodies against a backing
// key-value store. Bodies are keyed by the keccak digest of
// their RLP encoding, one entry per distinct body.
type Database struct {
	store storage.KeyValStore
	log   log.Logger
}

// NewDatabase wraps the given store as a node database.
func NewDatabase(store storage.KeyValStore) *Database {
	return &Database{
		store: store,
		log:   log.Discard(),
	}
}

// WithLogger attaches a logger for pruning diagnostics.
func (db *Database) WithLogger(l log.Logger) *Database {
	db.log = l.With("component", "trie-db")
	return db
}

// Node reads and decodes the node body stored under the
// given hash. A miss is reported as errNodeMissing so the
// caller can attach traversal context.
func (db *Database) Node(hash common.Hash) (trienode.Node, error) {
	body, err := db.store.Get(hash[:])
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, errNodeMissing
		}
		return nil, fmt.Errorf("read node %x: %w", hash, err)
	}

	n, err := trienode.DecodeNode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: node %x: %v", ErrBadInvariant, hash, err)
	}
	return n, nil
}

// Contains checks whether a node body is present.
func (db *Database) Contains(hash common.Hash) (bool, error) {
	return db.store.Has(hash[:])
}

// insert persists an encoded node body under the keccak of
// its encoding and returns that storage key.
func (db *Database) insert(body []byte) (common.Hash, error) {
	hash := crypto.Keccak256Hash(body)
	if err := db.store.Put(hash[:], body); err != nil {
		return common.Hash{}, fmt.Errorf("write node %x: %w", hash, err)
	}
	return hash, nil
}

// remove deletes a superseded node body. Deletion is
// best-effort: a failed delete is logged, not escalated.
func (db *Database) remove(hash common.Hash) {
	if err := db.store.Delete(hash[:]); err != nil {
		db.log.Warn("prune delete failed", "node", hash, "err", err)
		return
	}
	db.log.Debug("pruned node body", "node", hash)
}
