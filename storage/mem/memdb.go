package mem

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"hextrie/storage"
)

// Database is an in-memory key-value store.
type Database struct {
	db   map[string][]byte
	lock sync.RWMutex
}

// New creates a new in-memory database.
func New() *Database {
	return &Database{
		db: make(map[string][]byte),
	}
}

// Close deallocates the database. Has, Get, Put, Delete,
// Stat and batch writes fail with ErrDbClosed afterwards;
// Len reports zero and NewIterator yields no pairs.
func (db *Database) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.db = nil
	return nil
}

// Has checks if the specified key exists in
// the database.
func (db *Database) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return false, storage.ErrDbClosed
	}

	_, ok := db.db[string(key)]
	return ok, nil
}

// Get retrieves the value associated with the specified
// key, if present.
func (db *Database) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return nil, storage.ErrDbClosed
	}

	if val, ok := db.db[string(key)]; ok {
		return storage.CopyBytes(val), nil
	}

	return nil, storage.ErrKeyNotFound
}

// Put inserts the specified key-value pair into
// the database.
func (db *Database) Put(key, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return storage.ErrDbClosed
	}

	db.db[string(key)] = storage.CopyBytes(value)
	return nil
}

// Delete removes the specified key from the database.
func (db *Database) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return storage.ErrDbClosed
	}

	delete(db.db, string(key))
	return nil
}

// Len returns the number of keys currently stored.
func (db *Database) Len() int {
	db.lock.RLock()
	defer db.lock.RUnlock()

	return len(db.db)
}

// Stat returns statistic data of the database.
func (db *Database) Stat() (string, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return "", storage.ErrDbClosed
	}

	return fmt.Sprintf("Memory DB: %d keys stored", len(db.db)), nil
}

// NewIterator creates a binary-alphabetical
// iterator over a subset of the database
// content with the specified key prefix,
// starting at the specified initial key.
func (db *Database) NewIterator(prefix, start []byte) storage.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()

	pr := string(prefix)
	st := string(append(append([]byte{}, prefix...), start...))

	pairs := make([]pair, 0, len(db.db))
	for k, v := range db.db {
		if strings.HasPrefix(k, pr) && k >= st {
			pairs = append(pairs, pair{
				key: k,
				val: storage.CopyBytes(v),
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].key < pairs[j].key
	})

	return &iterator{
		idx:   -1,
		pairs: pairs,
	}
}
