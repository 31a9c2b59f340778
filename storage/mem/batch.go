package mem

import (
	"hextrie/storage"
)

// pair is a single key-value pair.
type pair struct {
	key string
	val []byte // nil if marked for deletion
	del bool
}

// batch is a write-only collection of key-value
// pairs. Changes are reflected after the Write
// method is called. Note that batch is not safe
// for concurrent use.
type batch struct {
	db    *Database
	pairs []pair
	size  int
}

// NewBatch creates a new write-only batch.
func (db *Database) NewBatch() storage.Batch {
	return &batch{
		db:    db,
		pairs: make([]pair, 0),
	}
}

// NewBatchWithSize creates a write-only batch
// with a pre-allocated buffer of the specified
// size.
func (db *Database) NewBatchWithSize(size int) storage.Batch {
	return &batch{
		db:    db,
		pairs: make([]pair, 0, size),
	}
}

// Put inserts the specified key-value pair
// into the batch.
func (b *batch) Put(key, val []byte) error {
	b.pairs = append(b.pairs, pair{
		key: string(key),
		val: storage.CopyBytes(val),
	})
	b.size += len(key) + len(val)
	return nil
}

// Delete marks the specified key for deletion
// in the batch.
func (b *batch) Delete(key []byte) error {
	b.pairs = append(b.pairs, pair{
		key: string(key),
		del: true,
	})
	b.size += len(key)
	return nil
}

// ValueSize retrieves the total size of data
// queued up for writing in the batch.
func (b *batch) ValueSize() int {
	return b.size
}

// Write commits changes in the batch to the
// underlying database.
func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.db == nil {
		return storage.ErrDbClosed
	}

	for _, item := range b.pairs {
		if item.del {
			delete(b.db.db, item.key)
		} else {
			b.db.db[item.key] = item.val
		}
	}

	return nil
}

// Reset clears the batch for reuse.
func (b *batch) Reset() {
	b.pairs = b.pairs[:0]
	b.size = 0
}

// Replay replays the batch contents to
// the specified writer.
func (b *batch) Replay(w storage.KeyValWriter) error {
	for _, item := range b.pairs {
		if item.del {
			if err := w.Delete([]byte(item.key)); err != nil {
				return err
			}
		} else {
			if err := w.Put([]byte(item.key), item.val); err != nil {
				return err
			}
		}
	}

	return nil
}
