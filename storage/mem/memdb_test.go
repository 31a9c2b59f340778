package mem

import (
	"bytes"
	"testing"

	"hextrie/storage"
)

func TestMemDb_Close(t *testing.T) {
	t.Run("should close db", func(t *testing.T) {
		db := New()

		if err := db.Close(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("consecutive calls should fail after close", func(t *testing.T) {
		db := New()

		if err := db.Close(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := db.Has([]byte("some_key")); err == nil {
			t.Errorf("expected error, got nil")
		}
	})
}

func TestMemDb_Has(t *testing.T) {
	t.Run("should not find non-existing key", func(t *testing.T) {
		db := New()

		if err := db.Put([]byte("existing_key"), []byte("existing_value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		exists, err := db.Has([]byte("non_existing_key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if exists {
			t.Errorf("expected key to not exist, got true")
		}
	})

	t.Run("should find existing key", func(t *testing.T) {
		db := New()

		if err := db.Put([]byte("existing_key"), []byte("existing_value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		exists, err := db.Has([]byte("existing_key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !exists {
			t.Errorf("expected key to exist, got false")
		}
	})
}

func TestMemDb_Get(t *testing.T) {
	t.Run("should fail for missing key", func(t *testing.T) {
		db := New()

		if _, err := db.Get([]byte("some_key")); err != storage.ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("should return a copy of the stored value", func(t *testing.T) {
		db := New()

		if err := db.Put([]byte("some_key"), []byte("some_value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		val, err := db.Get([]byte("some_key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bytes.Equal(val, []byte("some_value")) {
			t.Errorf("expected %q, got %q", "some_value", val)
		}

		val[0] = 'X'
		again, err := db.Get([]byte("some_key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bytes.Equal(again, []byte("some_value")) {
			t.Errorf("expected stored value untouched, got %q", again)
		}
	})
}

func TestMemDb_Delete(t *testing.T) {
	t.Run("should remove existing key", func(t *testing.T) {
		db := New()

		if err := db.Put([]byte("some_key"), []byte("some_value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := db.Delete([]byte("some_key")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		exists, err := db.Has([]byte("some_key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if exists {
			t.Errorf("expected key to not exist, got true")
		}
	})

	t.Run("should ignore absent key", func(t *testing.T) {
		db := New()

		if err := db.Delete([]byte("some_key")); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestMemDb_Batch(t *testing.T) {
	t.Run("should apply nothing before write", func(t *testing.T) {
		db := New()

		batch := db.NewBatch()
		if err := batch.Put([]byte("some_key"), []byte("some_value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if db.Len() != 0 {
			t.Errorf("expected empty db, got %d keys", db.Len())
		}
	})

	t.Run("should apply puts and deletes in order", func(t *testing.T) {
		db := New()
		if err := db.Put([]byte("doomed"), []byte("value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		batch := db.NewBatch()
		if err := batch.Put([]byte("some_key"), []byte("some_value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := batch.Delete([]byte("doomed")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := batch.Write(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if exists, _ := db.Has([]byte("some_key")); !exists {
			t.Errorf("expected batched key present")
		}
		if exists, _ := db.Has([]byte("doomed")); exists {
			t.Errorf("expected deleted key gone")
		}
	})

	t.Run("should replay contents to another writer", func(t *testing.T) {
		db := New()
		other := New()

		batch := db.NewBatch()
		if err := batch.Put([]byte("some_key"), []byte("some_value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := batch.Replay(other); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if exists, _ := other.Has([]byte("some_key")); !exists {
			t.Errorf("expected replayed key present")
		}
	})

	t.Run("should track value size and reset", func(t *testing.T) {
		db := New()

		batch := db.NewBatchWithSize(4)
		if err := batch.Put([]byte("key"), []byte("value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if batch.ValueSize() != 8 {
			t.Errorf("expected size 8, got %d", batch.ValueSize())
		}

		batch.Reset()
		if batch.ValueSize() != 0 {
			t.Errorf("expected size 0 after reset, got %d", batch.ValueSize())
		}
	})
}

func TestMemDb_Iterator(t *testing.T) {
	t.Run("should iterate in key order within a prefix", func(t *testing.T) {
		db := New()

		pairs := map[string]string{
			"node/a": "1",
			"node/c": "3",
			"node/b": "2",
			"meta/x": "9",
		}
		for k, v := range pairs {
			if err := db.Put([]byte(k), []byte(v)); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		it := db.NewIterator([]byte("node/"), nil)
		defer it.Release()

		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
		}

		want := []string{"node/a", "node/b", "node/c"}
		if len(keys) != len(want) {
			t.Fatalf("expected %d keys, got %d", len(want), len(keys))
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("position %d: expected %q, got %q", i, want[i], keys[i])
			}
		}
	})

	t.Run("should start at the given key", func(t *testing.T) {
		db := New()
		for _, k := range []string{"a", "b", "c"} {
			if err := db.Put([]byte(k), []byte("v")); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		it := db.NewIterator(nil, []byte("b"))
		defer it.Release()

		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
		}
		if len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
			t.Errorf("expected [b c], got %q", keys)
		}
	})
}
