package trie

import (
	"bytes"
	"errors"
	"testing"
)

func TestProve(t *testing.T) {
	t.Run("should return two bodies for the shared-prefix pair", func(t *testing.T) {
		tr := newScenarioTrie(t)

		for key, value := range map[string]string{
			"my-key":       "some-value",
			"my-other-key": "another-value",
		} {
			proof, err := tr.Prove([]byte(key))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(proof) != 2 {
				t.Fatalf("expected 2 proof nodes, got %d", len(proof))
			}

			got, err := VerifyProof(tr.RootHash(), []byte(key), proof)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !bytes.Equal(got, []byte(value)) {
				t.Errorf("expected %q, got %q", value, got)
			}
		}
	})

	t.Run("should prove the empty trie with no bodies", func(t *testing.T) {
		tr, _ := newTestTrie(false)

		proof, err := tr.Prove([]byte("my-key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(proof) != 0 {
			t.Errorf("expected empty proof, got %d nodes", len(proof))
		}

		value, err := VerifyProof(tr.RootHash(), []byte("my-key"), proof)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if value != nil {
			t.Errorf("expected nil value, got %q", value)
		}
	})
}

func TestVerifyProof(t *testing.T) {
	keys := map[string]string{
		"my-key":       "some-value",
		"my-other-key": "another-value",
		"do":           "verb",
		"dog":          "puppy",
		"doge":         "coin",
		"horse":        "stallion",
	}

	build := func(t *testing.T) *Trie {
		t.Helper()
		tr, _ := newTestTrie(false)
		for k, v := range keys {
			if err := tr.Put([]byte(k), []byte(v)); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		return tr
	}

	t.Run("should verify inclusion for every key", func(t *testing.T) {
		tr := build(t)

		for k, v := range keys {
			proof, err := tr.Prove([]byte(k))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			got, err := VerifyProof(tr.RootHash(), []byte(k), proof)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !bytes.Equal(got, []byte(v)) {
				t.Errorf("key %q: expected %q, got %q", k, v, got)
			}
		}
	})

	t.Run("should verify exclusion for absent keys", func(t *testing.T) {
		tr := build(t)

		for _, k := range []string{"dogs", "d", "my", "zebra", "my-key-more"} {
			proof, err := tr.Prove([]byte(k))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			got, err := VerifyProof(tr.RootHash(), []byte(k), proof)
			if err != nil {
				t.Fatalf("key %q: expected no error, got %v", k, err)
			}
			if got != nil {
				t.Errorf("key %q: expected nil value, got %q", k, got)
			}
		}
	})

	t.Run("should agree with get for every key", func(t *testing.T) {
		tr := build(t)

		for _, k := range []string{"my-key", "dog", "zebra", "my"} {
			proof, err := tr.Prove([]byte(k))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			fromProof, err := VerifyProof(tr.RootHash(), []byte(k), proof)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			fromTrie, err := tr.Get([]byte(k))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !bytes.Equal(fromProof, fromTrie) {
				t.Errorf("key %q: proof yields %q, trie yields %q", k, fromProof, fromTrie)
			}
		}
	})

	t.Run("should reject a truncated proof", func(t *testing.T) {
		tr := build(t)

		proof, err := tr.Prove([]byte("my-key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(proof) < 2 {
			t.Fatalf("expected a multi-node proof, got %d nodes", len(proof))
		}

		if _, err := VerifyProof(tr.RootHash(), []byte("my-key"), proof[:1]); !errors.Is(err, ErrInvalidProof) {
			t.Errorf("expected ErrInvalidProof, got %v", err)
		}
	})

	t.Run("should reject a tampered body", func(t *testing.T) {
		tr := build(t)

		proof, err := tr.Prove([]byte("my-key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tampered := make([][]byte, len(proof))
		for i, body := range proof {
			tampered[i] = bytes.Clone(body)
		}
		tampered[len(tampered)-1][len(tampered[len(tampered)-1])-1] ^= 0x01

		if _, err := VerifyProof(tr.RootHash(), []byte("my-key"), tampered); !errors.Is(err, ErrInvalidProof) {
			t.Errorf("expected ErrInvalidProof, got %v", err)
		}
	})

	t.Run("should reject a proof against the wrong root", func(t *testing.T) {
		tr := build(t)

		proof, err := tr.Prove([]byte("my-key"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		other, _ := newTestTrie(false)
		if err := other.Put([]byte("my-key"), []byte("some-value")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := VerifyProof(other.RootHash(), []byte("my-key"), proof); !errors.Is(err, ErrInvalidProof) {
			t.Errorf("expected ErrInvalidProof, got %v", err)
		}
	})
}
