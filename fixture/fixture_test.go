package fixture

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"hextrie/log"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return path
}

func TestLoader_Load(t *testing.T) {
	t.Run("should load utf-8 and hex entries", func(t *testing.T) {
		path := writeFixture(t, `
entries:
  - key: "my-key"
    value: "some-value"
  - key: "0x6d792d6f746865722d6b6579"
    value: "0x616e6f746865722d76616c7565"
`)

		entries, err := NewLoader(log.Discard()).Load(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}

		if !bytes.Equal(entries[0].Key, []byte("my-key")) {
			t.Errorf("expected key %q, got %q", "my-key", entries[0].Key)
		}
		if !bytes.Equal(entries[1].Key, []byte("my-other-key")) {
			t.Errorf("expected key %q, got %q", "my-other-key", entries[1].Key)
		}
		if !bytes.Equal(entries[1].Value, []byte("another-value")) {
			t.Errorf("expected value %q, got %q", "another-value", entries[1].Value)
		}
	})

	t.Run("should reject an empty key", func(t *testing.T) {
		path := writeFixture(t, `
entries:
  - key: ""
    value: "some-value"
`)

		if _, err := NewLoader(log.Discard()).Load(path); err == nil {
			t.Errorf("expected error, got nil")
		}
	})

	t.Run("should reject malformed hex", func(t *testing.T) {
		path := writeFixture(t, `
entries:
  - key: "0xzz"
    value: "some-value"
`)

		if _, err := NewLoader(log.Discard()).Load(path); err == nil {
			t.Errorf("expected error, got nil")
		}
	})

	t.Run("should fail on a missing file", func(t *testing.T) {
		if _, err := NewLoader(log.Discard()).Load("does-not-exist.yaml"); err == nil {
			t.Errorf("expected error, got nil")
		}
	})
}
