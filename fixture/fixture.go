package fixture

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hextrie/log"
)

// Entry is a single key-value pair to load into a trie.
type Entry struct {
	Key   []byte
	Value []byte
}

// fixture represents the raw YAML structure
// of a fixture file.
type fixture struct {
	Entries []*entry `yaml:"entries"`
}

// entry represents a raw YAML fixture entry. Keys and
// values are UTF-8 strings, or hex when 0x-prefixed.
type entry struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Loader reads trie fixture files.
type Loader struct {
	log log.Logger
}

// NewLoader creates a fixture Loader with the specified
// logging context attached.
func NewLoader(log log.Logger) *Loader {
	return &Loader{
		log: log.With("component", "fixture-loader"),
	}
}

// Load reads the fixture file at the specified path.
func (l *Loader) Load(path string) ([]Entry, error) {
	l.log.Info("load fixture", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var raw fixture
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	entries := make([]Entry, 0, len(raw.Entries))
	for i, e := range raw.Entries {
		key, err := decodeField(e.Key)
		if err != nil {
			return nil, fmt.Errorf("entry %d key: %w", i, err)
		}
		if len(key) == 0 {
			return nil, fmt.Errorf("entry %d: empty key", i)
		}

		value, err := decodeField(e.Value)
		if err != nil {
			return nil, fmt.Errorf("entry %d value: %w", i, err)
		}

		entries = append(entries, Entry{Key: key, Value: value})
	}

	l.log.Info("fixture loaded", "entries", len(entries))
	return entries, nil
}

// decodeField interprets a fixture field as hex when
// 0x-prefixed and as UTF-8 bytes otherwise.
func decodeField(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return []byte(s), nil
	}

	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
