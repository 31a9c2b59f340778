package main

import (
	"encoding/hex"
	"flag"
	"log/slog"
	"os"

	"hextrie/fixture"
	"hextrie/log"
	"hextrie/storage"
	"hextrie/storage/badger"
	"hextrie/storage/mem"
	"hextrie/trie"
)

func main() {
	fixturePath := flag.String("fixture", "fixture.yaml", "Path to key-value fixture file")
	dbPath := flag.String("db", "", "Path to badger database (default: in-memory store)")
	pruneFlag := flag.Bool("prune", false, "Delete superseded node bodies after each mutation")
	proveKey := flag.String("prove", "", "Emit a Merkle proof for the given key after loading")
	verboseFlag := flag.Bool("v", false, "Enable debug logging")

	if v := os.Getenv("FIXTURE_PATH"); v != "" {
		flag.Set("fixture", v)
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		flag.Set("db", v)
	}
	if v := os.Getenv("PRUNE"); v == "1" || v == "true" {
		flag.Set("prune", "true")
	}

	flag.Parse()

	lvl := slog.LevelInfo
	if *verboseFlag {
		lvl = slog.LevelDebug
	}
	logger := log.New(log.NewTerminalHandler(lvl)).With("component", "main")

	store, err := openStore(*dbPath)
	if err != nil {
		logger.Error("failed to open store", "path", *dbPath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	loader := fixture.NewLoader(logger)
	entries, err := loader.Load(*fixturePath)
	if err != nil {
		logger.Error("failed to load fixture", "err", err)
		os.Exit(1)
	}

	db := trie.NewDatabase(store).WithLogger(logger)
	tr := trie.New(trie.EmptyRoot, db, *pruneFlag)

	for _, e := range entries {
		if err := tr.Put(e.Key, e.Value); err != nil {
			logger.Error("failed to insert entry", "key", hex.EncodeToString(e.Key), "err", err)
			os.Exit(1)
		}
	}
	logger.Info("trie built", "entries", len(entries), "root", tr.RootHash().Hex())

	if stater, ok := store.(interface{ Stat() (string, error) }); ok {
		if stat, err := stater.Stat(); err == nil {
			logger.Info(stat)
		}
	}

	if *proveKey != "" {
		key := []byte(*proveKey)
		proof, err := tr.Prove(key)
		if err != nil {
			logger.Error("failed to build proof", "key", *proveKey, "err", err)
			os.Exit(1)
		}

		logger.Info("proof built", "key", *proveKey, "nodes", len(proof))
		for i, body := range proof {
			logger.Info("proof node", "index", i, "body", hex.EncodeToString(body))
		}

		value, err := trie.VerifyProof(tr.RootHash(), key, proof)
		if err != nil {
			logger.Error("proof did not verify", "err", err)
			os.Exit(1)
		}
		if value == nil {
			logger.Info("proof verified: key absent")
		} else {
			logger.Info("proof verified", "value", string(value))
		}
	}
}

// openStore picks the backing store: badger when a path is
// given, in-memory otherwise.
func openStore(path string) (storage.KeyValStore, error) {
	if path == "" {
		return mem.New(), nil
	}
	return badger.New(path)
}
