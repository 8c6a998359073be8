package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"housevault/internal/persistence/store"
)

// storeConfig picks the state backend from HV_STORE. sqlite lives under the
// data dir unless HV_SQLITE_PATH says otherwise.
func storeConfig(dataDir string) (store.Config, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("HV_STORE")))
	if backend == "" {
		backend = "sqlite"
	}
	cfg := store.Config{Backend: backend}
	switch backend {
	case "memory":
	case "sqlite":
		cfg.SQLitePath = envString("HV_SQLITE_PATH", filepath.Join(dataDir, "state", "housevault.sqlite"))
	case "postgres":
		cfg.PostgresDSN = envString("HV_POSTGRES_DSN", "")
		if cfg.PostgresDSN == "" {
			return cfg, fmt.Errorf("HV_STORE=postgres but HV_POSTGRES_DSN is empty")
		}
	default:
		return cfg, fmt.Errorf("unsupported HV_STORE: %s", backend)
	}
	return cfg, nil
}

func openRuntimeStore(dataDir string, logger *log.Logger) (store.Store, error) {
	cfg, err := storeConfig(dataDir)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Backend == "memory" {
		logger.Printf("store: memory (state is lost on exit)")
	} else {
		logger.Printf("store: %s", cfg.Backend)
	}
	return st, nil
}
