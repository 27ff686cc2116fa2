package main

import (
	"context"
	"fmt"

	"github.com/jonathan/content-repurposer/internal/config"
	"github.com/jonathan/content-repurposer/internal/db"
	"github.com/jonathan/content-repurposer/internal/docstore"
	"github.com/jonathan/content-repurposer/internal/store"
)

// openStore connects to the backend DATABASE_URL points at.
func openStore(ctx context.Context, cfg *config.ServerConfig) (store.Store, error) {
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendMongo:
		st, err := docstore.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseName)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendPostgres:
		st, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}
