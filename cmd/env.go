package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/northcounty/propsync/internal/corrections"
	"github.com/northcounty/propsync/internal/normalize"
	"github.com/northcounty/propsync/internal/pipeline"
	"github.com/northcounty/propsync/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "propsync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// runEnv bundles the pieces every batch command needs.
type runEnv struct {
	Store     store.Store
	Overrides map[string]corrections.Entry
	Runner    *pipeline.Runner
}

func (e *runEnv) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
}

func initRun(ctx context.Context) (*runEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	overrides, err := corrections.Load(cfg.Corrections.Path)
	if err != nil {
		st.Close()
		return nil, err
	}

	norm := normalize.New(cfg.Normalize, overrides)
	return &runEnv{
		Store:     st,
		Overrides: overrides,
		Runner:    pipeline.NewRunner(norm, st),
	}, nil
}
