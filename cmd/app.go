package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hl-compare/hl-compare/internal/analysis"
	"github.com/hl-compare/hl-compare/internal/blob"
	"github.com/hl-compare/hl-compare/internal/compare"
	"github.com/hl-compare/hl-compare/internal/extract"
	"github.com/hl-compare/hl-compare/internal/store"
)

// appEnv holds the store, blob storage and comparison service needed by the
// serve and compare commands.
type appEnv struct {
	Store   store.Store
	Blobs   blob.Store
	Service *compare.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// localDir returns the upload directory when files live on local disk.
func (e *appEnv) localDir() string {
	if l, ok := e.Blobs.(*blob.Local); ok {
		return l.Dir()
	}
	return ""
}

// initApp validates cfg for mode and builds the in-process comparison
// service. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init blob storage")
	}

	ex, err := extract.New(cfg.Extract)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init extractor")
	}

	svc := compare.New(blobs, st, ex, analysis.New(cfg.Analysis), cfg.Extract.MaxConcurrency)
	return &appEnv{Store: st, Blobs: blobs, Service: svc}, nil
}

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
