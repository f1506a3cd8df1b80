package main

import (
	"context"
	"fmt"

	"textgend/internal/assets"
	"textgend/internal/catalog"
	"textgend/internal/manager"
	"textgend/internal/model"
	"textgend/internal/storage"
)

// openCatalog returns the builtin catalog overlaid by the configured file.
func (a *app) openCatalog() (*catalog.Catalog, error) {
	cat := catalog.Builtin()
	if a.cfg.CatalogPath == "" {
		return cat, nil
	}
	extra, err := catalog.LoadFile(a.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	return cat.Merge(extra), nil
}

// newManager builds the shared handle table over a fresh asset cache.
func (a *app) newManager() (*manager.Manager, error) {
	cache, err := assets.NewCache(a.cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("asset cache: %w", err)
	}
	fallback := a.cfg.Backend
	return manager.New(manager.ManagerConfig{
		Fetcher:       assets.NewFetcher(assets.Options{Cache: cache, Logger: a.log}),
		MaxQueueDepth: a.cfg.MaxQueueDepth,
		MaxWait:       seconds(a.cfg.MaxWaitSeconds),
		DrainTimeout:  seconds(a.cfg.DrainTimeoutSeconds),
		Publisher:     manager.LogPublisher{Logger: a.log},
		Logger:        a.log,
		Backends: func(name string) (model.Backend, error) {
			if name == "" {
				name = fallback
			}
			return model.Lookup(name)
		},
	}), nil
}

func (a *app) openStore(ctx context.Context) (*storage.Store, error) {
	s := a.cfg.Storage
	return storage.Open(ctx, storage.Options{
		Driver:    s.Driver,
		Path:      s.Path,
		RedisAddr: s.RedisAddr,
		RedisDB:   s.RedisDB,
		Prefix:    s.Prefix,
	})
}
