package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/feedback-cli/internal/classify"
	"github.com/sells-group/feedback-cli/internal/store"
	"github.com/sells-group/feedback-cli/internal/taxonomy"
)

// appEnv holds the store and classification engine shared by commands.
type appEnv struct {
	Store    store.Store
	Taxonomy *taxonomy.Taxonomy
	Engine   *classify.Engine
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initApp sets up the store, loads the taxonomy, and builds the engine.
// Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engine, err := classify.NewEngine(tax, cfg.Classifier)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Info("taxonomy loaded",
		zap.String("path", cfg.Taxonomy.Path),
		zap.Int("categories", len(tax.Categories)),
		zap.String("version", tax.Version),
	)

	return &appEnv{Store: st, Taxonomy: tax, Engine: engine}, nil
}
