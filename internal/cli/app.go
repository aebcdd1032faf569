package cli

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/eramap/internal/inference"
	"github.com/ppiankov/eramap/internal/resolver"
	"github.com/ppiankov/eramap/internal/store"
	"github.com/ppiankov/eramap/internal/worker"
)

// app bundles the opened stores, the resolver and the engine for one command.
// limiter paces every outbound client the command builds; the resolver uses
// its default rate and other hosts get their own bucket via SetHostRate.
type app struct {
	stores   *store.Stores
	resolver resolver.Resolver
	engine   *inference.Engine
	limiter  *worker.Limiter
}

// openApp opens the configured stores and builds the engine. A resolver
// configuration error is fatal only when withResolver is set.
func openApp(withResolver bool) (*app, error) {
	if cfg == nil {
		return nil, eris.New("configuration not loaded")
	}

	stores, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return nil, eris.Wrap(err, "open stores")
	}

	limiter := worker.NewLimiter(cfg.Resolver.RequestsPerSecond, cfg.Resolver.Burst)

	var r resolver.Resolver
	if withResolver {
		opts := cfg.ResolverOptions()
		opts.Limiter = limiter
		r, err = resolver.New(opts)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
	}

	engine := inference.NewEngine(stores.Overrides, stores.Resolutions, r, inference.Options{
		RequestTimeout: cfg.RequestTimeout(),
		NegativeTTL:    cfg.NegativeTTL(),
	})

	resolverName := "none"
	if r != nil {
		resolverName = r.Name()
	}
	zap.L().Debug("engine ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("data_dir", cfg.DataDir),
		zap.String("resolver", resolverName),
	)

	return &app{stores: stores, resolver: r, engine: engine, limiter: limiter}, nil
}

// Close releases the stores
func (a *app) Close() {
	if err := a.stores.Close(); err != nil {
		zap.L().Warn("close stores", zap.Error(err))
	}
}
