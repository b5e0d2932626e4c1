package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/notifications"
	"github.com/angelmondragon/packfinderz-storefront/internal/products"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
	"github.com/angelmondragon/packfinderz-storefront/pkg/security"
)

// Params configures an Agent. Config and Logger are required. Registerer
// defaults to a fresh registry; Notifier is added next to the log notifier.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	Registerer prometheus.Registerer
	Notifier   notifications.Notifier
	HTTPClient *http.Client
}

// Agent owns the session manager and the cart engine of one storefront
// process and the clients they share.
type Agent struct {
	cfg      *config.Config
	logg     *logger.Logger
	redis    *redis.Client
	registry *prometheus.Registry

	Sessions *session.Manager
	Cart     *cart.Engine
	Metrics  *metrics.CartMetrics

	unsubscribe []func()
}

// New wires the agent. Redis is dialed only when a session or catalog
// backend needs it.
func New(ctx context.Context, params Params) (*Agent, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	cfg := params.Config
	logg := params.Logger

	a := &Agent{cfg: cfg, logg: logg}

	registerer := params.Registerer
	if registerer == nil {
		a.registry = prometheus.NewRegistry()
		registerer = a.registry
	}

	if needsRedis(cfg) {
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		a.redis = client
	}

	kv, err := a.sessionKV()
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	a.Sessions = session.NewManager(session.NewStore(kv, logg), logg)

	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Backend.Timeout}
	}

	lookup, err := a.productLookup(httpClient)
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	remote, err := cart.NewClient(cfg.Backend.URL, a.Sessions, cart.WithHTTPClient(httpClient))
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	notifier := notifications.Multi{notifications.NewLogNotifier(logg)}
	if params.Notifier != nil {
		notifier = append(notifier, params.Notifier)
	}

	a.Metrics = metrics.NewCartMetrics(registerer)
	a.Cart, err = cart.NewEngine(cart.Config{
		Remote:    remote,
		Enricher:  cart.NewEnricher(lookup, logg),
		Signals:   a.Sessions,
		Notifier:  notifier,
		Metrics:   a.Metrics,
		Logger:    logg,
		NoticeTTL: cfg.Cart.NoticeTTL,
	})
	if err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	a.unsubscribe = append(a.unsubscribe,
		a.Sessions.Subscribe(session.ListenerFunc(func(_ context.Context, change session.Change) {
			a.Metrics.IncTransition(string(change.Event))
		})),
		a.Sessions.Subscribe(a.Cart),
	)
	return a, nil
}

// Start restores a persisted session, if any, and waits for the initial cart
// load to settle.
func (a *Agent) Start(ctx context.Context) bool {
	restored := a.Sessions.Restore(ctx)
	a.Cart.Wait()
	return restored
}

// Gatherer exposes the registry the agent created, or nil when the caller
// supplied its own registerer.
func (a *Agent) Gatherer() prometheus.Gatherer {
	if a.registry == nil {
		return nil
	}
	return a.registry
}

// Config returns the configuration the agent was built from.
func (a *Agent) Config() *config.Config {
	return a.cfg
}

// Redis returns the shared redis client, nil when none was needed.
func (a *Agent) Redis() *redis.Client {
	return a.redis
}

// Close detaches listeners, waits for background loads and releases redis.
func (a *Agent) Close() error {
	for _, fn := range a.unsubscribe {
		fn()
	}
	a.unsubscribe = nil
	if a.Cart != nil {
		a.Cart.Wait()
	}
	var err error
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
		a.redis = nil
	}
	return err
}

func (a *Agent) sessionKV() (session.KV, error) {
	switch a.cfg.Session.Kind() {
	case config.SessionBackendMemory:
		return session.NewMemoryKV(), nil
	case config.SessionBackendFile:
		return session.NewFileKV(a.cfg.Session.File), nil
	case config.SessionBackendEncrypted:
		sealer, err := security.NewSealer(a.cfg.Session.Passphrase, a.cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("session sealer: %w", err)
		}
		return session.NewEncryptedFileKV(a.cfg.Session.File, sealer)
	case config.SessionBackendRedis:
		if a.redis == nil {
			return nil, errors.New("redis session backend requires a redis client")
		}
		return session.NewRedisKV(a.redis), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", a.cfg.Session.Backend)
}

func (a *Agent) productLookup(httpClient *http.Client) (products.Lookup, error) {
	client, err := products.NewClient(a.cfg.Backend.URL,
		products.WithHTTPClient(httpClient),
		products.WithProductsPath(a.cfg.Backend.ProductsPath),
		products.WithTokenSource(a.Sessions),
	)
	if err != nil {
		return nil, err
	}

	switch a.cfg.Catalog.CacheKind() {
	case config.CatalogCacheOff:
		return client, nil
	case config.CatalogCacheRedis:
		if a.redis == nil {
			return nil, errors.New("redis catalog cache requires a redis client")
		}
		return products.NewCachedLookup(client, products.NewRedisCache(a.redis, a.cfg.Catalog.CacheTTL, a.logg)), nil
	case config.CatalogCacheMemory:
		return products.NewCachedLookup(client, products.NewMemoryCache(a.cfg.Catalog.CacheTTL)), nil
	}
	return nil, fmt.Errorf("unknown catalog cache %q", a.cfg.Catalog.Cache)
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Session.Kind() == config.SessionBackendRedis ||
		cfg.Catalog.CacheKind() == config.CatalogCacheRedis
}
