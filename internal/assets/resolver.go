package assets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/knowwell/portal-api/pkg/circuitbreaker"
	apperrors "github.com/knowwell/portal-api/pkg/errors"
	"github.com/knowwell/portal-api/pkg/metrics"
)

// Resolver maps a stored asset path to a retrievable URL.
type Resolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// storageResolver resolves asset paths against an HTTP object store. The
// object is verified with a HEAD request before the URL is handed out;
// successful resolutions are cached so repeated tier renders of the same
// medication do not hammer the store.
type storageResolver struct {
	baseURL string
	client  *http.Client
	cache   *gocache.Cache
	cb      *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewStorageResolver(cfg Config, m *metrics.Metrics) Resolver {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	return &storageResolver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		cache:   gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "asset-store",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		metrics: m,
	}
}

func (r *storageResolver) Resolve(ctx context.Context, path string) (string, error) {
	if cached, ok := r.cache.Get(path); ok {
		r.metrics.AssetResolutions.WithLabelValues("cached").Inc()
		return cached.(string), nil
	}

	timer := prometheus.NewTimer(r.metrics.AssetResolveLatency)
	defer timer.ObserveDuration()

	assetURL := r.baseURL + "/" + url.PathEscape(path)

	err := r.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, assetURL, nil)
		if err != nil {
			return err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return apperrors.NotFound("asset", fmt.Errorf("no object at %s", path))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("asset store returned %d for %s", resp.StatusCode, path)
		}
		return nil
	})
	if err != nil {
		r.metrics.AssetResolutions.WithLabelValues("error").Inc()
		return "", err
	}

	r.cache.Set(path, assetURL, gocache.DefaultExpiration)
	r.metrics.AssetResolutions.WithLabelValues("resolved").Inc()
	return assetURL, nil
}
