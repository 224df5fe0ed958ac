// Package location resolves the region and city reference lists used by the
// cascading location pickers.
package location

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"neurolink/internal/session"
	"neurolink/pkg/types"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	regionsPath = "/api/locations/governorates"
	citiesPath  = "/api/locations/cities/%s"
)

// FallbackRegions keeps the form usable when the reference service is down.
var FallbackRegions = []types.Region{
	{ID: 1, Name: "Tunis"},
	{ID: 2, Name: "Ariana"},
	{ID: 3, Name: "Ben Arous"},
	{ID: 4, Name: "Manouba"},
}

var FallbackCities = map[int64][]types.City{
	1: {{ID: 101, Name: "Tunis Centre"}, {ID: 102, Name: "La Marsa"}},
	2: {{ID: 201, Name: "Ariana Ville"}, {ID: 202, Name: "Raoued"}},
	3: {{ID: 301, Name: "Ben Arous Ville"}, {ID: 302, Name: "Ezzahra"}},
	4: {{ID: 401, Name: "Manouba Ville"}, {ID: 402, Name: "Oued Ellil"}},
}

// Fetcher is what the form state store needs from a resolver.
type Fetcher interface {
	FetchRegions(ctx context.Context) []types.Region
	FetchCities(ctx context.Context, regionID string) []types.City
}

type Option func(*Resolver)

// WithFallback serves the built-in lists on failure or empty upstream data.
func WithFallback(enabled bool) Option {
	return func(r *Resolver) { r.fallback = enabled }
}

// WithCache shares fetched lists between resolvers.
func WithCache(cache Cache) Option {
	return func(r *Resolver) { r.cache = cache }
}

// WithSession adds the caller's auth headers to reference data requests.
func WithSession(p session.Provider) Option {
	return func(r *Resolver) { r.sessions = p }
}

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.http.SetTimeout(d) }
}

// Resolver never returns errors: failures are logged and degrade to an
// empty or fallback list.
type Resolver struct {
	http     *resty.Client
	logger   logrus.FieldLogger
	sessions session.Provider
	cache    Cache
	fallback bool

	mu      sync.Mutex
	regions []types.Region
}

var _ Fetcher = (*Resolver)(nil)

func NewResolver(baseURL string, logger logrus.FieldLogger, opts ...Option) *Resolver {
	r := &Resolver{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json"),
		logger: logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// FetchRegions is memoized once a non-empty upstream list was received.
func (r *Resolver) FetchRegions(ctx context.Context) []types.Region {
	r.mu.Lock()
	if r.regions != nil {
		regions := append([]types.Region(nil), r.regions...)
		r.mu.Unlock()
		return regions
	}
	r.mu.Unlock()

	var regions []types.Region
	if r.cached(ctx, regionsCacheKey, &regions) && len(regions) > 0 {
		r.memoize(regions)
		return regions
	}

	err := r.get(ctx, regionsPath, &regions)
	if err != nil || len(regions) == 0 {
		entry := r.logger.WithField("fallback", r.fallback)
		if err != nil {
			entry.WithError(err).Error("failed to fetch regions")
		} else {
			entry.Warn("regions endpoint returned an empty list")
		}

		if r.fallback {
			return append([]types.Region(nil), FallbackRegions...)
		}
		return []types.Region{}
	}

	r.memoize(regions)
	r.store(ctx, regionsCacheKey, regions)

	return regions
}

func (r *Resolver) FetchCities(ctx context.Context, regionID string) []types.City {
	regionID = strings.TrimSpace(regionID)
	if regionID == "" {
		return []types.City{}
	}

	key := citiesCacheKey(regionID)

	var cities []types.City
	if r.cached(ctx, key, &cities) && len(cities) > 0 {
		return cities
	}

	err := r.get(ctx, fmt.Sprintf(citiesPath, url.PathEscape(regionID)), &cities)
	if err != nil || len(cities) == 0 {
		entry := r.logger.WithFields(logrus.Fields{
			"region_id": regionID,
			"fallback":  r.fallback,
		})
		if err != nil {
			entry.WithError(err).Error("failed to fetch cities")
		} else {
			entry.Warn("cities endpoint returned an empty list")
		}

		return r.fallbackCities(regionID)
	}

	r.store(ctx, key, cities)

	return cities
}

func (r *Resolver) fallbackCities(regionID string) []types.City {
	if !r.fallback {
		return []types.City{}
	}

	id, err := strconv.ParseInt(regionID, 10, 64)
	if err != nil {
		return []types.City{}
	}

	return append([]types.City{}, FallbackCities[id]...)
}

func (r *Resolver) get(ctx context.Context, path string, out any) error {
	req := r.http.R().SetContext(ctx).SetResult(out)

	if r.sessions != nil {
		if identity, err := r.sessions.Identity(ctx); err == nil {
			req.SetHeaders(session.AuthHeaders(identity))
		}
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}

	if resp.IsError() {
		return fmt.Errorf("request %s failed with status %d", path, resp.StatusCode())
	}

	return nil
}

func (r *Resolver) memoize(regions []types.Region) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions = append([]types.Region(nil), regions...)
}

func (r *Resolver) cached(ctx context.Context, key string, dst any) bool {
	if r.cache == nil {
		return false
	}

	ok, err := r.cache.Get(ctx, key, dst)
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("failed to read location cache")
		return false
	}
	return ok
}

func (r *Resolver) store(ctx context.Context, key string, v any) {
	if r.cache == nil {
		return
	}

	if err := r.cache.Set(ctx, key, v); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("failed to write location cache")
	}
}
