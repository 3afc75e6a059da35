package settings

import (
	"context"
	"sync"
	"time"

	"github.com/always-cache/response-fields/pkg/metrics"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "settings"

type LoaderConfig struct {
	// Storage for the configuration record.
	Store Store
	// How long a loaded record is reused before the store is read again.
	// Zero reads the store on every load.
	TTL time.Duration
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Optional metrics recorder.
	Metrics *metrics.Recorder
}

// Loader reads the effective configuration record from a Store and applies
// administrative updates to it.
type Loader struct {
	store   Store
	ttl     time.Duration
	cache   *gocache.Cache
	group   singleflight.Group
	log     zerolog.Logger
	metrics *metrics.Recorder

	// guards the cache against reads that finish after an update
	mu         sync.Mutex
	generation uint64
}

func NewLoader(config LoaderConfig) *Loader {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	l := &Loader{
		store:   config.Store,
		ttl:     config.TTL,
		log:     logger.With().Str("component", "settings").Logger(),
		metrics: config.Metrics,
	}
	if l.ttl > 0 {
		l.cache = gocache.New(l.ttl, 2*l.ttl)
	}
	return l
}

// Load returns the effective settings.
// A missing record resolves to the defaults; a store failure is returned as is.
func (l *Loader) Load(ctx context.Context) (Settings, error) {
	if l.cache != nil {
		if v, ok := l.cache.Get(cacheKey); ok {
			l.metrics.ObserveSettingsLoad(metrics.SettingsLoadCached)
			return v.(Settings), nil
		}
	}
	// concurrent misses share one store read, which outlives any one caller
	ch := l.group.DoChan(cacheKey, func() (any, error) {
		return l.read(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Defaults(), res.Err
		}
		return res.Val.(Settings), nil
	case <-ctx.Done():
		return Defaults(), ctx.Err()
	}
}

func (l *Loader) read(ctx context.Context) (Settings, error) {
	l.mu.Lock()
	generation := l.generation
	l.mu.Unlock()

	raw, found, err := l.store.Get(ctx, OptionName)
	if err != nil {
		l.metrics.ObserveSettingsLoad(metrics.SettingsLoadError)
		return Settings{}, err
	}
	if !found {
		l.log.Trace().Msg("No stored settings, using defaults")
		raw = nil
	}
	s := FromStored(raw)
	l.mu.Lock()
	if l.generation == generation {
		l.remember(s)
	}
	l.mu.Unlock()
	l.metrics.ObserveSettingsLoad(metrics.SettingsLoadStore)
	return s, nil
}

// Update resolves a submitted record against the current effective settings
// and persists the result. An empty submission changes nothing.
func (l *Loader) Update(ctx context.Context, submitted map[string]any) (Settings, error) {
	current, err := l.Load(ctx)
	if err != nil {
		return current, err
	}
	if len(submitted) == 0 {
		return current, nil
	}
	next := Resolve(submitted, current)
	if err := l.store.Set(ctx, OptionName, next.Map()); err != nil {
		return current, err
	}
	l.mu.Lock()
	l.generation++
	l.remember(next)
	l.mu.Unlock()
	// loads from now on must not join a read that started before the write
	l.group.Forget(cacheKey)
	l.log.Info().Interface("settings", next.Map()).Msg("Settings updated")
	return next, nil
}

// EnsureVersion records the current schema version if the stored one differs.
func (l *Loader) EnsureVersion(ctx context.Context) error {
	raw, found, err := l.store.Get(ctx, VersionOptionName)
	if err != nil {
		return err
	}
	if found {
		if v, _ := raw["version"].(string); v == Version {
			return nil
		}
	}
	l.log.Debug().Str("version", Version).Msg("Recording settings version")
	return l.store.Set(ctx, VersionOptionName, map[string]any{"version": Version})
}

func (l *Loader) remember(s Settings) {
	if l.cache != nil {
		l.cache.Set(cacheKey, s, gocache.DefaultExpiration)
	}
}
