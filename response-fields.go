// Package responsefields annotates responses about content resources with the
// header fields downstream caches use to avoid re-fetching unchanged content:
// ETag, Last-Modified, Expires, Cache-Control and Pragma.
//
// It never stores responses.
package responsefields

import (
	"context"
	"net/http"

	headerwriter "github.com/always-cache/response-fields/pkg/header-writer"
	"github.com/always-cache/response-fields/pkg/metrics"
	"github.com/always-cache/response-fields/rfc9110"
	"github.com/always-cache/response-fields/settings"

	"github.com/rs/zerolog"
)

// SettingsSource provides the effective settings for a request.
// *settings.Loader implements it.
type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

type Config struct {
	// Where the settings come from.
	Settings SettingsSource
	// Header derivation engine. One with default allow-lists is created if nil.
	Engine *Engine
	// Optional function describing a request that the handler did not Describe.
	Resolve func(*http.Request) Request
	// Answer GET and HEAD requests whose validators match with 304 Not Modified.
	ConditionalRequests bool
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Optional metrics recorder.
	Metrics *metrics.Recorder
}

type ResponseFields struct {
	settings    SettingsSource
	engine      *Engine
	resolve     func(*http.Request) Request
	conditional bool
	log         zerolog.Logger
	metrics     *metrics.Recorder
}

// New sets up the header middleware.
func New(config Config) *ResponseFields {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().Str("component", "response-fields").Logger()

	rf := &ResponseFields{
		settings:    config.Settings,
		engine:      config.Engine,
		resolve:     config.Resolve,
		conditional: config.ConditionalRequests,
		log:         logger,
		metrics:     config.Metrics,
	}
	if rf.engine == nil {
		rf.engine = NewEngine(EngineConfig{Logger: &logger})
	}
	return rf
}

// Headers loads the settings and derives the header fields for req, for hosts
// that write headers themselves.
func (rf *ResponseFields) Headers(ctx context.Context, req Request) ([]Header, error) {
	s, err := rf.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	return rf.derive(ctx, s, req), nil
}

// Middleware wraps next so that every response it writes is annotated before
// the first byte is sent.
func (rf *ResponseFields) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, loadErr := rf.settings.Load(r.Context())
		if loadErr != nil {
			rf.log.Error().Err(loadErr).Msg("Could not load settings")
		}
		ctx, desc := withDescription(r.Context())
		r = r.WithContext(ctx)

		hw := headerwriter.New(w, func(statusCode int, header http.Header) int {
			if loadErr != nil {
				return statusCode
			}
			// only successful responses describe the resource
			if statusCode < 200 || statusCode > 299 {
				rf.log.Trace().Int("status", statusCode).Str("url", r.URL.String()).Msg("Not annotating response")
				return statusCode
			}
			req, ok := desc.get()
			if !ok && rf.resolve != nil {
				req = rf.resolve(r)
			}
			// preconditions are evaluated against emitted validators only
			validators := http.Header{}
			for _, h := range rf.derive(r.Context(), s, req) {
				header.Set(h.Name, h.Value)
				if h.Name == HeaderETag || h.Name == HeaderLastModified {
					validators.Set(h.Name, h.Value)
				}
			}
			if rf.conditional && statusCode == http.StatusOK && len(validators) > 0 && rfc9110.NotModified(r, validators) {
				rf.log.Trace().Str("url", r.URL.String()).Msg("Not modified")
				header.Del("Content-Length")
				return http.StatusNotModified
			}
			return statusCode
		})
		next.ServeHTTP(hw, r)
		// empty responses still get their headers
		if hw.StatusCode() == 0 {
			hw.WriteHeader(http.StatusOK)
		}
	})
}

func (rf *ResponseFields) derive(ctx context.Context, s settings.Settings, req Request) []Header {
	result := rf.engine.Headers(ctx, s, req)
	if result.Skipped != "" {
		rf.log.Debug().Str("kind", string(req.Kind)).Str("reason", string(result.Skipped)).Msg("No cache headers")
		rf.metrics.ObserveResponse(string(req.Kind), string(result.Skipped), nil)
		return nil
	}
	names := make([]string, len(result.Headers))
	for i, h := range result.Headers {
		names[i] = h.Name
	}
	rf.log.Trace().Str("kind", string(req.Kind)).Strs("headers", Lines(result.Headers)).Msg("Cache headers")
	rf.metrics.ObserveResponse(string(req.Kind), metrics.OutcomeEmitted, names)
	return result.Headers
}
