package responsefields

import (
	"context"
	"time"

	"github.com/always-cache/response-fields/settings"

	"github.com/rs/zerolog"
)

// CommentSource looks up when the latest approved comment on a resource was made.
type CommentSource interface {
	// LatestApprovedComment returns the time of the newest approved comment
	// for the resource, and false if there is none.
	LatestApprovedComment(ctx context.Context, resourceID int64) (time.Time, bool, error)
}

// Reason says why no headers were emitted for a response.
type Reason string

const (
	ReasonUnsupportedKind   Reason = "unsupported-kind"
	ReasonNoResource        Reason = "no-resource"
	ReasonUnsupportedType   Reason = "unsupported-type"
	ReasonPasswordRequired  Reason = "password-required"
	ReasonCommentLookupFail Reason = "comment-lookup-failed"
)

// Result is the outcome of header derivation for one response.
type Result struct {
	// Headers in emission order. Empty if Skipped is set.
	Headers []Header
	// Why nothing was emitted, if so.
	Skipped Reason
}

type EngineConfig struct {
	// Types whose single views get headers. Defaults to DefaultSingularTypes().
	SingularTypes TypeSet
	// Types whose listings get headers. Defaults to DefaultArchiveTypes().
	ArchiveTypes TypeSet
	// Source of approved comment times. Without one, comments are not looked at.
	Comments CommentSource
	// Clock for Expires. Defaults to time.Now.
	Now func() time.Time
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

// Engine derives caching header fields. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	singular TypeSet
	archive  TypeSet
	comments CommentSource
	now      func() time.Time
	log      zerolog.Logger
}

func NewEngine(config EngineConfig) *Engine {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	e := &Engine{
		singular: config.SingularTypes,
		archive:  config.ArchiveTypes,
		comments: config.Comments,
		now:      config.Now,
		log:      logger,
	}
	if e.singular == nil {
		e.singular = DefaultSingularTypes()
	}
	if e.archive == nil {
		e.archive = DefaultArchiveTypes()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// EffectiveMaxAge returns the max-age for a request: the authenticated max-age
// for authenticated sessions, else the search max-age for searches, else the default.
func EffectiveMaxAge(kind Kind, authenticated bool, s settings.Settings) int {
	if authenticated {
		return s.MaxAgeAuthenticated
	}
	if kind == KindSearch {
		return s.MaxAgeSearch
	}
	return s.MaxAgeDefault
}

// Headers derives the header fields for req under settings s.
// Anything it cannot vouch for gets no headers at all.
func (e *Engine) Headers(ctx context.Context, s settings.Settings, req Request) Result {
	f := fields{
		settings: s,
		maxAge:   EffectiveMaxAge(req.Kind, req.Authenticated, s),
		now:      e.now(),
	}
	switch req.Kind {
	case KindFeed:
		// no single resource to validate against
		return Result{Headers: f.freshness()}
	case KindSingular:
		return e.singularHeaders(ctx, f, req)
	case KindArchive, KindSearch, KindHome:
		return e.listingHeaders(f, req)
	}
	return Result{Skipped: ReasonUnsupportedKind}
}

func (e *Engine) singularHeaders(ctx context.Context, f fields, req Request) Result {
	res := req.Resource
	if res == nil {
		return Result{Skipped: ReasonNoResource}
	}
	if !e.singular.Has(res.Type) {
		return Result{Skipped: ReasonUnsupportedType}
	}
	if req.PasswordRequired {
		return Result{Skipped: ReasonPasswordRequired}
	}
	mtime, err := e.modified(ctx, *res)
	if err != nil {
		e.log.Warn().Err(err).Int64("resource", res.ID).Msg("Could not look up comments")
		return Result{Skipped: ReasonCommentLookupFail}
	}
	return Result{Headers: f.validated(*res, mtime, req.Query)}
}

func (e *Engine) listingHeaders(f fields, req Request) Result {
	res := req.Resource
	if res == nil {
		return Result{Skipped: ReasonNoResource}
	}
	if !e.archive.Has(res.Type) {
		return Result{Skipped: ReasonUnsupportedType}
	}
	return Result{Headers: f.validated(*res, res.Modified.Truncate(time.Second), req.Query)}
}

// modified returns the effective modification time of res: the later of its
// own modification time and its latest approved comment.
func (e *Engine) modified(ctx context.Context, res Resource) (time.Time, error) {
	mtime := res.Modified.Truncate(time.Second)
	if res.CommentCount <= 0 || e.comments == nil {
		return mtime, nil
	}
	commented, ok, err := e.comments.LatestApprovedComment(ctx, res.ID)
	if err != nil {
		return mtime, err
	}
	if ok {
		if commented = commented.Truncate(time.Second); commented.After(mtime) {
			e.log.Trace().Int64("resource", res.ID).Time("comment", commented).Msg("Using comment time as modification time")
			mtime = commented
		}
	}
	return mtime, nil
}
