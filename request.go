package responsefields

import (
	"context"
	"sync"
	"time"
)

// Kind is the coarse-grained kind of request being answered.
type Kind string

const (
	KindSingular Kind = "singular"
	KindArchive  Kind = "archive"
	KindSearch   Kind = "search"
	KindFeed     Kind = "feed"
	KindHome     Kind = "home"
)

// Resource describes a content entity (a post, page or custom type entry).
type Resource struct {
	ID           int64
	Type         string
	GUID         string
	Created      time.Time
	Modified     time.Time
	CommentCount int
}

// QueryVars are the host's resolved query parameters (pagination, filters, ...).
// They are part of the ETag, so two pages of the same archive get different tags.
// Values must be JSON-serializable.
type QueryVars map[string]any

// Request is everything the engine needs to know about a response.
type Request struct {
	Kind Kind
	// For singular requests, the queried entity.
	// For archive, search and home requests, the first entry of the result set.
	Resource *Resource
	Query    QueryVars
	// Whether the requester has an authenticated session.
	Authenticated bool
	// Whether the resource is password protected and the password was not supplied.
	PasswordRequired bool
}

type descriptionKey struct{}

type description struct {
	mu  sync.Mutex
	req *Request
}

func withDescription(ctx context.Context) (context.Context, *description) {
	d := &description{}
	return context.WithValue(ctx, descriptionKey{}, d), d
}

func (d *description) get() (Request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.req == nil {
		return Request{}, false
	}
	return *d.req, true
}

// Describe tells the middleware what the response being written is about.
// Handlers call it any time before writing the status or body; the last call wins.
// It is a no-op if the middleware is not installed.
func Describe(ctx context.Context, req Request) {
	d, ok := ctx.Value(descriptionKey{}).(*description)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.req = &req
}
