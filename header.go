package responsefields

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/always-cache/response-fields/rfc9110"
	"github.com/always-cache/response-fields/rfc9111"
	"github.com/always-cache/response-fields/settings"
)

// Header field names, in emission order.
const (
	HeaderETag         = "ETag"
	HeaderLastModified = "Last-Modified"
	HeaderExpires      = "Expires"
	HeaderCacheControl = "Cache-Control"
	HeaderPragma       = "Pragma"
)

// Header is a single response header field.
type Header struct {
	Name  string
	Value string
}

// String renders the header as "Name: value".
func (h Header) String() string {
	return h.Name + ": " + h.Value
}

// Lines renders headers as "Name: value" lines, in order.
func Lines(headers []Header) []string {
	lines := make([]string, len(headers))
	for i, h := range headers {
		lines[i] = h.String()
	}
	return lines
}

// fields derives header values for one response.
// maxAge is the effective max-age for the request, resolved once.
type fields struct {
	settings settings.Settings
	maxAge   int
	now      time.Time
}

// validated returns all fields for a response about res, last changed at mtime.
func (f fields) validated(res Resource, mtime time.Time, query QueryVars) []Header {
	headers := make([]Header, 0, 5)
	if f.settings.EmitETag {
		headers = append(headers, Header{HeaderETag, ETag(res, mtime, query, f.settings.WeakETag)})
	}
	if f.settings.EmitLastModified {
		headers = append(headers, Header{HeaderLastModified, rfc9110.LastModified(mtime, f.now)})
	}
	return append(headers, f.freshness()...)
}

// freshness returns Expires, Cache-Control and Pragma.
// Pragma has no toggle of its own; it follows Cache-Control.
func (f fields) freshness() []Header {
	headers := make([]Header, 0, 3)
	if f.settings.EmitExpires {
		headers = append(headers, Header{HeaderExpires, rfc9111.ExpiresValue(f.now, f.maxAge)})
	}
	if f.settings.EmitCacheControl {
		headers = append(headers,
			Header{HeaderCacheControl, rfc9111.CacheControlValue(f.maxAge)},
			Header{HeaderPragma, rfc9111.PragmaValue(f.maxAge)})
	}
	return headers
}

// ETag returns the entity tag for res as last changed at mtime and requested
// with query. It is the SHA-1 of the JSON array
// [mtime (unix seconds), creation time (UTC, RFC 3339), guid, id, query].
//
// ETag panics if query cannot be serialized: that is a bug in the host, not a
// property of the request.
func ETag(res Resource, mtime time.Time, query QueryVars, weak bool) string {
	if query == nil {
		query = QueryVars{}
	}
	b, err := json.Marshal([]any{
		mtime.Unix(),
		res.Created.UTC().Format(time.RFC3339),
		res.GUID,
		res.ID,
		query,
	})
	if err != nil {
		panic(fmt.Sprintf("responsefields: query vars cannot be hashed: %v", err))
	}
	sum := sha1.Sum(b)
	return rfc9110.EntityTag{Weak: weak, Opaque: hex.EncodeToString(sum[:])}.String()
}
