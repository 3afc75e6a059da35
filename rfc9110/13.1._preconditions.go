package rfc9110

import (
	"net/http"
	"strings"
	"time"
)

// §  13.1.2.  If-None-Match
// §
// §     The "If-None-Match" header field makes the request method conditional
// §     on a recipient cache or origin server either not having any current
// §     representation of the target resource, when the field value is "*",
// §     or having a selected representation with an entity tag that does not
// §     match any of those listed in the field value.
// §
// §       If-None-Match = "*" / #entity-tag
// §
// §     A recipient MUST use the weak comparison function when comparing
// §     entity tags for If-None-Match (Section 8.8.3.2), since weak entity
// §     tags can be used for cache validation even if there have been changes
// §     to the representation data.
//
// IfNoneMatch reports whether the If-None-Match field value fieldValue matches
// the current entity tag, i.e. whether the condition evaluates to false.
func IfNoneMatch(fieldValue string, current EntityTag) bool {
	fieldValue = strings.TrimSpace(fieldValue)
	if fieldValue == "*" {
		return true
	}
	for _, candidate := range splitEntityTags(fieldValue) {
		if tag, err := ParseEntityTag(candidate); err == nil && tag.WeakMatch(current) {
			return true
		}
	}
	return false
}

// splitEntityTags splits a list of entity-tags. Commas are valid etagc, so the
// list is split only outside quotes.
func splitEntityTags(list string) []string {
	var tags []string
	quoted := false
	start := 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				tags = append(tags, list[start:i])
				start = i + 1
			}
		}
	}
	return append(tags, list[start:])
}

// §  13.1.3.  If-Modified-Since
// §
// §     A recipient MUST ignore the If-Modified-Since header field if the
// §     received field value is not a valid HTTP-date, the field value has
// §     more than one member, or if the request method is neither GET nor
// §     HEAD.
// §
// §     A recipient MUST ignore the If-Modified-Since header field if the
// §     resource does not have a modification date available.
//
// NotModifiedSince reports whether a representation last modified at
// lastModified is unchanged since the If-Modified-Since value fieldValue.
func NotModifiedSince(fieldValue string, lastModified time.Time) bool {
	if lastModified.IsZero() {
		return false
	}
	// a list of dates does not parse
	since, err := HttpDate(fieldValue)
	if err != nil {
		return false
	}
	return !lastModified.After(since)
}

// §  13.2.2.  Precedence of Preconditions
// §
// §     3.  When If-None-Match is present, evaluate the If-None-Match
// §         precondition:
// §
// §         *  if true, continue to step 5
// §
// §         *  if false for GET/HEAD, respond 304 (Not Modified)
// §
// §     4.  When the method is GET or HEAD, If-None-Match is not present, and
// §         If-Modified-Since is present, evaluate the If-Modified-Since
// §         precondition:
// §
// §         *  if true, continue to step 5
// §
// §         *  if false, respond 304 (Not Modified)
//
// NotModified evaluates the cache validation preconditions of a GET or HEAD
// request against the validators in the response header. It reports whether
// the response should be 304 (Not Modified).
func NotModified(r *http.Request, response http.Header) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		current, err := ParseEntityTag(response.Get("ETag"))
		if err != nil {
			return false
		}
		return IfNoneMatch(inm, current)
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		lastModified, err := HttpDate(response.Get("Last-Modified"))
		if err != nil {
			return false
		}
		return NotModifiedSince(ims, lastModified)
	}
	return false
}
