package rfc9110

import (
	"fmt"
	"strings"
)

// §  8.8.3.  ETag
// §
// §     The "ETag" field in a response provides the current entity tag for
// §     the selected representation, as determined at the conclusion of
// §     handling the request.  An entity tag is an opaque validator for
// §     differentiating between multiple representations of the same
// §     resource, regardless of whether those multiple representations are
// §     due to resource state changes over time, content negotiation
// §     resulting in multiple representations being valid at the same time,
// §     or both.  An entity tag consists of an opaque quoted string, possibly
// §     prefixed by a weakness indicator.
// §
// §       ETag       = entity-tag
// §
// §       entity-tag = [ weak ] opaque-tag
// §       weak       = %s"W/"
// §       opaque-tag = DQUOTE *etagc DQUOTE
// §       etagc      = %x21 / %x23-7E / obs-text
// §                  ; VCHAR except double quotes, plus obs-text
type EntityTag struct {
	// Weak is the weakness indicator.
	Weak bool
	// Opaque is the tag without quotes.
	Opaque string
}

// §     An entity tag can be more reliable for validation than a modification
// §     date in situations where it is inconvenient to store modification
// §     dates, where the one-second resolution of HTTP-date values is not
// §     sufficient, or where modification dates are not consistently
// §     maintained.
//
// String renders the entity-tag for use as a field value.
func (e EntityTag) String() string {
	if e.Weak {
		return `W/"` + e.Opaque + `"`
	}
	return `"` + e.Opaque + `"`
}

// ParseEntityTag parses a single entity-tag.
func ParseEntityTag(value string) (EntityTag, error) {
	var e EntityTag
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "W/") {
		e.Weak = true
		v = v[2:]
	}
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return e, fmt.Errorf("Malformed entity-tag: %s", value)
	}
	e.Opaque = v[1 : len(v)-1]
	for i := 0; i < len(e.Opaque); i++ {
		if !etagc(e.Opaque[i]) {
			return e, fmt.Errorf("Invalid character in entity-tag: %s", value)
		}
	}
	return e, nil
}

func etagc(c byte) bool {
	return c == 0x21 || (c >= 0x23 && c <= 0x7e) || c >= 0x80
}

// §  8.8.3.2.  Comparison
// §
// §     There are two entity-tag comparison functions, depending on whether
// §     or not the comparison context allows the use of weak validators:
// §
// §     "Strong comparison":  two entity tags are equivalent if both are not
// §        weak and their opaque-tags match character-by-character.
// §
// §     "Weak comparison":  two entity tags are equivalent if their opaque-
// §        tags match character-by-character, regardless of either or both
// §        being tagged as "weak".
func (e EntityTag) StrongMatch(other EntityTag) bool {
	return !e.Weak && !other.Weak && e.Opaque == other.Opaque
}

func (e EntityTag) WeakMatch(other EntityTag) bool {
	return e.Opaque == other.Opaque
}
