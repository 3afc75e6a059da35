package rfc9111

import (
	"time"

	"github.com/always-cache/response-fields/rfc9110"
)

// §  5.3.  Expires
// §
// §     The "Expires" response header field gives the date/time after which
// §     the response is considered stale.  See Section 4.2 for further
// §     discussion of the freshness model.
// §
// §     The Expires field value is an HTTP-date timestamp, as defined in
// §     Section 5.6.7 of [HTTP].  See also Section 4.2 for parsing
// §     requirements specific to caches.
// §
// §       Expires = HTTP-date
// §
// §     For example
// §
// §     Expires: Thu, 01 Dec 1994 16:00:00 GMT
// §
// §     A cache recipient MUST interpret invalid date formats, especially the
// §     value "0", as representing a time in the past (i.e., "already
// §     expired").

// §     An origin server without a clock (Section 5.6.7 of [HTTP]) MUST NOT
// §     generate an Expires header field unless its value represents a fixed
// §     time in the past (always expired) or its value has been associated
// §     with the resource by a system with a clock.
//
// ExpiresValue returns the Expires field value for a response generated at
// now that stays fresh for maxAge seconds.
func ExpiresValue(now time.Time, maxAge int) string {
	if maxAge < 0 {
		maxAge = 0
	}
	return rfc9110.FormatHttpDate(now.Add(time.Duration(maxAge) * time.Second))
}
