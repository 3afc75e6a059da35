package rfc9110

import "time"

// §  8.8.2.  Last-Modified
// §
// §     The "Last-Modified" header field in a response provides a timestamp
// §     indicating the date and time at which the origin server believes the
// §     selected representation was last modified, as determined at the
// §     conclusion of handling the request.
// §
// §       Last-Modified = HTTP-date
// §
// §     An example of its use is
// §
// §       Last-Modified: Tue, 15 Nov 1994 12:45:26 GMT
//
// LastModified returns the Last-Modified field value for a representation
// modified at mtime, as generated by an origin server whose clock reads now.
//
// §  8.8.2.1.  Generation
// §
// §     An origin server with a clock (as defined in Section 5.6.7) MUST NOT
// §     generate a Last-Modified date that is later than the server's time of
// §     message origination (Date, Section 6.6.1).  If the last modification
// §     time is derived from implementation-specific metadata that evaluates
// §     to some time in the future, according to the origin server's clock,
// §     then the origin server MUST replace that value with the message
// §     origination date.  This prevents a future modification date from
// §     having an adverse impact on cache validation.
func LastModified(mtime, now time.Time) string {
	if mtime.After(now) {
		mtime = now
	}
	return FormatHttpDate(mtime)
}
