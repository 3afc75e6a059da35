package rfc9110

import (
	"strings"
	"time"
)

// §  5.6.7.  Date/Time Formats
// §
// §     Prior to 1995, there were three different formats commonly used by
// §     servers to communicate timestamps.  For compatibility with old
// §     implementations, all three are defined here.  The preferred format is
// §     a fixed-length and single-zone subset of the date and time
// §     specification used by the Internet Message Format [RFC5322].
// §
// §       HTTP-date    = IMF-fixdate / obs-date
// §
// §     An example of the preferred format is
// §
// §       Sun, 06 Nov 1994 08:49:37 GMT    ; IMF-fixdate
// §
// §     Examples of the two obsolete formats are
// §
// §       Sunday, 06-Nov-94 08:49:37 GMT   ; obsolete RFC 850 format
// §       Sun Nov  6 08:49:37 1994         ; ANSI C's asctime() format
// §
// §     A recipient that parses a timestamp value in an HTTP field MUST
// §     accept all three HTTP-date formats.  When a sender generates a field
// §     that contains one or more timestamps defined as HTTP-date, the sender
// §     MUST generate those timestamps in the IMF-fixdate format.
func HttpDate(dateStr string) (time.Time, error) {
	if date, err := imfDate(dateStr); err == nil {
		return date, err
	} else {
		// try to parse as obsolete date
		if date, err := obsDate(dateStr); err == nil {
			return date, err
		}
		// return original error if unsuccessful
		return date, err
	}
}

// FormatHttpDate renders t as an IMF-fixdate, the only format a sender may generate.
func FormatHttpDate(t time.Time) string {
	return t.UTC().Format(imfFixdateLayout)
}

// §     An HTTP-date value represents time as an instance of Coordinated
// §     Universal Time (UTC).  The first two formats indicate UTC by the
// §     three-letter abbreviation for Greenwich Mean Time, "GMT", a
// §     predecessor of the UTC name; values in the asctime format are assumed
// §     to be in UTC.

// §     Preferred format:
// §
// §       IMF-fixdate  = day-name "," SP date1 SP time-of-day SP GMT
// §       ; fixed length/zone/capitalization subset of the format
// §       ; see Section 3.3 of [RFC5322]
// §
// §       day-name     = %s"Mon" / %s"Tue" / %s"Wed"
// §                    / %s"Thu" / %s"Fri" / %s"Sat" / %s"Sun"
// §
// §       date1        = day SP month SP year
// §                    ; e.g., 02 Jun 1982
// §
// §       day          = 2DIGIT
// §       month        = %s"Jan" / %s"Feb" / %s"Mar" / %s"Apr"
// §                    / %s"May" / %s"Jun" / %s"Jul" / %s"Aug"
// §                    / %s"Sep" / %s"Oct" / %s"Nov" / %s"Dec"
// §       year         = 4DIGIT
// §
// §       GMT          = %s"GMT"
// §
// §       time-of-day  = hour ":" minute ":" second
// §                    ; 00:00:00 - 23:59:60 (leap second)
// §
// §       hour         = 2DIGIT
// §       minute       = 2DIGIT
// §       second       = 2DIGIT
//
// GMT is a literal in the layouts: a parsed zone abbreviation would be bound
// to time.Local wherever the local zone is also called GMT.
const (
	imfFixdateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"
	rfc850Layout     = "Monday, 02-Jan-06 15:04:05 GMT"
)

func imfDate(dateStr string) (time.Time, error) {
	return time.ParseInLocation(imfFixdateLayout, normalizeDateStr(dateStr), time.UTC)
}

// §     Obsolete formats:
// §
// §       obs-date     = rfc850-date / asctime-date
// §
// §       rfc850-date  = day-name-l "," SP date2 SP time-of-day SP GMT
// §       date2        = day "-" month "-" 2DIGIT
// §                    ; e.g., 02-Jun-82
// §
// §       asctime-date = day-name SP date3 SP time-of-day SP year
// §       date3        = month SP ( 2DIGIT / ( SP 1DIGIT ))
// §                    ; e.g., Jun  2
func obsDate(dateStr string) (time.Time, error) {
	str := normalizeDateStr(dateStr)
	if date, err := time.ParseInLocation(rfc850Layout, str, time.UTC); err == nil {
		return date, err
	}
	return time.ParseInLocation(time.ANSIC, str, time.UTC)
}

// §     HTTP-date is case sensitive.  Note that Section 4.2 of [CACHING]
// §     relaxes this for cache recipients.
func normalizeDateStr(dateStr string) string {
	return strings.ToUpper(dateStr)
}
