// Package rfc9111 generates the caching fields of HTTP Caching
// (RFC 9111) that an origin server sends to downstream caches:
// Cache-Control, Expires and Pragma.
//
// The RFC text is quoted inline, prefixed with "§".
package rfc9111

// §  Internet Engineering Task Force (IETF)                  R. Fielding, Ed.
// §  Request for Comments: 9111                                         Adobe
// §  STD: 98                                               M. Nottingham, Ed.
// §  Obsoletes: 7234                                                   Fastly
// §  Category: Standards Track                                J. Reschke, Ed.
// §  ISSN: 2070-1721                                               greenbytes
// §                                                                 June 2022
// §
// §                                HTTP Caching
