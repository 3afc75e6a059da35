// Package rfc9110 implements the parts of HTTP Semantics (RFC 9110) needed to
// generate validator fields: HTTP-date, Last-Modified and ETag.
//
// The RFC text is quoted inline, prefixed with "§".
package rfc9110

// §  Internet Engineering Task Force (IETF)                  R. Fielding, Ed.
// §  Request for Comments: 9110                                         Adobe
// §  STD: 97                                            M. Nottingham, Ed.
// §  Obsoletes: 2818, 7230, 7231, 7232, 7233, 7235,                   Fastly
// §             7538, 7615, 7694                                J. Reschke, Ed.
// §  Updates: 3864                                                 greenbytes
// §  Category: Standards Track                                      June 2022
// §  ISSN: 2070-1721
// §
// §                             HTTP Semantics
