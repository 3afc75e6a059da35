package headerwriter

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// BeforeHeaders is called with the status code and the (still mutable)
// response header right before the status line is written.
// It returns the status code to send instead.
type BeforeHeaders func(statusCode int, header http.Header) int

// Writer is a wrapper around http.ResponseWriter that calls a hook exactly once,
// before the status line, headers and any body bytes reach the underlying writer.
type Writer struct {
	rw           http.ResponseWriter
	before       BeforeHeaders
	status       int
	wroteHeaders bool
	// body is dropped for 304 and 204 responses
	discardBody bool
}

// New returns a new Writer around w.
func New(w http.ResponseWriter, before BeforeHeaders) *Writer {
	return &Writer{
		rw:     w,
		before: before,
	}
}

// Implementation of http.ResponseWriter
func (w *Writer) Header() http.Header {
	return w.rw.Header()
}

// Implementation of http.ResponseWriter
func (w *Writer) WriteHeader(statusCode int) {
	// informational responses do not finalize the header
	if statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols {
		w.rw.WriteHeader(statusCode)
		return
	}
	if w.wroteHeaders {
		return
	}
	// remember that we wrote the headers
	w.wroteHeaders = true
	// set the status code so we can return it later
	w.status = statusCode
	if w.before != nil {
		if sent := w.before(statusCode, w.rw.Header()); sent != statusCode {
			w.status = sent
			w.discardBody = sent == http.StatusNotModified || sent == http.StatusNoContent
		}
	}
	w.rw.WriteHeader(w.status)
}

// Implementation of http.ResponseWriter
func (w *Writer) Write(b []byte) (int, error) {
	// write headers if not already written
	if !w.wroteHeaders {
		w.WriteHeader(http.StatusOK)
	}
	if w.discardBody {
		return len(b), nil
	}
	return w.rw.Write(b)
}

// StatusCode returns the status code sent, or 0 if nothing was written yet.
func (w *Writer) StatusCode() int {
	return w.status
}

// Flush implements http.Flusher.
// Flushing before anything was written sends the headers with status 200.
func (w *Writer) Flush() {
	if !w.wroteHeaders {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.rw.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker. The hook is not called for hijacked connections.
func (w *Writer) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.rw.(http.Hijacker); ok {
		w.wroteHeaders = true
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("Underlying ResponseWriter does not implement http.Hijacker")
}

// Unwrap returns the underlying writer, for http.ResponseController.
func (w *Writer) Unwrap() http.ResponseWriter {
	return w.rw
}
