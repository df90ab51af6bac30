package docserver

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

var gzipPool = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

// Gzip returns a middleware that gzips response bodies of at least
// minLength bytes when the client accepts gzip. Responses that already
// carry a Content-Encoding, and 304 responses, are passed through.
func Gzip(minLength int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			gw := &gzipResponseWriter{ResponseWriter: w, minLength: minLength}
			defer gw.close()

			next.ServeHTTP(gw, r)
		})
	}
}

// acceptsGzip reports whether an Accept-Encoding value allows gzip with a
// non-zero quality, directly or through "*".
func acceptsGzip(header string) bool {
	gzipQ, wildQ := -1.0, -1.0

	for part := range strings.SplitSeq(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		q := 1.0
		if key, val, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(key) == "q" {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				parsed = 0
			}
			q = parsed
		}

		switch strings.ToLower(strings.TrimSpace(name)) {
		case "gzip":
			gzipQ = q
		case "*":
			wildQ = q
		}
	}

	if gzipQ < 0 {
		gzipQ = wildQ
	}
	return gzipQ > 0
}

// gzipResponseWriter buffers the body until minLength bytes are seen, then
// commits to either a gzip stream or a plain pass-through.
type gzipResponseWriter struct {
	http.ResponseWriter
	minLength int

	gz      *gzip.Writer
	buf     []byte
	status  int
	decided bool
}

func (gw *gzipResponseWriter) WriteHeader(code int) {
	if gw.status != 0 {
		return
	}
	gw.status = code

	if code == http.StatusNotModified || code == http.StatusNoContent || gw.Header().Get("Content-Encoding") != "" {
		gw.decided = true
		gw.ResponseWriter.WriteHeader(code)
	}
}

func (gw *gzipResponseWriter) Write(b []byte) (int, error) {
	if gw.status == 0 {
		gw.WriteHeader(http.StatusOK)
	}

	if gw.decided {
		if gw.gz != nil {
			return gw.gz.Write(b)
		}
		return gw.ResponseWriter.Write(b)
	}

	gw.buf = append(gw.buf, b...)
	if len(gw.buf) >= gw.minLength {
		if err := gw.commit(true); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

// commit writes the status line and the buffered bytes, compressed or not.
func (gw *gzipResponseWriter) commit(compress bool) error {
	gw.decided = true
	if gw.status == 0 {
		gw.status = http.StatusOK
	}

	h := gw.Header()
	h.Add("Vary", "Accept-Encoding")

	if compress {
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")

		gw.gz = gzipPool.Get().(*gzip.Writer)
		gw.gz.Reset(gw.ResponseWriter)
	}

	gw.ResponseWriter.WriteHeader(gw.status)

	buf := gw.buf
	gw.buf = nil
	if len(buf) == 0 {
		return nil
	}
	if gw.gz != nil {
		_, err := gw.gz.Write(buf)
		return err
	}
	_, err := gw.ResponseWriter.Write(buf)
	return err
}

func (gw *gzipResponseWriter) close() {
	if !gw.decided && gw.status != 0 {
		_ = gw.commit(len(gw.buf) >= gw.minLength && len(gw.buf) > 0)
	}

	if gw.gz != nil {
		_ = gw.gz.Close()
		gzipPool.Put(gw.gz)
		gw.gz = nil
	}
}

// Flush implements http.Flusher.
func (gw *gzipResponseWriter) Flush() {
	if !gw.decided {
		_ = gw.commit(len(gw.buf) > 0)
	}
	if gw.gz != nil {
		_ = gw.gz.Flush()
	}
	if f, ok := gw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (gw *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return gw.ResponseWriter
}
