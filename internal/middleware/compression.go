// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// DefaultCompressMinSize is the body size below which responses are sent
// as-is. A single customer's recommendations rarely reach it; batch
// responses almost always do.
const DefaultCompressMinSize = 1024

var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

// Compression gzips responses of at least DefaultCompressMinSize bytes.
func Compression(next http.Handler) http.Handler {
	return CompressionWithMinSize(DefaultCompressMinSize)(next)
}

// CompressionWithMinSize returns a gzip middleware that buffers the first
// minSize bytes of a response and only compresses when the body grows past
// them. Clients without "gzip" in Accept-Encoding always get plain bodies.
func CompressionWithMinSize(minSize int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Encoding")
			if !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			cw := &deferredGzipWriter{ResponseWriter: w, minSize: minSize, status: http.StatusOK}
			defer cw.finish()
			next.ServeHTTP(cw, r)
		})
	}
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		// gzip;q=0 is an explicit refusal.
		return strings.ReplaceAll(params, " ", "") != "q=0"
	}
	return false
}

// deferredGzipWriter holds back the status line and the start of the body
// until it knows whether compressing is worth it.
type deferredGzipWriter struct {
	http.ResponseWriter
	minSize int
	status  int
	buf     bytes.Buffer
	gz      *gzip.Writer
	flushed bool
}

func (w *deferredGzipWriter) WriteHeader(status int) {
	if !w.flushed {
		w.status = status
	}
}

func (w *deferredGzipWriter) Write(p []byte) (int, error) {
	if w.gz != nil {
		return w.gz.Write(p)
	}
	if w.flushed {
		return w.ResponseWriter.Write(p)
	}
	w.buf.Write(p)
	if w.buf.Len() >= w.minSize {
		if err := w.start(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// start commits to compression once the buffered body is large enough.
func (w *deferredGzipWriter) start() error {
	h := w.ResponseWriter.Header()
	if h.Get("Content-Encoding") != "" {
		return w.passThrough()
	}
	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.status)
	w.flushed = true

	w.gz = gzipPool.Get().(*gzip.Writer) //nolint:errcheck // pool only holds *gzip.Writer
	w.gz.Reset(w.ResponseWriter)
	_, err := w.gz.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

func (w *deferredGzipWriter) passThrough() error {
	w.ResponseWriter.WriteHeader(w.status)
	w.flushed = true
	_, err := w.ResponseWriter.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

func (w *deferredGzipWriter) finish() {
	if w.gz != nil {
		_ = w.gz.Close() // response already committed
		gzipPool.Put(w.gz)
		w.gz = nil
		return
	}
	if !w.flushed {
		_ = w.passThrough()
	}
}
