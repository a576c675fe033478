package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// DefaultBrotliMinLength keeps tiny envelopes uncompressed; the session state
// with its question list is what crosses it.
const DefaultBrotliMinLength = 1024

type bufferedWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	return w.body.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// finish writes the buffered body to the real writer, compressed when it is at
// least minLength bytes.
func (w *bufferedWriter) finish(minLength int) error {
	if w.body.Len() == 0 {
		w.ResponseWriter.WriteHeaderNow()
		return nil
	}
	if w.body.Len() < minLength {
		_, err := w.ResponseWriter.Write(w.body.Bytes())
		return err
	}

	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")

	bw := brotli.NewWriterLevel(w.ResponseWriter, brotli.DefaultCompression)
	if _, err := bw.Write(w.body.Bytes()); err != nil {
		return err
	}
	return bw.Close()
}

// Brotli buffers each response and brotli-encodes it when the client accepts
// br. WebSocket upgrades and event streams pass through untouched.
func Brotli(minLength int) gin.HandlerFunc {
	if minLength <= 0 {
		minLength = DefaultBrotliMinLength
	}

	return func(c *gin.Context) {
		if shouldSkip(c) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()
		c.Writer = bw.ResponseWriter

		if err := bw.finish(minLength); err != nil {
			_ = c.Error(err)
		}
	}
}

// shouldSkip returns true for protocols that are incompatible with
// buffered compression.
func shouldSkip(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	// The upgrade handshake hijacks the connection; a wrapped writer breaks it.
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "br") {
			return true
		}
	}
	return false
}
