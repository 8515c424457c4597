package cache

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autocatalog/logger"
)

const jsonContentType = "application/json; charset=utf-8"

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware serves GET responses from the store and records successful
// JSON responses on a miss. Attach it only to listing routes.
func (s *Store) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		uri := c.Request.URL.RequestURI()
		if cached, found := s.Read(uri); found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, jsonContentType, cached)
			c.Abort()
			return
		}

		gen := s.Generation()
		c.Header("X-Cache", "MISS")
		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() == http.StatusOK &&
			strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "application/json") {
			stored, err := s.WriteIfCurrent(uri, writer.body.Bytes(), gen)
			if err != nil {
				logger.L().Warn("failed to write cache entry", zap.String("uri", uri), zap.Error(err))
			} else if !stored {
				logger.L().Debug("cache cleared during request, entry dropped", zap.String("uri", uri))
			}
		}
	}
}
