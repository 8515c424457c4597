package logger

import (
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

// Init builds the process logger. production selects JSON output; otherwise
// a console encoder is used. Callers are only attached to error entries.
func Init(production bool) error {
	var base zap.Config
	if production {
		base = zap.NewProductionConfig()
	} else {
		base = zap.NewDevelopmentConfig()
	}

	enc := base.EncoderConfig
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder

	plain := enc
	plain.CallerKey = ""
	withCaller := enc
	withCaller.CallerKey = "caller"

	newEncoder := zapcore.NewConsoleEncoder
	if production {
		newEncoder = zapcore.NewJSONEncoder
	}

	ws := zapcore.Lock(zapcore.AddSync(os.Stdout))
	core := zapcore.NewTee(
		zapcore.NewCore(newEncoder(plain), ws,
			zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l < zapcore.ErrorLevel })),
		zapcore.NewCore(newEncoder(withCaller), ws,
			zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel })),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// L returns the process logger, initialising a development logger on first use.
func L() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	_ = Init(false)
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Set replaces the process logger. Tests use it with zap.NewNop or an observer.
func Set(l *zap.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

func Sync() { _ = L().Sync() }

// GinLogger logs one line per handled request.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}
		L().Info("HTTP Request", fields...)
	}
}

// GinRecovery turns a handler panic into a logged 500 response.
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				L().Error("panic recovered",
					zap.Any("error", err),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
