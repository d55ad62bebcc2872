package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	appLogger     *logrus.Logger
	appLoggerOnce sync.Once
)

// LogConfig configures the application logger
type LogConfig struct {
	Dir             string
	MaxSize         int
	MaxBackups      int
	MaxAge          int
	Compress        bool
	Level           string
	Format          string // json, text
	TimestampFormat string
}

// DefaultLogConfig logs JSON to stdout only
func DefaultLogConfig() LogConfig {
	return LogConfig{
		MaxSize:         100,
		MaxBackups:      30,
		MaxAge:          90,
		Compress:        true,
		Level:           "info",
		Format:          "json",
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// GetLogger returns the process wide logrus logger, configured from LOG_* env vars on first use
func GetLogger() *logrus.Logger {
	appLoggerOnce.Do(func() {
		config := DefaultLogConfig()
		if format := os.Getenv("LOG_FORMAT"); format != "" {
			config.Format = format
		}
		if level := os.Getenv("LOG_LEVEL"); level != "" {
			config.Level = level
		}
		if dir := os.Getenv("LOG_DIR"); dir != "" {
			config.Dir = dir
		}
		appLogger = NewLogger(config)
	})
	return appLogger
}

// Configure sets up the process wide logger. It has no effect once GetLogger was called.
func Configure(config LogConfig) {
	appLoggerOnce.Do(func() {
		appLogger = NewLogger(config)
	})
}

// NewLogger builds a logger from config. Secret fields are always redacted.
func NewLogger(config LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch config.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: config.TimestampFormat,
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: config.TimestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	}

	logger.SetOutput(os.Stdout)
	if config.Dir != "" {
		if out, err := fileOutput(config); err != nil {
			logger.WithError(err).Error("Failed to open log file, logging to stdout only")
		} else {
			logger.SetOutput(io.MultiWriter(out, os.Stdout))
		}
	}

	logger.AddHook(&RedactHook{})
	return logger
}

func fileOutput(config LogConfig) (io.Writer, error) {
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.Dir, "wallet.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}, nil
}

const redacted = "[REDACTED]"

var secretFields = map[string]struct{}{
	"private_key": {},
	"privatekey":  {},
	"pkey":        {},
	"raw_tx":      {},
	"rawtx":       {},
	"passphrase":  {},
}

// RedactHook masks fields that may carry key material or signed transactions
type RedactHook struct{}

func (h *RedactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *RedactHook) Fire(entry *logrus.Entry) error {
	for k := range entry.Data {
		if _, ok := secretFields[strings.ToLower(k)]; ok {
			entry.Data[k] = redacted
		}
	}
	return nil
}

// LoggingMiddleware logs every request with a generated request id
func LoggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		res := c.Response()

		requestID := req.Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = fmt.Sprintf("%d", start.UnixNano())
		}
		c.Set("request_id", requestID)
		res.Header().Set(echo.HeaderXRequestID, requestID)

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		fields := logrus.Fields{
			"request_id":  requestID,
			"method":      req.Method,
			"path":        req.URL.Path,
			"status":      res.Status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": c.RealIP(),
		}
		entry := GetLogger().WithFields(fields)
		switch {
		case res.Status >= 500:
			entry.Error("Request completed")
		case res.Status >= 400:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
		return nil
	}
}

// RequestLogger returns an entry tagged with the current request
func RequestLogger(c echo.Context) *logrus.Entry {
	requestID, ok := c.Get("request_id").(string)
	if !ok {
		requestID = "unknown"
	}
	return GetLogger().WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     c.Request().Method,
		"path":       c.Request().URL.Path,
	})
}

// InitGlobalLogger aligns the logrus standard logger with GetLogger
func InitGlobalLogger() {
	appLogger := GetLogger()
	logrus.SetFormatter(appLogger.Formatter)
	logrus.SetOutput(appLogger.Out)
	logrus.SetLevel(appLogger.Level)
	logrus.AddHook(&RedactHook{})
}
