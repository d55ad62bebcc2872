package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactHookMasksSecrets(t *testing.T) {
	log := NewLogger(DefaultLogConfig())
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithFields(map[string]interface{}{
		"address":     "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf",
		"private_key": "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		"raw_tx":      "0xf86b05",
	}).Info("transfer")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "transfer", line["message"])
	assert.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", line["address"])
	assert.Equal(t, redacted, line["private_key"])
	assert.Equal(t, redacted, line["raw_tx"])
	assert.NotContains(t, buf.String(), "4c0883a6")
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := DefaultLogConfig()
	cfg.Level = "warn"
	cfg.Format = "text"
	log := NewLogger(cfg)
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggingMiddlewareSetsRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	h := LoggingMiddleware(func(c echo.Context) error {
		seen = RequestLogger(c).Data["request_id"].(string)
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, h(c))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
}
