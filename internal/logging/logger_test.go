package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receivables-conciliation-backend/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "info", Format: "json"})

	logger.Debug("hidden")
	ForComponent(logger, "workflow").Info("upload done", "receivables", 10)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "upload done", rec["msg"])
	assert.Equal(t, "workflow", rec["component"])
	assert.EqualValues(t, 10, rec["receivables"])
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "debug", Format: "console"})

	ForComponent(logger, "gateway").
		With("op", "upload").
		WithGroup("file").
		Warn("row errors", "name", "a b.csv", "rows", 2)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[WARN] [gateway] ["), line)
	assert.Contains(t, line, " row errors")
	assert.Contains(t, line, " op=upload")
	assert.Contains(t, line, ` file.name="a b.csv"`)
	assert.Contains(t, line, " file.rows=2")
	assert.NotContains(t, line, "\033[", "no colour when not a terminal")
	assert.NotContains(t, line, "component=")
}

func TestConsoleHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "warn"})
	logger.Info("skipped")
	assert.Empty(t, buf.String())

	logger.Error("kept", "err", "boom")
	assert.True(t, strings.HasPrefix(buf.String(), "[ERROR]"))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "info", Format: "json"})

	r := gin.New()
	r.Use(RequestLogger(logger))
	r.GET("/api/workflows/:id", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/workflows/abc", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "/api/workflows/abc", rec["path"])
	assert.Equal(t, "/api/workflows/:id", rec["route"])
	assert.EqualValues(t, 404, rec["status"])
}
