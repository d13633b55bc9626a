package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ridekit/pkg/logger"
)

func TestNew_DefaultsToJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))
	log.Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "INFO", record["level"])
}

func TestNew_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatText))
	log.Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNew_InvalidFormatPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("xml")))
	})
}

func TestNew_StaticAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "presence")),
	)
	log.Info("up")

	assert.Contains(t, buf.String(), `"service":"presence"`)
}

func TestNew_DevelopmentPreset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithDevelopment("rooms"))
	log.Debug("debug visible")

	out := buf.String()
	assert.True(t, strings.Contains(out, "debug visible"))
	assert.Contains(t, out, "env=development")
}

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	t.Run("error attr", func(t *testing.T) {
		t.Parallel()

		attr := logger.Error(assert.AnError)
		assert.Equal(t, "error", attr.Key)

		empty := logger.Error(nil)
		assert.Empty(t, empty.Key)
	})

	t.Run("user id attr", func(t *testing.T) {
		t.Parallel()

		attr := logger.UserID("user-1")
		assert.Equal(t, "user_id", attr.Key)
		assert.Equal(t, "user-1", attr.Value.Any())
	})

	t.Run("channel attr", func(t *testing.T) {
		t.Parallel()

		attr := logger.Channel("email")
		assert.Equal(t, "channel", attr.Key)
		assert.Equal(t, "email", attr.Value.String())
	})
}
