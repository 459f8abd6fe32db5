package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFieldsMergesIntoEveryEvent(t *testing.T) {
	var buf bytes.Buffer
	log := New(InfoLevel, "production", &buf).WithFields(map[string]interface{}{"component": "catalog"})

	log.Info("book created", map[string]interface{}{"book_id": "42"})

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "book created", got["message"])
	assert.Equal(t, "catalog", got["component"])
	assert.Equal(t, "42", got["book_id"])
	assert.Equal(t, "info", got["level"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(WarnLevel, "production", &buf)

	log.Debug("hidden", nil)
	log.Info("hidden", nil)
	assert.Zero(t, buf.Len())

	log.Warn("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, "info", parseLevel("verbose").String())
}

func TestDevelopmentWritesConsoleOutput(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	var buf bytes.Buffer
	log := New(InfoLevel, "development", &buf)

	log.Info("book created", map[string]interface{}{"book_id": "42"})

	assert.Contains(t, buf.String(), "book created")
	assert.Contains(t, buf.String(), "book_id")
	var got map[string]interface{}
	assert.Error(t, json.Unmarshal(buf.Bytes(), &got))
}
