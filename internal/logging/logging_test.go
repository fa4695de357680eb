package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/composite/internal/logging"
	"github.com/spachava753/composite/internal/models"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("debug", models.LogFormatJSON, &buf)
	require.NoError(t, err)

	logger.Debug("executing build tasks", "build", "lib::", "tasks", []string{":lib:jar"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "executing build tasks", entry["msg"])
	assert.Equal(t, "lib::", entry["build"])
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New("warn", models.LogFormatText, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, strings.Contains(buf.String(), "msg=shown"))
}

func TestNewInvalid(t *testing.T) {
	_, err := logging.New("verbose", models.LogFormatText, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = logging.New("info", models.LogFormat("xml"), &bytes.Buffer{})
	assert.Error(t, err)
}
