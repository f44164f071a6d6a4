package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/model"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")

	log, closer, err := New(model.LogConfig{Level: "debug", File: path}, Text, nil)
	require.NoError(t, err)
	log.WithField("task_id", 7).Debug("moved")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "task_id=7")
	assert.Contains(t, string(data), "msg=moved")
}

func TestNew_JSONFallback(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(model.LogConfig{Level: "info"}, JSON, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.WithField("status", 400).Info("request")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request", line["msg"])
	assert.EqualValues(t, 400, line["status"])
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, level)

	level, err = ParseLevel(" warn ")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
