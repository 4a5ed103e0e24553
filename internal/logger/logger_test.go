package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  hclog.Level
	}{
		{"debug", hclog.Debug},
		{"WARN", hclog.Warn},
		{"", hclog.Info},
		{"bogus", hclog.Info},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(Config{Level: tt.level, Output: &bytes.Buffer{}})
			assert.Equal(t, tt.want, l.GetLevel())
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})
	l.Named("concat").Info("combined", "project_id", "p1")

	assert.Contains(t, buf.String(), `"@module":"manimforge.concat"`)
	assert.Contains(t, buf.String(), `"project_id":"p1"`)
}

func TestOpenOutput(t *testing.T) {
	w, closeFn, err := OpenOutput("stdout")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
	assert.NoError(t, closeFn())

	path := filepath.Join(t.TempDir(), "manimforge.log")
	w, closeFn, err = OpenOutput(path)
	require.NoError(t, err)
	New(Config{Output: w}).Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	_, _, err = OpenOutput(filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(New(Config{Output: &buf}))
	Info("startup", "port", 3000)
	assert.Contains(t, buf.String(), "startup")
}
