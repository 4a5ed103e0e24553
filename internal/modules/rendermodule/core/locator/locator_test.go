package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, p string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte("video"), 0644))
}

func TestLocateConventions(t *testing.T) {
	tests := []struct {
		name string
		rel  string
	}{
		{"flat", "Intro.mp4"},
		{"namespaced", "p1_Intro_Intro.mp4"},
		{"compilation dir", "p1_Intro/Intro.mp4"},
		{"videos dir", "videos/Intro.mp4"},
		{"videos compilation dir", "videos/p1_Intro/Intro.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			want := filepath.Join(out, filepath.FromSlash(tt.rel))
			touch(t, want)

			got, ok := New(hclog.NewNullLogger()).Locate(out, "Intro", "p1_Intro")
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestLocatePrefersEarlierConvention(t *testing.T) {
	out := t.TempDir()
	touch(t, filepath.Join(out, "videos", "Intro.mp4"))
	touch(t, filepath.Join(out, "Intro.mp4"))

	got, ok := New(hclog.NewNullLogger()).Locate(out, "Intro", "id")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(out, "Intro.mp4"), got)
}

func TestLocateFallsBackToWalk(t *testing.T) {
	out := t.TempDir()
	want := filepath.Join(out, "videos", "p1_Intro", "720p30", "Intro.mp4")
	touch(t, want)
	touch(t, filepath.Join(out, "videos", "p1_Intro", "720p30", "partial_movie_files", "Intro", "Intro_partial.mp4"))

	got, ok := New(hclog.NewNullLogger()).Locate(out, "Intro", "p1_Intro")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestLocateSkipsPartialFiles(t *testing.T) {
	out := t.TempDir()
	touch(t, filepath.Join(out, "media", "partial_movie_files", "Intro", "Intro_0001.mp4"))

	_, ok := New(hclog.NewNullLogger()).Locate(out, "Intro", "id")
	assert.False(t, ok)
}

func TestLocateNotFound(t *testing.T) {
	out := t.TempDir()
	touch(t, filepath.Join(out, "Other.mp4"))
	touch(t, filepath.Join(out, "Intro.txt"))

	l := New(hclog.NewNullLogger())
	_, ok := l.Locate(out, "Intro", "id")
	assert.False(t, ok)

	_, ok = l.Locate(filepath.Join(out, "missing"), "Intro", "id")
	assert.False(t, ok)
}

func TestCustomCandidates(t *testing.T) {
	out := t.TempDir()
	want := filepath.Join(out, "custom", "Intro.mp4")
	touch(t, want)

	custom := func(outputDir, className, _ string) string {
		return filepath.Join(outputDir, "custom", className+".mp4")
	}
	got, ok := NewWithCandidates([]Candidate{custom}, hclog.NewNullLogger()).Locate(out, "Intro", "id")
	require.True(t, ok)
	assert.Equal(t, want, got)
}
