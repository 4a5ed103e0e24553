// Package locator finds the video a renderer produced for a scene.
//
// The renderer's output layout depends on its version and flags, so the
// locator checks an ordered list of known conventions and then falls back to
// walking the output tree.
package locator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/paths"
)

// Candidate maps (outputDir, className, compilationID) to one possible
// location of the rendered video.
type Candidate func(outputDir, className, compilationID string) string

// Flat is <out>/<Class>.mp4.
func Flat(outputDir, className, _ string) string {
	return filepath.Join(outputDir, className+paths.VideoExt)
}

// Namespaced is <out>/<id>_<Class>.mp4.
func Namespaced(outputDir, className, compilationID string) string {
	return filepath.Join(outputDir, paths.SceneVideoName(compilationID, className))
}

// CompilationDir is <out>/<id>/<Class>.mp4.
func CompilationDir(outputDir, className, compilationID string) string {
	return filepath.Join(outputDir, compilationID, className+paths.VideoExt)
}

// VideosDir is <out>/videos/<Class>.mp4.
func VideosDir(outputDir, className, _ string) string {
	return filepath.Join(outputDir, "videos", className+paths.VideoExt)
}

// VideosCompilationDir is <out>/videos/<id>/<Class>.mp4.
func VideosCompilationDir(outputDir, className, compilationID string) string {
	return filepath.Join(outputDir, "videos", compilationID, className+paths.VideoExt)
}

// DefaultCandidates is the ordered convention list.
var DefaultCandidates = []Candidate{
	Flat,
	Namespaced,
	CompilationDir,
	VideosDir,
	VideosCompilationDir,
}

// skipDirs hold renderer intermediates that must never be picked.
var skipDirs = map[string]bool{
	"partial_movie_files": true,
}

// Locator resolves rendered videos.
type Locator struct {
	candidates []Candidate
	logger     hclog.Logger
}

// New creates a Locator with DefaultCandidates.
func New(logger hclog.Logger) *Locator {
	return NewWithCandidates(DefaultCandidates, logger)
}

// NewWithCandidates creates a Locator with a custom convention list.
func NewWithCandidates(candidates []Candidate, logger hclog.Logger) *Locator {
	return &Locator{
		candidates: candidates,
		logger:     logger.Named("output-locator"),
	}
}

// Locate returns the first existing candidate, or the first video under
// outputDir whose name contains className. A missing outputDir is "not found".
func (l *Locator) Locate(outputDir, className, compilationID string) (string, bool) {
	for i, candidate := range l.candidates {
		p := candidate(outputDir, className, compilationID)
		if isRegularFile(p) {
			l.logger.Debug("located video by convention", "class_name", className, "index", i, "path", p)
			return p, true
		}
	}

	found, err := walk(outputDir, className)
	if err != nil {
		l.logger.Debug("output walk stopped", "class_name", className, "error", err)
	}
	if found != "" {
		l.logger.Debug("located video by walk", "class_name", className, "path", found)
		return found, true
	}
	return "", false
}

var errFound = errors.New("found")

func walk(root, className string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped, a missing root ends the walk
			if p == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.EqualFold(filepath.Ext(name), paths.VideoExt) && strings.Contains(name, className) {
			found = p
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return found, nil
	}
	return "", err
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
