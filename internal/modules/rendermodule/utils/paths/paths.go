// Package paths centralises artifact naming for the render pipeline.
// Every public file name is a deterministic function of a compilation or
// project id and a scene class, so callers can build serving URLs without
// a lookup and concurrent batches never share a file.
package paths

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const (
	// VideoExt is the extension of every rendered and combined video.
	VideoExt = ".mp4"
	// ThumbnailExt is the extension of poster images.
	ThumbnailExt = ".webp"
	// ScriptExt is the extension of staged scene sources.
	ScriptExt = ".py"
)

// SceneCompilationID namespaces a scene build under its batch.
// Pattern: <projectId>_<className>
func SceneCompilationID(projectID, className string) string {
	return fmt.Sprintf("%s_%s", projectID, className)
}

// SceneVideoName returns the public file name of a built scene.
// Pattern: <compilationId>_<className>.mp4
func SceneVideoName(compilationID, className string) string {
	return fmt.Sprintf("%s_%s%s", compilationID, className, VideoExt)
}

// SceneThumbnailName returns the poster file name for a built scene.
func SceneThumbnailName(compilationID, className string) string {
	return fmt.Sprintf("%s_%s%s", compilationID, className, ThumbnailExt)
}

// CombinedVideoName returns the public file name of a concatenation.
// Pattern: combined_<combinationId>.mp4
func CombinedVideoName(combinationID string) string {
	return fmt.Sprintf("combined_%s%s", combinationID, VideoExt)
}

// ManifestName returns the concat list file name for a combination.
func ManifestName(combinationID string) string {
	return fmt.Sprintf("%s_list.txt", combinationID)
}

// ScriptName returns the staged source file name for a compilation.
func ScriptName(compilationID string) string {
	return compilationID + ScriptExt
}

// PublicURL joins the serving prefix and a file name.
func PublicURL(prefix, fileName string) string {
	if prefix == "" {
		prefix = "/"
	}
	return path.Join("/", prefix, fileName)
}

// FileNameFromURL strips the serving prefix from a public URL. It reports
// false when the URL is not under prefix or names a nested path.
func FileNameFromURL(prefix, url string) (string, bool) {
	p := strings.TrimSuffix(path.Join("/", prefix), "/") + "/"
	if !strings.HasPrefix(url, p) {
		return "", false
	}
	name := strings.TrimPrefix(url, p)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// ResolveInside resolves ref against root and rejects results outside root.
// ref may be a public URL, a bare file name, or a path relative to root.
func ResolveInside(root, prefix, ref string) (string, error) {
	if name, ok := FileNameFromURL(prefix, ref); ok {
		ref = name
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	candidate := ref
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absRoot, candidate)
	}
	candidate = filepath.Clean(candidate)
	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is outside %s", ref, root)
	}
	return candidate, nil
}
