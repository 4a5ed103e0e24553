// Package extractor finds manim scene declarations in Python source text.
//
// Matching is lexical: a declaration is `class <Name>(<BaseKind>)` where
// BaseKind is one of the known scene bases. The source is never parsed or
// executed, so dynamically built classes are missed and commented-out or
// string-embedded declarations are reported. Callers depend on the Extractor
// interface so a real parser can replace this later.
package extractor

import (
	"regexp"
	"strings"

	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
)

// BaseKinds are the scene base classes recognised as compilable scenes.
var BaseKinds = []string{
	"Scene",
	"MovingCameraScene",
	"ThreeDScene",
	"ZoomedScene",
}

// Extractor returns the distinct scene identifiers declared in a source text,
// in order of first appearance.
type Extractor interface {
	ExtractDeclaredScenes(source string) []string
}

// PatternExtractor is the regular-expression Extractor.
type PatternExtractor struct {
	pattern *regexp.Regexp
}

// New returns a PatternExtractor for BaseKinds.
func New() *PatternExtractor {
	return NewWithBaseKinds(BaseKinds)
}

// NewWithBaseKinds returns a PatternExtractor for a custom set of base classes.
func NewWithBaseKinds(kinds []string) *PatternExtractor {
	quoted := make([]string, len(kinds))
	for i, k := range kinds {
		quoted[i] = regexp.QuoteMeta(k)
	}
	// One alternation keeps discovery order across all base kinds.
	expr := `class\s+([A-Za-z0-9_]+)\s*\(\s*(?:` + strings.Join(quoted, "|") + `)\s*\)`
	return &PatternExtractor{pattern: regexp.MustCompile(expr)}
}

// ExtractDeclaredScenes implements Extractor. An empty result means no
// compilable scene was found.
func (e *PatternExtractor) ExtractDeclaredScenes(source string) []string {
	matches := e.pattern.FindAllStringSubmatch(source, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Describe expands one source file into a descriptor per declared scene.
func Describe(e Extractor, fileName, content string) []types.SceneDescriptor {
	names := e.ExtractDeclaredScenes(content)
	descriptors := make([]types.SceneDescriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, types.SceneDescriptor{
			FileName:  fileName,
			ClassName: name,
			Content:   content,
		})
	}
	return descriptors
}
