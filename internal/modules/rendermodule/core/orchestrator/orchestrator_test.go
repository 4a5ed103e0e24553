package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	rendererrors "github.com/manimforge/manimforge/internal/modules/rendermodule/errors"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockBuilder records build calls and fails the classes listed in fail.
type MockBuilder struct {
	mu     sync.Mutex
	calls  []string
	ids    []string
	fail   map[string]string
	before func(className string)
}

func (m *MockBuilder) Build(ctx context.Context, source, className, compilationID string) types.BuildResult {
	if m.before != nil {
		m.before(className)
	}
	m.mu.Lock()
	m.calls = append(m.calls, className)
	m.ids = append(m.ids, compilationID)
	m.mu.Unlock()

	if diag, ok := m.fail[className]; ok {
		return types.Failed(compilationID, diag)
	}
	name := paths.SceneVideoName(compilationID, className)
	return types.Succeeded(compilationID, "/out/"+name, "/videos/"+name)
}

// MockCombiner records combine calls.
type MockCombiner struct {
	calls [][]string
	fail  bool
}

func (m *MockCombiner) Combine(ctx context.Context, videoPaths []string, combinationID string) types.BuildResult {
	m.calls = append(m.calls, videoPaths)
	if m.fail {
		return types.Failed(combinationID, "ffmpeg concat failed: exit status 1")
	}
	name := paths.CombinedVideoName(combinationID)
	return types.Succeeded(combinationID, "/out/"+name, "/videos/"+name)
}

func scenes(classes ...string) []types.SceneDescriptor {
	out := make([]types.SceneDescriptor, 0, len(classes))
	for _, c := range classes {
		out = append(out, types.SceneDescriptor{
			FileName:  "a.py",
			ClassName: c,
			Content:   fmt.Sprintf("class %s(Scene): pass", c),
		})
	}
	return out
}

func newTestOrchestrator(b *MockBuilder, c *MockCombiner) *Orchestrator {
	return New(b, c, hclog.NewNullLogger())
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	b, c := &MockBuilder{}, &MockCombiner{}
	o := newTestOrchestrator(b, c)

	_, err := o.Run(context.Background(), nil, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rendererrors.ErrNoScenes))
	assert.Equal(t, rendererrors.ErrorTypeValidation, rendererrors.GetType(err))
	assert.Empty(t, b.calls)
	assert.Empty(t, c.calls)
}

func TestRunRejectsMissingClassName(t *testing.T) {
	b := &MockBuilder{}
	o := newTestOrchestrator(b, &MockCombiner{})

	_, err := o.Run(context.Background(), []types.SceneDescriptor{{FileName: "a.py", Content: "x"}}, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rendererrors.ErrInvalidRequest))
	assert.Empty(t, b.calls)
}

func TestRunCombinesScenes(t *testing.T) {
	b, c := &MockBuilder{}, &MockCombiner{}
	o := newTestOrchestrator(b, c)

	result, err := o.RunProject(context.Background(), "p1", scenes("IntroScene", "CircleScene"), true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "p1", result.ProjectID)
	assert.Equal(t, []types.SceneVideo{
		{Scene: "IntroScene", VideoURL: "/videos/p1_IntroScene_IntroScene.mp4"},
		{Scene: "CircleScene", VideoURL: "/videos/p1_CircleScene_CircleScene.mp4"},
	}, result.IndividualVideos)
	assert.Equal(t, "/videos/combined_p1.mp4", result.CombinedVideoURL)
	assert.Empty(t, result.Error)

	require.Len(t, c.calls, 1)
	assert.Equal(t, []string{"/out/p1_IntroScene_IntroScene.mp4", "/out/p1_CircleScene_CircleScene.mp4"}, c.calls[0])
	assert.Equal(t, []string{"p1_IntroScene", "p1_CircleScene"}, b.ids)
}

func TestRunFailFast(t *testing.T) {
	b := &MockBuilder{fail: map[string]string{"B": "renderer exited with status 1"}}
	c := &MockCombiner{}
	o := newTestOrchestrator(b, c)

	result, err := o.Run(context.Background(), scenes("A", "B", "C"), true)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"A", "B"}, b.calls, "C must not be attempted")
	require.Len(t, result.IndividualVideos, 1)
	assert.Equal(t, "A", result.IndividualVideos[0].Scene)
	assert.Equal(t, "B", result.FailedScene)
	assert.Equal(t, "Failed to compile scene B: renderer exited with status 1", result.Error)
	assert.Empty(t, result.CombinedVideoURL)
	assert.Empty(t, c.calls)
}

func TestRunFirstSceneFails(t *testing.T) {
	b := &MockBuilder{fail: map[string]string{"A": "No video file generated for scene: A"}}
	o := newTestOrchestrator(b, &MockCombiner{})

	result, err := o.Run(context.Background(), scenes("A", "B"), true)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotNil(t, result.IndividualVideos)
	assert.Empty(t, result.IndividualVideos)
	assert.Equal(t, []string{"A"}, b.calls)
}

func TestRunSingleScenePassThrough(t *testing.T) {
	for _, combine := range []bool{true, false} {
		t.Run(fmt.Sprintf("combine=%v", combine), func(t *testing.T) {
			b, c := &MockBuilder{}, &MockCombiner{}
			o := newTestOrchestrator(b, c)

			result, err := o.RunProject(context.Background(), "p1", scenes("Only"), combine)
			require.NoError(t, err)
			assert.True(t, result.Success)
			require.Len(t, result.IndividualVideos, 1)
			assert.Equal(t, result.IndividualVideos[0].VideoURL, result.CombinedVideoURL)
			assert.Empty(t, c.calls)
		})
	}
}

func TestRunCombineFailureIsNonFatal(t *testing.T) {
	b, c := &MockBuilder{}, &MockCombiner{fail: true}
	o := newTestOrchestrator(b, c)

	result, err := o.Run(context.Background(), scenes("A", "B"), true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.IndividualVideos, 2)
	assert.Empty(t, result.CombinedVideoURL)
	assert.Empty(t, result.Error)
	assert.Len(t, c.calls, 1)
}

func TestRunWithoutCombine(t *testing.T) {
	b, c := &MockBuilder{}, &MockCombiner{}
	o := newTestOrchestrator(b, c)

	result, err := o.Run(context.Background(), scenes("A", "B"), false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.IndividualVideos, 2)
	assert.Empty(t, result.CombinedVideoURL)
	assert.Empty(t, c.calls)
}

func TestRunConcurrentProjectsDoNotCollide(t *testing.T) {
	b, c := &MockBuilder{}, &MockCombiner{}
	o := newTestOrchestrator(b, c)

	var wg sync.WaitGroup
	results := make([]types.MultiSceneResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := o.Run(context.Background(), scenes("Intro"), true)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	require.True(t, results[0].Success)
	require.True(t, results[1].Success)
	assert.NotEqual(t, results[0].ProjectID, results[1].ProjectID)
	assert.NotEqual(t, results[0].IndividualVideos[0].VideoURL, results[1].IndividualVideos[0].VideoURL)
	assert.NotEqual(t, b.ids[0], b.ids[1])
}

func TestRunDuplicateClassNames(t *testing.T) {
	b := &MockBuilder{}
	o := newTestOrchestrator(b, &MockCombiner{})

	result, err := o.RunProject(context.Background(), "p1", scenes("Intro", "Intro"), true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"p1_Intro", "p1_Intro_2"}, b.ids)
	assert.NotEqual(t, result.IndividualVideos[0].VideoURL, result.IndividualVideos[1].VideoURL)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &MockBuilder{before: func(className string) {
		if className == "A" {
			cancel()
		}
	}}
	o := newTestOrchestrator(b, &MockCombiner{})

	result, err := o.Run(ctx, scenes("A", "B", "C"), true)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"A"}, b.calls)
	assert.Equal(t, "B", result.FailedScene)
	assert.Contains(t, result.Error, "batch aborted")
}

func TestRunHooks(t *testing.T) {
	var built []string
	var combined, done int
	b, c := &MockBuilder{}, &MockCombiner{}
	o := newTestOrchestrator(b, c).WithHooks(Hooks{
		SceneBuilt: func(projectID string, scene types.SceneDescriptor, result types.BuildResult) {
			built = append(built, scene.ClassName)
		},
		Combined: func(projectID string, result types.BuildResult) { combined++ },
		BatchDone: func(result types.MultiSceneResult, elapsed time.Duration) {
			done++
			assert.True(t, result.Success)
		},
	})

	_, err := o.Run(context.Background(), scenes("A", "B"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, built)
	assert.Equal(t, 1, combined)
	assert.Equal(t, 1, done)
}

func TestCompilationIDs(t *testing.T) {
	tests := []struct {
		name    string
		classes []string
		want    []string
	}{
		{"distinct", []string{"A", "B"}, []string{"p_A", "p_B"}},
		{"repeated", []string{"A", "B", "A", "A"}, []string{"p_A", "p_B", "p_A_2", "p_A_3"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompilationIDs("p", scenes(tt.classes...)))
		})
	}
}
