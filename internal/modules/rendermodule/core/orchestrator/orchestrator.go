// Package orchestrator runs a batch of scene builds and assembles the
// aggregate result.
//
// Scenes are built one at a time in input order. The first failure ends the
// batch; scenes after it are never attempted. When every scene built, the
// videos are optionally concatenated. Concatenation failure does not fail
// the batch.
package orchestrator

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	rendererrors "github.com/manimforge/manimforge/internal/modules/rendermodule/errors"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/paths"
)

// SceneBuilder builds one scene.
type SceneBuilder interface {
	Build(ctx context.Context, source, className, compilationID string) types.BuildResult
}

// VideoCombiner joins built videos in order.
type VideoCombiner interface {
	Combine(ctx context.Context, videoPaths []string, combinationID string) types.BuildResult
}

// Hooks are optional callbacks fired as a batch progresses.
type Hooks struct {
	BatchStarted func(projectID string, scenes []types.SceneDescriptor)
	SceneBuilt   func(projectID string, scene types.SceneDescriptor, result types.BuildResult)
	Combined     func(projectID string, result types.BuildResult)
	BatchDone    func(result types.MultiSceneResult, elapsed time.Duration)
}

// Outcome is the tagged result of one scene in a batch.
type Outcome struct {
	Scene  types.SceneDescriptor
	Result types.BuildResult
}

// Succeeded reports whether the scene built.
func (o Outcome) Succeeded() bool {
	return o.Result.Success
}

// Orchestrator drives multi-scene batches.
type Orchestrator struct {
	builder  SceneBuilder
	combiner VideoCombiner
	hooks    Hooks
	logger   hclog.Logger
}

// New creates an orchestrator.
func New(builder SceneBuilder, combiner VideoCombiner, logger hclog.Logger) *Orchestrator {
	return &Orchestrator{
		builder:  builder,
		combiner: combiner,
		logger:   logger.Named("orchestrator"),
	}
}

// WithHooks installs progress callbacks.
func (o *Orchestrator) WithHooks(h Hooks) *Orchestrator {
	o.hooks = h
	return o
}

// Run builds scenes under a freshly minted project id.
func (o *Orchestrator) Run(ctx context.Context, scenes []types.SceneDescriptor, combine bool) (types.MultiSceneResult, error) {
	return o.RunProject(ctx, uuid.New().String(), scenes, combine)
}

// RunProject builds scenes under projectID. The returned error is non-nil
// only when the batch was rejected before any build started; scene and
// concatenation failures are reported in the result.
func (o *Orchestrator) RunProject(ctx context.Context, projectID string, scenes []types.SceneDescriptor, combine bool) (types.MultiSceneResult, error) {
	if err := Validate(scenes); err != nil {
		return types.MultiSceneResult{}, err
	}
	if projectID == "" {
		projectID = uuid.New().String()
	}

	start := time.Now()
	o.logger.Info("starting batch", "project_id", projectID, "scenes", len(scenes), "combine", combine)
	if o.hooks.BatchStarted != nil {
		o.hooks.BatchStarted(projectID, scenes)
	}

	result, builtPaths := Fold(projectID, o.outcomes(ctx, projectID, scenes))
	if result.Success {
		o.finish(ctx, &result, builtPaths, combine)
	}

	elapsed := time.Since(start)
	if result.Success {
		o.logger.Info("batch completed", "project_id", projectID, "scenes", len(result.IndividualVideos), "combined", result.CombinedVideoURL != "", "duration", elapsed)
	} else {
		o.logger.Warn("batch failed", "project_id", projectID, "failed_scene", result.FailedScene, "built", len(result.IndividualVideos), "error", result.Error)
	}
	if o.hooks.BatchDone != nil {
		o.hooks.BatchDone(result, elapsed)
	}
	return result, nil
}

// Validate rejects batches that must not reach the builder.
func Validate(scenes []types.SceneDescriptor) error {
	if len(scenes) == 0 {
		return rendererrors.ValidationError("validate_batch", rendererrors.ErrNoScenes).
			WithStage(rendererrors.StageNoScenesInFiles)
	}
	for i, s := range scenes {
		if s.ClassName == "" {
			return rendererrors.ValidationError("validate_batch",
				fmt.Errorf("%w: scene %d has no class name", rendererrors.ErrInvalidRequest, i)).
				WithStage(rendererrors.StageInvalidRequest)
		}
	}
	return nil
}

// CompilationIDs namespaces every scene under projectID. A class name that
// repeats within the batch gets a numeric suffix so no two scenes share
// artifacts.
func CompilationIDs(projectID string, scenes []types.SceneDescriptor) []string {
	ids := make([]string, len(scenes))
	seen := make(map[string]int, len(scenes))
	for i, s := range scenes {
		seen[s.ClassName]++
		id := paths.SceneCompilationID(projectID, s.ClassName)
		if n := seen[s.ClassName]; n > 1 {
			id = fmt.Sprintf("%s_%d", id, n)
		}
		ids[i] = id
	}
	return ids
}

// outcomes lazily builds each scene. Building stops as soon as the consumer
// stops ranging, or the context is done.
func (o *Orchestrator) outcomes(ctx context.Context, projectID string, scenes []types.SceneDescriptor) iter.Seq[Outcome] {
	ids := CompilationIDs(projectID, scenes)
	return func(yield func(Outcome) bool) {
		for i, scene := range scenes {
			var result types.BuildResult
			if err := ctx.Err(); err != nil {
				cause := rendererrors.BuildError("run_batch", rendererrors.FromContext(err)).WithCompilation(ids[i])
				result = types.FailedWith(ids[i], fmt.Sprintf("batch aborted: %v", err), cause)
			} else {
				o.logger.Debug("building scene", "project_id", projectID, "class_name", scene.ClassName, "file", scene.FileName, "index", i)
				result = o.builder.Build(ctx, scene.Content, scene.ClassName, ids[i])
			}
			if o.hooks.SceneBuilt != nil {
				o.hooks.SceneBuilt(projectID, scene, result)
			}
			if !yield(Outcome{Scene: scene, Result: result}) {
				return
			}
		}
	}
}

// Fold consumes outcomes left to right and stops at the first failure. It
// returns the partial aggregate and the paths of the built videos in order.
func Fold(projectID string, outcomes iter.Seq[Outcome]) (types.MultiSceneResult, []string) {
	result := types.MultiSceneResult{
		ProjectID:        projectID,
		Success:          true,
		IndividualVideos: []types.SceneVideo{},
	}
	var builtPaths []string

	for oc := range outcomes {
		if !oc.Succeeded() {
			result.Success = false
			result.FailedScene = oc.Scene.ClassName
			result.Error = fmt.Sprintf("Failed to compile scene %s: %s", oc.Scene.ClassName, oc.Result.Error)
			break
		}
		result.IndividualVideos = append(result.IndividualVideos, types.SceneVideo{
			Scene:        oc.Scene.ClassName,
			VideoURL:     oc.Result.VideoURL,
			ThumbnailURL: oc.Result.ThumbnailURL,
		})
		builtPaths = append(builtPaths, oc.Result.VideoPath)
	}
	return result, builtPaths
}

func (o *Orchestrator) finish(ctx context.Context, result *types.MultiSceneResult, builtPaths []string, combine bool) {
	switch {
	case len(builtPaths) == 1:
		result.CombinedVideoURL = result.IndividualVideos[0].VideoURL
	case combine && len(builtPaths) > 1:
		combined := o.combiner.Combine(ctx, builtPaths, result.ProjectID)
		if o.hooks.Combined != nil {
			o.hooks.Combined(result.ProjectID, combined)
		}
		if !combined.Success {
			o.logger.Warn("video combination failed, keeping individual scenes", "project_id", result.ProjectID, "error", combined.Error)
			return
		}
		result.CombinedVideoURL = combined.VideoURL
	}
}
