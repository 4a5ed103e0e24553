package rendermodule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/database"
	"github.com/manimforge/manimforge/internal/events"
	"github.com/manimforge/manimforge/internal/metrics"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/extractor"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/orchestrator"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/repository"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/sandbox"
	rendererrors "github.com/manimforge/manimforge/internal/modules/rendermodule/errors"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/utils/paths"
	"github.com/manimforge/manimforge/internal/utils"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	modeCode   = "code"
	modeScenes = "scenes"

	// legacyFileName labels scenes that arrive through the single-code path.
	legacyFileName = "main.py"

	recordTimeout = 5 * time.Second
)

// HistoryStore persists batch and scene outcomes.
type HistoryStore interface {
	CreateBatch(ctx context.Context, record *database.CompilationRecord) error
	AddScene(ctx context.Context, record *database.SceneRecord) error
	FinishBatch(ctx context.Context, projectID string, status database.BatchStatus, combinedURL, failedScene, errMsg string) error
	GetByID(ctx context.Context, projectID string) (*database.CompilationRecord, error)
	List(ctx context.Context, filter repository.ListFilter) ([]database.CompilationRecord, int64, error)
	GetStats(ctx context.Context) (*repository.Stats, error)
}

// ProjectRecorder stores execution outcomes against a client project.
type ProjectRecorder interface {
	RecordRender(ctx context.Context, outcome types.ProjectOutcome) error
}

// EventPublisher receives pipeline events.
type EventPublisher interface {
	Publish(event events.Event) error
}

// ServiceConfig configures the request-level service.
type ServiceConfig struct {
	OutputDir string
	URLPrefix string
}

// Dependencies are the collaborators of a Service. History, Projects,
// Events and Metrics are optional.
type Dependencies struct {
	Extractor extractor.Extractor
	Builder   orchestrator.SceneBuilder
	Combiner  orchestrator.VideoCombiner
	Pool      *utils.WorkerPool
	History   HistoryStore
	Projects  ProjectRecorder
	Events    EventPublisher
	Metrics   *metrics.Metrics
}

// batchState tracks a running batch for history and event correlation.
type batchState struct {
	position int
}

// Service turns API requests into pipeline runs.
type Service struct {
	config       ServiceConfig
	deps         Dependencies
	orchestrator *orchestrator.Orchestrator
	logger       hclog.Logger

	mu       sync.Mutex
	batches  map[string]*batchState
	sceneIDs map[string]string // compilation id -> project id

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewService wires the orchestrator and its progress hooks.
func NewService(config ServiceConfig, deps Dependencies, logger hclog.Logger) *Service {
	s := &Service{
		config:   config,
		deps:     deps,
		logger:   logger.Named("render-service"),
		batches:  make(map[string]*batchState),
		sceneIDs: make(map[string]string),
		stopCh:   make(chan struct{}),
	}
	s.orchestrator = orchestrator.New(deps.Builder, deps.Combiner, logger).WithHooks(orchestrator.Hooks{
		BatchStarted: s.onBatchStarted,
		SceneBuilt:   s.onSceneBuilt,
		Combined:     s.onCombined,
		BatchDone:    s.onBatchDone,
	})
	return s
}

// Stop releases callers still waiting on queued work.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Execute validates an execute request, runs it on the worker pool and
// waits for the outcome.
func (s *Service) Execute(ctx context.Context, req *types.ExecuteRequest) (*types.ExecuteResponse, error) {
	scenes, mode, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	if mode == modeCode && len(scenes) == 1 {
		return s.executeSingle(ctx, req, scenes[0])
	}
	return s.executeBatch(ctx, req, mode, scenes)
}

// plan turns a request into scene descriptors, rejecting it before any
// build work when nothing is compilable.
func (s *Service) plan(req *types.ExecuteRequest) ([]types.SceneDescriptor, string, error) {
	if req == nil {
		return nil, "", rendererrors.ValidationError("execute", fmt.Errorf("%w: must provide either code or scenes array", rendererrors.ErrInvalidRequest)).
			WithStage(rendererrors.StageInvalidRequest)
	}

	if strings.TrimSpace(req.Code) != "" && len(req.Scenes) == 0 {
		scenes := extractor.Describe(s.deps.Extractor, legacyFileName, req.Code)
		if len(scenes) == 0 {
			return nil, "", rendererrors.ValidationError("execute",
				fmt.Errorf("%w: code must contain a class that inherits from Scene (e.g., class MyScene(Scene):)", rendererrors.ErrNoSceneClass)).
				WithStage(rendererrors.StageNoSceneClass)
		}
		return scenes, modeCode, nil
	}

	if len(req.Scenes) == 0 {
		return nil, "", rendererrors.ValidationError("execute", fmt.Errorf("%w: must provide either code or scenes array", rendererrors.ErrInvalidRequest)).
			WithStage(rendererrors.StageInvalidRequest)
	}

	var scenes []types.SceneDescriptor
	for _, file := range req.Scenes {
		found := extractor.Describe(s.deps.Extractor, file.Name, file.Content)
		if len(found) == 0 {
			return nil, "", rendererrors.ValidationError("execute",
				fmt.Errorf("%w: file %s must contain a class that inherits from Scene", rendererrors.ErrNoSceneClass, file.Name)).
				WithStage(fmt.Sprintf("%s in %s", rendererrors.StageNoSceneClass, file.Name)).
				WithDetail("fileName", file.Name)
		}
		scenes = append(scenes, found...)
	}
	if len(scenes) == 0 {
		return nil, "", rendererrors.ValidationError("execute",
			fmt.Errorf("%w: at least one file must contain a valid Scene class", rendererrors.ErrNoScenes)).
			WithStage(rendererrors.StageNoScenesInFiles)
	}
	return scenes, modeScenes, nil
}

func (s *Service) executeSingle(ctx context.Context, req *types.ExecuteRequest, scene types.SceneDescriptor) (*types.ExecuteResponse, error) {
	projectID := uuid.New().String()
	s.recordBatchStart(projectID, modeCode, []types.SceneDescriptor{scene}, false)
	s.onBatchStarted(projectID, []types.SceneDescriptor{scene})

	start := time.Now()
	var result types.BuildResult
	if err := s.submit(ctx, "execute", func(runCtx context.Context) {
		result = s.deps.Builder.Build(runCtx, scene.Content, scene.ClassName, projectID)
	}); err != nil {
		s.abandon(projectID, err)
		return nil, err
	}
	s.onSceneBuilt(projectID, scene, result)

	batch := types.MultiSceneResult{ProjectID: projectID, Success: result.Success, IndividualVideos: []types.SceneVideo{}}
	if result.Success {
		batch.IndividualVideos = append(batch.IndividualVideos, types.SceneVideo{Scene: scene.ClassName, VideoURL: result.VideoURL, ThumbnailURL: result.ThumbnailURL})
		batch.CombinedVideoURL = result.VideoURL
	} else {
		batch.FailedScene = scene.ClassName
		batch.Error = result.Error
	}
	s.onBatchDone(batch, time.Since(start))
	s.recordProject(req, []types.SceneDescriptor{scene}, batch)

	if !result.Success {
		return nil, rendererrors.New(rendererrors.TypeOf(result.Err, rendererrors.ErrorTypeBuild), "execute",
			rendererrors.WithDiagnostic(result.Error, result.Err)).
			WithCompilation(projectID).
			WithStage(rendererrors.StageCompilation).
			WithDetail("className", scene.ClassName)
	}

	return &types.ExecuteResponse{
		Success:          true,
		VideoURL:         result.VideoURL,
		IndividualScenes: batch.IndividualVideos,
		CombinedVideo:    result.VideoURL,
		SceneCount:       1,
		ProjectID:        req.ProjectID,
	}, nil
}

func (s *Service) executeBatch(ctx context.Context, req *types.ExecuteRequest, mode string, scenes []types.SceneDescriptor) (*types.ExecuteResponse, error) {
	projectID := uuid.New().String()
	combine := req.ShouldCombine()
	s.recordBatchStart(projectID, mode, scenes, combine)

	var (
		result types.MultiSceneResult
		runErr error
	)
	if err := s.submit(ctx, "execute", func(runCtx context.Context) {
		result, runErr = s.orchestrator.RunProject(runCtx, projectID, scenes, combine)
	}); err != nil {
		s.abandon(projectID, err)
		return nil, err
	}
	if runErr != nil {
		s.abandon(projectID, runErr)
		return nil, runErr
	}
	s.recordProject(req, scenes, result)

	if !result.Success {
		return nil, rendererrors.BuildError("execute", errors.New(result.Error)).
			WithCompilation(projectID).
			WithStage(rendererrors.StageMultiScene).
			WithDetail("sceneCount", len(scenes)).
			WithDetail("failedScene", result.FailedScene).
			WithDetail("individualScenes", result.IndividualVideos)
	}

	return &types.ExecuteResponse{
		Success:          true,
		VideoURL:         result.CombinedVideoURL,
		IndividualScenes: result.IndividualVideos,
		CombinedVideo:    result.CombinedVideoURL,
		SceneCount:       len(scenes),
		ProjectID:        req.ProjectID,
	}, nil
}

// Combine concatenates already published videos.
func (s *Service) Combine(ctx context.Context, req *types.CombineRequest) (*types.CombineResponse, error) {
	if req == nil || len(req.VideoPaths) == 0 {
		return nil, rendererrors.ValidationError("combine", rendererrors.ErrNoVideosToCombine).
			WithStage(rendererrors.StageInvalidRequest)
	}

	combinationID := req.CombinationID
	if combinationID == "" {
		combinationID = uuid.New().String()
	}
	if strings.ContainsAny(combinationID, `/\`) || strings.Contains(combinationID, "..") {
		return nil, rendererrors.ValidationError("combine", fmt.Errorf("%w: invalid combinationId %q", rendererrors.ErrInvalidRequest, combinationID)).
			WithStage(rendererrors.StageInvalidRequest)
	}

	resolved := make([]string, 0, len(req.VideoPaths))
	for _, ref := range req.VideoPaths {
		p, err := s.resolveVideo(ref)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, p)
	}

	var result types.BuildResult
	if err := s.submit(ctx, "combine", func(runCtx context.Context) {
		result = s.deps.Combiner.Combine(runCtx, resolved, combinationID)
	}); err != nil {
		return nil, err
	}
	s.onCombined(combinationID, result)

	if !result.Success {
		return nil, rendererrors.New(rendererrors.TypeOf(result.Err, rendererrors.ErrorTypeConcat), "combine",
			rendererrors.WithDiagnostic(result.Error, result.Err)).
			WithCompilation(combinationID).
			WithStage(rendererrors.StageCombine)
	}
	return &types.CombineResponse{Success: true, VideoURL: result.VideoURL}, nil
}

// resolveVideo maps a client reference onto a video file in the output dir.
func (s *Service) resolveVideo(ref string) (string, error) {
	p, err := paths.ResolveInside(s.config.OutputDir, s.config.URLPrefix, ref)
	if err != nil {
		return "", rendererrors.ValidationError("combine", fmt.Errorf("%w: %v", rendererrors.ErrInvalidRequest, err)).
			WithStage(rendererrors.StageInvalidRequest)
	}
	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return "", rendererrors.ValidationError("combine", fmt.Errorf("%w: video %s not found", rendererrors.ErrInvalidRequest, ref)).
			WithStage(rendererrors.StageInvalidRequest)
	}
	if !strings.HasPrefix(mt.String(), "video/") {
		return "", rendererrors.ValidationError("combine", fmt.Errorf("%w: %s is %s, not a video", rendererrors.ErrInvalidRequest, ref, mt.String())).
			WithStage(rendererrors.StageInvalidRequest)
	}
	return p, nil
}

// VideoURL returns the public URL of an artifact name.
func (s *Service) VideoURL(name string) string {
	return paths.PublicURL(s.config.URLPrefix, name)
}

// ListArtifacts indexes the public output directory, newest first.
func (s *Service) ListArtifacts(ctx context.Context) ([]types.Artifact, error) {
	entries, err := os.ReadDir(s.config.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.Artifact{}, nil
		}
		return nil, rendererrors.StorageError("list_artifacts", err)
	}

	artifacts := make([]types.Artifact, 0, len(entries))
	modified := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, rendererrors.StorageError("list_artifacts", rendererrors.FromContext(ctx.Err()))
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		contentType := "application/octet-stream"
		if mt, err := mimetype.DetectFile(filepath.Join(s.config.OutputDir, e.Name())); err == nil {
			contentType = mt.String()
		}
		modified[e.Name()] = info.ModTime()
		artifacts = append(artifacts, types.Artifact{
			Name:        e.Name(),
			URL:         s.VideoURL(e.Name()),
			Size:        info.Size(),
			ContentType: contentType,
			ModifiedAt:  info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	sort.SliceStable(artifacts, func(i, j int) bool {
		return modified[artifacts[i].Name].After(modified[artifacts[j].Name])
	})
	return artifacts, nil
}

// ListCompilations returns compilation history.
func (s *Service) ListCompilations(ctx context.Context, filter repository.ListFilter) ([]database.CompilationRecord, int64, error) {
	if s.deps.History == nil {
		return []database.CompilationRecord{}, 0, nil
	}
	return s.deps.History.List(ctx, filter)
}

// GetCompilation returns one batch with its scenes.
func (s *Service) GetCompilation(ctx context.Context, projectID string) (*database.CompilationRecord, error) {
	if s.deps.History == nil {
		return nil, rendererrors.StorageError("get_batch", rendererrors.ErrNotFound).WithStage(rendererrors.StageNotFound)
	}
	return s.deps.History.GetByID(ctx, projectID)
}

// CompilationStats summarises compilation history.
func (s *Service) CompilationStats(ctx context.Context) (*repository.Stats, error) {
	if s.deps.History == nil {
		return &repository.Stats{}, nil
	}
	return s.deps.History.GetStats(ctx)
}

// submit runs work on the pool and waits for it, the caller, or shutdown.
func (s *Service) submit(ctx context.Context, op string, work func(ctx context.Context)) error {
	done := make(chan struct{})
	if !s.deps.Pool.Submit(func() {
		defer close(done)
		defer s.updateQueueMetrics()
		work(ctx)
	}) {
		s.logger.Warn("render queue full, rejecting request", "op", op, "capacity", s.deps.Pool.Capacity())
		return rendererrors.InternalError(op, rendererrors.ErrQueueFull).WithStage(rendererrors.StageBusy)
	}
	s.updateQueueMetrics()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return rendererrors.BuildError(op, rendererrors.FromContext(ctx.Err()))
	case <-s.stopCh:
		return rendererrors.InternalError(op, rendererrors.ErrCancelled)
	}
}

func (s *Service) updateQueueMetrics() {
	if s.deps.Metrics != nil {
		s.deps.Metrics.SetQueue(s.deps.Pool.QueueDepth(), s.deps.Pool.Active())
	}
}

// ObserveScene forwards builder state transitions as events.
func (s *Service) ObserveScene(compilationID, className string, state sandbox.State) {
	s.mu.Lock()
	projectID := s.sceneIDs[compilationID]
	s.mu.Unlock()
	if projectID == "" {
		projectID = compilationID
	}
	s.publish(events.EventSceneState, projectID, fmt.Sprintf("%s %s", className, strings.ToLower(string(state))), map[string]interface{}{
		"projectId":     projectID,
		"className":     className,
		"compilationId": compilationID,
		"state":         string(state),
	})
}

func (s *Service) onBatchStarted(projectID string, scenes []types.SceneDescriptor) {
	ids := orchestrator.CompilationIDs(projectID, scenes)
	s.mu.Lock()
	s.batches[projectID] = &batchState{}
	for _, id := range ids {
		s.sceneIDs[id] = projectID
	}
	// the single-code path builds under the project id itself
	s.sceneIDs[projectID] = projectID
	s.mu.Unlock()

	s.logHostLoad(projectID)
	s.publish(events.EventBatchStarted, projectID, fmt.Sprintf("building %d scene(s)", len(scenes)), map[string]interface{}{
		"projectId":  projectID,
		"sceneCount": len(scenes),
	})
}

func (s *Service) onSceneBuilt(projectID string, scene types.SceneDescriptor, result types.BuildResult) {
	s.mu.Lock()
	position := 0
	if st, ok := s.batches[projectID]; ok {
		position = st.position
		st.position++
	}
	s.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	status := database.SceneStatusSucceeded
	eventType := events.EventSceneBuilt
	message := fmt.Sprintf("scene %s built", scene.ClassName)
	if !result.Success {
		outcome = metrics.OutcomeFailure
		if errors.Is(result.Err, rendererrors.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		status = database.SceneStatusFailed
		eventType = events.EventSceneFailed
		message = fmt.Sprintf("scene %s failed", scene.ClassName)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.SceneBuilt(outcome, result.Duration)
	}

	s.publish(eventType, projectID, message, map[string]interface{}{
		"projectId":     projectID,
		"className":     scene.ClassName,
		"compilationId": result.CompilationID,
		"videoUrl":      result.VideoURL,
		"thumbnailUrl":  result.ThumbnailURL,
		"error":         result.Error,
	})

	if s.deps.History != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		err := s.deps.History.AddScene(ctx, &database.SceneRecord{
			ProjectID:     projectID,
			Position:      position,
			ClassName:     scene.ClassName,
			FileName:      scene.FileName,
			CompilationID: result.CompilationID,
			Status:        status,
			VideoURL:      result.VideoURL,
			ThumbnailURL:  result.ThumbnailURL,
			Error:         result.Error,
			DurationMS:    result.Duration.Milliseconds(),
		})
		if err != nil {
			s.logger.Warn("failed to record scene", "project_id", projectID, "class_name", scene.ClassName, "error", err)
		}
	}
}

func (s *Service) onCombined(projectID string, result types.BuildResult) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ConcatFinished(result.Success)
	}
	if result.Success {
		s.publish(events.EventCombineCompleted, projectID, "videos combined", map[string]interface{}{
			"projectId":     projectID,
			"compilationId": result.CompilationID,
			"videoUrl":      result.VideoURL,
		})
		return
	}
	s.publish(events.EventCombineFailed, projectID, "video combination failed", map[string]interface{}{
		"projectId":     projectID,
		"compilationId": result.CompilationID,
		"error":         result.Error,
	})
}

func (s *Service) forget(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.batches, projectID)
	for id, pid := range s.sceneIDs {
		if pid == projectID {
			delete(s.sceneIDs, id)
		}
	}
}

func (s *Service) onBatchDone(result types.MultiSceneResult, elapsed time.Duration) {
	s.forget(result.ProjectID)

	if s.deps.Metrics != nil {
		s.deps.Metrics.BatchFinished(result.Success)
	}

	status := database.BatchStatusSucceeded
	eventType := events.EventBatchCompleted
	message := "batch completed"
	if !result.Success {
		status = database.BatchStatusFailed
		eventType = events.EventBatchFailed
		message = "batch failed"
	}
	s.publish(eventType, result.ProjectID, message, map[string]interface{}{
		"projectId":        result.ProjectID,
		"success":          result.Success,
		"combinedVideoUrl": result.CombinedVideoURL,
		"failedScene":      result.FailedScene,
		"error":            result.Error,
		"elapsedMs":        elapsed.Milliseconds(),
	})

	if s.deps.History != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.deps.History.FinishBatch(ctx, result.ProjectID, status, result.CombinedVideoURL, result.FailedScene, result.Error); err != nil {
			s.logger.Warn("failed to record batch outcome", "project_id", result.ProjectID, "error", err)
		}
	}
}

func (s *Service) recordBatchStart(projectID, mode string, scenes []types.SceneDescriptor, combine bool) {
	s.publish(events.EventBatchQueued, projectID, "batch queued", map[string]interface{}{
		"projectId":  projectID,
		"sceneCount": len(scenes),
		"mode":       mode,
	})
	if s.deps.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err := s.deps.History.CreateBatch(ctx, &database.CompilationRecord{
		ID:         projectID,
		Mode:       mode,
		SceneCount: len(scenes),
		Combine:    combine,
	})
	if err != nil {
		s.logger.Warn("failed to record batch", "project_id", projectID, "error", err)
	}
}

// abandon closes out a batch that never produced a result.
func (s *Service) abandon(projectID string, cause error) {
	s.logger.Warn("batch abandoned", "project_id", projectID, "error", cause)
	s.forget(projectID)
	if s.deps.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.deps.History.FinishBatch(ctx, projectID, database.BatchStatusFailed, "", "", rendererrors.Diagnostic(cause)); err != nil {
		s.logger.Debug("failed to record abandoned batch", "project_id", projectID, "error", err)
	}
}

func (s *Service) recordProject(req *types.ExecuteRequest, scenes []types.SceneDescriptor, result types.MultiSceneResult) {
	if s.deps.Projects == nil || req.ProjectID == "" {
		return
	}

	names := make([]string, 0, len(scenes))
	for _, sc := range scenes {
		names = append(names, sc.ClassName)
	}
	code := req.Code
	if code == "" && len(req.Scenes) > 0 {
		parts := make([]string, 0, len(req.Scenes))
		for _, f := range req.Scenes {
			parts = append(parts, f.Content)
		}
		code = strings.Join(parts, "\n\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err := s.deps.Projects.RecordRender(ctx, types.ProjectOutcome{
		ProjectID:        req.ProjectID,
		Prompt:           req.Prompt,
		Code:             code,
		Scenes:           names,
		VideoURL:         result.CombinedVideoURL,
		IndividualScenes: result.IndividualVideos,
	})
	if err != nil {
		s.logger.Warn("failed to save project", "project_id", req.ProjectID, "error", err)
	}
}

func (s *Service) publish(eventType events.EventType, target, message string, data map[string]interface{}) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(events.NewEvent(eventType, "render", target, message, data)); err != nil {
		s.logger.Debug("failed to publish event", "event_type", eventType, "error", err)
	}
}

func (s *Service) logHostLoad(projectID string) {
	if !s.logger.IsDebug() {
		return
	}
	args := []interface{}{"project_id", projectID}
	if avg, err := load.Avg(); err == nil {
		args = append(args, "load1", avg.Load1, "load5", avg.Load5)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		args = append(args, "mem_used_percent", vm.UsedPercent)
	}
	s.logger.Debug("host load at batch start", args...)
}
