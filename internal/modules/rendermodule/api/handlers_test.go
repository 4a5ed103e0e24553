package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/database"
	"github.com/manimforge/manimforge/internal/events"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/core/repository"
	rendererrors "github.com/manimforge/manimforge/internal/modules/rendermodule/errors"
	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	executeResp *types.ExecuteResponse
	executeErr  error
	lastExecute *types.ExecuteRequest
	combineErr  error
	records     map[string]*database.CompilationRecord
	lastFilter  repository.ListFilter
}

func (f *fakeService) Execute(ctx context.Context, req *types.ExecuteRequest) (*types.ExecuteResponse, error) {
	f.lastExecute = req
	return f.executeResp, f.executeErr
}

func (f *fakeService) Combine(ctx context.Context, req *types.CombineRequest) (*types.CombineResponse, error) {
	if f.combineErr != nil {
		return nil, f.combineErr
	}
	return &types.CombineResponse{Success: true, VideoURL: "/videos/combined_" + req.CombinationID + ".mp4"}, nil
}

func (f *fakeService) VideoURL(name string) string { return "/videos/" + name }

func (f *fakeService) ListArtifacts(ctx context.Context) ([]types.Artifact, error) {
	return []types.Artifact{{Name: "a.mp4", URL: "/videos/a.mp4", ContentType: "video/mp4"}}, nil
}

func (f *fakeService) ListCompilations(ctx context.Context, filter repository.ListFilter) ([]database.CompilationRecord, int64, error) {
	f.lastFilter = filter
	out := make([]database.CompilationRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (f *fakeService) GetCompilation(ctx context.Context, projectID string) (*database.CompilationRecord, error) {
	if r, ok := f.records[projectID]; ok {
		return r, nil
	}
	return nil, rendererrors.StorageError("get_batch", rendererrors.ErrNotFound).WithStage(rendererrors.StageNotFound)
}

func (f *fakeService) CompilationStats(ctx context.Context) (*repository.Stats, error) {
	return &repository.Stats{Total: int64(len(f.records))}, nil
}

func setupRouter(svc *fakeService, source EventSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var stream *StreamHandler
	if source != nil {
		stream = NewStreamHandler(source, hclog.NewNullLogger())
	}
	RegisterRoutes(router, NewAPIHandler(svc, hclog.NewNullLogger()), stream)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestExecuteSuccess(t *testing.T) {
	svc := &fakeService{executeResp: &types.ExecuteResponse{
		Success:          true,
		VideoURL:         "/videos/combined_p.mp4",
		IndividualScenes: []types.SceneVideo{{Scene: "A", VideoURL: "/videos/p_A_A.mp4"}},
		CombinedVideo:    "/videos/combined_p.mp4",
		SceneCount:       1,
	}}
	router := setupRouter(svc, nil)

	w, body := doJSON(t, router, http.MethodPost, "/api/execute", map[string]interface{}{
		"scenes":        []map[string]string{{"name": "a.py", "content": "class A(Scene): pass"}},
		"combineVideos": false,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "/videos/combined_p.mp4", body["videoUrl"])
	assert.Len(t, body["individualScenes"], 1)

	require.NotNil(t, svc.lastExecute)
	assert.False(t, svc.lastExecute.ShouldCombine())
	assert.Equal(t, "a.py", svc.lastExecute.Scenes[0].Name)
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		stage      string
		checkExtra func(t *testing.T, body map[string]interface{})
	}{
		{
			name:   "no scene class",
			err:    rendererrors.ValidationError("execute", rendererrors.ErrNoSceneClass).WithStage(rendererrors.StageNoSceneClass),
			status: http.StatusBadRequest,
			stage:  rendererrors.StageNoSceneClass,
		},
		{
			name: "file without scene",
			err: rendererrors.ValidationError("execute", rendererrors.ErrNoSceneClass).
				WithStage("No valid Scene class found in b.py").
				WithDetail("fileName", "b.py"),
			status: http.StatusBadRequest,
			stage:  "No valid Scene class found in b.py",
			checkExtra: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "b.py", body["fileName"])
			},
		},
		{
			name: "compilation failed",
			err: rendererrors.BuildError("execute", fmt.Errorf("renderer exited with status 1")).
				WithStage(rendererrors.StageCompilation).
				WithDetail("className", "Solo"),
			status: http.StatusInternalServerError,
			stage:  rendererrors.StageCompilation,
			checkExtra: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "Solo", body["className"])
				assert.Equal(t, "renderer exited with status 1", body["details"])
			},
		},
		{
			name: "multi-scene failed",
			err: rendererrors.BuildError("execute", fmt.Errorf("Failed to compile scene B: boom")).
				WithStage(rendererrors.StageMultiScene).
				WithDetail("sceneCount", 3).
				WithDetail("individualScenes", []types.SceneVideo{{Scene: "A", VideoURL: "/videos/x.mp4"}}),
			status: http.StatusInternalServerError,
			stage:  rendererrors.StageMultiScene,
			checkExtra: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(3), body["sceneCount"])
				assert.Len(t, body["individualScenes"], 1)
			},
		},
		{
			name:   "queue full",
			err:    rendererrors.InternalError("execute", rendererrors.ErrQueueFull).WithStage(rendererrors.StageBusy),
			status: http.StatusServiceUnavailable,
			stage:  rendererrors.StageBusy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(&fakeService{executeErr: tt.err}, nil)
			w, body := doJSON(t, router, http.MethodPost, "/api/execute", map[string]string{"code": "x"})
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.stage, body["error"])
			if tt.checkExtra != nil {
				tt.checkExtra(t, body)
			}
		})
	}
}

func TestExecuteMalformedBody(t *testing.T) {
	svc := &fakeService{}
	router := setupRouter(svc, nil)

	w, body := doJSON(t, router, http.MethodPost, "/api/execute", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, rendererrors.StageInvalidRequest, body["error"])
	assert.Nil(t, svc.lastExecute)
}

func TestGetVideo(t *testing.T) {
	router := setupRouter(&fakeService{}, nil)

	w, body := doJSON(t, router, http.MethodGet, "/api/execute?id=abc_A.mp4", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/videos/abc_A.mp4", body["videoUrl"])

	w, body = doJSON(t, router, http.MethodGet, "/api/execute", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Video ID required", body["error"])

	w, _ = doJSON(t, router, http.MethodGet, "/api/execute?id=../secret", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCombineVideos(t *testing.T) {
	router := setupRouter(&fakeService{}, nil)
	w, body := doJSON(t, router, http.MethodPost, "/api/combine-videos", map[string]interface{}{
		"videoPaths":    []string{"/videos/a.mp4", "/videos/b.mp4"},
		"combinationId": "final",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/videos/combined_final.mp4", body["videoUrl"])

	router = setupRouter(&fakeService{combineErr: rendererrors.ValidationError("combine", rendererrors.ErrNoVideosToCombine).WithStage(rendererrors.StageInvalidRequest)}, nil)
	w, body = doJSON(t, router, http.MethodPost, "/api/combine-videos", map[string]interface{}{"videoPaths": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, rendererrors.StageInvalidRequest, body["error"])
}

func TestListVideos(t *testing.T) {
	router := setupRouter(&fakeService{}, nil)
	w, body := doJSON(t, router, http.MethodGet, "/api/videos", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])
}

func TestCompilationHistory(t *testing.T) {
	svc := &fakeService{records: map[string]*database.CompilationRecord{
		"p1": {ID: "p1", Status: database.BatchStatusSucceeded, Mode: "scenes", SceneCount: 2},
	}}
	router := setupRouter(svc, nil)

	w, body := doJSON(t, router, http.MethodGet, "/api/compilations?limit=10&status=succeeded", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, 10, svc.lastFilter.Limit)
	assert.Equal(t, database.BatchStatusSucceeded, svc.lastFilter.Status)

	w, body = doJSON(t, router, http.MethodGet, "/api/compilations/p1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", body["id"])

	w, body = doJSON(t, router, http.MethodGet, "/api/compilations/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, rendererrors.StageNotFound, body["error"])

	w, body = doJSON(t, router, http.MethodGet, "/api/compilations/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])
}

func TestEventStream(t *testing.T) {
	bus := events.NewBus(events.BusConfig{BufferSize: 16}, hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })

	server := httptest.NewServer(setupRouter(&fakeService{}, bus))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/events/stream?projectId=p1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// the subscription is registered after the upgrade completes
	require.Eventually(t, func() bool { return bus.Stats().ActiveSubscriptions == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(events.NewEvent(events.EventBatchStarted, "render", "other", "ignored", nil)))
	require.NoError(t, bus.Publish(events.NewEvent(events.EventSceneBuilt, "render", "p1", "scene A built", map[string]interface{}{"className": "A"})))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, events.EventSceneBuilt, got.Type)
	assert.Equal(t, "p1", got.Target)
	assert.Equal(t, "A", got.Data["className"])

	conn.Close()
	assert.Eventually(t, func() bool { return bus.Stats().ActiveSubscriptions == 0 }, 2*time.Second, 10*time.Millisecond)
}
