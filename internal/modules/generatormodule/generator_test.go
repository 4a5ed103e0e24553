package generatormodule

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/manimforge/manimforge/internal/config"
	"github.com/manimforge/manimforge/internal/modules/modulemanager"
	"github.com/manimforge/manimforge/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu      sync.Mutex
	output  string
	err     error
	prompts []string
	closed  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.output, f.err
}

func (f *fakeGenerator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "python fence",
			in:   "```python\nfrom manim import *\n\nclass A(Scene):\n    pass\n```",
			want: "from manim import *\n\nclass A(Scene):\n    pass",
		},
		{
			name: "bare fence",
			in:   "```\nfrom manim import *\nclass A(Scene): pass\n```\n",
			want: "from manim import *\nclass A(Scene): pass",
		},
		{
			name: "missing import",
			in:   "class A(Scene):\n    pass",
			want: "from manim import *\n\nclass A(Scene):\n    pass",
		},
		{
			name: "fence and missing import",
			in:   "```py\nclass A(Scene): pass\n```",
			want: "from manim import *\n\nclass A(Scene): pass",
		},
		{
			name: "already clean",
			in:   "from manim import *\nclass A(Scene): pass",
			want: "from manim import *\nclass A(Scene): pass",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func postGenerate(router *gin.Engine, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func newRouter(h *APIHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, h)
	return r
}

func TestGenerateHandler(t *testing.T) {
	gen := &fakeGenerator{output: "from manim import *\n\nclass Intro(Scene): pass\n\nclass Outro(MovingCameraScene): pass\n"}
	router := newRouter(NewAPIHandler(gen, nil, time.Second, hclog.NewNullLogger()))

	w, body := postGenerate(router, `{"prompt":"  two scenes  "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gen.output, body["code"])
	assert.Equal(t, []interface{}{"Intro", "Outro"}, body["scenes"])
	assert.Equal(t, []string{"two scenes"}, gen.prompts)
}

func TestGenerateHandlerErrors(t *testing.T) {
	tests := []struct {
		name      string
		generator Generator
		limiter   *utils.RateLimiter
		body      string
		status    int
	}{
		{"malformed", &fakeGenerator{}, nil, `{`, http.StatusBadRequest},
		{"empty prompt", &fakeGenerator{}, nil, `{"prompt":"   "}`, http.StatusBadRequest},
		{"too long", &fakeGenerator{}, nil, `{"prompt":"` + strings.Repeat("x", maxPromptLength+1) + `"}`, http.StatusBadRequest},
		{"disabled", nil, nil, `{"prompt":"x"}`, http.StatusServiceUnavailable},
		{"upstream failure", &fakeGenerator{err: errors.New("quota exceeded")}, nil, `{"prompt":"x"}`, http.StatusBadGateway},
		{"upstream timeout", &fakeGenerator{err: context.DeadlineExceeded}, nil, `{"prompt":"x"}`, http.StatusGatewayTimeout},
		{"rate limited", &fakeGenerator{}, drained(t), `{"prompt":"x"}`, http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(NewAPIHandler(tt.generator, tt.limiter, time.Second, hclog.NewNullLogger()))
			w, _ := postGenerate(router, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

// drained returns a limiter with no tokens left.
func drained(t *testing.T) *utils.RateLimiter {
	l := utils.NewRateLimiter(1, time.Hour)
	require.True(t, l.TryWait())
	return l
}

func TestModuleReload(t *testing.T) {
	cm := config.NewConfigManager(hclog.NewNullLogger())
	first := &fakeGenerator{output: "class A(Scene): pass"}
	second := &fakeGenerator{output: "class B(Scene): pass"}
	built := []*fakeGenerator{first, second}

	m := NewModule(cm, hclog.NewNullLogger()).WithFactory(func(ctx context.Context, cfg config.GeneratorConfig) (Generator, error) {
		g := built[0]
		built = built[1:]
		return g, nil
	})
	var _ modulemanager.ConfigReloadable = m

	require.NoError(t, m.Init(context.Background()))
	gin.SetMode(gin.TestMode)
	router := gin.New()
	m.RegisterRoutes(router)

	_, body := postGenerate(router, `{"prompt":"x"}`)
	assert.Equal(t, []interface{}{"A"}, body["scenes"])

	require.NoError(t, m.ReloadConfig(context.Background()))
	assert.True(t, first.closed)

	_, body = postGenerate(router, `{"prompt":"x"}`)
	assert.Equal(t, []interface{}{"B"}, body["scenes"])

	require.NoError(t, m.Shutdown(context.Background()))
	assert.True(t, second.closed)

	w, _ := postGenerate(router, `{"prompt":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDefaultFactory(t *testing.T) {
	g, err := DefaultFactory(context.Background(), config.GeneratorConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = DefaultFactory(context.Background(), config.GeneratorConfig{Provider: "openai"})
	assert.Error(t, err)
}
