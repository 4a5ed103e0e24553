package types

// SceneFile is one uploaded source file.
type SceneFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ExecuteRequest is the body of POST /api/execute. Either Code (legacy
// single-file path) or Scenes must be set.
type ExecuteRequest struct {
	Code          string      `json:"code,omitempty"`
	Scenes        []SceneFile `json:"scenes,omitempty"`
	CombineVideos *bool       `json:"combineVideos,omitempty"`
	ProjectID     string      `json:"projectId,omitempty"`
	Prompt        string      `json:"prompt,omitempty"`
}

// ShouldCombine reports whether concatenation was requested. Defaults to true.
func (r *ExecuteRequest) ShouldCombine() bool {
	return r.CombineVideos == nil || *r.CombineVideos
}

// ExecuteResponse is the success body of POST /api/execute.
type ExecuteResponse struct {
	Success          bool         `json:"success"`
	VideoURL         string       `json:"videoUrl,omitempty"`
	IndividualScenes []SceneVideo `json:"individualScenes"`
	CombinedVideo    string       `json:"combinedVideo,omitempty"`
	SceneCount       int          `json:"sceneCount"`
	ProjectID        string       `json:"projectId,omitempty"`
}

// ErrorResponse is the failure body shared by all render endpoints.
type ErrorResponse struct {
	Error            string       `json:"error"`
	Details          string       `json:"details,omitempty"`
	ClassName        string       `json:"className,omitempty"`
	FileName         string       `json:"fileName,omitempty"`
	SceneCount       int          `json:"sceneCount,omitempty"`
	IndividualScenes []SceneVideo `json:"individualScenes,omitempty"`
}

// CombineRequest is the body of POST /api/combine-videos.
type CombineRequest struct {
	VideoPaths    []string `json:"videoPaths"`
	CombinationID string   `json:"combinationId,omitempty"`
}

// CombineResponse is the success body of POST /api/combine-videos.
type CombineResponse struct {
	Success  bool   `json:"success"`
	VideoURL string `json:"videoUrl"`
}

// Artifact describes one file in the public output directory.
type Artifact struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ModifiedAt  string `json:"modifiedAt"`
}

// ProjectOutcome is what a finished execution reports to the project store.
type ProjectOutcome struct {
	ProjectID        string
	Prompt           string
	Code             string
	Scenes           []string
	VideoURL         string
	IndividualScenes []SceneVideo
}
