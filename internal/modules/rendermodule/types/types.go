// Package types provides the data model shared by the render pipeline.
package types

import "time"

// SceneDescriptor is one unit of compilable work: a scene class and the
// source text that declares it.
type SceneDescriptor struct {
	FileName  string `json:"fileName"`
	ClassName string `json:"className"`
	Content   string `json:"content"`
}

// BuildResult is the outcome of a single scene build or of a concatenation.
// VideoPath and VideoURL are set iff Success; Error is set iff not.
type BuildResult struct {
	Success       bool          `json:"success"`
	VideoPath     string        `json:"videoPath,omitempty"`
	VideoURL      string        `json:"videoUrl,omitempty"`
	ThumbnailURL  string        `json:"thumbnailUrl,omitempty"`
	Error         string        `json:"error,omitempty"`
	CompilationID string        `json:"compilationId"`
	Duration      time.Duration `json:"-"`
	// Err keeps the classified cause of a failure for callers that map
	// failures onto metrics or status codes.
	Err error `json:"-"`
}

// Succeeded returns a successful BuildResult.
func Succeeded(compilationID, videoPath, videoURL string) BuildResult {
	return BuildResult{
		Success:       true,
		VideoPath:     videoPath,
		VideoURL:      videoURL,
		CompilationID: compilationID,
	}
}

// Failed returns a failed BuildResult carrying the diagnostic.
func Failed(compilationID, diagnostic string) BuildResult {
	return BuildResult{
		Success:       false,
		Error:         diagnostic,
		CompilationID: compilationID,
	}
}

// FailedWith returns a failed BuildResult that also keeps the cause.
func FailedWith(compilationID, diagnostic string, cause error) BuildResult {
	r := Failed(compilationID, diagnostic)
	r.Err = cause
	return r
}

// SceneVideo links a built scene to its public video.
type SceneVideo struct {
	Scene        string `json:"scene"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// MultiSceneResult is the aggregate outcome of one batch.
type MultiSceneResult struct {
	ProjectID        string       `json:"projectId"`
	Success          bool         `json:"success"`
	IndividualVideos []SceneVideo `json:"individualVideos"`
	CombinedVideoURL string       `json:"combinedVideoUrl,omitempty"`
	Error            string       `json:"error,omitempty"`
	FailedScene      string       `json:"failedScene,omitempty"`
}

// SceneURLs returns the video URLs of the built scenes in batch order.
func (r *MultiSceneResult) SceneURLs() []string {
	urls := make([]string, 0, len(r.IndividualVideos))
	for _, v := range r.IndividualVideos {
		urls = append(urls, v.VideoURL)
	}
	return urls
}
