package database

import (
	"time"
)

// BatchStatus is the lifecycle state of a compilation batch.
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusSucceeded BatchStatus = "succeeded"
	BatchStatusFailed    BatchStatus = "failed"
)

// SceneStatus is the outcome of one scene build.
type SceneStatus string

const (
	SceneStatusSucceeded SceneStatus = "succeeded"
	SceneStatusFailed    SceneStatus = "failed"
)

// CompilationRecord is one batch, keyed by its project id.
type CompilationRecord struct {
	ID               string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Status           BatchStatus   `gorm:"type:varchar(32);not null;index" json:"status"`
	Mode             string        `gorm:"type:varchar(16);not null" json:"mode"` // "code" or "scenes"
	SceneCount       int           `json:"scene_count"`
	Combine          bool          `json:"combine"`
	CombinedVideoURL string        `gorm:"type:varchar(512)" json:"combined_video_url,omitempty"`
	FailedScene      string        `gorm:"type:varchar(255)" json:"failed_scene,omitempty"`
	Error            string        `gorm:"type:text" json:"error,omitempty"`
	StartedAt        time.Time     `gorm:"not null;index" json:"started_at"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Scenes           []SceneRecord `gorm:"foreignKey:ProjectID;references:ID" json:"scenes,omitempty"`
}

// TableName returns the table name for GORM
func (CompilationRecord) TableName() string {
	return "compilations"
}

// SceneRecord is one scene build attempt within a batch.
type SceneRecord struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	ProjectID     string      `gorm:"type:varchar(64);not null;index" json:"project_id"`
	Position      int         `gorm:"not null" json:"position"`
	ClassName     string      `gorm:"type:varchar(255);not null" json:"class_name"`
	FileName      string      `gorm:"type:varchar(255)" json:"file_name"`
	CompilationID string      `gorm:"type:varchar(128);index" json:"compilation_id"`
	Status        SceneStatus `gorm:"type:varchar(32);not null" json:"status"`
	VideoURL      string      `gorm:"type:varchar(512)" json:"video_url,omitempty"`
	ThumbnailURL  string      `gorm:"type:varchar(512)" json:"thumbnail_url,omitempty"`
	Error         string      `gorm:"type:text" json:"error,omitempty"`
	DurationMS    int64       `json:"duration_ms"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TableName returns the table name for GORM
func (SceneRecord) TableName() string {
	return "compilation_scenes"
}

// AllModels lists every model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&CompilationRecord{},
		&SceneRecord{},
	}
}
