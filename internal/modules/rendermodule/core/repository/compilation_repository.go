// Package repository provides the data access layer for compilation history
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manimforge/manimforge/internal/database"
	rendererrors "github.com/manimforge/manimforge/internal/modules/rendermodule/errors"
	"gorm.io/gorm"
)

// CompilationRepository handles compilation history data access
type CompilationRepository struct {
	db *gorm.DB
}

// NewCompilationRepository creates a new compilation repository
func NewCompilationRepository(db *gorm.DB) *CompilationRepository {
	return &CompilationRepository{db: db}
}

// CreateBatch records a batch that has started.
func (r *CompilationRepository) CreateBatch(ctx context.Context, record *database.CompilationRecord) error {
	if record.Status == "" {
		record.Status = database.BatchStatusRunning
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return rendererrors.StorageError("create_batch", err).WithCompilation(record.ID)
	}
	return nil
}

// AddScene records one scene outcome.
func (r *CompilationRepository) AddScene(ctx context.Context, record *database.SceneRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return rendererrors.StorageError("add_scene", err).WithCompilation(record.CompilationID)
	}
	return nil
}

// FinishBatch stores the final state of a batch.
func (r *CompilationRepository) FinishBatch(ctx context.Context, projectID string, status database.BatchStatus, combinedURL, failedScene, errMsg string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&database.CompilationRecord{}).
		Where("id = ?", projectID).
		Updates(map[string]interface{}{
			"status":             status,
			"combined_video_url": combinedURL,
			"failed_scene":       failedScene,
			"error":              errMsg,
			"finished_at":        &now,
		})
	if result.Error != nil {
		return rendererrors.StorageError("finish_batch", result.Error).WithCompilation(projectID)
	}
	if result.RowsAffected == 0 {
		return rendererrors.StorageError("finish_batch", rendererrors.ErrNotFound).WithCompilation(projectID)
	}
	return nil
}

// GetByID retrieves a batch with its scenes in build order.
func (r *CompilationRepository) GetByID(ctx context.Context, projectID string) (*database.CompilationRecord, error) {
	var record database.CompilationRecord
	err := r.db.WithContext(ctx).
		Preload("Scenes", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", projectID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, rendererrors.StorageError("get_batch", rendererrors.ErrNotFound).
			WithCompilation(projectID).
			WithStage(rendererrors.StageNotFound)
	}
	if err != nil {
		return nil, rendererrors.StorageError("get_batch", err).WithCompilation(projectID)
	}
	return &record, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Status database.BatchStatus
	Limit  int
	Offset int
}

// List returns batches newest first and the total matching count.
func (r *CompilationRepository) List(ctx context.Context, filter ListFilter) ([]database.CompilationRecord, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	query := r.db.WithContext(ctx).Model(&database.CompilationRecord{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, rendererrors.StorageError("list_batches", err)
	}

	var records []database.CompilationRecord
	err := query.
		Order("started_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, rendererrors.StorageError("list_batches", err)
	}
	return records, total, nil
}

// DeleteFinishedBefore removes finished batches started before cutoff along
// with their scenes. Running batches are kept.
func (r *CompilationRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&database.CompilationRecord{}).
			Select("id").
			Where("started_at < ? AND status <> ?", cutoff, database.BatchStatusRunning)

		if err := tx.Where("project_id IN (?)", stale).Delete(&database.SceneRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete scenes: %w", err)
		}

		result := tx.Where("started_at < ? AND status <> ?", cutoff, database.BatchStatusRunning).
			Delete(&database.CompilationRecord{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete compilations: %w", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, rendererrors.StorageError("delete_finished", err)
	}
	return deleted, nil
}

// Stats summarises the history table.
type Stats struct {
	Total     int64 `json:"total"`
	Running   int64 `json:"running"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Scenes    int64 `json:"scenes"`
}

// GetStats counts batches per status and scenes overall.
func (r *CompilationRepository) GetStats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Status database.BatchStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&database.CompilationRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, rendererrors.StorageError("stats", err)
	}

	stats := &Stats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case database.BatchStatusRunning:
			stats.Running = row.Count
		case database.BatchStatusSucceeded:
			stats.Succeeded = row.Count
		case database.BatchStatusFailed:
			stats.Failed = row.Count
		}
	}

	if err := r.db.WithContext(ctx).Model(&database.SceneRecord{}).Count(&stats.Scenes).Error; err != nil {
		return nil, rendererrors.StorageError("stats", err)
	}
	return stats, nil
}
