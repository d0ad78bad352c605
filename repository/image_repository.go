package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/recognition"
)

type ImageRepository struct {
	DB *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

func (r *ImageRepository) Create(ctx context.Context, image *models.Image) error {
	if image.MetadataStatus == "" {
		image.MetadataStatus = models.TaskPending
	}
	if image.DetectionStatus == "" {
		image.DetectionStatus = models.TaskPending
	}
	if image.ThumbnailStatus == "" {
		image.ThumbnailStatus = models.TaskPending
	}
	if err := r.DB.WithContext(ctx).Create(image).Error; err != nil {
		return fmt.Errorf("failed to create image %s: %w", image.OriginalPath, err)
	}
	return nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id uint) (*models.Image, error) {
	var image models.Image
	err := r.DB.WithContext(ctx).First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image %d: %w", id, err)
	}
	return &image, nil
}

// List returns a page of images, newest first, and the total count
func (r *ImageRepository) List(ctx context.Context, page, pageSize int) ([]models.Image, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Image{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count images: %w", err)
	}
	var images []models.Image
	err := r.DB.WithContext(ctx).Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&images).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list images: %w", err)
	}
	return images, total, nil
}

func taskColumns(task Task) (status, processedAt, errCol string, err error) {
	switch task {
	case TaskMetadata, TaskDetection, TaskThumbnail:
		t := string(task)
		return t + "_status", t + "_processed_at", t + "_error", nil
	}
	return "", "", "", fmt.Errorf("unknown task %q", task)
}

// MarkTaskProcessing sets a task to processing and clears its previous error
func (r *ImageRepository) MarkTaskProcessing(ctx context.Context, id uint, task Task) error {
	statusCol, _, errCol, err := taskColumns(task)
	if err != nil {
		return err
	}
	result := r.DB.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(map[string]interface{}{
		statusCol: models.TaskProcessing,
		errCol:    gorm.Expr("NULL"),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark %s processing for image %d: %w", task, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// taskOutcome builds the status, timestamp and error columns of a finished task
func taskOutcome(task Task, taskErr error) (map[string]interface{}, error) {
	statusCol, processedCol, errCol, err := taskColumns(task)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		statusCol:    models.TaskDone,
		processedCol: time.Now().Unix(),
		errCol:       nil,
	}
	if taskErr != nil {
		msg := taskErr.Error()
		updates[statusCol] = models.TaskFailed
		updates[errCol] = &msg
	}
	return updates, nil
}

func (r *ImageRepository) UpdateMetadataResult(ctx context.Context, id uint, meta *media.PhotoMetadata, taskErr error) error {
	updates, err := taskOutcome(TaskMetadata, taskErr)
	if err != nil {
		return err
	}
	if taskErr == nil && meta != nil {
		updates["width"] = meta.Width
		updates["height"] = meta.Height
		updates["aperture"] = meta.Aperture
		updates["shutter_speed"] = meta.ShutterSpeed
		updates["iso"] = meta.ISO
		updates["focal_length"] = meta.FocalLength
		updates["camera_make"] = meta.CameraMake
		updates["camera_model"] = meta.CameraModel
		updates["taken_at"] = meta.TakenAt
	}
	if err := r.DB.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update metadata result for image %d: %w", id, err)
	}
	return nil
}

// UpdateDetectionResult stores the best face. a successful run without a face
// clears the face columns; a failed run leaves them untouched.
func (r *ImageRepository) UpdateDetectionResult(ctx context.Context, id uint, face *recognition.FaceMetadata, taskErr error) error {
	updates, err := taskOutcome(TaskDetection, taskErr)
	if err != nil {
		return err
	}
	if taskErr == nil {
		if face != nil {
			updates["face_x"] = face.X
			updates["face_y"] = face.Y
			updates["face_width"] = face.Width
			updates["face_height"] = face.Height
		} else {
			updates["face_x"] = nil
			updates["face_y"] = nil
			updates["face_width"] = nil
			updates["face_height"] = nil
		}
	}
	if err := r.DB.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update detection result for image %d: %w", id, err)
	}
	return nil
}

func (r *ImageRepository) UpdateThumbnailResult(ctx context.Context, id uint, taskErr error) error {
	updates, err := taskOutcome(TaskThumbnail, taskErr)
	if err != nil {
		return err
	}
	if err := r.DB.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update thumbnail result for image %d: %w", id, err)
	}
	return nil
}

// ListRequiringProcessing returns images with any task that has not finished successfully
func (r *ImageRepository) ListRequiringProcessing(ctx context.Context) ([]models.Image, error) {
	var images []models.Image
	err := r.DB.WithContext(ctx).
		Where("metadata_status <> ? OR detection_status <> ? OR thumbnail_status <> ?",
			models.TaskDone, models.TaskDone, models.TaskDone).
		Order("id ASC").
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get images requiring processing: %w", err)
	}
	return images, nil
}

// Delete removes the image together with its face tags
func (r *ImageRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", id).Delete(&models.FaceTag{}).Error; err != nil {
			return fmt.Errorf("failed to delete face tags of image %d: %w", id, err)
		}
		result := tx.Delete(&models.Image{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete image %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// NormalizePage applies the listing defaults: page 1, 20 per page, at most 100
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
