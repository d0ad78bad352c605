package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/recognition"
)

type FaceTagRepository struct {
	DB *gorm.DB
}

func NewFaceTagRepository(db *gorm.DB) *FaceTagRepository {
	return &FaceTagRepository{DB: db}
}

func (r *FaceTagRepository) Create(ctx context.Context, tag *models.FaceTag) error {
	if tag.Status == "" {
		tag.Status = models.FaceTagPending
	}
	if err := r.DB.WithContext(ctx).Create(tag).Error; err != nil {
		return fmt.Errorf("failed to create face tag for image %d: %w", tag.ImageID, err)
	}
	return nil
}

// CreateWithPerson stores a new person and a tag pointing at it in one
// transaction, so a failed tag insert leaves no orphan person.
func (r *FaceTagRepository) CreateWithPerson(ctx context.Context, tag *models.FaceTag, person *models.Person) error {
	if tag.Status == "" {
		tag.Status = models.FaceTagPending
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(person).Error; err != nil {
			return fmt.Errorf("failed to create person %q: %w", person.Name, err)
		}
		tag.PersonID = &person.ID
		if err := tx.Create(tag).Error; err != nil {
			return fmt.Errorf("failed to create face tag for image %d: %w", tag.ImageID, err)
		}
		return nil
	})
}

func (r *FaceTagRepository) GetByID(ctx context.Context, id uint) (*models.FaceTag, error) {
	var tag models.FaceTag
	err := r.DB.WithContext(ctx).Preload("Person").First(&tag, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get face tag %d: %w", id, err)
	}
	return &tag, nil
}

// GetByIDs returns the tags that exist, in id order; unknown ids are absent
func (r *FaceTagRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.FaceTag, error) {
	if len(ids) == 0 {
		return []models.FaceTag{}, nil
	}
	var tags []models.FaceTag
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to get face tags: %w", err)
	}
	return tags, nil
}

func (r *FaceTagRepository) List(ctx context.Context, filter FaceTagFilter) ([]models.FaceTag, error) {
	q := r.DB.WithContext(ctx).Preload("Person")
	if filter.ImageID != 0 {
		q = q.Where("image_id = ?", filter.ImageID)
	}
	if filter.PersonID != 0 {
		q = q.Where("person_id = ?", filter.PersonID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	var tags []models.FaceTag
	if err := q.Order("id ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list face tags: %w", err)
	}
	return tags, nil
}

// ListPending returns a page of pending tags, newest first, and the total
func (r *FaceTagRepository) ListPending(ctx context.Context, page, pageSize int) ([]models.FaceTag, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)
	base := r.DB.WithContext(ctx).Model(&models.FaceTag{}).Where("status = ?", models.FaceTagPending)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count pending face tags: %w", err)
	}
	var tags []models.FaceTag
	err := r.DB.WithContext(ctx).Preload("Person").
		Where("status = ?", models.FaceTagPending).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&tags).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending face tags: %w", err)
	}
	return tags, total, nil
}

// ListUntaggedWithEncoding returns tags without a person that carry an
// encoding. imageID 0 searches every image.
func (r *FaceTagRepository) ListUntaggedWithEncoding(ctx context.Context, imageID uint) ([]models.FaceTag, error) {
	q := r.DB.WithContext(ctx).Where("person_id IS NULL AND face_encoding IS NOT NULL")
	if imageID != 0 {
		q = q.Where("image_id = ?", imageID)
	}
	var tags []models.FaceTag
	if err := q.Order("id ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list untagged faces: %w", err)
	}
	return tags, nil
}

// UpdateBox moves a tag and sets its person. the update only applies while the
// tag still has status from, otherwise gorm.ErrRecordNotFound is returned.
func (r *FaceTagRepository) UpdateBox(ctx context.Context, id uint, from models.FaceTagStatus, box recognition.Box, personID *uint) error {
	result := r.DB.WithContext(ctx).Model(&models.FaceTag{}).
		Where("id = ? AND status = ?", id, from).Updates(map[string]interface{}{
		"face_x":      box.X,
		"face_y":      box.Y,
		"face_width":  box.Width,
		"face_height": box.Height,
		"person_id":   personID,
		"updated_at":  time.Now().Unix(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update face tag %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *FaceTagRepository) SetEncoding(ctx context.Context, id uint, enc []float64) error {
	err := r.DB.WithContext(ctx).Model(&models.FaceTag{}).Where("id = ?", id).
		Update("face_encoding", models.EncodeEncoding(enc)).Error
	if err != nil {
		return fmt.Errorf("failed to store encoding on face tag %d: %w", id, err)
	}
	return nil
}

// AssignSuggestion applies an auto-tag suggestion to a pending tag. it reports
// false when the tag is unknown or already reviewed; reviewed tags are final.
func (r *FaceTagRepository) AssignSuggestion(ctx context.Context, id uint, personID uint, confidence float64) (bool, error) {
	result := r.DB.WithContext(ctx).Model(&models.FaceTag{}).
		Where("id = ? AND status = ?", id, models.FaceTagPending).
		Updates(map[string]interface{}{
			"person_id":         personID,
			"confidence_score":  confidence,
			"is_auto_generated": true,
			"updated_at":        time.Now().Unix(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to apply suggestion to face tag %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Review moves a pending tag to `to`. it reports false when the tag was not
// pending any more, so two reviewers cannot both win.
func (r *FaceTagRepository) Review(ctx context.Context, id uint, to models.FaceTagStatus, reviewerID uint, at int64) (bool, error) {
	result := r.DB.WithContext(ctx).Model(&models.FaceTag{}).
		Where("id = ? AND status = ?", id, models.FaceTagPending).
		Updates(map[string]interface{}{
			"status":         to,
			"reviewed_by_id": reviewerID,
			"reviewed_at":    at,
			"updated_at":     time.Now().Unix(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to review face tag %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *FaceTagRepository) Delete(ctx context.Context, id uint) error {
	result := r.DB.WithContext(ctx).Delete(&models.FaceTag{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete face tag %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
