package models

import "github.com/camden-git/mediasysfaces/media"

// Task status values shared by the metadata, detection and thumbnail tasks
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskDone       = "done"
	TaskFailed     = "failed"
)

// Image is an uploaded photo. the Face* columns hold the single best face:
// FaceX/FaceY are its normalized center, FaceWidth/FaceHeight its extent. all
// four are nil until detection succeeds.
type Image struct {
	ID               uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	OriginalPath     string `gorm:"not null;uniqueIndex" json:"original_path"` // relative to the media store
	OriginalFilename string `gorm:"not null" json:"original_filename"`
	Title            string `gorm:"not null;default:''" json:"title"`
	UploadedByID     *uint  `gorm:"index" json:"uploaded_by_id,omitempty"`

	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
	TakenAt      *int64   `gorm:"index" json:"taken_at,omitempty"`
	CameraMake   *string  `json:"camera_make,omitempty"`
	CameraModel  *string  `json:"camera_model,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
	Aperture     *float64 `json:"aperture,omitempty"`
	ShutterSpeed *string  `json:"shutter_speed,omitempty"`
	ISO          *int     `json:"iso,omitempty"`

	FaceX      *float64 `json:"face_x"`
	FaceY      *float64 `json:"face_y"`
	FaceWidth  *float64 `json:"face_width"`
	FaceHeight *float64 `json:"face_height"`

	MetadataStatus  string `gorm:"not null;default:pending" json:"metadata_status"`
	ThumbnailStatus string `gorm:"not null;default:pending" json:"thumbnail_status"`
	DetectionStatus string `gorm:"not null;default:pending" json:"detection_status"`

	MetadataProcessedAt  *int64 `json:"metadata_processed_at,omitempty"`
	ThumbnailProcessedAt *int64 `json:"thumbnail_processed_at,omitempty"`
	DetectionProcessedAt *int64 `json:"detection_processed_at,omitempty"`

	MetadataError  *string `json:"metadata_error,omitempty"`
	ThumbnailError *string `json:"thumbnail_error,omitempty"`
	DetectionError *string `json:"detection_error,omitempty"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`
	UpdatedAt int64 `gorm:"not null" json:"updated_at"`

	FaceTags []FaceTag `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"face_tags,omitempty"`
}

func (Image) TableName() string {
	return "images"
}

// HasFace reports whether all four face columns are set
func (i *Image) HasFace() bool {
	return i.FaceX != nil && i.FaceY != nil && i.FaceWidth != nil && i.FaceHeight != nil
}

// FaceCenter exposes the stored face for the crop engine, nil when absent
func (i *Image) FaceCenter() *media.FaceCenter {
	if !i.HasFace() {
		return nil
	}
	return &media.FaceCenter{X: i.FaceX, Y: i.FaceY, Width: i.FaceWidth, Height: i.FaceHeight}
}
