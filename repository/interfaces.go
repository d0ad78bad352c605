package repository

import (
	"context"

	"github.com/camden-git/mediasysfaces/database"
	"github.com/camden-git/mediasysfaces/media"
	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/recognition"
)

// Task names double as the prefix of the image status columns
type Task string

const (
	TaskMetadata  Task = "metadata"
	TaskDetection Task = "detection"
	TaskThumbnail Task = "thumbnail"
)

type ImageRepositoryInterface interface {
	Create(ctx context.Context, image *models.Image) error
	GetByID(ctx context.Context, id uint) (*models.Image, error)
	List(ctx context.Context, page, pageSize int) ([]models.Image, int64, error)
	MarkTaskProcessing(ctx context.Context, id uint, task Task) error
	UpdateMetadataResult(ctx context.Context, id uint, meta *media.PhotoMetadata, taskErr error) error
	UpdateDetectionResult(ctx context.Context, id uint, face *recognition.FaceMetadata, taskErr error) error
	UpdateThumbnailResult(ctx context.Context, id uint, taskErr error) error
	ListRequiringProcessing(ctx context.Context) ([]models.Image, error)
	Delete(ctx context.Context, id uint) error
}

type PersonRepositoryInterface interface {
	Create(ctx context.Context, person *models.Person) error
	GetByID(ctx context.Context, id uint) (*models.Person, error)
	ListAll(ctx context.Context) ([]models.Person, error)
	ListWithEncoding(ctx context.Context) ([]models.Person, error)
	Rename(ctx context.Context, id uint, name string) error
	SetCanonicalEncodingIfEmpty(ctx context.Context, id uint, enc []float64) (bool, error)
	Delete(ctx context.Context, id uint) error
}

// FaceTagFilter narrows tag listings; zero values mean no filter
type FaceTagFilter struct {
	ImageID  uint
	PersonID uint
	Statuses []models.FaceTagStatus
}

type FaceTagRepositoryInterface interface {
	Create(ctx context.Context, tag *models.FaceTag) error
	CreateWithPerson(ctx context.Context, tag *models.FaceTag, person *models.Person) error
	GetByID(ctx context.Context, id uint) (*models.FaceTag, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.FaceTag, error)
	List(ctx context.Context, filter FaceTagFilter) ([]models.FaceTag, error)
	ListPending(ctx context.Context, page, pageSize int) ([]models.FaceTag, int64, error)
	ListUntaggedWithEncoding(ctx context.Context, imageID uint) ([]models.FaceTag, error)
	UpdateBox(ctx context.Context, id uint, from models.FaceTagStatus, box recognition.Box, personID *uint) error
	SetEncoding(ctx context.Context, id uint, enc []float64) error
	AssignSuggestion(ctx context.Context, id uint, personID uint, confidence float64) (bool, error)
	Review(ctx context.Context, id uint, to models.FaceTagStatus, reviewerID uint, at int64) (bool, error)
	Delete(ctx context.Context, id uint) error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListAll(ctx context.Context) ([]models.User, error)
	SetGlobalPermissions(ctx context.Context, userID uint, permissions []string) error
	Count(ctx context.Context) (int64, error)
}

type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*models.Role, error)
	Upsert(ctx context.Context, name string, permissions []string) (*models.Role, error)
	AddUserToRole(ctx context.Context, userID, roleID uint) error
}

type ThumbnailRepositoryInterface interface {
	Get(ctx context.Context, imageID uint, alias string) (database.ThumbnailInfo, error)
	List(ctx context.Context, imageID uint) ([]database.ThumbnailInfo, error)
	Set(ctx context.Context, info database.ThumbnailInfo) error
	DeleteForImage(ctx context.Context, imageID uint) error
}
