package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/mediasysfaces/database"
)

// ThumbnailRepository is the rendition cache. it talks plain SQL through
// squirrel rather than gorm.
type ThumbnailRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewThumbnailRepository(db *sql.DB, driver string) *ThumbnailRepository {
	return &ThumbnailRepository{db: db, builder: database.StatementBuilder(driver)}
}

// Get returns sql.ErrNoRows when the rendition is not cached
func (r *ThumbnailRepository) Get(ctx context.Context, imageID uint, alias string) (database.ThumbnailInfo, error) {
	if err := ctx.Err(); err != nil {
		return database.ThumbnailInfo{}, err
	}
	return database.GetThumbnailInfo(r.db, r.builder, imageID, alias)
}

func (r *ThumbnailRepository) List(ctx context.Context, imageID uint) ([]database.ThumbnailInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return database.ListThumbnails(r.db, r.builder, imageID)
}

func (r *ThumbnailRepository) Set(ctx context.Context, info database.ThumbnailInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return database.SetThumbnailInfo(r.db, r.builder, info)
}

func (r *ThumbnailRepository) DeleteForImage(ctx context.Context, imageID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return database.DeleteThumbnails(r.db, r.builder, imageID)
}
