package database

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// ThumbnailInfo is one cached rendition of an image
type ThumbnailInfo struct {
	ImageID       uint   `json:"image_id"`
	Alias         string `json:"alias"`
	ThumbnailPath string `json:"thumbnail_path"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	GeneratedAt   int64  `json:"generated_at"`
}

// GetThumbnailInfo returns sql.ErrNoRows when the rendition was never generated
func GetThumbnailInfo(db *sql.DB, b sq.StatementBuilderType, imageID uint, alias string) (ThumbnailInfo, error) {
	query := b.Select("image_id", "alias", "thumbnail_path", "width", "height", "generated_at").
		From("thumbnails").
		Where(sq.Eq{"image_id": imageID, "alias": alias}).
		Limit(1)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return ThumbnailInfo{}, fmt.Errorf("failed to build SQL query for GetThumbnailInfo: %w", err)
	}

	var info ThumbnailInfo
	err = db.QueryRow(sqlStr, args...).Scan(&info.ImageID, &info.Alias, &info.ThumbnailPath, &info.Width, &info.Height, &info.GeneratedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ThumbnailInfo{}, sql.ErrNoRows
		}
		return ThumbnailInfo{}, fmt.Errorf("failed to query thumbnail %s for image %d: %w", alias, imageID, err)
	}
	return info, nil
}

// ListThumbnails returns every cached rendition of an image ordered by alias
func ListThumbnails(db *sql.DB, b sq.StatementBuilderType, imageID uint) ([]ThumbnailInfo, error) {
	query := b.Select("image_id", "alias", "thumbnail_path", "width", "height", "generated_at").
		From("thumbnails").
		Where(sq.Eq{"image_id": imageID}).
		OrderBy("alias ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListThumbnails: %w", err)
	}
	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list thumbnails for image %d: %w", imageID, err)
	}
	defer rows.Close()

	var out []ThumbnailInfo
	for rows.Next() {
		var info ThumbnailInfo
		if err := rows.Scan(&info.ImageID, &info.Alias, &info.ThumbnailPath, &info.Width, &info.Height, &info.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thumbnail row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// SetThumbnailInfo inserts or replaces the rendition for (image, alias)
func SetThumbnailInfo(db *sql.DB, b sq.StatementBuilderType, info ThumbnailInfo) error {
	query := b.Insert("thumbnails").
		Columns("image_id", "alias", "thumbnail_path", "width", "height", "generated_at").
		Values(info.ImageID, info.Alias, info.ThumbnailPath, info.Width, info.Height, info.GeneratedAt).
		Suffix("ON CONFLICT(image_id, alias) DO UPDATE SET").
		Suffix("thumbnail_path = excluded.thumbnail_path,").
		Suffix("width = excluded.width,").
		Suffix("height = excluded.height,").
		Suffix("generated_at = excluded.generated_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetThumbnailInfo: %w", err)
	}
	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to store thumbnail %s for image %d: %w", info.Alias, info.ImageID, err)
	}
	return nil
}

// DeleteThumbnails drops every cached rendition of an image
func DeleteThumbnails(db *sql.DB, b sq.StatementBuilderType, imageID uint) error {
	sqlStr, args, err := b.Delete("thumbnails").Where(sq.Eq{"image_id": imageID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for DeleteThumbnails: %w", err)
	}
	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to delete thumbnails for image %d: %w", imageID, err)
	}
	return nil
}
