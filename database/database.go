package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// StatementBuilder returns a squirrel builder with the placeholder style of driver
func StatementBuilder(driver string) sq.StatementBuilderType {
	if driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// InitThumbnailTable creates the rendition cache. it is plain SQL, outside
// gorm, and keyed by image and alias.
func InitThumbnailTable(db *sql.DB) error {
	stmt := `
	CREATE TABLE IF NOT EXISTS thumbnails (
		image_id BIGINT NOT NULL,
		alias TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		generated_at BIGINT NOT NULL,
		PRIMARY KEY (image_id, alias)
	);
	`
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create thumbnails table: %w", err)
	}
	return nil
}
