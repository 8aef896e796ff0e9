package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"imagetag/internal/model"
)

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	q querier
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(q querier) *ImageRepository {
	return &ImageRepository{q: q}
}

// Insert adds a new image record to the database.
func (r *ImageRepository) Insert(ctx context.Context, img *model.UserImage) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO user_images (user_id, image_path, is_detected)
		VALUES (?, ?, ?)
	`, img.UserID, img.Filename, img.IsDetected)
	if err != nil {
		return 0, fmt.Errorf("failed to insert image: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves an image by its ID.
func (r *ImageRepository) GetByID(ctx context.Context, id int64) (*model.UserImage, error) {
	return r.getOne(ctx, `
		SELECT id, user_id, image_path, is_detected, created_at, updated_at
		FROM user_images WHERE id = ?
	`, id)
}

// GetByFilename retrieves an image by its stored filename.
func (r *ImageRepository) GetByFilename(ctx context.Context, filename string) (*model.UserImage, error) {
	return r.getOne(ctx, `
		SELECT id, user_id, image_path, is_detected, created_at, updated_at
		FROM user_images WHERE image_path = ?
	`, filename)
}

func (r *ImageRepository) getOne(ctx context.Context, query string, arg interface{}) (*model.UserImage, error) {
	var img model.UserImage
	err := r.q.QueryRowContext(ctx, query, arg).
		Scan(&img.ID, &img.UserID, &img.Filename, &img.IsDetected, &img.CreatedAt, &img.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

// Search returns images joined with their owners, each carrying all of its tags.
// A non-empty query keeps only images with a tag containing it; instr keeps the
// match case-sensitive and treats % and _ literally.
func (r *ImageRepository) Search(ctx context.Context, query string) ([]model.GalleryEntry, error) {
	sqlQuery := `
		SELECT i.id, i.user_id, u.username, i.image_path, i.is_detected, i.created_at, i.updated_at
		FROM user_images i
		JOIN users u ON u.id = i.user_id
		WHERE 1=1
	`
	args := []interface{}{}

	if query != "" {
		sqlQuery += ` AND EXISTS (
			SELECT 1 FROM user_image_tags t
			WHERE t.user_image_id = i.id AND instr(t.tag_name, ?) > 0
		)`
		args = append(args, query)
	}

	sqlQuery += " ORDER BY i.id"

	rows, err := r.q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}

	var entries []model.GalleryEntry
	for rows.Next() {
		var e model.GalleryEntry
		img := &e.Image
		if err := rows.Scan(&img.ID, &img.UserID, &e.Username, &img.Filename, &img.IsDetected, &img.CreatedAt, &img.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	// Release the connection before the tag query; the pool holds a single connection.
	rows.Close()

	if len(entries) == 0 {
		return entries, nil
	}

	tags, err := r.tagsForImages(ctx, entries)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Tags = tags[entries[i].Image.ID]
	}

	return entries, nil
}

// tagsForImages loads the tags of the given entries grouped by image ID.
func (r *ImageRepository) tagsForImages(ctx context.Context, entries []model.GalleryEntry) (map[int64][]model.UserImageTag, error) {
	placeholders := make([]string, len(entries))
	args := make([]interface{}, len(entries))
	for i, e := range entries {
		placeholders[i] = "?"
		args[i] = e.Image.ID
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_image_id, tag_name, created_at
		FROM user_image_tags
		WHERE user_image_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[int64][]model.UserImageTag)
	for rows.Next() {
		var tag model.UserImageTag
		if err := rows.Scan(&tag.ID, &tag.UserImageID, &tag.TagName, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags[tag.UserImageID] = append(tags[tag.UserImageID], tag)
	}

	return tags, rows.Err()
}

// Count returns the number of stored images.
func (r *ImageRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_images`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

// MarkDetected points the image at its annotated file and sets the detected flag.
func (r *ImageRepository) MarkDetected(ctx context.Context, id int64, filename string) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE user_images
		SET image_path = ?, is_detected = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, filename, id)
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update image %d: no such row", id)
	}
	return nil
}

// Delete removes an image row. Its tags must already be gone.
func (r *ImageRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM user_images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
