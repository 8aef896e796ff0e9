package sqlite

import (
	"context"
	"fmt"

	"imagetag/internal/model"
)

// TagRepository implements repository.TagRepository for SQLite.
type TagRepository struct {
	q querier
}

// NewTagRepository creates a new SQLite tag repository.
func NewTagRepository(q querier) *TagRepository {
	return &TagRepository{q: q}
}

// InsertBatch adds one tag row per name for the image.
// Run it inside a unit of work so the batch commits or rolls back as a whole.
func (r *TagRepository) InsertBatch(ctx context.Context, imageID int64, names []string) error {
	for _, name := range names {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO user_image_tags (user_image_id, tag_name)
			VALUES (?, ?)
		`, imageID, name); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", name, err)
		}
	}
	return nil
}

// GetByImageID retrieves all tags for an image.
func (r *TagRepository) GetByImageID(ctx context.Context, imageID int64) ([]model.UserImageTag, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_image_id, tag_name, created_at
		FROM user_image_tags WHERE user_image_id = ?
		ORDER BY id
	`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []model.UserImageTag
	for rows.Next() {
		var tag model.UserImageTag
		if err := rows.Scan(&tag.ID, &tag.UserImageID, &tag.TagName, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// GetAllTagNames returns a list of all distinct tag names.
func (r *TagRepository) GetAllTagNames(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT DISTINCT tag_name FROM user_image_tags ORDER BY tag_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// CountByTagName returns how many images carry each tag.
func (r *TagRepository) CountByTagName(ctx context.Context) (map[string]int, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT tag_name, COUNT(*) FROM user_image_tags GROUP BY tag_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		counts[name] = count
	}

	return counts, rows.Err()
}

// DeleteByImageID removes all tags for a specific image.
func (r *TagRepository) DeleteByImageID(ctx context.Context, imageID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM user_image_tags WHERE user_image_id = ?`, imageID); err != nil {
		return fmt.Errorf("failed to delete tags: %w", err)
	}
	return nil
}
