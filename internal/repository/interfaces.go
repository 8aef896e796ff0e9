package repository

import (
	"context"

	"imagetag/internal/model"
)

// UserRepository defines the interface for account data operations.
type UserRepository interface {
	Insert(ctx context.Context, user *model.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// ImageRepository defines the interface for image data operations.
type ImageRepository interface {
	// Create operations
	Insert(ctx context.Context, img *model.UserImage) (int64, error)

	// Read operations
	GetByID(ctx context.Context, id int64) (*model.UserImage, error)
	GetByFilename(ctx context.Context, filename string) (*model.UserImage, error)
	// Search returns every image when query is empty, otherwise the images owning
	// at least one tag that contains query as a case-sensitive substring.
	Search(ctx context.Context, query string) ([]model.GalleryEntry, error)
	Count(ctx context.Context) (int, error)

	// Update operations
	MarkDetected(ctx context.Context, id int64, filename string) error

	// Delete operations
	Delete(ctx context.Context, id int64) error
}

// TagRepository defines the interface for image tag operations.
type TagRepository interface {
	InsertBatch(ctx context.Context, imageID int64, names []string) error
	GetByImageID(ctx context.Context, imageID int64) ([]model.UserImageTag, error)
	GetAllTagNames(ctx context.Context) ([]string, error)
	CountByTagName(ctx context.Context) (map[string]int, error)
	DeleteByImageID(ctx context.Context, imageID int64) error
}

// UnitOfWork groups writes that must commit or roll back together.
// Exactly one of Commit or Rollback ends it; Rollback after Commit is a no-op.
type UnitOfWork interface {
	Images() ImageRepository
	Tags() TagRepository
	Commit() error
	Rollback() error
}

// Store opens units of work and exposes non-transactional repositories.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Users() UserRepository
	Images() ImageRepository
	Tags() TagRepository
}
