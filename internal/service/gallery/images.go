package gallery

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"imagetag/internal/dto"
	"imagetag/internal/model"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsSupportedImage reports whether filename has an accepted image extension.
func IsSupportedImage(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Upload stores a new image for userID. The image starts undetected.
func (s *Service) Upload(ctx context.Context, userID int64, filename string, r io.Reader) (*model.UserImage, error) {
	if !IsSupportedImage(filename) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}

	name, err := s.files.SaveFrom(r, filepath.Ext(filename), s.maxUpload)
	if err != nil {
		s.logger.Warning("Failed to store upload %q: %v", filename, err)
		return nil, err
	}

	img := &model.UserImage{UserID: userID, Filename: name}
	id, err := s.store.Images().Insert(ctx, img)
	if err != nil {
		s.discard(name)
		s.logger.Error("Failed to record upload %s: %v", name, err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	img.ID = id

	s.logger.Info("User %d uploaded image %d (%s)", userID, id, name)
	s.publish(dto.GalleryEvent{Type: dto.EventImageUploaded, ImageID: id, Filename: name})

	return img, nil
}

// DeleteImage removes an image and its tags together, then its stored file.
func (s *Service) DeleteImage(ctx context.Context, imageID int64) error {
	img, err := s.store.Images().GetByID(ctx, imageID)
	if err != nil {
		s.logger.Error("Failed to load image %d: %v", imageID, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if img == nil {
		return ErrImageNotFound
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		s.logger.Error("Failed to begin delete of image %d: %v", imageID, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	err = uow.Tags().DeleteByImageID(ctx, imageID)
	if err == nil {
		err = uow.Images().Delete(ctx, imageID)
	}
	if err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			s.logger.Error("Rollback failed for image %d: %v", imageID, rbErr)
		}
		s.logger.Error("Failed to delete image %d: %v", imageID, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := uow.Commit(); err != nil {
		s.logger.Error("Failed to commit delete of image %d: %v", imageID, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if err := s.files.Remove(img.Filename); err != nil {
		s.logger.Warning("Image %d deleted but file %s remains: %v", imageID, img.Filename, err)
	}

	s.logger.Info("Deleted image %d", imageID)
	s.publish(dto.GalleryEvent{Type: dto.EventImageDeleted, ImageID: imageID, Filename: img.Filename})

	return nil
}

// Search returns images of all users that own a tag containing query.
// An empty query lists everything.
func (s *Service) Search(ctx context.Context, query string) ([]model.GalleryEntry, error) {
	entries, err := s.store.Images().Search(ctx, query)
	if err != nil {
		s.logger.Error("Search for %q failed: %v", query, err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return entries, nil
}

// List returns every image with its tags.
func (s *Service) List(ctx context.Context) ([]model.GalleryEntry, error) {
	return s.Search(ctx, "")
}
