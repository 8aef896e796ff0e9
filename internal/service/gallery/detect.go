package gallery

import (
	"context"
	"fmt"

	"imagetag/internal/dto"
	"imagetag/internal/repository"
)

// Detect runs the model over a stored image, replaces it with the annotated copy
// and records one tag per distinct label. Nothing changes unless every step succeeds.
func (s *Service) Detect(ctx context.Context, imageID int64) (*DetectResult, error) {
	img, err := s.store.Images().GetByID(ctx, imageID)
	if err != nil {
		s.logger.Error("Failed to load image %d: %v", imageID, err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if img == nil {
		return nil, ErrImageNotFound
	}

	data, err := s.files.Read(img.Filename)
	if err != nil {
		s.logger.Error("Failed to read image %s: %v", img.Filename, err)
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	inference, err := s.engine.Detect(data)
	if err != nil {
		s.logger.Error("Inference failed for image %d: %v", imageID, err)
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	detections, unknown := SelectDetections(inference.Detections, s.labels)
	for _, classID := range unknown {
		s.logger.Warning("Skipping detection with unknown class index %d on image %d", classID, imageID)
	}

	annotated, err := s.engine.Annotate(data, detections, LineThickness(inference.Width, inference.Height))
	if err != nil {
		s.logger.Error("Annotation failed for image %d: %v", imageID, err)
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	name, err := s.files.Save(annotated, ".jpg")
	if err != nil {
		s.logger.Error("Failed to save annotated image %d: %v", imageID, err)
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	tags := labelsOf(detections)
	if err := s.persistDetection(ctx, imageID, name, tags); err != nil {
		s.discard(name)
		s.logger.Error("Failed to persist detection for image %d: %v", imageID, err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Info("Detected %d object(s) on image %d: %v", len(tags), imageID, tags)

	// The row now points at the annotated copy; nothing references the previous file.
	if err := s.files.Remove(img.Filename); err != nil {
		s.logger.Warning("Superseded file %s of image %d remains: %v", img.Filename, imageID, err)
	}

	img.Filename = name
	img.IsDetected = true
	s.publish(dto.GalleryEvent{
		Type:     dto.EventImageDetected,
		ImageID:  imageID,
		Filename: name,
		Tags:     tags,
	})

	return &DetectResult{Image: *img, Tags: tags}, nil
}

// persistDetection writes the new filename, the detected flag and the tags as one unit.
func (s *Service) persistDetection(ctx context.Context, imageID int64, filename string, tags []string) error {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}

	if err := applyDetection(ctx, uow, imageID, filename, tags); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			s.logger.Error("Rollback failed for image %d: %v", imageID, rbErr)
		}
		return err
	}

	return uow.Commit()
}

func applyDetection(ctx context.Context, uow repository.UnitOfWork, imageID int64, filename string, tags []string) error {
	if err := uow.Images().MarkDetected(ctx, imageID, filename); err != nil {
		return err
	}
	return uow.Tags().InsertBatch(ctx, imageID, tags)
}
