package gallery

import (
	"errors"
	"io"

	"imagetag/internal/config"
	"imagetag/internal/dto"
	"imagetag/internal/logger"
	"imagetag/internal/model"
	"imagetag/internal/repository"
)

var (
	ErrImageNotFound     = errors.New("target image not found")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInference         = errors.New("object detection failed")
	ErrPersistence       = errors.New("gallery could not be saved")
)

// Engine runs the detection model and draws its results.
type Engine interface {
	Detect(img []byte) (*dto.Inference, error)
	Annotate(img []byte, detections []dto.DetectionResult, thickness int) ([]byte, error)
}

// FileStore holds image files under generated names.
type FileStore interface {
	Save(data []byte, ext string) (string, error)
	SaveFrom(r io.Reader, ext string, limit int64) (string, error)
	Read(name string) ([]byte, error)
	Remove(name string) error
}

// Publisher receives gallery change events.
type Publisher interface {
	Publish(event dto.GalleryEvent)
}

// DetectResult is the state of an image after a successful detection run.
type DetectResult struct {
	Image model.UserImage
	Tags  []string
}

// Service orchestrates uploads, detection runs, deletions and tag search.
type Service struct {
	store     repository.Store
	files     FileStore
	engine    Engine
	labels    *Labels
	publisher Publisher
	maxUpload int64
	logger    *logger.Logger
}

// NewService wires the workflow. publisher may be nil.
func NewService(config *config.Config, logger *logger.Logger, store repository.Store, files FileStore, engine Engine, labels *Labels, publisher Publisher) *Service {
	return &Service{
		store:     store,
		files:     files,
		engine:    engine,
		labels:    labels,
		publisher: publisher,
		maxUpload: config.MaxUploadBytes(),
		logger:    logger,
	}
}

func (s *Service) publish(event dto.GalleryEvent) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// discard removes a file written by a run that did not commit.
func (s *Service) discard(name string) {
	if err := s.files.Remove(name); err != nil {
		s.logger.Warning("Failed to remove orphaned file %s: %v", name, err)
	}
}
