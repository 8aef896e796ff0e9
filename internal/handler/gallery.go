package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"imagetag/internal/config"
	"imagetag/internal/dto"
	"imagetag/internal/logger"
	"imagetag/internal/middleware"
	"imagetag/internal/model"
	"imagetag/internal/service/gallery"
	"imagetag/internal/service/storage"
)

// multipartOverhead is allowed on top of the image size for form boundaries and fields.
const multipartOverhead = 1 << 20

// GalleryService is the part of the detection workflow the web layer drives.
type GalleryService interface {
	Upload(ctx context.Context, userID int64, filename string, r io.Reader) (*model.UserImage, error)
	Detect(ctx context.Context, imageID int64) (*gallery.DetectResult, error)
	DeleteImage(ctx context.Context, imageID int64) error
	Search(ctx context.Context, query string) ([]model.GalleryEntry, error)
}

// GetImagesHandler lists every image with its tags, or only those matching ?search=.
func GetImagesHandler(svc GalleryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("search")

		entries, err := svc.Search(r.Context(), query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		images := make([]dto.ImageInfo, 0, len(entries))
		for _, e := range entries {
			images = append(images, dto.ImageInfo{
				ID:         e.Image.ID,
				Username:   e.Username,
				Filename:   e.Image.Filename,
				URL:        "/images/" + e.Image.Filename,
				IsDetected: e.Image.IsDetected,
				Tags:       e.TagNames(),
				UploadedAt: e.Image.CreatedAt,
			})
		}

		writeJSON(w, http.StatusOK, dto.ImagesData{
			Images:  images,
			Search:  query,
			Length:  len(images),
			Notices: drainNotices(w, r),
		})
	}
}

// UploadImageHandler stores the multipart "image" field for the logged-in user.
func UploadImageHandler(cfg *config.Config, logger *logger.Logger, svc GalleryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes()+multipartOverhead)
		file, header, err := r.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				redirectWithNotice(w, r, "Image is too large.")
				return
			}
			logger.Warning("Upload without image from user %d: %v", principal.UserID, err)
			redirectWithNotice(w, r, "Please choose an image to upload.")
			return
		}
		defer file.Close()

		img, err := svc.Upload(r.Context(), principal.UserID, header.Filename, file)
		switch {
		case err == nil:
			redirectWithNotice(w, r, fmt.Sprintf("Uploaded image %d.", img.ID))
		case errors.Is(err, gallery.ErrUnsupportedFormat):
			redirectWithNotice(w, r, "Only PNG and JPEG images are supported.")
		case errors.Is(err, storage.ErrTooLarge):
			redirectWithNotice(w, r, "Image is too large.")
		default:
			redirectWithNotice(w, r, "The image could not be uploaded.")
		}
	}
}

// DetectImageHandler runs object detection on the image named by the path.
func DetectImageHandler(logger *logger.Logger, svc GalleryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := imageID(r)
		if !ok {
			redirectWithNotice(w, r, "Target image not found.")
			return
		}

		result, err := svc.Detect(r.Context(), id)
		switch {
		case err == nil && len(result.Tags) == 0:
			redirectWithNotice(w, r, "No objects detected.")
		case err == nil:
			redirectWithNotice(w, r, "Detected: "+strings.Join(result.Tags, ", "))
		case errors.Is(err, gallery.ErrImageNotFound):
			logger.Warning("Detect requested for missing image %d", id)
			redirectWithNotice(w, r, "Target image not found.")
		case errors.Is(err, gallery.ErrInference):
			redirectWithNotice(w, r, "Object detection failed.")
		default:
			redirectWithNotice(w, r, "The detection could not be saved.")
		}
	}
}

// DeleteImageHandler removes the image named by the path together with its tags.
func DeleteImageHandler(logger *logger.Logger, svc GalleryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := imageID(r)
		if !ok {
			redirectWithNotice(w, r, "Target image not found.")
			return
		}

		err := svc.DeleteImage(r.Context(), id)
		switch {
		case err == nil:
			redirectWithNotice(w, r, "Image deleted.")
		case errors.Is(err, gallery.ErrImageNotFound):
			logger.Warning("Delete requested for missing image %d", id)
			redirectWithNotice(w, r, "Target image not found.")
		default:
			redirectWithNotice(w, r, "The image could not be deleted.")
		}
	}
}

// ViewImageHandler serves a stored image file by name.
func ViewImageHandler(files *storage.FileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := files.Path(r.PathValue("filename"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}
}

func imageID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
