package dto

// Gallery event types broadcast to live viewers.
const (
	EventImageUploaded = "image.uploaded"
	EventImageDetected = "image.detected"
	EventImageDeleted  = "image.deleted"
)

// GalleryEvent is pushed to websocket viewers when the gallery changes.
type GalleryEvent struct {
	Type     string   `json:"type"`
	ImageID  int64    `json:"imageId"`
	Filename string   `json:"filename,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}
