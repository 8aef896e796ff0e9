package dto

import (
	"encoding/json"
	"time"
)

// ImageInfo is the listing view of one stored image.
type ImageInfo struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	IsDetected bool      `json:"detected"`
	Tags       []string  `json:"tags"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// MarshalJSON formats the upload time the way the gallery page shows it.
func (p ImageInfo) MarshalJSON() ([]byte, error) {
	type Alias ImageInfo
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return json.Marshal(&struct {
		UploadedAt string `json:"uploadedAt"`
		Alias
	}{
		UploadedAt: p.UploadedAt.Format("02-01-2006 15:04"),
		Alias:      (Alias)(p),
	})
}
