package model

import "time"

// UserImageTag is one detected label persisted for an image.
type UserImageTag struct {
	ID          int64     `json:"id"`
	UserImageID int64     `json:"user_image_id"`
	TagName     string    `json:"tag_name"`
	CreatedAt   time.Time `json:"created_at"`
}
