package model

import "time"

// UserImage is one uploaded image. Filename points at the annotated copy once detection succeeds.
type UserImage struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Filename   string    `json:"image_path"`
	IsDetected bool      `json:"is_detected"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
