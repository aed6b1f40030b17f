package models

import "time"

// Image is the metadata row for an uploaded picture. The files themselves
// live under the media directory in a folder named after Hash.
type Image struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Hash             string     `gorm:"size:128;uniqueIndex;not null" json:"hash"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	SizeBytes        int64      `json:"size_bytes"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	JPEGPath         string     `json:"jpeg_path"`
	WebPPath         string     `json:"webp_path"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
}
