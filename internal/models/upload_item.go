package models

import "time"

// UploadItem is a local video file queued for posting.
type UploadItem struct {
	Path    string    `json:"path"`
	Caption string    `json:"caption"`
	AddedAt time.Time `json:"addedAt"`
}
