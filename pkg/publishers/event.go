package publishers

import (
	"time"

	"github.com/wallwatch/wallwatch/internal/domain"
)

// Event represents one delivered wallpaper, published downstream.
type Event struct {
	TargetName   string    `json:"target_name"`
	SourceName   string    `json:"source_name"`
	PostID       string    `json:"post_id"`
	ImageURL     string    `json:"image_url"`
	FilePath     string    `json:"file_path"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// NewEvent constructs an Event for a completed obligation.
func NewEvent(o domain.Obligation, filePath string) Event {
	return Event{
		TargetName:   o.TargetName,
		SourceName:   o.Post.Source,
		PostID:       o.Post.ID,
		ImageURL:     o.Post.URL,
		FilePath:     filePath,
		Width:        o.Post.Width,
		Height:       o.Post.Height,
		DownloadedAt: time.Now().UTC(),
	}
}
