package models

import "time"

// MonitorItem is a video whose comments the bot answers on every tick.
type MonitorItem struct {
	URL     string    `json:"url"`
	AddedAt time.Time `json:"addedAt"`
}
