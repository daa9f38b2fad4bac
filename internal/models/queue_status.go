package models

// QueueStatus is the document served by GET /status.
type QueueStatus struct {
	Monitoring []MonitorItem `json:"monitoring"`
	Uploading  []UploadItem  `json:"uploading"`
	Running    bool          `json:"running"`
}
