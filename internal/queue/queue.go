// Package queue holds the append-only monitor and upload queues fed by the API.
package queue

import (
	"strings"
	"sync"
	"time"

	"social-autopilot/internal/apperrors"
	"social-autopilot/internal/models"
)

// Snapshot is a point-in-time copy of both queues.
type Snapshot struct {
	Monitoring []models.MonitorItem
	Uploading  []models.UploadItem
}

// Pending reports whether the snapshot has any work.
func (s Snapshot) Pending() bool {
	return len(s.Monitoring) > 0 || len(s.Uploading) > 0
}

// Queue is safe for concurrent enqueue and snapshot reads. Items are never reordered,
// deduplicated or removed by processing; only Clear empties it.
type Queue struct {
	mu      sync.RWMutex
	monitor []models.MonitorItem
	upload  []models.UploadItem
	now     func() time.Time
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{now: time.Now}
}

// EnqueueMonitor appends a video URL to the monitor queue.
func (q *Queue) EnqueueMonitor(url string) (models.MonitorItem, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return models.MonitorItem{}, apperrors.Required("videoUrl")
	}
	item := models.MonitorItem{URL: url, AddedAt: q.now().UTC()}

	q.mu.Lock()
	q.monitor = append(q.monitor, item)
	q.mu.Unlock()
	return item, nil
}

// EnqueueUpload appends a local video path to the upload queue.
func (q *Queue) EnqueueUpload(path, caption string) (models.UploadItem, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return models.UploadItem{}, apperrors.Required("videoPath")
	}
	item := models.UploadItem{Path: path, Caption: caption, AddedAt: q.now().UTC()}

	q.mu.Lock()
	q.upload = append(q.upload, item)
	q.mu.Unlock()
	return item, nil
}

// Status returns copies of both queues. The result never aliases internal storage.
func (q *Queue) Status() Snapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	snap := Snapshot{
		Monitoring: make([]models.MonitorItem, len(q.monitor)),
		Uploading:  make([]models.UploadItem, len(q.upload)),
	}
	copy(snap.Monitoring, q.monitor)
	copy(snap.Uploading, q.upload)
	return snap
}

// Len returns the number of monitor and upload items.
func (q *Queue) Len() (monitor, upload int) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.monitor), len(q.upload)
}

// Pending reports whether either queue is non-empty.
func (q *Queue) Pending() bool {
	m, u := q.Len()
	return m > 0 || u > 0
}

// Clear empties both queues.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.monitor = nil
	q.upload = nil
	q.mu.Unlock()
}

// Seed enqueues configured items, stopping at the first invalid one.
func (q *Queue) Seed(monitorURLs []string, uploads []models.UploadItem) error {
	for _, url := range monitorURLs {
		if _, err := q.EnqueueMonitor(url); err != nil {
			return err
		}
	}
	for _, up := range uploads {
		if _, err := q.EnqueueUpload(up.Path, up.Caption); err != nil {
			return err
		}
	}
	return nil
}
