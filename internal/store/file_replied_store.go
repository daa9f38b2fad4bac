package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"social-autopilot/internal/apperrors"
)

// FileRepliedStore keeps replied IDs as a JSON array, rewritten on every mark.
type FileRepliedStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
	ids    []string
	seen   map[string]struct{}
}

// OpenFileRepliedStore loads path. A missing or corrupt file starts an empty set.
func OpenFileRepliedStore(path string, logger *zap.Logger) *FileRepliedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileRepliedStore{
		path:   path,
		logger: logger.Named("replied_store"),
		seen:   make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		s.logger.Warn("replied ids unreadable, starting empty", zap.String("path", path), zap.Error(err))
	default:
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			s.logger.Warn("replied ids corrupt, starting empty", zap.String("path", path), zap.Error(err))
			break
		}
		for _, id := range ids {
			if _, dup := s.seen[id]; dup {
				continue
			}
			s.seen[id] = struct{}{}
			s.ids = append(s.ids, id)
		}
	}
	return s
}

// MarkReplied records id and persists the set. It returns false if id was already known.
func (s *FileRepliedStore) MarkReplied(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.seen[id] = struct{}{}
	s.ids = append(s.ids, id)

	payload, err := json.MarshalIndent(s.ids, "", "  ")
	if err != nil {
		return true, &apperrors.IOError{Op: "save", Path: s.path, Err: err}
	}
	if err := writeFileAtomic(s.path, payload); err != nil {
		return true, &apperrors.IOError{Op: "save", Path: s.path, Err: err}
	}
	return true, nil
}

// HasReplied reports whether id was marked.
func (s *FileRepliedStore) HasReplied(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok, nil
}

// Len returns the number of remembered IDs.
func (s *FileRepliedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
