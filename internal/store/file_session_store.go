package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"

	"social-autopilot/internal/apperrors"
	"social-autopilot/internal/models"
)

// FileSessionStore keeps the session snapshot in a single JSON file.
type FileSessionStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFileSessionStore returns a store backed by path.
func NewFileSessionStore(path string, logger *zap.Logger) *FileSessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSessionStore{path: path, logger: logger.Named("session_store")}
}

// Path returns the backing file.
func (s *FileSessionStore) Path() string {
	return s.path
}

// Save overwrites the file with state.
func (s *FileSessionStore) Save(_ context.Context, state models.SessionState) error {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &apperrors.IOError{Op: "save", Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.path, payload); err != nil {
		return &apperrors.IOError{Op: "save", Path: s.path, Err: err}
	}
	s.logger.Info("session saved", zap.String("path", s.path), zap.Int("cookies", len(state.Cookies)))
	return nil
}

// Load reads the snapshot. A missing or corrupt file is reported as absent.
func (s *FileSessionStore) Load(_ context.Context) (models.SessionState, bool, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.SessionState{}, false, nil
		}
		return models.SessionState{}, false, &apperrors.IOError{Op: "load", Path: s.path, Err: err}
	}

	state, err := decodeSessionState(s.path, data)
	if err != nil {
		s.logger.Warn("ignoring corrupt session state", zap.String("path", s.path), zap.Error(err))
		return models.SessionState{}, false, nil
	}
	return state, true, nil
}

// Exists reports whether a non-empty snapshot file is present.
func (s *FileSessionStore) Exists(_ context.Context) bool {
	info, err := os.Stat(s.path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

func decodeSessionState(path string, data []byte) (models.SessionState, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.SessionState{}, &apperrors.CorruptStateError{Path: path, Err: errors.New("empty file")}
	}
	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.SessionState{}, &apperrors.CorruptStateError{Path: path, Err: err}
	}
	if state.Empty() {
		return models.SessionState{}, &apperrors.CorruptStateError{Path: path, Err: errors.New("no cookies or storage")}
	}
	return state, nil
}
