package store

import (
	"context"

	"social-autopilot/internal/models"
)

// SessionStore persists browser authentication state between runs.
type SessionStore interface {
	Save(ctx context.Context, state models.SessionState) error
	Load(ctx context.Context) (models.SessionState, bool, error)
	Exists(ctx context.Context) bool
}

// RepliedStore remembers which comments and messages already got an answer.
type RepliedStore interface {
	MarkReplied(ctx context.Context, id string) (bool, error)
	HasReplied(ctx context.Context, id string) (bool, error)
}
