// Package store persists game sessions, rounds and per-user statistics.
package store

import (
	"context"
	"errors"
	"time"

	"namethat/internal/models"
)

var ErrNotFound = errors.New("record not found")

type Repository interface {
	CreateSession(ctx context.Context, s *models.GameSession) error
	// GetSession loads the session with its rounds ordered by round number.
	GetSession(ctx context.Context, id string) (*models.GameSession, error)
	// UpdateSession writes the session's counters and state, not its rounds.
	UpdateSession(ctx context.Context, s *models.GameSession) error

	CreateRound(ctx context.Context, r *models.GameRound) error
	// UpdateRound writes the answer fields of a round.
	UpdateRound(ctx context.Context, r *models.GameRound) error

	GetUserStats(ctx context.Context, userID string) (*models.UserStats, error)
	SaveUserStats(ctx context.Context, st *models.UserStats) error

	// FinishStaleSessions closes active sessions untouched since before.
	FinishStaleSessions(ctx context.Context, before time.Time) (int64, error)

	// Transaction runs fn against a repository whose writes commit together.
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}
