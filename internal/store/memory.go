package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"namethat/internal/models"
)

// MemoryStore keeps everything in process. Used when no DATABASE_URL is
// configured and in tests.
type MemoryStore struct {
	sessions map[string]models.GameSession
	rounds   map[string][]models.GameRound
	stats    map[string]models.UserStats
	now      func() time.Time
	mu       sync.RWMutex
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.GameSession),
		rounds:   make(map[string][]models.GameRound),
		stats:    make(map[string]models.UserStats),
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	now := m.now()
	s.CreatedAt, s.UpdatedAt = now, now

	stored := *s
	stored.Rounds = nil
	m.sessions[s.ID] = stored
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, exists := m.sessions[id]
	if !exists {
		return nil, ErrNotFound
	}

	s := stored
	s.Rounds = append([]models.GameRound(nil), m.rounds[id]...)
	sort.Slice(s.Rounds, func(i, j int) bool { return s.Rounds[i].RoundNumber < s.Rounds[j].RoundNumber })
	return &s, nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, s *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.sessions[s.ID]
	if !exists {
		return ErrNotFound
	}
	stored.IsActive = s.IsActive
	stored.TotalRounds = s.TotalRounds
	stored.CorrectGuesses = s.CorrectGuesses
	stored.FinishedAt = s.FinishedAt
	stored.UpdatedAt = m.now()
	s.UpdatedAt = stored.UpdatedAt

	m.sessions[s.ID] = stored
	return nil
}

func (m *MemoryStore) CreateRound(_ context.Context, r *models.GameRound) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[r.GameSessionID]; !exists {
		return ErrNotFound
	}
	for _, existing := range m.rounds[r.GameSessionID] {
		if existing.RoundNumber == r.RoundNumber {
			return fmt.Errorf("round %d of session %s already exists", r.RoundNumber, r.GameSessionID)
		}
	}
	r.CreatedAt = m.now()
	m.rounds[r.GameSessionID] = append(m.rounds[r.GameSessionID], *r)
	return nil
}

func (m *MemoryStore) UpdateRound(_ context.Context, r *models.GameRound) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rounds := m.rounds[r.GameSessionID]
	for i := range rounds {
		if rounds[i].ID == r.ID {
			rounds[i].UserGuess = r.UserGuess
			rounds[i].IsCorrect = r.IsCorrect
			rounds[i].TimeTaken = r.TimeTaken
			rounds[i].AnsweredAt = r.AnsweredAt
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) GetUserStats(_ context.Context, userID string) (*models.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, exists := m.stats[userID]
	if !exists {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (m *MemoryStore) SaveUserStats(_ context.Context, st *models.UserStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, exists := m.stats[st.UserID]; exists {
		st.CreatedAt = existing.CreatedAt
	} else {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	m.stats[st.UserID] = *st
	return nil
}

func (m *MemoryStore) FinishStaleSessions(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var closed int64
	for id, s := range m.sessions {
		if s.IsActive && s.UpdatedAt.Before(before) {
			s.IsActive = false
			s.FinishedAt = &now
			s.UpdatedAt = now
			m.sessions[id] = s
			closed++
		}
	}
	return closed, nil
}

// Transaction runs fn directly; callers serialise per game themselves.
func (m *MemoryStore) Transaction(_ context.Context, fn func(repo Repository) error) error {
	return fn(m)
}
