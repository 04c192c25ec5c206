package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRoundAnswered = errors.New("round already answered")
	ErrSessionClosed = errors.New("game session is finished")
)

// GameSession is one game played over a playlist. UserID is empty for
// anonymous players.
type GameSession struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string     `gorm:"index;size:100" json:"user_id,omitempty"`
	PlaylistID     string     `gorm:"size:100;not null" json:"playlist_id"`
	PlaylistName   string     `gorm:"size:200" json:"playlist_name"`
	IsActive       bool       `gorm:"not null;index" json:"is_active"`
	TotalRounds    int        `gorm:"not null;default:0" json:"total_rounds"`
	CorrectGuesses int        `gorm:"not null;default:0" json:"correct_guesses"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Rounds []GameRound `gorm:"foreignKey:GameSessionID;constraint:OnDelete:CASCADE" json:"rounds,omitempty"`
}

// ScorePercentage is correct guesses over rounds played, 0 before any round.
func (s *GameSession) ScorePercentage() float64 {
	if s.TotalRounds == 0 {
		return 0
	}
	return float64(s.CorrectGuesses) / float64(s.TotalRounds) * 100
}

func (s *GameSession) Validate() error {
	if s.TotalRounds < 0 || s.CorrectGuesses < 0 {
		return fmt.Errorf("session %s: negative counters", s.ID)
	}
	if s.CorrectGuesses > s.TotalRounds {
		return fmt.Errorf("session %s: %d correct guesses exceed %d rounds", s.ID, s.CorrectGuesses, s.TotalRounds)
	}
	return nil
}

// PendingRound returns the latest round when it is still unanswered.
func (s *GameSession) PendingRound() *GameRound {
	var latest *GameRound
	for i := range s.Rounds {
		if latest == nil || s.Rounds[i].RoundNumber > latest.RoundNumber {
			latest = &s.Rounds[i]
		}
	}
	if latest != nil && !latest.Answered() {
		return latest
	}
	return nil
}

func (s *GameSession) UsedTrackIDs() map[string]bool {
	used := make(map[string]bool, len(s.Rounds))
	for _, r := range s.Rounds {
		used[r.TrackID] = true
	}
	return used
}

// AverageTimeTaken averages the answer time over rounds that recorded one.
func (s *GameSession) AverageTimeTaken() (float64, bool) {
	var sum float64
	var n int
	for _, r := range s.Rounds {
		if r.TimeTaken != nil {
			sum += *r.TimeTaken
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Finish closes the session. Closing twice is an error.
func (s *GameSession) Finish(at time.Time) error {
	if !s.IsActive {
		return ErrSessionClosed
	}
	s.IsActive = false
	s.FinishedAt = &at
	return nil
}

// GameRound is one track presented to the player. IsCorrect is nil until
// the round is answered.
type GameRound struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	GameSessionID string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_round_number" json:"game_session_id"`
	RoundNumber   int        `gorm:"not null;uniqueIndex:idx_round_number" json:"round_number"`
	TrackID       string     `gorm:"size:100;not null" json:"track_id"`
	TrackName     string     `gorm:"size:200" json:"track_name"`
	ArtistName    string     `gorm:"size:200" json:"artist_name"`
	PreviewURL    string     `gorm:"size:500" json:"preview_url"`
	UserGuess     string     `gorm:"size:200" json:"user_guess"`
	IsCorrect     *bool      `json:"is_correct"`
	TimeTaken     *float64   `json:"time_taken"`
	AnsweredAt    *time.Time `json:"answered_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (r *GameRound) Answered() bool {
	return r.IsCorrect != nil
}

// Answer records the player's guess. A round can be answered once.
func (r *GameRound) Answer(guess string, correct bool, timeTaken *float64, at time.Time) error {
	if r.Answered() {
		return ErrRoundAnswered
	}
	r.UserGuess = guess
	r.IsCorrect = &correct
	r.TimeTaken = timeTaken
	r.AnsweredAt = &at
	return nil
}

// UserStats aggregates every finished game of one user.
type UserStats struct {
	UserID              string     `gorm:"primaryKey;size:100" json:"user_id"`
	TotalGamesPlayed    int        `gorm:"not null;default:0" json:"total_games_played"`
	TotalRoundsPlayed   int        `gorm:"not null;default:0" json:"total_rounds_played"`
	TotalCorrectGuesses int        `gorm:"not null;default:0" json:"total_correct_guesses"`
	BestScorePercentage float64    `gorm:"not null;default:0" json:"best_score_percentage"`
	AverageTimePerGuess float64    `gorm:"not null;default:0" json:"average_time_per_guess"`
	LastPlayed          *time.Time `json:"last_played"`
	CreatedAt           time.Time  `json:"-"`
	UpdatedAt           time.Time  `json:"-"`
}

// Update folds a finished session into the totals. The average answer time
// is weighted by rounds played.
func (s *UserStats) Update(session *GameSession, at time.Time) {
	s.TotalGamesPlayed++
	s.TotalRoundsPlayed += session.TotalRounds
	s.TotalCorrectGuesses += session.CorrectGuesses

	if session.TotalRounds > 0 {
		if score := session.ScorePercentage(); score > s.BestScorePercentage {
			s.BestScorePercentage = score
		}
	}

	if avg, ok := session.AverageTimeTaken(); ok {
		if s.AverageTimePerGuess == 0 || s.TotalRoundsPlayed == 0 {
			s.AverageTimePerGuess = avg
		} else {
			total := float64(s.TotalRoundsPlayed)
			previous := float64(s.TotalRoundsPlayed - session.TotalRounds)
			s.AverageTimePerGuess = (s.AverageTimePerGuess*previous + avg*float64(session.TotalRounds)) / total
		}
	}

	s.LastPlayed = &at
}
