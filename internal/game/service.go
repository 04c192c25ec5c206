package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"namethat/internal/catalog"
	"namethat/internal/models"
	"namethat/internal/store"
)

var (
	ErrGameNotFound  = errors.New("game not found")
	ErrRoundNotFound = errors.New("round not found")
	ErrRoundPending  = errors.New("previous round has not been answered")
	ErrMaxRounds     = errors.New("game has reached its maximum number of rounds")
	ErrInvalidGuess  = errors.New("time_taken must not be negative")
	ErrInvalidInput  = errors.New("invalid input")
)

// Events receives game lifecycle notifications for metrics.
type Events interface {
	GameStarted()
	GameFinished()
	GuessSubmitted(correct bool)
}

// Broadcaster pushes game events to attached WebSocket clients.
type Broadcaster interface {
	Publish(gameID string, msg Message)
}

type Options struct {
	// MaxRounds caps rounds per game; 0 means unlimited.
	MaxRounds int
}

// Service runs single-player guessing games over a playlist. Calls on the
// same game are serialised.
type Service struct {
	repo        store.Repository
	selector    *Selector
	events      Events
	broadcaster Broadcaster
	maxRounds   int
	log         *zap.SugaredLogger
	now         func() time.Time

	locksMu sync.Mutex
	locks   map[string]*gameLock
}

// gameLock is dropped from the map once nobody holds or waits on it.
type gameLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(repo store.Repository, selector *Selector, opts Options, log *zap.SugaredLogger) *Service {
	return &Service{
		repo:      repo,
		selector:  selector,
		maxRounds: opts.MaxRounds,
		log:       log,
		now:       time.Now,
		locks:     make(map[string]*gameLock),
	}
}

func (s *Service) WithEvents(events Events) *Service {
	s.events = events
	return s
}

func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.broadcaster = b
	return s
}

func (s *Service) MaxRounds() int {
	return s.maxRounds
}

func (s *Service) lock(gameID string) func() {
	s.locksMu.Lock()
	l, exists := s.locks[gameID]
	if !exists {
		l = &gameLock{}
		s.locks[gameID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, gameID)
		}
		s.locksMu.Unlock()
	}
}

// Start opens a new game on playlistID.
func (s *Service) Start(ctx context.Context, cat catalog.Catalog, player Player, playlistID string) (*models.GameSession, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist_id is required", ErrInvalidInput)
	}

	playlist, err := cat.Playlist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("get playlist: %w", err)
	}

	session := &models.GameSession{
		ID:           uuid.NewString(),
		UserID:       player.ID,
		PlaylistID:   playlist.ID,
		PlaylistName: playlist.Name,
		IsActive:     true,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	if s.events != nil {
		s.events.GameStarted()
	}
	s.log.Infow("game started", "game_id", session.ID, "playlist_id", playlist.ID, "user_id", player.ID)
	return session, nil
}

// Get returns the game with its rounds. Games of other players are
// reported as not found.
func (s *Service) Get(ctx context.Context, player Player, gameID string) (*models.GameSession, error) {
	return s.load(ctx, player, gameID)
}

func (s *Service) load(ctx context.Context, player Player, gameID string) (*models.GameSession, error) {
	session, err := s.repo.GetSession(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if session.UserID != player.ID {
		return nil, ErrGameNotFound
	}
	return session, nil
}

// NextRound picks an unplayed track with a preview and opens a round on it.
// The previous round must have been answered.
func (s *Service) NextRound(ctx context.Context, cat catalog.Catalog, player Player, gameID string) (*RoundView, error) {
	defer s.lock(gameID)()

	session, err := s.load(ctx, player, gameID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, models.ErrSessionClosed
	}
	if session.PendingRound() != nil {
		return nil, ErrRoundPending
	}
	if s.maxRounds > 0 && len(session.Rounds) >= s.maxRounds {
		return nil, ErrMaxRounds
	}

	tracks, err := cat.PlaylistTracks(ctx, session.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("get playlist tracks: %w", err)
	}
	track, err := s.selector.Pick(ctx, tracks, session.UsedTrackIDs())
	if err != nil {
		return nil, err
	}

	round := &models.GameRound{
		ID:            uuid.NewString(),
		GameSessionID: session.ID,
		RoundNumber:   len(session.Rounds) + 1,
		TrackID:       track.ID,
		TrackName:     track.Name,
		ArtistName:    track.ArtistNames(),
		PreviewURL:    track.PreviewURL,
	}
	session.TotalRounds++

	err = s.repo.Transaction(ctx, func(tx store.Repository) error {
		if err := tx.CreateRound(ctx, round); err != nil {
			return err
		}
		return tx.UpdateSession(ctx, session)
	})
	if err != nil {
		return nil, fmt.Errorf("save round: %w", err)
	}

	view := &RoundView{
		GameID:      session.ID,
		RoundNumber: round.RoundNumber,
		PreviewURL:  round.PreviewURL,
		TotalRounds: session.TotalRounds,
		MaxRounds:   s.maxRounds,
	}
	s.publish(session.ID, MsgTypeRoundStarted, view)
	return view, nil
}

// SubmitGuess answers round number of the game. Each round takes one guess;
// an empty guess counts as a skip.
func (s *Service) SubmitGuess(ctx context.Context, player Player, gameID string, number int, guess string, timeTaken *float64) (*GuessResult, error) {
	if timeTaken != nil && *timeTaken < 0 {
		return nil, ErrInvalidGuess
	}

	defer s.lock(gameID)()

	session, err := s.load(ctx, player, gameID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, models.ErrSessionClosed
	}

	var round *models.GameRound
	for i := range session.Rounds {
		if session.Rounds[i].RoundNumber == number {
			round = &session.Rounds[i]
			break
		}
	}
	if round == nil {
		return nil, ErrRoundNotFound
	}

	correct := MatchGuess(guess, round.TrackName)
	if err := round.Answer(guess, correct, timeTaken, s.now()); err != nil {
		return nil, err
	}
	if correct {
		session.CorrectGuesses++
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx store.Repository) error {
		if err := tx.UpdateRound(ctx, round); err != nil {
			return err
		}
		return tx.UpdateSession(ctx, session)
	})
	if err != nil {
		return nil, fmt.Errorf("save guess: %w", err)
	}

	if s.events != nil {
		s.events.GuessSubmitted(correct)
	}

	result := &GuessResult{
		GameID:          session.ID,
		RoundNumber:     round.RoundNumber,
		Guess:           guess,
		Correct:         correct,
		TimeTaken:       timeTaken,
		TrackID:         round.TrackID,
		TrackName:       round.TrackName,
		ArtistName:      round.ArtistName,
		CorrectGuesses:  session.CorrectGuesses,
		TotalRounds:     session.TotalRounds,
		ScorePercentage: session.ScorePercentage(),
	}
	s.publish(session.ID, MsgTypeGuessResult, result)
	return result, nil
}

// Finish closes the game and folds it into the player's statistics.
func (s *Service) Finish(ctx context.Context, player Player, gameID string) (*Summary, error) {
	defer s.lock(gameID)()

	session, err := s.load(ctx, player, gameID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := session.Finish(now); err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx store.Repository) error {
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}
		if player.Guest || player.ID == "" {
			return nil
		}

		stats, err := tx.GetUserStats(ctx, player.ID)
		if errors.Is(err, store.ErrNotFound) {
			stats = &models.UserStats{UserID: player.ID}
		} else if err != nil {
			return err
		}
		stats.Update(session, now)
		return tx.SaveUserStats(ctx, stats)
	})
	if err != nil {
		return nil, fmt.Errorf("finish game: %w", err)
	}

	if s.events != nil {
		s.events.GameFinished()
	}

	summary := &Summary{
		GameID:          session.ID,
		PlaylistName:    session.PlaylistName,
		TotalRounds:     session.TotalRounds,
		CorrectGuesses:  session.CorrectGuesses,
		ScorePercentage: session.ScorePercentage(),
		FinishedAt:      session.FinishedAt,
	}
	s.log.Infow("game finished", "game_id", session.ID, "rounds", session.TotalRounds, "correct", session.CorrectGuesses)
	s.publish(session.ID, MsgTypeGameOver, summary)
	return summary, nil
}

// Stats returns the player's statistics; players without a finished game
// get zeroes.
func (s *Service) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	stats, err := s.repo.GetUserStats(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return stats, nil
}

// CloseStale finishes games nobody touched for olderThan. They are not
// counted in user statistics.
func (s *Service) CloseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.FinishStaleSessions(ctx, s.now().Add(-olderThan))
}

func (s *Service) publish(gameID string, typ MessageType, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Publish(gameID, Message{Type: typ, Payload: payload})
	}
}
