package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"namethat/internal/models"
)

type createGameRequest struct {
	PlaylistID string `json:"playlist_id"`
}

type guessRequest struct {
	Guess     string   `json:"guess"`
	TimeTaken *float64 `json:"time_taken"`
}

// gameView is a game as returned to its player. The pending round keeps
// its answer hidden.
type gameView struct {
	*models.GameSession
	ScorePercentage float64 `json:"score_percentage"`
	MaxRounds       int     `json:"max_rounds"`
}

func newGameView(session *models.GameSession, maxRounds int) gameView {
	if pending := session.PendingRound(); pending != nil {
		rounds := make([]models.GameRound, len(session.Rounds))
		copy(rounds, session.Rounds)
		for i := range rounds {
			if rounds[i].ID == pending.ID {
				rounds[i].TrackID = ""
				rounds[i].TrackName = ""
				rounds[i].ArtistName = ""
			}
		}
		masked := *session
		masked.Rounds = rounds
		session = &masked
	}
	return gameView{
		GameSession:     session,
		ScorePercentage: session.ScorePercentage(),
		MaxRounds:       maxRounds,
	}
}

func (s *Server) CreateGameHandler(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("Invalid request body"))
		return
	}

	session, err := s.games.Start(c.Request.Context(), currentCatalog(c), currentPlayer(c), req.PlaylistID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newGameView(session, s.games.MaxRounds()))
}

func (s *Server) GetGameHandler(c *gin.Context) {
	session, err := s.games.Get(c.Request.Context(), currentPlayer(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newGameView(session, s.games.MaxRounds()))
}

func (s *Server) NextRoundHandler(c *gin.Context) {
	round, err := s.games.NextRound(c.Request.Context(), currentCatalog(c), currentPlayer(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, round)
}

func (s *Server) SubmitGuessHandler(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		s.respondError(c, badRequest("Invalid round number"))
		return
	}

	var req guessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("Invalid request body"))
		return
	}

	result, err := s.games.SubmitGuess(c.Request.Context(), currentPlayer(c), c.Param("id"), number, req.Guess, req.TimeTaken)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) FinishGameHandler(c *gin.Context) {
	summary, err := s.games.Finish(c.Request.Context(), currentPlayer(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// StatsHandler returns the caller's lifetime totals. Guests never
// accumulate any.
func (s *Server) StatsHandler(c *gin.Context) {
	player := currentPlayer(c)
	if player.Guest {
		c.JSON(http.StatusOK, models.UserStats{UserID: player.ID})
		return
	}

	stats, err := s.games.Stats(c.Request.Context(), player.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
