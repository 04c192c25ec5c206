package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"namethat/internal/auth"
	"namethat/internal/catalog"
	"namethat/internal/game"
	"namethat/internal/models"
	"namethat/internal/preview"
)

// badRequest is a client mistake reported verbatim.
type badRequest string

func (e badRequest) Error() string { return string(e) }

// statusFor maps an error to the HTTP status and message the client sees.
func statusFor(err error) (int, string) {
	var br badRequest
	if errors.As(err, &br) {
		return http.StatusBadRequest, string(br)
	}

	switch {
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrNoRefreshToken):
		return http.StatusUnauthorized, auth.ErrNoToken.Error()

	case errors.Is(err, game.ErrInvalidInput),
		errors.Is(err, game.ErrInvalidGuess):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, game.ErrNoTracks),
		errors.Is(err, game.ErrNoPreview),
		errors.Is(err, game.ErrGameNotFound),
		errors.Is(err, game.ErrRoundNotFound),
		errors.Is(err, preview.ErrNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, game.ErrRoundPending),
		errors.Is(err, game.ErrMaxRounds),
		errors.Is(err, game.ErrRoomFull),
		errors.Is(err, models.ErrRoundAnswered),
		errors.Is(err, models.ErrSessionClosed):
		return http.StatusConflict, err.Error()
	}

	switch catalog.StatusCode(err) {
	case 0:
		return http.StatusInternalServerError, "internal server error"
	case http.StatusUnauthorized:
		return http.StatusUnauthorized, err.Error()
	case http.StatusNotFound:
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusBadRequest, "Failed to " + err.Error()
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request failed", append(logFields(c), "error", err)...)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
