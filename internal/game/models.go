package game

import (
	"encoding/json"
	"time"
)

// Player is who is calling the game service. Guests play demo playlists and
// keep no statistics.
type Player struct {
	ID    string
	Guest bool
}

// RoundView is a round as shown while it is being played: the answer stays
// hidden until a guess is in.
type RoundView struct {
	GameID      string `json:"game_id"`
	RoundNumber int    `json:"round_number"`
	PreviewURL  string `json:"preview_url"`
	TotalRounds int    `json:"total_rounds"`
	MaxRounds   int    `json:"max_rounds,omitempty"`
}

// GuessResult reveals the round's track after a guess.
type GuessResult struct {
	GameID          string   `json:"game_id"`
	RoundNumber     int      `json:"round_number"`
	Guess           string   `json:"guess"`
	Correct         bool     `json:"correct"`
	TimeTaken       *float64 `json:"time_taken"`
	TrackID         string   `json:"track_id"`
	TrackName       string   `json:"track_name"`
	ArtistName      string   `json:"artist_name"`
	CorrectGuesses  int      `json:"correct_guesses"`
	TotalRounds     int      `json:"total_rounds"`
	ScorePercentage float64  `json:"score_percentage"`
}

// Summary is the final score of a finished game.
type Summary struct {
	GameID          string     `json:"game_id"`
	PlaylistName    string     `json:"playlist_name"`
	TotalRounds     int        `json:"total_rounds"`
	CorrectGuesses  int        `json:"correct_guesses"`
	ScorePercentage float64    `json:"score_percentage"`
	FinishedAt      *time.Time `json:"finished_at"`
}

// MessageType defines WebSocket message types
type MessageType string

const (
	// Client to Server
	MsgTypeNextRound   MessageType = "next_round"
	MsgTypeSubmitGuess MessageType = "submit_guess"
	MsgTypeFinish      MessageType = "finish"

	// Server to Client
	MsgTypeViewerJoined MessageType = "viewer_joined"
	MsgTypeViewerLeft   MessageType = "viewer_left"
	MsgTypeRoundStarted MessageType = "round_started"
	MsgTypeGuessResult  MessageType = "guess_result"
	MsgTypeGameOver     MessageType = "game_over"
	MsgTypeError        MessageType = "error"
)

// Message is an outgoing WebSocket message
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// InboundMessage is a client message; the payload is decoded once the type
// is known.
type InboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubmitGuessPayload for submitting a guess
type SubmitGuessPayload struct {
	RoundNumber int      `json:"round_number"`
	Guess       string   `json:"guess"`
	TimeTaken   *float64 `json:"time_taken"`
}

// ViewersPayload announces who is attached to a game
type ViewersPayload struct {
	ViewerID    string `json:"viewer_id"`
	ViewerCount int    `json:"viewer_count"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
