package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"namethat/internal/catalog"
	"namethat/internal/game"
)

// wsConn sends game messages as JSON frames.
type wsConn struct {
	conn *websocket.Conn
}

func (w wsConn) Send(ctx context.Context, msg game.Message) error {
	return wsjson.Write(ctx, w.conn, msg)
}

// HandleWebSocket attaches a connection to one of the caller's games. Play
// commands arrive as messages; their results are broadcast to every
// connection watching the game, errors only to the sender.
func (s *Server) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	player := currentPlayer(c)
	cat := currentCatalog(c)
	gameID := c.Param("id")

	if _, err := s.games.Get(ctx, player, gameID); err != nil {
		s.respondError(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.originHosts(),
	})
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "game_id", gameID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	viewerID := uuid.NewString()
	out := wsConn{conn: conn}
	if err := s.rooms.Join(gameID, viewerID, out); err != nil {
		if errors.Is(err, game.ErrRoomFull) {
			conn.Close(websocket.StatusPolicyViolation, err.Error())
			return
		}
		conn.Close(websocket.StatusInternalError, "")
		return
	}
	defer s.rooms.Leave(gameID, viewerID)

	if s.metrics != nil {
		s.metrics.IncConnections()
		defer s.metrics.DecConnections()
	}
	s.log.Debugw("websocket connected", "game_id", gameID, "viewer_id", viewerID)

	for {
		var msg game.InboundMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.log.Debugw("websocket read ended", "game_id", gameID, "viewer_id", viewerID, "error", err)
			}
			return
		}

		if err := s.handleMessage(ctx, cat, player, gameID, msg); err != nil {
			_, text := statusFor(err)
			reply := game.Message{Type: game.MsgTypeError, Payload: game.ErrorPayload{Message: text}}
			if err := out.Send(ctx, reply); err != nil {
				s.log.Debugw("websocket write failed", "game_id", gameID, "viewer_id", viewerID, "error", err)
				return
			}
		}
	}
}

// handleMessage runs one client command against the game service, which
// publishes the outcome to the room.
func (s *Server) handleMessage(ctx context.Context, cat catalog.Catalog, player game.Player, gameID string, msg game.InboundMessage) error {
	switch msg.Type {
	case game.MsgTypeNextRound:
		_, err := s.games.NextRound(ctx, cat, player, gameID)
		return err

	case game.MsgTypeSubmitGuess:
		var payload game.SubmitGuessPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return badRequest("Invalid submit_guess payload")
		}
		_, err := s.games.SubmitGuess(ctx, player, gameID, payload.RoundNumber, payload.Guess, payload.TimeTaken)
		return err

	case game.MsgTypeFinish:
		_, err := s.games.Finish(ctx, player, gameID)
		return err

	default:
		return badRequest("Unknown message type: " + string(msg.Type))
	}
}

// originHosts turns the allowed origins into the host patterns the
// websocket handshake checks.
func (s *Server) originHosts() []string {
	var hosts []string
	for _, o := range s.cfg.Origins() {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
