package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MaxViewersPerGame bounds the sockets attached to one game, e.g. the
// player's phone plus a shared screen.
const MaxViewersPerGame = 6

const sendTimeout = 5 * time.Second

var ErrRoomFull = errors.New("game has the maximum number of connections")

// Conn is one attached client.
type Conn interface {
	Send(ctx context.Context, msg Message) error
}

type Viewer struct {
	ID       string
	Conn     Conn
	JoinedAt time.Time
}

// GameRoom fans game events out to every connection watching one game.
// Messages queued on Broadcast are delivered in order by Run.
type GameRoom struct {
	ID      string
	Viewers map[string]*Viewer

	Broadcast chan Message
	done      chan struct{}

	log *zap.SugaredLogger
	mu  sync.RWMutex
}

func NewGameRoom(id string, log *zap.SugaredLogger) *GameRoom {
	return &GameRoom{
		ID:        id,
		Viewers:   make(map[string]*Viewer),
		Broadcast: make(chan Message, 16),
		done:      make(chan struct{}),
		log:       log,
	}
}

func (r *GameRoom) Run() {
	defer r.log.Debugw("room stopped", "game_id", r.ID)

	for {
		select {
		case msg := <-r.Broadcast:
			r.broadcastToAll(msg)
		case <-r.done:
			return
		}
	}
}

func (r *GameRoom) stop() {
	close(r.done)
}

func (r *GameRoom) add(v *Viewer) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Viewers) >= MaxViewersPerGame {
		r.log.Infow("room is full", "game_id", r.ID, "viewers", len(r.Viewers))
		return len(r.Viewers), ErrRoomFull
	}
	r.Viewers[v.ID] = v
	return len(r.Viewers), nil
}

func (r *GameRoom) remove(viewerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Viewers, viewerID)
	return len(r.Viewers)
}

func (r *GameRoom) viewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.Viewers)
}

func (r *GameRoom) broadcastToAll(msg Message) {
	r.mu.RLock()
	viewers := make([]*Viewer, 0, len(r.Viewers))
	for _, v := range r.Viewers {
		viewers = append(viewers, v)
	}
	r.mu.RUnlock()

	for _, v := range viewers {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := v.Conn.Send(ctx, msg); err != nil {
			r.log.Warnw("broadcast failed", "game_id", r.ID, "viewer_id", v.ID, "error", err)
		}
		cancel()
	}
}
