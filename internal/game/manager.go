package game

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RoomManager owns one GameRoom per game that has connections attached.
// Rooms are created on the first join and stopped when the last viewer
// leaves.
type RoomManager struct {
	rooms map[string]*GameRoom
	log   *zap.SugaredLogger
	mu    sync.RWMutex
}

func NewRoomManager(log *zap.SugaredLogger) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*GameRoom),
		log:   log,
	}
}

// Join attaches conn to the game's room.
func (rm *RoomManager) Join(gameID, viewerID string, conn Conn) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, exists := rm.rooms[gameID]
	if !exists {
		room = NewGameRoom(gameID, rm.log)
		rm.rooms[gameID] = room
		go room.Run()
	}

	count, err := room.add(&Viewer{ID: viewerID, Conn: conn, JoinedAt: time.Now()})
	if err != nil {
		if count == 0 {
			room.stop()
			delete(rm.rooms, gameID)
		}
		return err
	}

	rm.log.Debugw("viewer joined", "game_id", gameID, "viewer_id", viewerID, "viewers", count)
	rm.enqueue(room, Message{
		Type:    MsgTypeViewerJoined,
		Payload: ViewersPayload{ViewerID: viewerID, ViewerCount: count},
	})
	return nil
}

func (rm *RoomManager) Leave(gameID, viewerID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, exists := rm.rooms[gameID]
	if !exists {
		return
	}

	remaining := room.remove(viewerID)
	if remaining == 0 {
		room.stop()
		delete(rm.rooms, gameID)
		rm.log.Debugw("room closed", "game_id", gameID)
		return
	}

	rm.enqueue(room, Message{
		Type:    MsgTypeViewerLeft,
		Payload: ViewersPayload{ViewerID: viewerID, ViewerCount: remaining},
	})
}

// Publish queues msg for everyone watching gameID. Games nobody watches
// drop the message.
func (rm *RoomManager) Publish(gameID string, msg Message) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if room, exists := rm.rooms[gameID]; exists {
		rm.enqueue(room, msg)
	}
}

func (rm *RoomManager) enqueue(room *GameRoom, msg Message) {
	select {
	case room.Broadcast <- msg:
	default:
		rm.log.Warnw("room queue full, dropping message", "game_id", room.ID, "type", msg.Type)
	}
}

// Shutdown stops every room.
func (rm *RoomManager) Shutdown() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for id, room := range rm.rooms {
		room.stop()
		delete(rm.rooms, id)
	}
}

func (rm *RoomManager) GetMetrics() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	viewers := 0
	for _, room := range rm.rooms {
		viewers += room.viewerCount()
	}

	return map[string]interface{}{
		"watched_games": len(rm.rooms),
		"connections":   viewers,
	}
}
