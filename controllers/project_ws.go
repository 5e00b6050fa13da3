package controller

import (
	"sync"

	"github.com/gofiber/websocket/v2"

	"taskory/utils"
)

// projectHub tracks websocket connections per project room. Room membership
// is the only state a connection carries.
type projectHub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*websocket.Conn]struct{}
}

var hub = &projectHub{
	rooms: make(map[uint]map[*websocket.Conn]struct{}),
}

func (h *projectHub) join(projectID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[projectID] == nil {
		h.rooms[projectID] = make(map[*websocket.Conn]struct{})
	}
	h.rooms[projectID][conn] = struct{}{}
}

func (h *projectHub) leave(projectID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[projectID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, projectID)
		}
	}
}

func (h *projectHub) broadcast(projectID uint, message interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.rooms[projectID] {
		if err := conn.WriteJSON(message); err != nil {
			utils.LogError("ws_broadcast", err, map[string]interface{}{
				"project_id": projectID,
			})
		}
	}
}

// BroadcastProjectEvent pushes a live-update event to every connection in a
// project room. Called by controllers after mutations.
func BroadcastProjectEvent(projectID uint, event string, entityID uint) {
	hub.broadcast(projectID, struct {
		Event     string `json:"event"`
		ProjectID uint   `json:"project_id"`
		EntityID  uint   `json:"entity_id"`
	}{
		Event:     event,
		ProjectID: projectID,
		EntityID:  entityID,
	})
}

// HandleProjectWS keeps a connection subscribed to project rooms. Clients
// send {"action": "join"|"leave", "project_id": N} messages.
func HandleProjectWS(c *websocket.Conn) {
	joined := make(map[uint]struct{})
	defer func() {
		for projectID := range joined {
			hub.leave(projectID, c)
		}
		c.Close()
	}()

	for {
		var input struct {
			Action    string `json:"action"`
			ProjectID uint   `json:"project_id"`
		}
		if err := c.ReadJSON(&input); err != nil {
			return
		}

		switch input.Action {
		case "join":
			hub.join(input.ProjectID, c)
			joined[input.ProjectID] = struct{}{}
			_ = c.WriteJSON(map[string]interface{}{"event": "joined", "project_id": input.ProjectID})
		case "leave":
			hub.leave(input.ProjectID, c)
			delete(joined, input.ProjectID)
			_ = c.WriteJSON(map[string]interface{}{"event": "left", "project_id": input.ProjectID})
		default:
			_ = c.WriteJSON(map[string]interface{}{"error": "unknown action"})
		}
	}
}
