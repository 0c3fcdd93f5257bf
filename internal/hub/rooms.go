package hub

import "time"

// CreateRoom registers a room. It returns false, with no mutation, when
// the room id is already taken.
func (h *Hub) CreateRoom(room Room) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[room.RoomID]; exists {
		return false
	}

	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	h.rooms[room.RoomID] = &room
	h.roomConns[room.RoomID] = make(map[string]struct{})

	h.logger.Info("room created", "room_id", room.RoomID, "name", room.Name)
	return true
}

// JoinRoom adds a connection to a room. The room's member set and the
// connection's own room list are updated under one lock acquisition so no
// reader ever sees one side of the membership without the other.
func (h *Hub) JoinRoom(connID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.records[connID]
	if !ok {
		return ErrConnectionNotFound
	}
	room, ok := h.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}

	members := h.roomConns[roomID]
	if _, already := members[connID]; already {
		return nil
	}
	if room.MaxMembers > 0 && len(members) >= room.MaxMembers {
		return ErrRoomFull
	}

	members[connID] = struct{}{}
	rec.Rooms = append(rec.Rooms, roomID)

	h.logger.Info("joined room", "conn_id", connID, "room_id", roomID, "members", len(members))
	return nil
}

// LeaveRoom removes a connection from a room. Leaving a room never joined,
// or leaving twice, is a successful no-op.
func (h *Hub) LeaveRoom(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.roomConns[roomID]; ok {
		delete(members, connID)
	}

	if rec, ok := h.records[connID]; ok {
		for i, id := range rec.Rooms {
			if id == roomID {
				rec.Rooms = append(rec.Rooms[:i], rec.Rooms[i+1:]...)
				break
			}
		}
	}
}

// RoomMembers returns a snapshot of the connection ids in a room, safe to
// iterate while the membership changes.
func (h *Hub) RoomMembers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.roomConns[roomID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Room returns a copy of the room record.
func (h *Hub) Room(roomID string) (Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return *room, true
}

// Rooms returns a snapshot of all rooms.
func (h *Hub) Rooms() []Room {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		out = append(out, *room)
	}
	return out
}
