package dispatch

import (
	"fmt"
	"time"

	"github.com/lhchen/assistant-realtime/internal/hub"
	"github.com/lhchen/assistant-realtime/internal/message"
)

// handleCommand performs the second dispatch on the command name carried
// in the content. Built-ins are checked before the custom table.
func (d *Dispatcher) handleCommand(connID string, env *message.Envelope) error {
	content := env.ContentMap()
	if content == nil {
		d.hub.SendToConnection(connID, message.NewError(
			message.ErrCodeInvalidMessage,
			"command content must be an object with a command field",
			connID,
		))
		return nil
	}

	name, _ := content["command"].(string)
	if name == "" {
		d.hub.SendToConnection(connID, message.NewError(
			message.ErrCodeInvalidMessage,
			"command content must be an object with a command field",
			connID,
		))
		return nil
	}

	args, _ := content["args"].(map[string]any)
	if args == nil {
		args = make(map[string]any)
	}

	switch name {
	case "join_room":
		return d.cmdJoinRoom(connID, args)
	case "leave_room":
		return d.cmdLeaveRoom(connID, args)
	case "create_room":
		return d.cmdCreateRoom(connID, args)
	case "list_rooms":
		return d.cmdListRooms(connID)
	case "get_connection_info":
		return d.cmdConnectionInfo(connID)
	}

	d.mu.RLock()
	fn, ok := d.commands[name]
	d.mu.RUnlock()
	if !ok {
		d.hub.SendToConnection(connID, message.NewError(
			message.ErrCodeUnknownCommand,
			fmt.Sprintf("unknown command: %s", name),
			connID,
		))
		return nil
	}

	return fn(connID, env, args)
}

// reply sends a COMMAND response envelope back to the caller.
func (d *Dispatcher) reply(connID string, content map[string]any) {
	env := message.New(message.TypeCommand, content)
	env.SenderID = message.SystemSender
	d.hub.SendToConnection(connID, env)
}

// missingArg sends the ERROR envelope for an absent required argument.
func (d *Dispatcher) missingArg(connID, field string) {
	d.hub.SendToConnection(connID, message.NewError(
		message.ErrCodeMissingParameter,
		fmt.Sprintf("missing required argument: %s", field),
		connID,
	))
}

func (d *Dispatcher) cmdJoinRoom(connID string, args map[string]any) error {
	roomID, _ := args["room_id"].(string)
	if roomID == "" {
		d.missingArg(connID, "room_id")
		return nil
	}

	err := d.hub.JoinRoom(connID, roomID)
	success := err == nil

	detail := fmt.Sprintf("joined room %s", roomID)
	if err != nil {
		detail = fmt.Sprintf("failed to join room %s: %v", roomID, err)
	}

	d.reply(connID, map[string]any{
		"command": "join_room_response",
		"success": success,
		"room_id": roomID,
		"message": detail,
	})
	return nil
}

func (d *Dispatcher) cmdLeaveRoom(connID string, args map[string]any) error {
	roomID, _ := args["room_id"].(string)
	if roomID == "" {
		d.missingArg(connID, "room_id")
		return nil
	}

	d.hub.LeaveRoom(connID, roomID)

	d.reply(connID, map[string]any{
		"command": "leave_room_response",
		"success": true,
		"room_id": roomID,
		"message": fmt.Sprintf("left room %s", roomID),
	})
	return nil
}

func (d *Dispatcher) cmdCreateRoom(connID string, args map[string]any) error {
	roomID, _ := args["room_id"].(string)
	name, _ := args["room_name"].(string)
	if roomID == "" {
		if name == "" {
			d.missingArg(connID, "room_id")
			return nil
		}
		// Name-only requests get a derived id.
		roomID = message.NewRoomID(name)
	}
	if name == "" {
		name = roomID
	}
	description, _ := args["description"].(string)
	isPrivate, _ := args["is_private"].(bool)

	var createdBy string
	if rec, ok := d.hub.Get(connID); ok && rec.Identity != nil {
		createdBy = rec.Identity.UserID
	}

	room := hub.Room{
		RoomID:      roomID,
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		MaxMembers:  intArg(args, "max_members"),
		IsPrivate:   isPrivate,
		CreatedAt:   time.Now().UTC(),
	}

	success := d.hub.CreateRoom(room)

	content := map[string]any{
		"command": "create_room_response",
		"success": success,
	}
	if success {
		content["room_info"] = roomInfo(room, 0)
		content["message"] = fmt.Sprintf("created room %s", roomID)
	} else {
		content["room_info"] = nil
		content["message"] = fmt.Sprintf("room %s already exists", roomID)
	}

	d.reply(connID, content)
	return nil
}

func (d *Dispatcher) cmdListRooms(connID string) error {
	rooms := d.hub.Rooms()

	infos := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, roomInfo(room, len(d.hub.RoomMembers(room.RoomID))))
	}

	d.reply(connID, map[string]any{
		"command":     "list_rooms_response",
		"rooms":       infos,
		"total_count": len(infos),
	})
	return nil
}

func (d *Dispatcher) cmdConnectionInfo(connID string) error {
	content := map[string]any{
		"command": "get_connection_info_response",
	}

	if rec, ok := d.hub.Get(connID); ok {
		info := map[string]any{
			"connection_id": rec.ConnectionID,
			"status":        string(rec.Status),
			"connected_at":  rec.ConnectedAt.Format(time.RFC3339),
			"rooms":         rec.Rooms,
		}
		if rec.Identity != nil {
			info["user_info"] = map[string]any{
				"user_id":  rec.Identity.UserID,
				"username": rec.Identity.Username,
				"email":    rec.Identity.Email,
				"roles":    rec.Identity.Roles,
			}
		} else {
			info["user_info"] = nil
		}
		content["connection_info"] = info
	} else {
		content["connection_info"] = nil
	}

	d.reply(connID, content)
	return nil
}

func roomInfo(room hub.Room, memberCount int) map[string]any {
	var maxMembers any
	if room.MaxMembers > 0 {
		maxMembers = room.MaxMembers
	}
	return map[string]any{
		"room_id":      room.RoomID,
		"name":         room.Name,
		"description":  room.Description,
		"member_count": memberCount,
		"max_members":  maxMembers,
		"is_private":   room.IsPrivate,
		"created_at":   room.CreatedAt.Format(time.RFC3339),
	}
}

// intArg reads a numeric argument that arrives as a JSON number.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
