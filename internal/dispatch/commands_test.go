package dispatch

import (
	"strings"
	"testing"

	"github.com/lhchen/assistant-realtime/internal/hub"
	"github.com/lhchen/assistant-realtime/internal/message"
)

func command(name string, args map[string]any) *message.Envelope {
	content := map[string]any{"command": name}
	if args != nil {
		content["args"] = args
	}
	return message.New(message.TypeCommand, content)
}

func TestCommand_InvalidContent(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, nil)

	d.Handle(connID, message.New(message.TypeCommand, "not an object"))

	reply := ft.last(t)
	if reply.Type != message.TypeError {
		t.Fatalf("reply type = %s, want error", reply.Type)
	}
	if reply.ContentMap()["error_code"] != message.ErrCodeInvalidMessage {
		t.Errorf("error_code = %v, want %s", reply.ContentMap()["error_code"], message.ErrCodeInvalidMessage)
	}
}

func TestCommand_Unknown(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, nil)

	d.Handle(connID, command("frobnicate", nil))

	reply := ft.last(t)
	if reply.Type != message.TypeError {
		t.Fatalf("reply type = %s, want error", reply.Type)
	}
	if reply.ContentMap()["error_code"] != message.ErrCodeUnknownCommand {
		t.Errorf("error_code = %v, want %s", reply.ContentMap()["error_code"], message.ErrCodeUnknownCommand)
	}
}

func TestCommand_JoinRoom(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	h.CreateRoom(hub.Room{RoomID: "general"})
	connID, ft := accept(t, h, nil)

	d.Handle(connID, command("join_room", map[string]any{"room_id": "general"}))

	reply := ft.last(t)
	if reply.Type != message.TypeCommand {
		t.Fatalf("reply type = %s, want command", reply.Type)
	}
	content := reply.ContentMap()
	if content["command"] != "join_room_response" {
		t.Errorf("command = %v, want join_room_response", content["command"])
	}
	if content["success"] != true {
		t.Errorf("success = %v, want true", content["success"])
	}

	members := h.RoomMembers("general")
	if len(members) != 1 || members[0] != connID {
		t.Errorf("members = %v, want [%s]", members, connID)
	}
}

func TestCommand_JoinRoom_MissingRoomID(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, nil)

	d.Handle(connID, command("join_room", nil))

	reply := ft.last(t)
	if reply.Type != message.TypeError {
		t.Fatalf("reply type = %s, want error", reply.Type)
	}
	if reply.ContentMap()["error_code"] != message.ErrCodeMissingParameter {
		t.Errorf("error_code = %v, want %s", reply.ContentMap()["error_code"], message.ErrCodeMissingParameter)
	}
}

func TestCommand_JoinRoom_Failure(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, nil)

	// Room does not exist: the command succeeds as a reply but reports
	// failure, and no membership is created.
	d.Handle(connID, command("join_room", map[string]any{"room_id": "nope"}))

	reply := ft.last(t)
	if reply.Type != message.TypeCommand {
		t.Fatalf("reply type = %s, want command", reply.Type)
	}
	content := reply.ContentMap()
	if content["command"] != "join_room_response" {
		t.Errorf("command = %v, want join_room_response", content["command"])
	}
	if content["success"] != false {
		t.Errorf("success = %v, want false", content["success"])
	}

	rec, _ := h.Get(connID)
	if len(rec.Rooms) != 0 {
		t.Errorf("rooms = %v, want empty", rec.Rooms)
	}
}

func TestCommand_JoinRoom_Full(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	h.CreateRoom(hub.Room{RoomID: "small", MaxMembers: 1})

	first, _ := accept(t, h, nil)
	h.JoinRoom(first, "small")

	connID, ft := accept(t, h, nil)
	d.Handle(connID, command("join_room", map[string]any{"room_id": "small"}))

	content := ft.last(t).ContentMap()
	if content["success"] != false {
		t.Errorf("success = %v, want false for full room", content["success"])
	}
}

func TestCommand_LeaveRoom(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	h.CreateRoom(hub.Room{RoomID: "general"})
	connID, ft := accept(t, h, nil)
	h.JoinRoom(connID, "general")

	d.Handle(connID, command("leave_room", map[string]any{"room_id": "general"}))

	content := ft.last(t).ContentMap()
	if content["command"] != "leave_room_response" {
		t.Errorf("command = %v, want leave_room_response", content["command"])
	}
	if content["success"] != true {
		t.Errorf("success = %v, want true", content["success"])
	}
	if len(h.RoomMembers("general")) != 0 {
		t.Error("still a member after leave_room")
	}
}

func TestCommand_CreateRoom(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, &hub.Identity{UserID: "user-1"})

	d.Handle(connID, command("create_room", map[string]any{
		"room_id":     "planning",
		"room_name":   "Planning",
		"description": "sprint planning",
		"max_members": float64(10),
		"is_private":  true,
	}))

	content := ft.last(t).ContentMap()
	if content["command"] != "create_room_response" {
		t.Errorf("command = %v, want create_room_response", content["command"])
	}
	if content["success"] != true {
		t.Errorf("success = %v, want true", content["success"])
	}

	room, ok := h.Room("planning")
	if !ok {
		t.Fatal("room not created")
	}
	if room.Name != "Planning" {
		t.Errorf("Name = %s, want Planning", room.Name)
	}
	if room.MaxMembers != 10 {
		t.Errorf("MaxMembers = %d, want 10", room.MaxMembers)
	}
	if !room.IsPrivate {
		t.Error("IsPrivate = false, want true")
	}
	if room.CreatedBy != "user-1" {
		t.Errorf("CreatedBy = %s, want user-1", room.CreatedBy)
	}
}

func TestCommand_CreateRoom_DerivedID(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, nil)

	d.Handle(connID, command("create_room", map[string]any{"room_name": "Sprint Planning"}))

	content := ft.last(t).ContentMap()
	if content["success"] != true {
		t.Fatalf("success = %v, want true", content["success"])
	}
	info, _ := content["room_info"].(map[string]any)
	roomID, _ := info["room_id"].(string)
	if !strings.HasPrefix(roomID, "room_sprint_planning_") {
		t.Errorf("room_id = %q, want derived from room_name", roomID)
	}

	room, ok := h.Room(roomID)
	if !ok {
		t.Fatal("room not created under derived id")
	}
	if room.Name != "Sprint Planning" {
		t.Errorf("Name = %s, want Sprint Planning", room.Name)
	}
}

func TestCommand_CreateRoom_MissingIDAndName(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, nil)

	d.Handle(connID, command("create_room", nil))

	reply := ft.last(t)
	if reply.Type != message.TypeError {
		t.Fatalf("reply type = %s, want error", reply.Type)
	}
	if reply.ContentMap()["error_code"] != message.ErrCodeMissingParameter {
		t.Errorf("error_code = %v, want %s", reply.ContentMap()["error_code"], message.ErrCodeMissingParameter)
	}
}

func TestCommand_CreateRoom_Duplicate(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	h.CreateRoom(hub.Room{RoomID: "taken"})
	connID, ft := accept(t, h, nil)

	d.Handle(connID, command("create_room", map[string]any{"room_id": "taken"}))

	content := ft.last(t).ContentMap()
	if content["success"] != false {
		t.Errorf("success = %v, want false for duplicate room", content["success"])
	}
}

func TestCommand_ListRooms(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	h.CreateRoom(hub.Room{RoomID: "a", Name: "Room A"})
	h.CreateRoom(hub.Room{RoomID: "b", Name: "Room B", MaxMembers: 3})
	connID, ft := accept(t, h, nil)
	h.JoinRoom(connID, "a")

	d.Handle(connID, command("list_rooms", nil))

	content := ft.last(t).ContentMap()
	if content["command"] != "list_rooms_response" {
		t.Errorf("command = %v, want list_rooms_response", content["command"])
	}
	if content["total_count"] != float64(2) {
		t.Errorf("total_count = %v, want 2", content["total_count"])
	}

	rooms, ok := content["rooms"].([]any)
	if !ok || len(rooms) != 2 {
		t.Fatalf("rooms = %v, want 2 entries", content["rooms"])
	}
	for _, raw := range rooms {
		info := raw.(map[string]any)
		if info["room_id"] == "a" && info["member_count"] != float64(1) {
			t.Errorf("room a member_count = %v, want 1", info["member_count"])
		}
	}
}

func TestCommand_GetConnectionInfo(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	h.CreateRoom(hub.Room{RoomID: "general"})
	connID, ft := accept(t, h, &hub.Identity{UserID: "user-1", Username: "ann"})
	h.JoinRoom(connID, "general")

	d.Handle(connID, command("get_connection_info", nil))

	content := ft.last(t).ContentMap()
	if content["command"] != "get_connection_info_response" {
		t.Errorf("command = %v, want get_connection_info_response", content["command"])
	}

	info, ok := content["connection_info"].(map[string]any)
	if !ok {
		t.Fatalf("connection_info = %v, want object", content["connection_info"])
	}
	if info["connection_id"] != connID {
		t.Errorf("connection_id = %v, want %s", info["connection_id"], connID)
	}
	if info["status"] != "connected" {
		t.Errorf("status = %v, want connected", info["status"])
	}

	userInfo, ok := info["user_info"].(map[string]any)
	if !ok {
		t.Fatalf("user_info = %v, want object", info["user_info"])
	}
	if userInfo["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", userInfo["user_id"])
	}
}

func TestCommand_CustomHandler(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, nil)

	var gotArgs map[string]any
	d.RegisterCommand("echo", func(connID string, env *message.Envelope, args map[string]any) error {
		gotArgs = args
		reply := message.New(message.TypeCommand, map[string]any{
			"command": "echo_response",
			"args":    args,
		})
		reply.SenderID = message.SystemSender
		h.SendToConnection(connID, reply)
		return nil
	})

	d.Handle(connID, command("echo", map[string]any{"value": "x"}))

	if gotArgs == nil || gotArgs["value"] != "x" {
		t.Errorf("args = %v, want value=x", gotArgs)
	}
	if ft.last(t).ContentMap()["command"] != "echo_response" {
		t.Error("custom command reply not delivered")
	}
}

func TestCommand_BuiltinShadowsCustom(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	h.CreateRoom(hub.Room{RoomID: "general"})
	connID, ft := accept(t, h, nil)

	custom := false
	d.RegisterCommand("join_room", func(string, *message.Envelope, map[string]any) error {
		custom = true
		return nil
	})

	d.Handle(connID, command("join_room", map[string]any{"room_id": "general"}))

	if custom {
		t.Error("custom handler ran for built-in command name")
	}
	if ft.last(t).ContentMap()["command"] != "join_room_response" {
		t.Error("built-in join_room did not answer")
	}
}

func TestCommand_Unregister(t *testing.T) {
	h := newTestHub()
	d := New(h, nil)
	connID, ft := accept(t, h, nil)

	d.RegisterCommand("temp", func(string, *message.Envelope, map[string]any) error {
		return nil
	})
	d.UnregisterCommand("temp")

	d.Handle(connID, command("temp", nil))

	reply := ft.last(t)
	if reply.ContentMap()["error_code"] != message.ErrCodeUnknownCommand {
		t.Errorf("error_code = %v, want %s after unregister", reply.ContentMap()["error_code"], message.ErrCodeUnknownCommand)
	}
}
