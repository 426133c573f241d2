package handler

import (
	"encoding/json"
	"net/http"

	"collabroom/internal/service"

	"github.com/gorilla/mux"
)

type roomReqFields struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
	Capacity    int    `json:"capacity"`
	RoomID      string `json:"roomId"`
	JoinCode    string `json:"joinCode"`
}

// RoomCloser force-disconnects every realtime channel bound to a room.
// Satisfied by the websocket hub.
type RoomCloser interface {
	CloseRoom(roomUUID string)
}

type RoomHandler struct {
	roomService service.RoomService
	closer      RoomCloser
}

func NewRoomHandler(roomService service.RoomService, closer RoomCloser) *RoomHandler {
	return &RoomHandler{roomService, closer}
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var fields roomReqFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	room, err := h.roomService.CreateRoom(user.UUID, fields.Name, fields.Description, fields.Visibility, fields.Capacity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.roomService.ListPublicRooms()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	room, err := h.roomService.GetRoom(vars["roomId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)

	var fields roomReqFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	room, err := h.roomService.UpdateRoom(user.UUID, vars["roomId"], fields.Name, fields.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var fields roomReqFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	target := fields.RoomID
	if target == "" {
		target = fields.JoinCode
	}

	room, err := h.roomService.Join(user.UUID, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)

	if err := h.roomService.Leave(user.UUID, vars["roomId"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)
	roomID := vars["roomId"]

	if err := h.roomService.DeleteRoom(user.UUID, roomID); err != nil {
		writeError(w, err)
		return
	}

	// The room is gone for everyone; drop their channels.
	if h.closer != nil {
		h.closer.CloseRoom(roomID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoomHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)
	roomID := vars["roomId"]

	if _, err := h.roomService.GetMember(roomID, user.UUID); err != nil {
		writeError(w, err)
		return
	}

	roster, err := h.roomService.Roster(roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}
