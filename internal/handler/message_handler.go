package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"collabroom/internal/entity"
	"collabroom/internal/service"

	"github.com/gorilla/mux"
)

type msgReqFields struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type MessageHandler struct {
	messageService service.MessageService
	roomService    service.RoomService
}

func NewMessageHandler(messageService service.MessageService, roomService service.RoomService) *MessageHandler {
	return &MessageHandler{messageService, roomService}
}

func (h *MessageHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["roomId"]

	if _, err := h.roomService.GetMember(roomID, user.UUID); err != nil {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	messages, hasMore, err := h.messageService.History(roomID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"hasMore":  hasMore,
	})
}

// SendMessage is the durable half of the dual-path send. The realtime hub
// delivers the same message with the same id; the store dedupes.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["roomId"]

	if _, err := h.roomService.GetMember(roomID, user.UUID); err != nil {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	var fields msgReqFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	message, err := h.messageService.Append(&entity.ChatMessage{
		UUID:      fields.ID,
		RoomUUID:  roomID,
		UserUUID:  user.UUID,
		Body:      fields.Body,
		CreatedAt: fields.CreatedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}
