package handler

import (
	"encoding/json"
	"net/http"

	"collabroom/internal/service"

	"github.com/gorilla/mux"
)

type ExecuteHandler struct {
	executionService service.ExecutionService
	roomService      service.RoomService
}

func NewExecuteHandler(executionService service.ExecutionService, roomService service.RoomService) *ExecuteHandler {
	return &ExecuteHandler{executionService, roomService}
}

func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
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

	var req service.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	result, err := h.executionService.Execute(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
