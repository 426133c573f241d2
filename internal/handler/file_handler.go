package handler

import (
	"encoding/json"
	"net/http"

	"collabroom/internal/service"

	"github.com/gorilla/mux"
)

type fileReqFields struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

type FileHandler struct {
	fileService service.FileService
	roomService service.RoomService
}

func NewFileHandler(fileService service.FileService, roomService service.RoomService) *FileHandler {
	return &FileHandler{fileService, roomService}
}

// membership gates every file operation; file-level ownership does not exist.
func (h *FileHandler) requireMember(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	roomID := mux.Vars(r)["roomId"]
	if _, err := h.roomService.GetMember(roomID, user.UUID); err != nil {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return "", false
	}
	return roomID, true
}

func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	files, err := h.fileService.ListFiles(roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *FileHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	roomID, ok := h.requireMember(w, r)
	if !ok {
		return
	}

	var fields fileReqFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.CreateFile(roomID, fields.Name, fields.Language, fields.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireMember(w, r); !ok {
		return
	}

	file, err := h.fileService.GetFile(mux.Vars(r)["fileId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireMember(w, r); !ok {
		return
	}

	var fields fileReqFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	file, err := h.fileService.UpdateContent(mux.Vars(r)["fileId"], fields.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireMember(w, r); !ok {
		return
	}

	if err := h.fileService.DeleteFile(mux.Vars(r)["fileId"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
