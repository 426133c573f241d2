package handler

import (
	"encoding/json"
	"net/http"

	"collabroom/internal/service"
)

type credentialFields struct {
	Username     string `json:"username"`
	DisplayName  string `json:"displayName"`
	Password     string `json:"password"`
	RefreshToken string `json:"refreshToken"`
}

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var fields credentialFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	user, pair, err := h.authService.Register(fields.Username, fields.DisplayName, fields.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": pair,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var fields credentialFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	user, pair, err := h.authService.Login(fields.Username, fields.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": pair,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var fields credentialFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	pair, err := h.authService.Refresh(fields.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tokens": pair})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var fields credentialFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Malformed request body", http.StatusBadRequest)
		return
	}

	if err := h.authService.Revoke(fields.RefreshToken); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
