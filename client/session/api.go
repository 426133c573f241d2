package session

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"collabroom/internal/entity"
)

// Typed wrappers over the durable-store surface. Every call rides through
// JSON and therefore through the refresh+retry cycle.

type RoomParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	Capacity    int    `json:"capacity,omitempty"`
}

func (s *Session) CreateRoom(ctx context.Context, params RoomParams) (*entity.Room, error) {
	var room entity.Room
	if err := s.JSON(ctx, http.MethodPost, "/api/rooms", params, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Session) GetRoom(ctx context.Context, roomID entity.UUID) (*entity.Room, error) {
	var room entity.Room
	if err := s.JSON(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Session) ListPublicRooms(ctx context.Context) ([]*entity.Room, error) {
	var rooms []*entity.Room
	if err := s.JSON(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// JoinRoom accepts a room id or a join code.
func (s *Session) JoinRoom(ctx context.Context, roomIDOrCode string) (*entity.Room, error) {
	var room entity.Room
	if err := s.JSON(ctx, http.MethodPost, "/api/rooms/join", map[string]string{"roomId": roomIDOrCode}, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Session) LeaveRoom(ctx context.Context, roomID entity.UUID) error {
	return s.JSON(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/leave", nil, nil)
}

func (s *Session) DeleteRoom(ctx context.Context, roomID entity.UUID) error {
	return s.JSON(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(roomID), nil, nil)
}

func (s *Session) FetchRoster(ctx context.Context, roomID entity.UUID) ([]*entity.Membership, error) {
	var roster []*entity.Membership
	if err := s.JSON(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/members", nil, &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

func (s *Session) ListFiles(ctx context.Context, roomID entity.UUID) ([]*entity.CodeFile, error) {
	var files []*entity.CodeFile
	if err := s.JSON(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/files", nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *Session) GetFile(ctx context.Context, roomID, fileID entity.UUID) (*entity.CodeFile, error) {
	var file entity.CodeFile
	if err := s.JSON(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/files/"+url.PathEscape(fileID), nil, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (s *Session) CreateFile(ctx context.Context, roomID entity.UUID, name, language, content string) (*entity.CodeFile, error) {
	var file entity.CodeFile
	err := s.JSON(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/files", map[string]string{
		"name":     name,
		"language": language,
		"content":  content,
	}, &file)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (s *Session) UpdateFileContent(ctx context.Context, roomID, fileID entity.UUID, content string) (*entity.CodeFile, error) {
	var file entity.CodeFile
	err := s.JSON(ctx, http.MethodPut, "/api/rooms/"+url.PathEscape(roomID)+"/files/"+url.PathEscape(fileID),
		map[string]string{"content": content}, &file)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (s *Session) DeleteFile(ctx context.Context, roomID, fileID entity.UUID) error {
	return s.JSON(ctx, http.MethodDelete, "/api/rooms/"+url.PathEscape(roomID)+"/files/"+url.PathEscape(fileID), nil, nil)
}

type HistoryPage struct {
	Messages []*entity.ChatMessage `json:"messages"`
	HasMore  bool                  `json:"hasMore"`
}

func (s *Session) FetchHistory(ctx context.Context, roomID entity.UUID, limit, offset int) (*HistoryPage, error) {
	path := "/api/rooms/" + url.PathEscape(roomID) + "/messages?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	var page HistoryPage
	if err := s.JSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PostMessage is the durable half of the dual-path chat send.
func (s *Session) PostMessage(ctx context.Context, roomID entity.UUID, message *entity.ChatMessage) (*entity.ChatMessage, error) {
	var stored entity.ChatMessage
	err := s.JSON(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/messages", map[string]any{
		"id":        message.UUID,
		"body":      message.Body,
		"createdAt": message.CreatedAt.Format(time.RFC3339Nano),
	}, &stored)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

type ExecuteParams struct {
	Code     string      `json:"code"`
	Language string      `json:"language"`
	FileID   entity.UUID `json:"fileId,omitempty"`
}

func (s *Session) Execute(ctx context.Context, roomID entity.UUID, params ExecuteParams) (*entity.ExecutionResult, error) {
	var result entity.ExecutionResult
	if err := s.JSON(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/execute", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
