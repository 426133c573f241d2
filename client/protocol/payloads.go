package protocol

import (
	"encoding/json"
	"time"

	"collabroom/internal/entity"
)

// Envelope is the framing for every channel message: an event tag plus the
// raw payload, decoded by whoever subscribed to that event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

type RoomRef struct {
	RoomID entity.UUID `json:"roomId"`
}

type Member struct {
	RoomID      entity.UUID `json:"roomId"`
	UserID      entity.UUID `json:"userId"`
	DisplayName string      `json:"displayName"`
	AvatarRef   string      `json:"avatarRef,omitempty"`
	Role        string      `json:"role"`
	JoinedAt    time.Time   `json:"joinedAt"`
	Presence    string      `json:"presence"`
}

type MemberJoined struct {
	RoomID entity.UUID `json:"roomId"`
	Member Member      `json:"member"`
}

type MemberLeft struct {
	RoomID entity.UUID `json:"roomId"`
	UserID entity.UUID `json:"userId"`
}

// CodeChange carries one full-content broadcast of a file. The UserID is
// the origin of the edit; receivers drop their own echoes by comparing it
// against their identity.
type CodeChange struct {
	RoomID  entity.UUID `json:"roomId"`
	FileID  entity.UUID `json:"fileId"`
	Content string      `json:"content"`
	UserID  entity.UUID `json:"userId"`
}

type FileCreated struct {
	RoomID entity.UUID     `json:"roomId"`
	File   entity.CodeFile `json:"file"`
}

type FileDeleted struct {
	RoomID entity.UUID `json:"roomId"`
	FileID entity.UUID `json:"fileId"`
}

type CursorPosition struct {
	RoomID    entity.UUID `json:"roomId"`
	FileID    entity.UUID `json:"fileId"`
	Line      int         `json:"line"`
	Column    int         `json:"column"`
	Selection string      `json:"selection,omitempty"`
	UserID    entity.UUID `json:"userId,omitempty"`
}

type ChatPayload struct {
	RoomID  entity.UUID        `json:"roomId"`
	Message entity.ChatMessage `json:"message"`
}

type Typing struct {
	RoomID   entity.UUID `json:"roomId"`
	IsTyping bool        `json:"isTyping"`
}

type UserTyping struct {
	RoomID      entity.UUID `json:"roomId"`
	UserID      entity.UUID `json:"userId"`
	DisplayName string      `json:"displayName"`
	IsTyping    bool        `json:"isTyping"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
