package ws

import (
	"encoding/json"
	"sync"
	"time"

	"collabroom/client/protocol"
	"collabroom/internal/entity"

	"github.com/gorilla/websocket"
)

const (
	readLimit    = 1 << 20
	readTimeout  = 300 * time.Second
	writeTimeout = 30 * time.Second
	pingPeriod   = 240 * time.Second
)

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	userID      string
	displayName string

	// set once a join-room event has been accepted
	roomID string
	member protocol.Member

	closeOnce sync.Once
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// sendEvent queues an envelope for this client only.
func (c *Client) sendEvent(event string, payload any) {
	data, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(errorEvent, errorType, message string) {
	c.sendEvent(errorEvent, protocol.ErrorMessage{Type: errorType, Message: message})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var envelope protocol.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.sendError(protocol.EventErrorMessage, "malformed", "Could not parse event envelope")
			continue
		}

		c.route(&envelope)
	}
}

func (c *Client) route(envelope *protocol.Envelope) {
	switch envelope.Event {
	case protocol.EventJoinRoom:
		c.handleJoin(envelope.Data)
	case protocol.EventLeaveRoom:
		c.hub.unregister <- c
	case protocol.EventCodeChange:
		c.handleCodeChange(envelope.Data)
	case protocol.EventFileCreated, protocol.EventFileDeleted:
		c.handleFileNotice(envelope.Event, envelope.Data)
	case protocol.EventCursorPosition:
		c.handleCursor(envelope.Data)
	case protocol.EventSendMessage:
		c.handleSendMessage(envelope.Data)
	case protocol.EventTyping:
		c.handleTyping(envelope.Data)
	default:
		c.sendError(protocol.EventErrorMessage, "unknown-event", "Unknown event "+envelope.Event)
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var ref protocol.RoomRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.RoomID == "" {
		c.sendError(protocol.EventErrorMessage, "malformed", "join-room needs a roomId")
		return
	}
	if c.roomID != "" {
		// One room per channel; a second join is a protocol violation.
		c.sendError(protocol.EventErrorMessage, "already-joined", "Channel is already bound to a room")
		return
	}

	member, err := c.hub.roomService.GetMember(ref.RoomID, c.userID)
	if err != nil {
		c.sendError(protocol.EventErrorMessage, "not-a-member", "Join the room before opening a channel to it")
		return
	}

	c.roomID = ref.RoomID
	c.member = protocol.Member{
		RoomID:      ref.RoomID,
		UserID:      c.userID,
		DisplayName: member.User.DisplayName,
		AvatarRef:   member.User.AvatarRef,
		Role:        member.Role,
		JoinedAt:    member.JoinedAt,
		Presence:    entity.PresenceOnline,
	}
	c.hub.register <- c
}

func (c *Client) handleCodeChange(data json.RawMessage) {
	if c.roomID == "" {
		c.sendError(protocol.EventEditorError, "no-room", "Join a room first")
		return
	}
	var change protocol.CodeChange
	if err := json.Unmarshal(data, &change); err != nil || change.FileID == "" {
		c.sendError(protocol.EventEditorError, "malformed", "code-change needs a fileId")
		return
	}

	// The hub stamps the origin; clients filter echoes on it.
	change.RoomID = c.roomID
	change.UserID = c.userID
	c.hub.broadcastToRoom(c.roomID, c, protocol.EventCodeUpdated, change)
}

func (c *Client) handleFileNotice(event string, data json.RawMessage) {
	if c.roomID == "" {
		c.sendError(protocol.EventEditorError, "no-room", "Join a room first")
		return
	}
	// Structural file changes were already applied through the store; the
	// notice is rebroadcast as-is to the other members.
	c.hub.broadcast <- mustOutbound(c.roomID, c, event, data)
}

func (c *Client) handleCursor(data json.RawMessage) {
	if c.roomID == "" {
		return
	}
	var cursor protocol.CursorPosition
	if err := json.Unmarshal(data, &cursor); err != nil {
		return
	}
	cursor.RoomID = c.roomID
	cursor.UserID = c.userID
	c.hub.broadcastToRoom(c.roomID, c, protocol.EventCursorMoved, cursor)
}

func (c *Client) handleSendMessage(data json.RawMessage) {
	if c.roomID == "" {
		c.sendError(protocol.EventChatError, "no-room", "Join a room first")
		return
	}
	var payload protocol.ChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError(protocol.EventChatError, "malformed", "Could not parse message")
		return
	}

	message := payload.Message
	message.RoomUUID = c.roomID
	message.UserUUID = c.userID

	stored, err := c.hub.messageService.Append(&message)
	if err != nil {
		c.sendError(protocol.EventChatError, "rejected", err.Error())
		return
	}

	out := protocol.ChatPayload{RoomID: c.roomID, Message: *stored}
	c.hub.broadcastToRoom(c.roomID, c, protocol.EventNewMessage, out)
	c.sendEvent(protocol.EventMessageSent, out)
}

func (c *Client) handleTyping(data json.RawMessage) {
	if c.roomID == "" {
		return
	}
	var typing protocol.Typing
	if err := json.Unmarshal(data, &typing); err != nil {
		return
	}
	c.hub.broadcastToRoom(c.roomID, c, protocol.EventUserTyping, protocol.UserTyping{
		RoomID:      c.roomID,
		UserID:      c.userID,
		DisplayName: c.displayName,
		IsTyping:    typing.IsTyping,
	})
}

func mustOutbound(roomID string, exclude *Client, event string, data json.RawMessage) outbound {
	raw, _ := json.Marshal(protocol.Envelope{Event: event, Data: data})
	return outbound{roomID: roomID, exclude: exclude, data: raw}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte(c.userID)); err != nil {
				return
			}
		}
	}
}
