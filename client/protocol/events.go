package protocol

// Channel event names. One websocket per (identity, room); every frame is
// an Envelope tagged with one of these.
const (
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"

	EventMemberJoined = "member-joined"
	EventMemberLeft   = "member-left"

	EventCodeChange  = "code-change"
	EventCodeUpdated = "code-updated"

	EventFileCreated = "file-created"
	EventFileDeleted = "file-deleted"

	EventCursorPosition = "cursor-position"
	EventCursorMoved    = "cursor-moved"

	EventSendMessage = "send-message"
	EventNewMessage  = "new-message"
	EventMessageSent = "message-sent"

	EventTyping     = "typing"
	EventUserTyping = "user-typing"

	EventErrorMessage = "error-message"
	EventChatError    = "chat-error"
	EventEditorError  = "editor-error"
)
