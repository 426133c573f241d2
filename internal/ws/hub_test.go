package ws

import (
	"encoding/json"
	"testing"
	"time"

	"collabroom/client/protocol"
	"collabroom/client/rlog"
	"collabroom/internal/entity"
	"collabroom/internal/service"
)

type MockRoomService struct {
	service.RoomService
}

func (MockRoomService) SetPresence(roomUUID, userUUID entity.UUID, presence string) error {
	return nil
}

func newTestClient(h *Hub, userID, roomID string) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, 8),
		userID: userID,
		roomID: roomID,
		member: protocol.Member{UserID: userID, DisplayName: userID},
	}
}

// Join and leave notices must go out even while the broadcast buffer is
// full, since the hub goroutine is the only drainer of that buffer.
func TestJoinNoticeBypassesFullBroadcastBuffer(t *testing.T) {
	h := NewHub(MockRoomService{}, nil, rlog.Nop())

	listener := newTestClient(h, "listener", "room-1")
	h.addClient(listener)

	for n := 0; n < cap(h.broadcast); n++ {
		h.broadcast <- outbound{roomID: "room-1"}
	}

	done := make(chan struct{})
	go func() {
		h.addClient(newTestClient(h, "joiner", "room-1"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("addClient blocked behind a full broadcast buffer")
	}

	select {
	case frame := <-listener.send:
		var envelope protocol.Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			t.Fatalf("Cannot decode the delivered frame: %v", err)
		}
		if envelope.Event != protocol.EventMemberJoined {
			t.Errorf("Expected %s, got %s", protocol.EventMemberJoined, envelope.Event)
		}
	default:
		t.Fatal("Listener never received the join notice")
	}
}

func TestLeaveNoticeBypassesFullBroadcastBuffer(t *testing.T) {
	h := NewHub(MockRoomService{}, nil, rlog.Nop())

	listener := newTestClient(h, "listener", "room-1")
	h.addClient(listener)

	leaver := newTestClient(h, "leaver", "room-1")
	h.addClient(leaver)
	<-listener.send // the join notice for leaver

	for n := 0; n < cap(h.broadcast); n++ {
		h.broadcast <- outbound{roomID: "room-1"}
	}

	done := make(chan struct{})
	go func() {
		h.removeClient(leaver)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("removeClient blocked behind a full broadcast buffer")
	}

	select {
	case frame := <-listener.send:
		var envelope protocol.Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			t.Fatalf("Cannot decode the delivered frame: %v", err)
		}
		if envelope.Event != protocol.EventMemberLeft {
			t.Errorf("Expected %s, got %s", protocol.EventMemberLeft, envelope.Event)
		}
	default:
		t.Fatal("Listener never received the leave notice")
	}
}
