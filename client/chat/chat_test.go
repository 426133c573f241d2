package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"collabroom/client/protocol"
	"collabroom/client/rlog"
	"collabroom/client/session"
	"collabroom/internal/entity"
)

type MockChatStore struct {
	mu      sync.Mutex
	stored  []*entity.ChatMessage
	postErr error
}

func (m *MockChatStore) FetchHistory(ctx context.Context, roomID entity.UUID, limit, offset int) (*session.HistoryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Newest first, then sliced by offset, returned in ascending order,
	// mirroring the server's pagination.
	total := len(m.stored)
	end := total - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := &session.HistoryPage{HasMore: start > 0}
	for _, message := range m.stored[start:end] {
		copied := *message
		page.Messages = append(page.Messages, &copied)
	}
	return page, nil
}

func (m *MockChatStore) PostMessage(ctx context.Context, roomID entity.UUID, message *entity.ChatMessage) (*entity.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return nil, m.postErr
	}
	copied := *message
	m.stored = append(m.stored, &copied)
	return &copied, nil
}

type MockEmitter struct {
	mu     sync.Mutex
	events []string
	bodies []any
}

func (m *MockEmitter) Emit(event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	m.bodies = append(m.bodies, payload)
	return nil
}

func (m *MockEmitter) emitted(event string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for n, name := range m.events {
		if name == event {
			out = append(out, m.bodies[n])
		}
	}
	return out
}

func newTestChat(store *MockChatStore, emitter *MockEmitter) *Synchronizer {
	return newTestChatWithConfig(store, emitter, DefaultConfig())
}

func newTestChatWithConfig(store *MockChatStore, emitter *MockEmitter, cfg Config) *Synchronizer {
	s := New("room-1", "self", store, cfg, rlog.Nop())
	s.emitter = emitter
	return s
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func stamp(seconds int) time.Time {
	return time.Date(2026, 8, 1, 12, 0, seconds, 0, time.UTC)
}

func deliver(t *testing.T, s *Synchronizer, message entity.ChatMessage) {
	t.Helper()
	raw, err := json.Marshal(protocol.ChatPayload{RoomID: "room-1", Message: message})
	if err != nil {
		t.Fatalf("Cannot marshal payload: %v", err)
	}
	s.onChatPayload(raw)
}

func TestSendMessageTakesBothPaths(t *testing.T) {
	store := &MockChatStore{}
	emitter := &MockEmitter{}
	s := newTestChat(store, emitter)

	message, err := s.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if message.UUID == "" {
		t.Fatal("Message went out without an id")
	}

	broadcasts := emitter.emitted(protocol.EventSendMessage)
	if len(broadcasts) != 1 {
		t.Fatalf("Expected one realtime send, got %d", len(broadcasts))
	}
	if broadcasts[0].(protocol.ChatPayload).Message.UUID != message.UUID {
		t.Error("Realtime and durable paths carry different ids")
	}
	if len(store.stored) != 1 || store.stored[0].UUID != message.UUID {
		t.Error("Durable path did not store the message")
	}
	if len(s.Messages()) != 1 {
		t.Error("Optimistic append missing")
	}
}

func TestEchoFromEitherPathIsAbsorbed(t *testing.T) {
	store := &MockChatStore{}
	s := newTestChat(store, &MockEmitter{})

	message, err := s.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// Realtime echo and a history refetch both redeliver the same id.
	deliver(t, s, *message)
	deliver(t, s, *message)
	if err := s.ResyncNewest(context.Background()); err != nil {
		t.Fatalf("ResyncNewest failed: %v", err)
	}

	if got := len(s.Messages()); got != 1 {
		t.Errorf("Expected one transcript entry, got %d", got)
	}
}

func TestSendMessageValidation(t *testing.T) {
	s := newTestChat(&MockChatStore{}, &MockEmitter{})

	if _, err := s.SendMessage(context.Background(), "   "); !session.IsKind(err, session.KindValidation) {
		t.Errorf("Expected a validation error, got %v", err)
	}
}

func TestSendMessageSurvivesDurableFailure(t *testing.T) {
	store := &MockChatStore{postErr: errors.New("backend down")}
	s := newTestChat(store, &MockEmitter{})

	message, err := s.SendMessage(context.Background(), "hello")
	if err == nil {
		t.Error("Durable failure should surface")
	}
	if message == nil || !s.Contains(message.UUID) {
		t.Error("Optimistic entry should survive a durable failure")
	}
}

func TestTranscriptStaysOrdered(t *testing.T) {
	s := newTestChat(&MockChatStore{}, &MockEmitter{})

	deliver(t, s, entity.ChatMessage{UUID: "m-2", RoomUUID: "room-1", UserUUID: "peer", Body: "second", CreatedAt: stamp(2)})
	deliver(t, s, entity.ChatMessage{UUID: "m-1", RoomUUID: "room-1", UserUUID: "peer", Body: "first", CreatedAt: stamp(1)})
	deliver(t, s, entity.ChatMessage{UUID: "m-3", RoomUUID: "room-1", UserUUID: "peer", Body: "third", CreatedAt: stamp(3)})

	transcript := s.Messages()
	if len(transcript) != 3 {
		t.Fatalf("Expected three messages, got %d", len(transcript))
	}
	for n, want := range []string{"m-1", "m-2", "m-3"} {
		if transcript[n].UUID != want {
			t.Errorf("Position %d holds %s, want %s", n, transcript[n].UUID, want)
		}
	}
}

func TestLoadHistoryWalksBackwards(t *testing.T) {
	store := &MockChatStore{}
	for n := 0; n < 120; n++ {
		store.stored = append(store.stored, &entity.ChatMessage{
			UUID:      entity.UUID(fmt.Sprintf("m-%03d", n)),
			RoomUUID:  "room-1",
			UserUUID:  "peer",
			Body:      "x",
			CreatedAt: stamp(n),
		})
	}
	s := newTestChat(store, &MockEmitter{})

	if err := s.LoadHistory(context.Background()); err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	transcript := s.Messages()
	if len(transcript) != DefaultPageSize {
		t.Fatalf("Expected the newest page, got %d messages", len(transcript))
	}
	if transcript[len(transcript)-1].UUID != "m-119" {
		t.Errorf("Newest message missing, tail is %s", transcript[len(transcript)-1].UUID)
	}
	if !s.HasMore() {
		t.Error("Expected more history past the first page")
	}

	if err := s.LoadHistory(context.Background()); err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if err := s.LoadHistory(context.Background()); err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}

	transcript = s.Messages()
	if len(transcript) != 120 {
		t.Fatalf("Expected the full transcript, got %d messages", len(transcript))
	}
	if transcript[0].UUID != "m-000" {
		t.Errorf("Oldest message missing, head is %s", transcript[0].UUID)
	}
	if s.HasMore() {
		t.Error("Nothing older should remain")
	}
}

func TestForeignRoomTrafficIsIgnored(t *testing.T) {
	s := newTestChat(&MockChatStore{}, &MockEmitter{})

	raw, _ := json.Marshal(protocol.ChatPayload{
		RoomID:  "other-room",
		Message: entity.ChatMessage{UUID: "m-1", RoomUUID: "other-room", UserUUID: "peer", Body: "hi", CreatedAt: stamp(1)},
	})
	s.onChatPayload(raw)

	if len(s.Messages()) != 0 {
		t.Error("Traffic for another room leaked into the transcript")
	}
}

func TestTypingEdgesBroadcastOnce(t *testing.T) {
	emitter := &MockEmitter{}
	s := newTestChat(&MockChatStore{}, emitter)

	s.SetTyping(true)
	s.SetTyping(true)
	s.SetTyping(true)

	starts := emitter.emitted(protocol.EventTyping)
	if len(starts) != 1 {
		t.Fatalf("Expected one start edge, got %d", len(starts))
	}
	if !starts[0].(protocol.Typing).IsTyping {
		t.Error("Start edge carries IsTyping=false")
	}

	s.SetTyping(false)
	edges := emitter.emitted(protocol.EventTyping)
	if len(edges) != 2 || edges[1].(protocol.Typing).IsTyping {
		t.Errorf("Expected a single stop edge, got %+v", edges)
	}

	// Stopping again without an active indicator is silent.
	s.SetTyping(false)
	if len(emitter.emitted(protocol.EventTyping)) != 2 {
		t.Error("Redundant stop produced an edge")
	}
}

func TestRemoteTypersTrackEdges(t *testing.T) {
	s := newTestChat(&MockChatStore{}, &MockEmitter{})

	start, _ := json.Marshal(protocol.UserTyping{RoomID: "room-1", UserID: "peer", DisplayName: "Peer", IsTyping: true})
	s.onUserTyping(start)
	s.onUserTyping(start)
	if got := s.Typers(); len(got) != 1 || got[0] != "Peer" {
		t.Errorf("Expected one typer, got %v", got)
	}

	// Own indicator events never show up locally.
	self, _ := json.Marshal(protocol.UserTyping{RoomID: "room-1", UserID: "self", DisplayName: "Me", IsTyping: true})
	s.onUserTyping(self)
	if len(s.Typers()) != 1 {
		t.Error("Own typing echo leaked into the typer set")
	}

	stop, _ := json.Marshal(protocol.UserTyping{RoomID: "room-1", UserID: "peer", DisplayName: "Peer", IsTyping: false})
	s.onUserTyping(stop)
	if len(s.Typers()) != 0 {
		t.Error("Stop edge did not clear the typer")
	}
}

func TestRemoteTyperExpiresWithoutStopEdge(t *testing.T) {
	s := newTestChatWithConfig(&MockChatStore{}, &MockEmitter{}, Config{TyperExpiry: 30 * time.Millisecond})

	start, _ := json.Marshal(protocol.UserTyping{RoomID: "room-1", UserID: "peer", DisplayName: "Peer", IsTyping: true})
	s.onUserTyping(start)
	if got := s.Typers(); len(got) != 1 {
		t.Fatalf("Expected one typer, got %v", got)
	}

	// No stop edge ever arrives; the indicator clears itself.
	waitFor(t, "the remote indicator to expire", func() bool { return len(s.Typers()) == 0 })
}

func TestTyperRefreshOutlivesStaleExpiry(t *testing.T) {
	s := newTestChat(&MockChatStore{}, &MockEmitter{})

	start, _ := json.Marshal(protocol.UserTyping{RoomID: "room-1", UserID: "peer", DisplayName: "Peer", IsTyping: true})
	s.onUserTyping(start)
	s.onUserTyping(start)

	// The timer armed by the first event fires against a refreshed
	// generation and must leave the indicator alone.
	s.expireTyper("peer", 1)
	if len(s.Typers()) != 1 {
		t.Error("A stale expiry removed a refreshed indicator")
	}

	s.expireTyper("peer", 2)
	if len(s.Typers()) != 0 {
		t.Error("The current expiry should clear the indicator")
	}
}

func TestSenderTypingAutoStops(t *testing.T) {
	emitter := &MockEmitter{}
	s := newTestChatWithConfig(&MockChatStore{}, emitter, Config{SenderAutoStop: 30 * time.Millisecond})

	s.SetTyping(true)
	waitFor(t, "the auto-stop edge", func() bool {
		edges := emitter.emitted(protocol.EventTyping)
		return len(edges) == 2 && !edges[1].(protocol.Typing).IsTyping
	})

	// Typing again after the auto-stop is a fresh start edge.
	s.SetTyping(true)
	edges := emitter.emitted(protocol.EventTyping)
	if len(edges) != 3 || !edges[2].(protocol.Typing).IsTyping {
		t.Errorf("Expected a new start edge after auto-stop, got %+v", edges)
	}
}

func TestMessageClearsTypingIndicator(t *testing.T) {
	s := newTestChat(&MockChatStore{}, &MockEmitter{})

	start, _ := json.Marshal(protocol.UserTyping{RoomID: "room-1", UserID: "peer", DisplayName: "Peer", IsTyping: true})
	s.onUserTyping(start)

	deliver(t, s, entity.ChatMessage{UUID: "m-1", RoomUUID: "room-1", UserUUID: "peer", Body: "done typing", CreatedAt: stamp(1)})
	if len(s.Typers()) != 0 {
		t.Error("A delivered message should clear its author's indicator")
	}
}
