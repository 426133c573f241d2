package chat

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"collabroom/client/channel"
	"collabroom/client/protocol"
	"collabroom/client/rlog"
	"collabroom/client/session"
	"collabroom/internal/entity"
)

const (
	DefaultPageSize = 50

	// How long after the last keystroke the local typing indicator
	// auto-stops, and how long a remote indicator survives without a
	// refresh. The receiver window is longer so a steady typist never
	// flickers off between refreshes.
	DefaultSenderAutoStop = 3 * time.Second
	DefaultTyperExpiry    = 5 * time.Second
)

type Config struct {
	SenderAutoStop time.Duration
	TyperExpiry    time.Duration
}

func DefaultConfig() Config {
	return Config{
		SenderAutoStop: DefaultSenderAutoStop,
		TyperExpiry:    DefaultTyperExpiry,
	}
}

type store interface {
	FetchHistory(ctx context.Context, roomID entity.UUID, limit, offset int) (*session.HistoryPage, error)
	PostMessage(ctx context.Context, roomID entity.UUID, message *entity.ChatMessage) (*entity.ChatMessage, error)
}

type emitter interface {
	Emit(event string, payload any) error
}

type typer struct {
	displayName string
	gen         int
	timer       *time.Timer
}

// Synchronizer maintains one room's transcript. Every message flows in
// through two paths, realtime and durable backup, under the same id; the
// transcript inserts by id exactly once, so whichever path wins the race
// is invisible to the reader.
type Synchronizer struct {
	roomID entity.UUID
	selfID entity.UUID
	api    store
	cfg    Config
	logger rlog.Logger

	mu            sync.Mutex
	emitter       emitter
	messages      []*entity.ChatMessage
	seen          map[entity.UUID]bool
	historyLoaded int
	hasMore       bool
	typers        map[entity.UUID]*typer
	typingActive  bool
	typingGen     int
	typingTimer   *time.Timer

	unsubscribes []func()
}

func New(roomID, selfID entity.UUID, api store, cfg Config, logger rlog.Logger) *Synchronizer {
	if logger == nil {
		logger = rlog.Nop()
	}
	if cfg.SenderAutoStop <= 0 {
		cfg.SenderAutoStop = DefaultSenderAutoStop
	}
	if cfg.TyperExpiry <= 0 {
		cfg.TyperExpiry = DefaultTyperExpiry
	}
	return &Synchronizer{
		roomID: roomID,
		selfID: selfID,
		api:    api,
		cfg:    cfg,
		logger: logger,
		seen:   make(map[entity.UUID]bool),
		typers: make(map[entity.UUID]*typer),
	}
}

func (s *Synchronizer) Logf(format string, v ...any) {
	s.logger.Logf(format, v...)
}

func (s *Synchronizer) Attach(ch *channel.Channel) {
	s.mu.Lock()
	s.emitter = ch
	s.mu.Unlock()

	s.unsubscribes = append(s.unsubscribes,
		ch.Subscribe(protocol.EventNewMessage, s.onChatPayload),
		ch.Subscribe(protocol.EventMessageSent, s.onChatPayload),
		ch.Subscribe(protocol.EventUserTyping, s.onUserTyping),
	)
}

func (s *Synchronizer) Detach() {
	for _, unsubscribe := range s.unsubscribes {
		unsubscribe()
	}
	s.unsubscribes = nil

	s.mu.Lock()
	s.emitter = nil
	s.stopTypingTimerLocked()
	s.typingActive = false
	for id, t := range s.typers {
		t.timer.Stop()
		delete(s.typers, id)
	}
	s.mu.Unlock()
}

func (s *Synchronizer) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.seen = make(map[entity.UUID]bool)
	s.historyLoaded = 0
	s.hasMore = false
	for id, t := range s.typers {
		t.timer.Stop()
		delete(s.typers, id)
	}
	s.mu.Unlock()
}

// LoadHistory fetches the next older page from the durable store and
// merges it into the transcript. The first call loads the newest page;
// repeated calls walk backwards while HasMore holds.
func (s *Synchronizer) LoadHistory(ctx context.Context) error {
	s.mu.Lock()
	offset := s.historyLoaded
	s.mu.Unlock()

	page, err := s.api.FetchHistory(ctx, s.roomID, DefaultPageSize, offset)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range page.Messages {
		s.insertLocked(message)
	}
	s.historyLoaded += len(page.Messages)
	s.hasMore = page.HasMore
	return nil
}

// ResyncNewest refetches the newest page after a reconnect and folds it
// into the transcript. Overlap with what realtime already delivered is
// absorbed by the id dedupe; older pages loaded earlier are kept.
func (s *Synchronizer) ResyncNewest(ctx context.Context) error {
	page, err := s.api.FetchHistory(ctx, s.roomID, DefaultPageSize, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range page.Messages {
		s.insertLocked(message)
	}
	if len(page.Messages) > s.historyLoaded {
		s.historyLoaded = len(page.Messages)
		s.hasMore = page.HasMore
	}
	return nil
}

// SendMessage appends optimistically, then races both delivery paths: the
// realtime broadcast for latency, the durable POST for safety. Both carry
// the same client-assigned id, so the echo folds into the optimistic copy.
func (s *Synchronizer) SendMessage(ctx context.Context, body string) (*entity.ChatMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, &session.APIError{Kind: session.KindValidation, Message: "message body is required"}
	}

	message := &entity.ChatMessage{
		UUID:      entity.UUID(uuid.NewString()),
		RoomUUID:  s.roomID,
		UserUUID:  s.selfID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.insertLocked(message)
	s.stopTypingLocked()
	e := s.emitter
	s.mu.Unlock()

	if e != nil {
		if err := e.Emit(protocol.EventSendMessage, protocol.ChatPayload{RoomID: s.roomID, Message: *message}); err != nil {
			s.Logf("Realtime chat send dropped {%v}", err)
		}
	}

	if _, err := s.api.PostMessage(ctx, s.roomID, message); err != nil {
		s.Logf("Durable chat send failed {%s, %v}", message.UUID, err)
		return message, err
	}
	return message, nil
}

// SetTyping drives the local indicator. Activation broadcasts once and
// arms the auto-stop timer; every further call while active only pushes
// the timer back. Deactivation broadcasts immediately.
func (s *Synchronizer) SetTyping(active bool) {
	s.mu.Lock()
	if !active {
		s.stopTypingLocked()
		s.mu.Unlock()
		return
	}

	firstEdge := !s.typingActive
	s.typingActive = true
	s.stopTypingTimerLocked()
	s.typingGen++
	gen := s.typingGen
	s.typingTimer = time.AfterFunc(s.cfg.SenderAutoStop, func() { s.autoStopTyping(gen) })
	e := s.emitter
	s.mu.Unlock()

	if firstEdge && e != nil {
		e.Emit(protocol.EventTyping, protocol.Typing{RoomID: s.roomID, IsTyping: true})
	}
}

func (s *Synchronizer) autoStopTyping(gen int) {
	s.mu.Lock()
	if s.typingGen != gen {
		s.mu.Unlock()
		return
	}
	s.stopTypingLocked()
	s.mu.Unlock()
}

// stopTypingLocked broadcasts the stop edge if one is due. Caller holds mu.
func (s *Synchronizer) stopTypingLocked() {
	s.stopTypingTimerLocked()
	if !s.typingActive {
		return
	}
	s.typingActive = false
	if s.emitter != nil {
		s.emitter.Emit(protocol.EventTyping, protocol.Typing{RoomID: s.roomID, IsTyping: false})
	}
}

func (s *Synchronizer) stopTypingTimerLocked() {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

func (s *Synchronizer) onChatPayload(data json.RawMessage) {
	var payload protocol.ChatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID != s.roomID {
		return
	}

	s.mu.Lock()
	s.insertLocked(&payload.Message)
	// A message from a member doubles as proof they stopped typing.
	if t, ok := s.typers[payload.Message.UserUUID]; ok {
		t.timer.Stop()
		delete(s.typers, payload.Message.UserUUID)
	}
	s.mu.Unlock()
}

func (s *Synchronizer) onUserTyping(data json.RawMessage) {
	var event protocol.UserTyping
	if err := json.Unmarshal(data, &event); err != nil || event.RoomID != s.roomID || event.UserID == s.selfID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !event.IsTyping {
		if t, ok := s.typers[event.UserID]; ok {
			t.timer.Stop()
			delete(s.typers, event.UserID)
		}
		return
	}

	// A refresh pushes the expiry back; the generation fences the timer
	// that was already racing for the lock.
	existing, ok := s.typers[event.UserID]
	if !ok {
		existing = &typer{displayName: event.DisplayName}
		s.typers[event.UserID] = existing
	} else {
		existing.timer.Stop()
	}
	existing.displayName = event.DisplayName
	existing.gen++
	gen := existing.gen
	userID := event.UserID
	existing.timer = time.AfterFunc(s.cfg.TyperExpiry, func() { s.expireTyper(userID, gen) })
}

func (s *Synchronizer) expireTyper(userID entity.UUID, gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.typers[userID]; ok && t.gen == gen {
		delete(s.typers, userID)
	}
}

// insertLocked places the message at its ordered position, once. The
// transcript is near-sorted already, so scanning from the tail is cheap.
func (s *Synchronizer) insertLocked(message *entity.ChatMessage) {
	if s.seen[message.UUID] {
		return
	}
	s.seen[message.UUID] = true

	copied := *message
	at := len(s.messages)
	for at > 0 && copied.Before(s.messages[at-1]) {
		at--
	}
	s.messages = append(s.messages, nil)
	copy(s.messages[at+1:], s.messages[at:])
	s.messages[at] = &copied
}

// Messages returns a snapshot of the transcript in chronological order.
func (s *Synchronizer) Messages() []entity.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]entity.ChatMessage, 0, len(s.messages))
	for _, message := range s.messages {
		snapshot = append(snapshot, *message)
	}
	return snapshot
}

func (s *Synchronizer) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *Synchronizer) Contains(messageID entity.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[messageID]
}

// Typers returns the display names of everyone currently typing, sorted
// for stable rendering.
func (s *Synchronizer) Typers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.typers))
	for _, t := range s.typers {
		names = append(names, t.displayName)
	}
	sort.Strings(names)
	return names
}
