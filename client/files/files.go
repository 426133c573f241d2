package files

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"collabroom/client/channel"
	"collabroom/client/protocol"
	"collabroom/client/rlog"
	"collabroom/client/session"
	"collabroom/internal/entity"
)

type State int

const (
	Loading State = iota
	Ready
)

const (
	DefaultBroadcastDebounce = 200 * time.Millisecond
	DefaultPersistDebounce   = 1000 * time.Millisecond

	persistTimeout = 10 * time.Second
)

// store is the slice of the durable-store surface this synchronizer needs.
type store interface {
	ListFiles(ctx context.Context, roomID entity.UUID) ([]*entity.CodeFile, error)
	GetFile(ctx context.Context, roomID, fileID entity.UUID) (*entity.CodeFile, error)
	CreateFile(ctx context.Context, roomID entity.UUID, name, language, content string) (*entity.CodeFile, error)
	UpdateFileContent(ctx context.Context, roomID, fileID entity.UUID, content string) (*entity.CodeFile, error)
	DeleteFile(ctx context.Context, roomID, fileID entity.UUID) error
}

type emitter interface {
	Emit(event string, payload any) error
}

type Config struct {
	BroadcastDebounce time.Duration
	PersistDebounce   time.Duration
}

func DefaultConfig() Config {
	return Config{
		BroadcastDebounce: DefaultBroadcastDebounce,
		PersistDebounce:   DefaultPersistDebounce,
	}
}

// Synchronizer owns the file list of one room and the text buffer of the
// currently selected file. Local edits land in the buffer synchronously;
// the network sees them through two independent debounced tasks (broadcast
// and persist). Remote edits overwrite unconditionally: last writer wins,
// and an inbound edit never triggers an outbound one.
type Synchronizer struct {
	roomID entity.UUID
	selfID entity.UUID
	api    store
	logger rlog.Logger

	broadcastTask *delayedTask
	persistTask   *delayedTask

	mu        sync.Mutex
	state     State
	order     []entity.UUID
	files     map[entity.UUID]*entity.CodeFile
	selected  entity.UUID
	buffer    string
	selectGen int
	cursors   map[entity.UUID]protocol.CursorPosition
	emitter   emitter

	unsubscribes []func()
}

func New(roomID, selfID entity.UUID, api store, cfg Config, logger rlog.Logger) *Synchronizer {
	if logger == nil {
		logger = rlog.Nop()
	}
	if cfg.BroadcastDebounce <= 0 {
		cfg.BroadcastDebounce = DefaultBroadcastDebounce
	}
	if cfg.PersistDebounce <= 0 {
		cfg.PersistDebounce = DefaultPersistDebounce
	}
	return &Synchronizer{
		roomID:        roomID,
		selfID:        selfID,
		api:           api,
		logger:        logger,
		broadcastTask: newDelayedTask(cfg.BroadcastDebounce),
		persistTask:   newDelayedTask(cfg.PersistDebounce),
		state:         Loading,
		files:         make(map[entity.UUID]*entity.CodeFile),
		cursors:       make(map[entity.UUID]protocol.CursorPosition),
	}
}

func (s *Synchronizer) Logf(format string, v ...any) {
	s.logger.Logf(format, v...)
}

// Attach borrows the room channel from the controller and wires the remote
// event handlers.
func (s *Synchronizer) Attach(ch *channel.Channel) {
	s.mu.Lock()
	s.emitter = ch
	s.mu.Unlock()

	s.unsubscribes = append(s.unsubscribes,
		ch.Subscribe(protocol.EventCodeUpdated, s.onCodeUpdated),
		ch.Subscribe(protocol.EventFileCreated, s.onRemoteFileCreated),
		ch.Subscribe(protocol.EventFileDeleted, s.onRemoteFileDeleted),
		ch.Subscribe(protocol.EventCursorMoved, s.onCursorMoved),
	)
}

// Detach cancels pending debounce tasks and drops subscriptions. A pending
// broadcast that has not fired yet is lost; the persistence path or the
// next session's resync recovers the content.
func (s *Synchronizer) Detach() {
	for _, unsubscribe := range s.unsubscribes {
		unsubscribe()
	}
	s.unsubscribes = nil
	s.broadcastTask.Cancel()
	s.persistTask.Cancel()

	s.mu.Lock()
	s.emitter = nil
	s.mu.Unlock()
}

func (s *Synchronizer) Clear() {
	s.mu.Lock()
	s.state = Loading
	s.order = nil
	s.files = make(map[entity.UUID]*entity.CodeFile)
	s.selected = ""
	s.buffer = ""
	s.cursors = make(map[entity.UUID]protocol.CursorPosition)
	s.selectGen++
	s.mu.Unlock()
}

// ListFiles replaces the local list wholesale with the authoritative one.
// Called once on room entry and again after a reconnect.
func (s *Synchronizer) ListFiles(ctx context.Context) error {
	fetched, err := s.api.ListFiles(ctx, s.roomID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.files = make(map[entity.UUID]*entity.CodeFile, len(fetched))
	for _, file := range fetched {
		copied := *file
		s.order = append(s.order, copied.UUID)
		s.files[copied.UUID] = &copied
	}
	s.state = Ready

	if current, ok := s.files[s.selected]; ok {
		s.buffer = current.Content
	} else if len(s.order) > 0 {
		s.selected = s.order[0]
		s.buffer = s.files[s.order[0]].Content
	} else {
		s.selected = ""
		s.buffer = ""
	}
	s.selectGen++

	s.Logf("File list resynced, %d files", len(s.order))
	return nil
}

// CreateFile asks the store for the file, then appends it locally,
// announces it to the other members and selects it. The new file opens on
// the language's starter template.
func (s *Synchronizer) CreateFile(ctx context.Context, name, language string) (*entity.CodeFile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &session.APIError{Kind: session.KindValidation, Message: "file name is required"}
	}
	if !entity.IsKnownLanguage(language) {
		return nil, &session.APIError{Kind: session.KindValidation, Message: "unknown language " + language}
	}

	file, err := s.api.CreateFile(ctx, s.roomID, name, language, DefaultTemplate(language))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.insertLocked(file)
	s.selected = file.UUID
	s.buffer = file.Content
	s.selectGen++
	e := s.emitter
	s.mu.Unlock()

	if e != nil {
		if err := e.Emit(protocol.EventFileCreated, protocol.FileCreated{RoomID: s.roomID, File: *file}); err != nil {
			s.Logf("file-created broadcast dropped {%v}", err)
		}
	}
	return file, nil
}

// SelectFile switches the editing target. A locally cached file switches
// synchronously; content is whatever the list fetch or edit broadcasts
// left behind, which is trusted to be current. Only an unknown id costs a
// fetch, and a fetch superseded by a newer selection is ignored.
func (s *Synchronizer) SelectFile(ctx context.Context, fileID entity.UUID) error {
	s.mu.Lock()
	if file, ok := s.files[fileID]; ok {
		s.selected = fileID
		s.buffer = file.Content
		s.selectGen++
		s.mu.Unlock()
		return nil
	}
	s.selectGen++
	generation := s.selectGen
	s.mu.Unlock()

	file, err := s.api.GetFile(ctx, s.roomID, fileID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectGen != generation {
		// A newer selection won the race; drop the stale response.
		return nil
	}
	s.insertLocked(file)
	s.selected = file.UUID
	s.buffer = file.Content
	return nil
}

// ApplyLocalEdit is fired on every keystroke-level change. The buffer is
// updated immediately; the network sees the content only after the
// debounce windows quiet down, and each new edit replaces both pending
// tasks with the newer content.
func (s *Synchronizer) ApplyLocalEdit(content string) {
	s.mu.Lock()
	if s.selected == "" {
		s.mu.Unlock()
		return
	}
	fileID := s.selected
	s.buffer = content
	if file, ok := s.files[fileID]; ok {
		file.Content = content
	}
	s.mu.Unlock()

	s.broadcastTask.Schedule(func() { s.broadcastEdit(fileID, content) })
	s.persistTask.Schedule(func() { s.persistEdit(fileID, content) })
}

func (s *Synchronizer) broadcastEdit(fileID entity.UUID, content string) {
	s.mu.Lock()
	e := s.emitter
	s.mu.Unlock()
	if e == nil {
		return
	}

	err := e.Emit(protocol.EventCodeChange, protocol.CodeChange{
		RoomID:  s.roomID,
		FileID:  fileID,
		Content: content,
		UserID:  s.selfID,
	})
	if err != nil {
		// Silently dropped: the next debounce cycle or the persistence
		// save is the recovery path.
		s.Logf("Edit broadcast dropped {%v}", err)
	}
}

func (s *Synchronizer) persistEdit(fileID entity.UUID, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if _, err := s.api.UpdateFileContent(ctx, s.roomID, fileID, content); err != nil {
		s.Logf("Edit persistence failed {%v}", err)
	}
}

// ApplyRemoteEdit applies one inbound code-updated event. Own echoes are
// dropped; everything else overwrites unconditionally and never re-enters
// the broadcast or persistence paths.
func (s *Synchronizer) ApplyRemoteEdit(fileID entity.UUID, content string, originUserID entity.UUID) {
	if originUserID == s.selfID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if file, ok := s.files[fileID]; ok {
		file.Content = content
	}
	if s.selected == fileID {
		s.buffer = content
	}
}

// DeleteFile removes the file from the store first; local state is only
// touched after the server confirmed. Deleting the selected file falls
// back to another remaining file, or to no selection.
func (s *Synchronizer) DeleteFile(ctx context.Context, fileID entity.UUID) error {
	if err := s.api.DeleteFile(ctx, s.roomID, fileID); err != nil {
		return err
	}

	s.mu.Lock()
	s.removeLocked(fileID)
	e := s.emitter
	s.mu.Unlock()

	if e != nil {
		if err := e.Emit(protocol.EventFileDeleted, protocol.FileDeleted{RoomID: s.roomID, FileID: fileID}); err != nil {
			s.Logf("file-deleted broadcast dropped {%v}", err)
		}
	}
	return nil
}

// EmitCursor shares the local caret with the room. Fire and forget.
func (s *Synchronizer) EmitCursor(line, column int, selection string) {
	s.mu.Lock()
	fileID := s.selected
	e := s.emitter
	s.mu.Unlock()
	if fileID == "" || e == nil {
		return
	}

	e.Emit(protocol.EventCursorPosition, protocol.CursorPosition{
		RoomID:    s.roomID,
		FileID:    fileID,
		Line:      line,
		Column:    column,
		Selection: selection,
	})
}

func (s *Synchronizer) onCodeUpdated(data json.RawMessage) {
	var change protocol.CodeChange
	if err := json.Unmarshal(data, &change); err != nil || change.RoomID != s.roomID {
		return
	}
	s.ApplyRemoteEdit(change.FileID, change.Content, change.UserID)
}

// onRemoteFileCreated appends unless the id is already known; duplicate
// notices are no-ops. Selection stays where it is.
func (s *Synchronizer) onRemoteFileCreated(data json.RawMessage) {
	var event protocol.FileCreated
	if err := json.Unmarshal(data, &event); err != nil || event.RoomID != s.roomID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	file := event.File
	s.insertLocked(&file)
}

func (s *Synchronizer) onRemoteFileDeleted(data json.RawMessage) {
	var event protocol.FileDeleted
	if err := json.Unmarshal(data, &event); err != nil || event.RoomID != s.roomID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(event.FileID)
}

func (s *Synchronizer) onCursorMoved(data json.RawMessage) {
	var cursor protocol.CursorPosition
	if err := json.Unmarshal(data, &cursor); err != nil || cursor.RoomID != s.roomID || cursor.UserID == s.selfID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursor.UserID] = cursor
}

func (s *Synchronizer) insertLocked(file *entity.CodeFile) {
	if _, ok := s.files[file.UUID]; ok {
		return
	}
	copied := *file
	s.order = append(s.order, copied.UUID)
	s.files[copied.UUID] = &copied
}

func (s *Synchronizer) removeLocked(fileID entity.UUID) {
	if _, ok := s.files[fileID]; !ok {
		return
	}
	delete(s.files, fileID)
	for i, id := range s.order {
		if id == fileID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.selected == fileID {
		s.selectGen++
		if len(s.order) > 0 {
			s.selected = s.order[0]
			s.buffer = s.files[s.order[0]].Content
		} else {
			s.selected = ""
			s.buffer = ""
		}
	}
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Files returns a snapshot of the list in stable order.
func (s *Synchronizer) Files() []entity.CodeFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]entity.CodeFile, 0, len(s.order))
	for _, id := range s.order {
		snapshot = append(snapshot, *s.files[id])
	}
	return snapshot
}

// Selected returns the current file id, or "" when no file is selected.
func (s *Synchronizer) Selected() entity.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Buffer returns the editable content of the selected file.
func (s *Synchronizer) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// RemoteCursors returns the last known caret of every other member.
func (s *Synchronizer) RemoteCursors() map[entity.UUID]protocol.CursorPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[entity.UUID]protocol.CursorPosition, len(s.cursors))
	for id, cursor := range s.cursors {
		snapshot[id] = cursor
	}
	return snapshot
}
