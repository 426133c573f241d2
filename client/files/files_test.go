package files

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
	"collabroom/internal/entity"
)

type MockFileStore struct {
	mu      sync.Mutex
	nextID  int
	files   map[entity.UUID]*entity.CodeFile
	updates []string
	listErr error
}

func newMockFileStore() *MockFileStore {
	return &MockFileStore{files: map[entity.UUID]*entity.CodeFile{}}
}

func (m *MockFileStore) add(name, language, content string) *entity.CodeFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	file := &entity.CodeFile{
		UUID:      entity.UUID(fmt.Sprintf("file-%d", m.nextID)),
		RoomUUID:  "room-1",
		Name:      name,
		Language:  language,
		Content:   content,
		UpdatedAt: time.Now(),
	}
	m.files[file.UUID] = file
	return file
}

func (m *MockFileStore) ListFiles(ctx context.Context, roomID entity.UUID) ([]*entity.CodeFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.CodeFile
	for n := 1; n <= m.nextID; n++ {
		if f, ok := m.files[entity.UUID(fmt.Sprintf("file-%d", n))]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *MockFileStore) GetFile(ctx context.Context, roomID, fileID entity.UUID) (*entity.CodeFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, errors.New("no such file")
	}
	return f, nil
}

func (m *MockFileStore) CreateFile(ctx context.Context, roomID entity.UUID, name, language, content string) (*entity.CodeFile, error) {
	return m.add(name, language, content), nil
}

func (m *MockFileStore) UpdateFileContent(ctx context.Context, roomID, fileID entity.UUID, content string) (*entity.CodeFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil, errors.New("no such file")
	}
	f.Content = content
	m.updates = append(m.updates, content)
	return f, nil
}

func (m *MockFileStore) DeleteFile(ctx context.Context, roomID, fileID entity.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fileID)
	return nil
}

func (m *MockFileStore) persistedContents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.updates...)
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

func newTestSynchronizer(store *MockFileStore, emitter *MockEmitter) *Synchronizer {
	s := New("room-1", "self", store, Config{
		BroadcastDebounce: 20 * time.Millisecond,
		PersistDebounce:   50 * time.Millisecond,
	}, rlog.Nop())
	s.emitter = emitter
	return s
}

func TestListFilesSelectsFirst(t *testing.T) {
	store := newMockFileStore()
	first := store.add("main.py", "python", "print('hi')\n")
	store.add("util.py", "python", "")

	s := newTestSynchronizer(store, &MockEmitter{})
	if s.State() != Loading {
		t.Error("Expected Loading before the first list")
	}

	if err := s.ListFiles(context.Background()); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if s.State() != Ready {
		t.Error("Expected Ready after the list")
	}
	if s.Selected() != first.UUID {
		t.Errorf("Expected the first file selected, got %s", s.Selected())
	}
	if s.Buffer() != "print('hi')\n" {
		t.Errorf("Buffer does not hold the selected content: %q", s.Buffer())
	}
	if len(s.Files()) != 2 {
		t.Errorf("Expected two files, got %d", len(s.Files()))
	}
}

func TestLocalEditDebounceCoalesces(t *testing.T) {
	store := newMockFileStore()
	store.add("main.py", "python", "")
	emitter := &MockEmitter{}
	s := newTestSynchronizer(store, emitter)
	if err := s.ListFiles(context.Background()); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	// A burst of edits inside the debounce window.
	s.ApplyLocalEdit("p")
	s.ApplyLocalEdit("pri")
	s.ApplyLocalEdit("print('x')")

	if s.Buffer() != "print('x')" {
		t.Errorf("Buffer should update synchronously, got %q", s.Buffer())
	}
	if len(emitter.emitted(protocol.EventCodeChange)) != 0 {
		t.Error("Broadcast fired before the debounce window closed")
	}

	time.Sleep(150 * time.Millisecond)

	broadcasts := emitter.emitted(protocol.EventCodeChange)
	if len(broadcasts) != 1 {
		t.Fatalf("Expected one coalesced broadcast, got %d", len(broadcasts))
	}
	change := broadcasts[0].(protocol.CodeChange)
	if change.Content != "print('x')" || change.UserID != "self" {
		t.Errorf("Wrong broadcast payload: %+v", change)
	}

	persisted := store.persistedContents()
	if len(persisted) != 1 || persisted[0] != "print('x')" {
		t.Errorf("Expected one coalesced persist of the final content, got %v", persisted)
	}
}

func TestRemoteEditOverwritesAndStaysLocal(t *testing.T) {
	store := newMockFileStore()
	selected := store.add("main.py", "python", "original")
	other := store.add("util.py", "python", "helpers")
	emitter := &MockEmitter{}
	s := newTestSynchronizer(store, emitter)
	if err := s.ListFiles(context.Background()); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	s.ApplyRemoteEdit(selected.UUID, "from peer", "peer")
	if s.Buffer() != "from peer" {
		t.Errorf("Remote edit on the selected file must overwrite the buffer, got %q", s.Buffer())
	}

	// An edit on an unselected file still updates the cache.
	s.ApplyRemoteEdit(other.UUID, "new helpers", "peer")
	if err := s.SelectFile(context.Background(), other.UUID); err != nil {
		t.Fatalf("SelectFile failed: %v", err)
	}
	if s.Buffer() != "new helpers" {
		t.Errorf("Cached remote edit was lost: %q", s.Buffer())
	}

	time.Sleep(150 * time.Millisecond)
	if len(emitter.emitted(protocol.EventCodeChange)) != 0 {
		t.Error("A remote edit must never be re-broadcast")
	}
	if len(store.persistedContents()) != 0 {
		t.Error("A remote edit must never be persisted by the receiver")
	}
}

func TestRemoteEchoIsDropped(t *testing.T) {
	store := newMockFileStore()
	selected := store.add("main.py", "python", "")
	s := newTestSynchronizer(store, &MockEmitter{})
	if err := s.ListFiles(context.Background()); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	s.ApplyLocalEdit("local content")
	// The hub excludes the sender, but a stray echo must still be inert.
	s.ApplyRemoteEdit(selected.UUID, "stale echo", "self")

	if s.Buffer() != "local content" {
		t.Errorf("Own echo overwrote the buffer: %q", s.Buffer())
	}
}

func TestCreateFileUsesTemplateAndAnnounces(t *testing.T) {
	store := newMockFileStore()
	emitter := &MockEmitter{}
	s := newTestSynchronizer(store, emitter)
	if err := s.ListFiles(context.Background()); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	file, err := s.CreateFile(context.Background(), "main.go", "go")
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if file.Content != DefaultTemplate("go") {
		t.Errorf("New file should open on the language template, got %q", file.Content)
	}
	if s.Selected() != file.UUID {
		t.Error("New file should become the selection")
	}
	if len(emitter.emitted(protocol.EventFileCreated)) != 1 {
		t.Error("Creation was not announced to the room")
	}

	if _, err := s.CreateFile(context.Background(), "", "go"); err == nil {
		t.Error("Empty name should be rejected")
	}
	if _, err := s.CreateFile(context.Background(), "x.cob", "cobol"); err == nil {
		t.Error("Unknown language should be rejected")
	}
}

func TestDeleteSelectedFallsBack(t *testing.T) {
	store := newMockFileStore()
	first := store.add("main.py", "python", "one")
	second := store.add("util.py", "python", "two")
	emitter := &MockEmitter{}
	s := newTestSynchronizer(store, emitter)
	if err := s.ListFiles(context.Background()); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	if err := s.DeleteFile(context.Background(), first.UUID); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if s.Selected() != second.UUID || s.Buffer() != "two" {
		t.Errorf("Selection did not fall back: %s %q", s.Selected(), s.Buffer())
	}
	if len(emitter.emitted(protocol.EventFileDeleted)) != 1 {
		t.Error("Deletion was not announced to the room")
	}

	if err := s.DeleteFile(context.Background(), second.UUID); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if s.Selected() != "" || s.Buffer() != "" {
		t.Error("Deleting the last file should leave no selection")
	}
}

func TestRemoteFileNoticesAreIdempotent(t *testing.T) {
	store := newMockFileStore()
	store.add("main.py", "python", "")
	s := newTestSynchronizer(store, &MockEmitter{})
	if err := s.ListFiles(context.Background()); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	notice, _ := json.Marshal(protocol.FileCreated{
		RoomID: "room-1",
		File:   entity.CodeFile{UUID: "file-9", RoomUUID: "room-1", Name: "peer.py", Language: "python"},
	})
	s.onRemoteFileCreated(notice)
	s.onRemoteFileCreated(notice)
	if len(s.Files()) != 2 {
		t.Errorf("Duplicate creation notice was not absorbed: %d files", len(s.Files()))
	}

	removal, _ := json.Marshal(protocol.FileDeleted{RoomID: "room-1", FileID: "file-9"})
	s.onRemoteFileDeleted(removal)
	s.onRemoteFileDeleted(removal)
	if len(s.Files()) != 1 {
		t.Errorf("Duplicate deletion notice was not absorbed: %d files", len(s.Files()))
	}
}

func TestDetachCancelsPendingWork(t *testing.T) {
	store := newMockFileStore()
	store.add("main.py", "python", "")
	emitter := &MockEmitter{}
	s := newTestSynchronizer(store, emitter)
	if err := s.ListFiles(context.Background()); err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	s.ApplyLocalEdit("never sent")
	s.Detach()

	time.Sleep(150 * time.Millisecond)
	if len(emitter.emitted(protocol.EventCodeChange)) != 0 {
		t.Error("Broadcast fired after detach")
	}
	if len(store.persistedContents()) != 0 {
		t.Error("Persist fired after detach")
	}
}
