package repository

import (
	"fmt"
	"testing"
	"time"

	"collabroom/internal/entity"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("Cannot open in-memory database: %v", err)
	}
	return db
}

func seedRoom(t *testing.T, db *gorm.DB, roomUUID, ownerUUID entity.UUID) {
	t.Helper()
	err := NewSQLiteRoomRepository(db).Create(&entity.Room{
		UUID:       roomUUID,
		Name:       "test room",
		Visibility: entity.VisibilityPublic,
		JoinCode:   "CODE" + string(roomUUID[:4]),
		Capacity:   10,
		OwnerUUID:  ownerUUID,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("Cannot seed room: %v", err)
	}
}

func TestMessageCreateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteMessageRepository(db)

	message := &entity.ChatMessage{
		UUID:      "msg-1",
		RoomUUID:  "room-1",
		UserUUID:  "user-1",
		Body:      "hello",
		CreatedAt: time.Now(),
	}

	if err := repo.Create(message); err != nil {
		t.Fatalf("First create failed: %v", err)
	}
	// The realtime path and the durable backup race to store the same id.
	if err := repo.Create(message); err != nil {
		t.Fatalf("Second create of the same id failed: %v", err)
	}

	page, _, err := repo.GetPage("room-1", 10, 0)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("Expected exactly one stored message, got %d", len(page))
	}
}

func TestMessagePagination(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteMessageRepository(db)

	base := time.Now().Add(-time.Hour)
	for n := 0; n < 7; n++ {
		err := repo.Create(&entity.ChatMessage{
			UUID:      fmt.Sprintf("msg-%d", n),
			RoomUUID:  "room-1",
			UserUUID:  "user-1",
			Body:      fmt.Sprintf("message %d", n),
			CreatedAt: base.Add(time.Duration(n) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// Newest page first.
	page, hasMore, err := repo.GetPage("room-1", 3, 0)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if !hasMore {
		t.Error("Expected more pages past the first")
	}
	if len(page) != 3 || page[0].UUID != "msg-4" || page[2].UUID != "msg-6" {
		t.Errorf("Wrong first page: %+v", page)
	}

	// Walking backwards.
	page, hasMore, err = repo.GetPage("room-1", 3, 3)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if !hasMore || len(page) != 3 || page[0].UUID != "msg-1" {
		t.Errorf("Wrong second page: %+v, hasMore=%v", page, hasMore)
	}

	page, hasMore, err = repo.GetPage("room-1", 3, 6)
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if hasMore || len(page) != 1 || page[0].UUID != "msg-0" {
		t.Errorf("Wrong last page: %+v, hasMore=%v", page, hasMore)
	}
}

func TestMembershipIdempotentJoin(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteMembershipRepository(db)
	seedRoom(t, db, "room-1", "owner-1")

	member := &entity.Membership{
		RoomUUID: "room-1",
		UserUUID: "user-1",
		Role:     entity.RoleMember,
		JoinedAt: time.Now(),
		Presence: entity.PresenceOffline,
	}
	if err := repo.Create(member); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(member); err != nil {
		t.Fatalf("Duplicate join should be a no-op, got: %v", err)
	}

	count, err := repo.CountByRoom("room-1")
	if err != nil {
		t.Fatalf("CountByRoom failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected one membership, got %d", count)
	}
}

func TestMembershipPresenceAndRoster(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteMembershipRepository(db)
	seedRoom(t, db, "room-1", "owner-1")

	joined := time.Now().Add(-time.Minute)
	for n, user := range []entity.UUID{"user-a", "user-b"} {
		err := repo.Create(&entity.Membership{
			RoomUUID: "room-1",
			UserUUID: user,
			Role:     entity.RoleMember,
			JoinedAt: joined.Add(time.Duration(n) * time.Second),
			Presence: entity.PresenceOffline,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	if err := repo.SetPresence("room-1", "user-b", entity.PresenceOnline); err != nil {
		t.Fatalf("SetPresence failed: %v", err)
	}

	roster, err := repo.GetRoster("room-1")
	if err != nil {
		t.Fatalf("GetRoster failed: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("Expected two members, got %d", len(roster))
	}
	if roster[0].UserUUID != "user-a" {
		t.Errorf("Roster not ordered by join time: %+v", roster)
	}
	if roster[1].Presence != entity.PresenceOnline {
		t.Errorf("Presence update was lost: %+v", roster[1])
	}
}

func TestRoomJoinCodeLookup(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteRoomRepository(db)
	seedRoom(t, db, "room-1", "owner-1")

	room, err := repo.GetByJoinCode("CODEroom")
	if err != nil {
		t.Fatalf("GetByJoinCode failed: %v", err)
	}
	if room.UUID != "room-1" {
		t.Errorf("Wrong room for join code: %s", room.UUID)
	}

	if _, err := repo.GetByJoinCode("NOPE0000"); err == nil {
		t.Error("Expected an error for an unknown join code")
	}
}

func TestRoomDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	roomRepo := NewSQLiteRoomRepository(db)
	membershipRepo := NewSQLiteMembershipRepository(db)
	fileRepo := NewSQLiteFileRepository(db)
	messageRepo := NewSQLiteMessageRepository(db)

	seedRoom(t, db, "room-1", "owner-1")
	if err := membershipRepo.Create(&entity.Membership{RoomUUID: "room-1", UserUUID: "owner-1", Role: entity.RoleAdmin, JoinedAt: time.Now()}); err != nil {
		t.Fatalf("Membership create failed: %v", err)
	}
	if err := fileRepo.Create(&entity.CodeFile{UUID: "file-1", RoomUUID: "room-1", Name: "main.py", Language: entity.LanguagePython, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("File create failed: %v", err)
	}
	if err := messageRepo.Create(&entity.ChatMessage{UUID: "msg-1", RoomUUID: "room-1", UserUUID: "owner-1", Body: "bye", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Message create failed: %v", err)
	}

	if err := roomRepo.Delete("room-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := roomRepo.GetByUUID("room-1"); err == nil {
		t.Error("Room survived its own deletion")
	}
	count, _ := membershipRepo.CountByRoom("room-1")
	if count != 0 {
		t.Errorf("Memberships survived room deletion: %d", count)
	}
	files, _ := fileRepo.ListByRoom("room-1")
	if len(files) != 0 {
		t.Errorf("Files survived room deletion: %d", len(files))
	}
	page, _, _ := messageRepo.GetPage("room-1", 10, 0)
	if len(page) != 0 {
		t.Errorf("Messages survived room deletion: %d", len(page))
	}
}
