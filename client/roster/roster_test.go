package roster

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"collabroom/client/protocol"
	"collabroom/client/rlog"
	"collabroom/internal/entity"
)

type MockRosterStore struct {
	roster []*entity.Membership
}

func (m *MockRosterStore) FetchRoster(ctx context.Context, roomID entity.UUID) ([]*entity.Membership, error) {
	return m.roster, nil
}

func membership(user entity.UUID, name string, joined time.Time) *entity.Membership {
	return &entity.Membership{
		RoomUUID: "room-1",
		UserUUID: user,
		Role:     entity.RoleMember,
		JoinedAt: joined,
		Presence: entity.PresenceOnline,
		User:     entity.User{UUID: user, DisplayName: name},
	}
}

func TestFetchRosterReplacesWholesale(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := &MockRosterStore{roster: []*entity.Membership{
		membership("user-b", "Bea", base.Add(time.Minute)),
		membership("user-a", "Al", base),
	}}
	s := New("room-1", store, rlog.Nop())

	if err := s.FetchRoster(context.Background()); err != nil {
		t.Fatalf("FetchRoster failed: %v", err)
	}
	members := s.Members()
	if len(members) != 2 || members[0].UserID != "user-a" {
		t.Errorf("Roster not ordered by join time: %+v", members)
	}

	// A shrunk server roster wins over local state.
	store.roster = store.roster[:1]
	if err := s.FetchRoster(context.Background()); err != nil {
		t.Fatalf("FetchRoster failed: %v", err)
	}
	if len(s.Members()) != 1 || s.Contains("user-a") {
		t.Error("Stale member survived the wholesale replace")
	}
}

func TestMemberJoinedIsIdempotent(t *testing.T) {
	s := New("room-1", &MockRosterStore{}, rlog.Nop())

	joined, _ := json.Marshal(protocol.MemberJoined{
		RoomID: "room-1",
		Member: protocol.Member{RoomID: "room-1", UserID: "user-a", DisplayName: "Al", Presence: entity.PresenceOnline},
	})
	s.onMemberJoined(joined)
	s.onMemberJoined(joined)

	if len(s.Members()) != 1 {
		t.Errorf("Duplicate join produced %d entries", len(s.Members()))
	}
}

func TestMemberJoinedRefreshesPresence(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	away := membership("user-a", "Al", base)
	away.Presence = entity.PresenceOffline
	s := New("room-1", &MockRosterStore{roster: []*entity.Membership{away}}, rlog.Nop())
	if err := s.FetchRoster(context.Background()); err != nil {
		t.Fatalf("FetchRoster failed: %v", err)
	}

	joined, _ := json.Marshal(protocol.MemberJoined{
		RoomID: "room-1",
		Member: protocol.Member{RoomID: "room-1", UserID: "user-a", DisplayName: "Al", Presence: entity.PresenceOnline},
	})
	s.onMemberJoined(joined)

	if s.Members()[0].Presence != entity.PresenceOnline {
		t.Error("Rejoin did not flip presence back online")
	}
}

func TestMemberLeftRemoves(t *testing.T) {
	s := New("room-1", &MockRosterStore{}, rlog.Nop())

	joined, _ := json.Marshal(protocol.MemberJoined{
		RoomID: "room-1",
		Member: protocol.Member{RoomID: "room-1", UserID: "user-a", DisplayName: "Al"},
	})
	s.onMemberJoined(joined)

	left, _ := json.Marshal(protocol.MemberLeft{RoomID: "room-1", UserID: "user-a"})
	s.onMemberLeft(left)
	s.onMemberLeft(left)

	if s.Contains("user-a") {
		t.Error("Member survived leaving")
	}
}

func TestForeignRoomEventsIgnored(t *testing.T) {
	s := New("room-1", &MockRosterStore{}, rlog.Nop())

	joined, _ := json.Marshal(protocol.MemberJoined{
		RoomID: "other-room",
		Member: protocol.Member{RoomID: "other-room", UserID: "user-x"},
	})
	s.onMemberJoined(joined)

	if s.Contains("user-x") {
		t.Error("Another room's join leaked into the roster")
	}
}
