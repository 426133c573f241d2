package roster

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"collabroom/client/channel"
	"collabroom/client/protocol"
	"collabroom/client/rlog"
	"collabroom/internal/entity"
)

// store is the slice of the durable-store surface this synchronizer needs.
type store interface {
	FetchRoster(ctx context.Context, roomID entity.UUID) ([]*entity.Membership, error)
}

// Synchronizer keeps the live roster of one room: reconciled wholesale by
// FetchRoster and patched incrementally by member-joined / member-left
// events. Only eventual consistency with the server roster is promised; a
// suspected gap (reconnect) is repaired with another full fetch.
type Synchronizer struct {
	roomID entity.UUID
	api    store
	logger rlog.Logger

	mu      sync.RWMutex
	members map[entity.UUID]protocol.Member

	unsubscribes []func()
}

func New(roomID entity.UUID, api store, logger rlog.Logger) *Synchronizer {
	if logger == nil {
		logger = rlog.Nop()
	}
	return &Synchronizer{
		roomID:  roomID,
		api:     api,
		logger:  logger,
		members: make(map[entity.UUID]protocol.Member),
	}
}

func (s *Synchronizer) Logf(format string, v ...any) {
	s.logger.Logf(format, v...)
}

// Attach wires the synchronizer to a channel lent by the controller.
func (s *Synchronizer) Attach(ch *channel.Channel) {
	s.unsubscribes = append(s.unsubscribes,
		ch.Subscribe(protocol.EventMemberJoined, s.onMemberJoined),
		ch.Subscribe(protocol.EventMemberLeft, s.onMemberLeft),
	)
}

// Detach drops the channel subscriptions. Roster state survives until
// Clear; the controller decides when per-room state dies.
func (s *Synchronizer) Detach() {
	for _, unsubscribe := range s.unsubscribes {
		unsubscribe()
	}
	s.unsubscribes = nil
}

func (s *Synchronizer) Clear() {
	s.mu.Lock()
	s.members = make(map[entity.UUID]protocol.Member)
	s.mu.Unlock()
}

// FetchRoster replaces the local roster with the authoritative one.
func (s *Synchronizer) FetchRoster(ctx context.Context) error {
	roster, err := s.api.FetchRoster(ctx, s.roomID)
	if err != nil {
		return err
	}

	fresh := make(map[entity.UUID]protocol.Member, len(roster))
	for _, membership := range roster {
		fresh[membership.UserUUID] = protocol.Member{
			RoomID:      membership.RoomUUID,
			UserID:      membership.UserUUID,
			DisplayName: membership.User.DisplayName,
			AvatarRef:   membership.User.AvatarRef,
			Role:        membership.Role,
			JoinedAt:    membership.JoinedAt,
			Presence:    membership.Presence,
		}
	}

	s.mu.Lock()
	s.members = fresh
	s.mu.Unlock()
	s.Logf("Roster resynced, %d members", len(fresh))
	return nil
}

// onMemberJoined appends unless present: duplicate joins are no-ops.
func (s *Synchronizer) onMemberJoined(data json.RawMessage) {
	var event protocol.MemberJoined
	if err := json.Unmarshal(data, &event); err != nil || event.RoomID != s.roomID {
		return
	}

	s.mu.Lock()
	if existing, ok := s.members[event.Member.UserID]; ok {
		existing.Presence = entity.PresenceOnline
		s.members[event.Member.UserID] = existing
	} else {
		s.members[event.Member.UserID] = event.Member
	}
	s.mu.Unlock()
	s.Logf("Member joined {%s}", event.Member.UserID)
}

func (s *Synchronizer) onMemberLeft(data json.RawMessage) {
	var event protocol.MemberLeft
	if err := json.Unmarshal(data, &event); err != nil || event.RoomID != s.roomID {
		return
	}

	s.mu.Lock()
	delete(s.members, event.UserID)
	s.mu.Unlock()
	s.Logf("Member left {%s}", event.UserID)
}

// Members returns the roster ordered by join time.
func (s *Synchronizer) Members() []protocol.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]protocol.Member, 0, len(s.members))
	for _, member := range s.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].UserID < members[j].UserID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members
}

func (s *Synchronizer) Contains(userID entity.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[userID]
	return ok
}
