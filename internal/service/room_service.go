package service

import (
	"fmt"
	"strings"
	"time"

	"collabroom/client/rlog"
	"collabroom/internal/entity"
	"collabroom/internal/repository"

	"github.com/google/uuid"
)

type RoomService interface {
	CreateRoom(ownerUUID entity.UUID, name, description, visibility string, capacity int) (*entity.Room, error)
	GetRoom(roomUUID entity.UUID) (*entity.Room, error)
	ListPublicRooms() ([]*entity.Room, error)
	UpdateRoom(actorUUID, roomUUID entity.UUID, name, description string) (*entity.Room, error)

	// Join accepts either a room id or a join code.
	Join(userUUID entity.UUID, roomIDOrCode string) (*entity.Room, error)
	Leave(userUUID, roomUUID entity.UUID) error

	// DeleteRoom requires the actor to be the room's ADMIN and removes the
	// room with everything in it.
	DeleteRoom(actorUUID, roomUUID entity.UUID) error

	Roster(roomUUID entity.UUID) ([]*entity.Membership, error)
	GetMember(roomUUID, userUUID entity.UUID) (*entity.Membership, error)
	SetPresence(roomUUID, userUUID entity.UUID, presence string) error
}

type localRoomService struct {
	roomRepository       repository.RoomRepository
	membershipRepository repository.MembershipRepository
	logger               rlog.Logger
}

func NewLocalRoomService(roomRepo repository.RoomRepository, membershipRepo repository.MembershipRepository, logger rlog.Logger) RoomService {
	return &localRoomService{
		roomRepository:       roomRepo,
		membershipRepository: membershipRepo,
		logger:               logger,
	}
}

func (s *localRoomService) Logf(format string, v ...any) {
	s.logger.Logf(format, v...)
}

func (s *localRoomService) CreateRoom(ownerUUID entity.UUID, name, description, visibility string, capacity int) (*entity.Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if visibility != entity.VisibilityPublic && visibility != entity.VisibilityPrivate {
		visibility = entity.VisibilityPublic
	}
	if capacity <= 0 {
		capacity = 10
	}

	room := &entity.Room{
		UUID:        uuid.New().String(),
		Name:        name,
		Description: description,
		Visibility:  visibility,
		JoinCode:    newJoinCode(),
		Capacity:    capacity,
		OwnerUUID:   ownerUUID,
		CreatedAt:   time.Now(),
	}
	if err := s.roomRepository.Create(room); err != nil {
		return nil, err
	}

	// The owner is the room's one ADMIN.
	if err := s.membershipRepository.Create(&entity.Membership{
		RoomUUID: room.UUID,
		UserUUID: ownerUUID,
		Role:     entity.RoleAdmin,
		JoinedAt: time.Now(),
		Presence: entity.PresenceOffline,
	}); err != nil {
		return nil, err
	}

	s.Logf("Room created {%s, %s, owner %s}", room.UUID, room.Name, ownerUUID)
	return room, nil
}

func (s *localRoomService) GetRoom(roomUUID entity.UUID) (*entity.Room, error) {
	room, err := s.roomRepository.GetByUUID(roomUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, roomUUID)
	}
	return room, nil
}

func (s *localRoomService) ListPublicRooms() ([]*entity.Room, error) {
	return s.roomRepository.ListPublic()
}

func (s *localRoomService) UpdateRoom(actorUUID, roomUUID entity.UUID, name, description string) (*entity.Room, error) {
	room, err := s.GetRoom(roomUUID)
	if err != nil {
		return nil, err
	}
	if room.OwnerUUID != actorUUID {
		return nil, fmt.Errorf("%w: only the owner may update the room", ErrForbidden)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if err := s.roomRepository.Update(roomUUID, name, description); err != nil {
		return nil, err
	}
	return s.roomRepository.GetByUUID(roomUUID)
}

func (s *localRoomService) Join(userUUID entity.UUID, roomIDOrCode string) (*entity.Room, error) {
	room, err := s.roomRepository.GetByUUID(roomIDOrCode)
	if err != nil {
		room, err = s.roomRepository.GetByJoinCode(roomIDOrCode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: no room matches %q", ErrNotFound, roomIDOrCode)
	}

	if _, err := s.membershipRepository.Get(room.UUID, userUUID); err == nil {
		// Already a member; joining again is a no-op.
		return room, nil
	}

	count, err := s.membershipRepository.CountByRoom(room.UUID)
	if err != nil {
		return nil, err
	}
	if count >= int64(room.Capacity) {
		return nil, ErrRoomFull
	}

	if err := s.membershipRepository.Create(&entity.Membership{
		RoomUUID: room.UUID,
		UserUUID: userUUID,
		Role:     entity.RoleMember,
		JoinedAt: time.Now(),
		Presence: entity.PresenceOffline,
	}); err != nil {
		return nil, err
	}

	s.Logf("User {%s} joined room {%s}", userUUID, room.UUID)
	return room, nil
}

func (s *localRoomService) Leave(userUUID, roomUUID entity.UUID) error {
	room, err := s.GetRoom(roomUUID)
	if err != nil {
		return err
	}
	if room.OwnerUUID == userUUID {
		return fmt.Errorf("%w: the owner cannot leave, only delete", ErrForbidden)
	}
	if err := s.membershipRepository.Delete(roomUUID, userUUID); err != nil {
		return err
	}
	s.Logf("User {%s} left room {%s}", userUUID, roomUUID)
	return nil
}

func (s *localRoomService) DeleteRoom(actorUUID, roomUUID entity.UUID) error {
	room, err := s.GetRoom(roomUUID)
	if err != nil {
		return err
	}

	member, err := s.membershipRepository.Get(roomUUID, actorUUID)
	if err != nil || member.Role != entity.RoleAdmin || room.OwnerUUID != actorUUID {
		return fmt.Errorf("%w: only the room admin may delete it", ErrForbidden)
	}

	if err := s.roomRepository.Delete(roomUUID); err != nil {
		return err
	}
	s.Logf("Room deleted {%s} by {%s}", roomUUID, actorUUID)
	return nil
}

func (s *localRoomService) Roster(roomUUID entity.UUID) ([]*entity.Membership, error) {
	return s.membershipRepository.GetRoster(roomUUID)
}

func (s *localRoomService) GetMember(roomUUID, userUUID entity.UUID) (*entity.Membership, error) {
	member, err := s.membershipRepository.Get(roomUUID, userUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %s is not in room %s", ErrNotFound, userUUID, roomUUID)
	}
	return member, nil
}

func (s *localRoomService) SetPresence(roomUUID, userUUID entity.UUID, presence string) error {
	return s.membershipRepository.SetPresence(roomUUID, userUUID, presence)
}

// newJoinCode returns a short shareable code. Uniqueness rides on the
// underlying uuid; the column's unique index is the backstop.
func newJoinCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
