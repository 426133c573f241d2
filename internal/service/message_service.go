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

type MessageService interface {
	// Append stores one chat message. Messages carrying an id that is
	// already stored are silently accepted: both delivery paths may try.
	Append(message *entity.ChatMessage) (*entity.ChatMessage, error)

	History(roomUUID entity.UUID, limit, offset int) ([]*entity.ChatMessage, bool, error)
}

type localMessageService struct {
	messageRepository repository.MessageRepository
	logger            rlog.Logger
}

func NewLocalMessageService(messageRepo repository.MessageRepository, logger rlog.Logger) MessageService {
	return &localMessageService{
		messageRepository: messageRepo,
		logger:            logger,
	}
}

func (m *localMessageService) Logf(format string, v ...any) {
	m.logger.Logf(format, v...)
}

func (m *localMessageService) Append(message *entity.ChatMessage) (*entity.ChatMessage, error) {
	if strings.TrimSpace(message.Body) == "" {
		return nil, fmt.Errorf("%w: message body is required", ErrValidation)
	}
	if message.UUID == "" {
		message.UUID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	if err := m.messageRepository.Create(message); err != nil {
		return nil, err
	}
	m.Logf("Message stored {%s} in room {%s}", message.UUID, message.RoomUUID)
	return message, nil
}

func (m *localMessageService) History(roomUUID entity.UUID, limit, offset int) ([]*entity.ChatMessage, bool, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return m.messageRepository.GetPage(roomUUID, limit, offset)
}
