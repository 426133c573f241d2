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

type FileService interface {
	CreateFile(roomUUID entity.UUID, name, language, content string) (*entity.CodeFile, error)
	ListFiles(roomUUID entity.UUID) ([]*entity.CodeFile, error)
	GetFile(fileUUID entity.UUID) (*entity.CodeFile, error)
	UpdateContent(fileUUID entity.UUID, content string) (*entity.CodeFile, error)

	// DeleteFile is open to any member; file ownership is not tracked.
	DeleteFile(fileUUID entity.UUID) error
}

type localFileService struct {
	fileRepository repository.FileRepository
	logger         rlog.Logger
}

func NewLocalFileService(fileRepo repository.FileRepository, logger rlog.Logger) FileService {
	return &localFileService{
		fileRepository: fileRepo,
		logger:         logger,
	}
}

func (s *localFileService) Logf(format string, v ...any) {
	s.logger.Logf(format, v...)
}

func (s *localFileService) CreateFile(roomUUID entity.UUID, name, language, content string) (*entity.CodeFile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if !entity.IsKnownLanguage(language) {
		return nil, fmt.Errorf("%w: unknown language %q", ErrValidation, language)
	}

	file := &entity.CodeFile{
		UUID:      uuid.New().String(),
		RoomUUID:  roomUUID,
		Name:      name,
		Language:  language,
		Content:   content,
		UpdatedAt: time.Now(),
	}
	if err := s.fileRepository.Create(file); err != nil {
		return nil, err
	}
	s.Logf("File created {%s, %s} in room {%s}", file.UUID, file.Name, roomUUID)
	return file, nil
}

func (s *localFileService) ListFiles(roomUUID entity.UUID) ([]*entity.CodeFile, error) {
	return s.fileRepository.ListByRoom(roomUUID)
}

func (s *localFileService) GetFile(fileUUID entity.UUID) (*entity.CodeFile, error) {
	file, err := s.fileRepository.GetByUUID(fileUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileUUID)
	}
	return file, nil
}

func (s *localFileService) UpdateContent(fileUUID entity.UUID, content string) (*entity.CodeFile, error) {
	if _, err := s.GetFile(fileUUID); err != nil {
		return nil, err
	}
	if err := s.fileRepository.UpdateContent(fileUUID, content); err != nil {
		return nil, err
	}
	return s.fileRepository.GetByUUID(fileUUID)
}

func (s *localFileService) DeleteFile(fileUUID entity.UUID) error {
	if _, err := s.GetFile(fileUUID); err != nil {
		return err
	}
	if err := s.fileRepository.Delete(fileUUID); err != nil {
		return err
	}
	s.Logf("File deleted {%s}", fileUUID)
	return nil
}
