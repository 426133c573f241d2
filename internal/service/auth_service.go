package service

import (
	"fmt"
	"time"

	"collabroom/client/rlog"
	"collabroom/internal/entity"
	"collabroom/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type AuthService interface {
	Register(username, displayName, password string) (*entity.User, *TokenPair, error)
	Login(username, password string) (*entity.User, *TokenPair, error)

	// Refresh rotates the refresh token: the presented one is revoked and a
	// fresh pair is issued. A revoked or expired token yields ErrSessionExpired.
	Refresh(refreshToken string) (*TokenPair, error)
	Revoke(refreshToken string) error

	// Validate checks a bearer access token and returns the identity it names.
	Validate(accessToken string) (*entity.User, error)
}

type localAuthService struct {
	userRepository    repository.UserRepository
	sessionRepository repository.SessionRepository
	secretKey         []byte
	accessTTL         time.Duration
	refreshTTL        time.Duration
	logger            rlog.Logger
}

func NewLocalAuthService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, secretKey string, accessTTL, refreshTTL time.Duration, logger rlog.Logger) AuthService {
	return &localAuthService{
		userRepository:    userRepo,
		sessionRepository: sessionRepo,
		secretKey:         []byte(secretKey),
		accessTTL:         accessTTL,
		refreshTTL:        refreshTTL,
		logger:            logger,
	}
}

func (a *localAuthService) Logf(format string, v ...any) {
	a.logger.Logf(format, v...)
}

func (a *localAuthService) Register(username, displayName, password string) (*entity.User, *TokenPair, error) {
	if username == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		a.Logf("Could not calculate hash{%v}", err)
		return nil, nil, err
	}

	id := uuid.New().String()

	u := &entity.User{
		UUID:        id,
		Username:    username,
		DisplayName: displayName,
		Provider:    entity.ProviderPassword,
		CreatedAt:   time.Now(),

		Secret: entity.UserSecret{
			UserUUID: id,
			Hash:     string(hash),
		},
	}
	if err := a.userRepository.Create(u); err != nil {
		return nil, nil, err
	}
	a.Logf("User registered {%s, %s}", u.UUID, u.Username)

	pair, err := a.issuePair(u.UUID)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

func (a *localAuthService) Login(username, password string) (*entity.User, *TokenPair, error) {
	u, err := a.userRepository.GetForLogin(username)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: user was not found", ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Secret.Hash), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("%w: wrong password", ErrInvalidCredentials)
	}

	pair, err := a.issuePair(u.UUID)
	if err != nil {
		return nil, nil, err
	}
	a.Logf("User logged in {%s}", u.UUID)
	return u, pair, nil
}

func (a *localAuthService) Refresh(refreshToken string) (*TokenPair, error) {
	session, err := a.sessionRepository.Get(refreshToken)
	if err != nil {
		return nil, ErrSessionExpired
	}
	if err := a.sessionRepository.Revoke(refreshToken); err != nil {
		return nil, err
	}
	pair, err := a.issuePair(session.UserUUID)
	if err != nil {
		return nil, err
	}
	a.Logf("Session refreshed for user {%s}", session.UserUUID)
	return pair, nil
}

func (a *localAuthService) Revoke(refreshToken string) error {
	return a.sessionRepository.Revoke(refreshToken)
}

func (a *localAuthService) Validate(accessToken string) (*entity.User, error) {
	token, err := jwt.Parse(accessToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrSessionExpired
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return nil, ErrSessionExpired
	}

	u, err := a.userRepository.GetByUUID(subject)
	if err != nil {
		return nil, ErrSessionExpired
	}
	return u, nil
}

func (a *localAuthService) issuePair(userUUID entity.UUID) (*TokenPair, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userUUID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.accessTTL)),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return nil, err
	}

	refresh := uuid.New().String()
	if err := a.sessionRepository.Create(&entity.UserSession{
		Token:     refresh,
		UserUUID:  userUUID,
		CreatedAt: now,
		ExpiresAt: now.Add(a.refreshTTL),
	}); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(a.accessTTL.Seconds()),
	}, nil
}
