package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"meetspot-api/internal/jwt"
	"meetspot-api/internal/model"
	"meetspot-api/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
)

type AuthService interface {
	RegisterUser(ctx context.Context, email, password string) (*model.User, error)
	LoginUser(ctx context.Context, email, password string) (accessToken string, refreshToken string, err error)
	OAuthLogin(ctx context.Context, email, oauthID string) (accessToken string, err error)
	GetUserProfile(ctx context.Context, userID uuid.UUID) (*model.User, error)
	RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error)
	LogoutUser(ctx context.Context, refreshTokenString string) error
}

type authService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
}

func NewAuthService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository) AuthService {
	return &authService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
	}
}

func (s *authService) RegisterUser(ctx context.Context, email, password string) (*model.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return nil, err
	}

	hash := string(hashedPassword)
	user := &model.User{
		Email:        email,
		PasswordHash: &hash,
	}

	newID, err := s.userRepo.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	user.ID = newID

	return user, nil
}

func (s *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil || user == nil {
		return "", "", ErrInvalidCredentials
	}

	// OAuth-only accounts have no password hash to compare against.
	if user.PasswordHash == nil {
		return "", "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := jwt.GenerateTokens(user)
	if err != nil {
		return "", "", err
	}

	if err := s.storeRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// OAuthLogin links an external identity to an existing account by email
// match, or creates a passwordless account for a first-time login.
func (s *authService) OAuthLogin(ctx context.Context, email, oauthID string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if user == nil {
		id := oauthID
		user = &model.User{
			Email:   email,
			OAuthID: &id,
		}

		newID, err := s.userRepo.Create(ctx, user)
		if err != nil {
			return "", err
		}
		user.ID = newID
	} else if !user.IsOAuthUser() {
		if err := s.userRepo.LinkOAuthID(ctx, user.ID, oauthID); err != nil {
			return "", err
		}
	}

	accessToken, _, err := jwt.GenerateTokens(user)
	if err != nil {
		return "", err
	}

	return accessToken, nil
}

func (s *authService) GetUserProfile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

func (s *authService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	claims, err := jwt.ValidateToken(refreshTokenString)

	if err != nil {
		return "", ErrTokenInvalid
	}

	_, err = s.tokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenString))
	if err != nil {
		return "", ErrTokenInvalid
	}

	userID, _ := uuid.Parse(claims["sub"].(string))
	user, err := s.userRepo.FindByID(ctx, userID)

	if err != nil {
		return "", ErrTokenInvalid
	}

	newAccessToken, _, err := jwt.GenerateTokens(user)

	if err != nil {
		return "", err
	}

	return newAccessToken, nil
}

func (s *authService) LogoutUser(ctx context.Context, refreshTokenString string) error {
	return s.tokenRepo.Delete(ctx, hashToken(refreshTokenString))
}

func (s *authService) storeRefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	return s.tokenRepo.Create(ctx, &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: time.Now().Add(time.Hour * 24 * 30),
	})
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
