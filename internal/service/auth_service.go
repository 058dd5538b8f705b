package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
	"assetlend/internal/repository"
	"assetlend/internal/security"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest may be empty when the token travels in the refresh_token cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type MeResponse struct {
	UserResponse
	Permissions []authz.Permission `json:"permissions"`
}

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	// Authenticate resolves an access token to the caller behind it.
	Authenticate(ctx context.Context, accessToken string) (authz.Caller, error)
	Me(ctx context.Context, caller authz.Caller) (*MeResponse, error)
}

type authService struct {
	users      repository.UserRepository
	hasher     security.PasswordHasher
	tokens     security.TokenIssuer
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(users repository.UserRepository, hasher security.PasswordHasher, tokens security.TokenIssuer, accessTTL, refreshTTL time.Duration) AuthService {
	return &authService{users: users, hasher: hasher, tokens: tokens, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidCredentials("Incorrect email or password")
		}
		return nil, notFoundOr(err, "User", "load user")
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, apperr.InvalidCredentials("Incorrect email or password")
	}
	if !user.IsActive {
		return nil, apperr.InactiveAccount()
	}
	return s.issuePair(user.ID.String())
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, apperr.InvalidCredentials("Invalid refresh token")
	}
	if claims.Kind != security.KindRefresh {
		return nil, apperr.InvalidCredentials("Invalid token type")
	}
	user, err := s.userFromSubject(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.InactiveAccount()
	}
	return s.issuePair(user.ID.String())
}

// Authenticate does not reject inactive users; the gate does, so that the
// distinct inactive error reaches the caller.
func (s *authService) Authenticate(ctx context.Context, accessToken string) (authz.Caller, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return authz.Caller{}, apperr.InvalidCredentials("Could not validate credentials")
	}
	if claims.Kind != security.KindAccess {
		return authz.Caller{}, apperr.InvalidCredentials("Invalid token type")
	}
	user, err := s.userFromSubject(ctx, claims.Subject)
	if err != nil {
		return authz.Caller{}, err
	}
	return authz.CallerFromUser(user), nil
}

func (s *authService) Me(ctx context.Context, caller authz.Caller) (*MeResponse, error) {
	user, err := s.users.FindByID(ctx, caller.ID)
	if err != nil {
		return nil, notFoundOr(err, "User", "load user")
	}
	return &MeResponse{
		UserResponse: *toUserResponse(user),
		Permissions:  authz.PermissionsFor(user.RoleName()),
	}, nil
}

func (s *authService) userFromSubject(ctx context.Context, sub string) (*model.User, error) {
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, apperr.InvalidCredentials("Invalid user ID format")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidCredentials("User not found")
		}
		return nil, notFoundOr(err, "User", "load user")
	}
	return user, nil
}

func (s *authService) issuePair(subject string) (*TokenResponse, error) {
	access, err := s.tokens.Issue(subject, security.KindAccess, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(subject, security.KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
