package service

import (
	"context"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/auth"
	"civic-reporting-api/internal/models"
	"civic-reporting-api/internal/validation"
)

// AuthService registers accounts and issues bearer tokens.
type AuthService struct {
	*env
	accounts *UserService
	tokens   *auth.TokenManager
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.createAccount(ctx, req.Email, req.Password, req.Name, req.Role)
}

// CreateAdmin provisions an administrator account.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, name string) (*models.AuthResult, error) {
	if len(password) < 6 {
		return nil, apperr.Validation("password must be at least 6 characters")
	}
	return s.createAccount(ctx, email, password, name, models.RoleAdmin)
}

func (s *AuthService) createAccount(ctx context.Context, email, password, name string, role models.Role) (*models.AuthResult, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	user, err := s.accounts.CreateUser(ctx, NewUser{Email: email, PasswordHash: hash, Name: name, Role: role})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.accounts.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logFor(ctx).WithField("user_id", user.ID).Warn("failed login")
		return nil, apperr.Unauthorized("invalid email or password")
	}
	return s.issue(user)
}

// Refresh issues a fresh token for an authenticated principal whose account
// still exists.
func (s *AuthService) Refresh(ctx context.Context, p auth.Principal) (*models.AuthResult, error) {
	user, err := s.accounts.GetUserByID(ctx, p.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("account no longer exists")
		}
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*models.AuthResult, error) {
	token, err := s.tokens.Issue(auth.Principal{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &models.AuthResult{Token: token, User: user.Public()}, nil
}
