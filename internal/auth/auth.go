// Package auth signs admins in and provisions their profiles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"admissions-portal/internal/config"
	"admissions-portal/internal/helper"
	"admissions-portal/internal/models"
)

const minRecaptchaScore = 0.5

var (
	ErrNotFound           = errors.New("admin not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrCaptchaRequired    = errors.New("reCAPTCHA token is required")
	ErrCaptchaRejected    = errors.New("suspicious activity detected")
)

type Store interface {
	AdminByEmail(ctx context.Context, email string) (models.AdminProfile, error)
	CreateAdmin(ctx context.Context, a *models.AdminProfile) error
}

type CaptchaVerifier interface {
	Enabled() bool
	Verify(ctx context.Context, token string) (bool, float64, error)
}

type Service struct {
	store   Store
	jwt     *config.JWT
	captcha CaptchaVerifier
	log     *slog.Logger
}

// NewService wires login. captcha may be nil to skip the reCAPTCHA step.
func NewService(store Store, jwt *config.JWT, captcha CaptchaVerifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, jwt: jwt, captcha: captcha, log: log.With(slog.String("component", "auth"))}
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.LoginResponse, error) {
	if s.captcha != nil && s.captcha.Enabled() {
		if req.RecaptchaToken == "" {
			return models.LoginResponse{}, ErrCaptchaRequired
		}
		ok, score, err := s.captcha.Verify(ctx, req.RecaptchaToken)
		if err != nil {
			return models.LoginResponse{}, fmt.Errorf("verify recaptcha: %w", err)
		}
		if !ok || score < minRecaptchaScore {
			return models.LoginResponse{}, ErrCaptchaRejected
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	admin, err := s.store.AdminByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return models.LoginResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.LoginResponse{}, err
	}

	if admin.IsBanned {
		return models.LoginResponse{}, helper.ErrUserBanned
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(req.Password)); err != nil {
		return models.LoginResponse{}, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(admin)
	if err != nil {
		return models.LoginResponse{}, fmt.Errorf("generate token: %w", err)
	}
	s.log.Info("admin signed in", slog.Int64("user_id", admin.ID))
	return models.LoginResponse{Token: token, User: models.ToAdminResponse(admin)}, nil
}

type NewAdmin struct {
	Email       string
	Password    string
	FullName    string
	Role        string
	Permissions models.Permissions
}

func (s *Service) CreateAdmin(ctx context.Context, in NewAdmin) (models.AdminProfile, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return models.AdminProfile{}, errors.New("email and password are required")
	}
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if role != models.RoleAdmin && role != models.RoleSuperAdmin {
		return models.AdminProfile{}, fmt.Errorf("unknown role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.AdminProfile{}, fmt.Errorf("hash password: %w", err)
	}
	a := models.AdminProfile{
		Email:       email,
		Password:    string(hash),
		FullName:    strings.TrimSpace(in.FullName),
		Role:        role,
		Permissions: in.Permissions,
	}
	if err := s.store.CreateAdmin(ctx, &a); err != nil {
		return models.AdminProfile{}, err
	}
	return a, nil
}
