package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bloomquiz-backend/internal/data/db"
	"github.com/yungbote/bloomquiz-backend/internal/data/repos"
	types "github.com/yungbote/bloomquiz-backend/internal/domain"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/dbctx"
	"github.com/yungbote/bloomquiz-backend/internal/pkg/logger"
)

const (
	PurposeAccess = "access"
	PurposeReset  = "reset"

	DefaultAccessTTL = 30 * time.Minute
	DefaultResetTTL  = 15 * time.Minute
)

type AuthService interface {
	Signup(ctx context.Context, name, email, password string) (*types.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	CurrentUser(ctx context.Context, token string) (*types.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	AccessTTL() time.Duration
}

type AuthConfig struct {
	SecretKey  string
	AccessTTL  time.Duration
	ResetTTL   time.Duration
	BcryptCost int
	// Now overrides the clock used for issuing and validating tokens.
	Now func() time.Time
}

// ResetTokenSender delivers a password reset token out of band.
type ResetTokenSender interface {
	SendResetToken(ctx context.Context, user *types.User, token string, expiresAt time.Time) error
}

type logResetSender struct {
	log *logger.Logger
}

// NewLogResetSender records that a reset token was issued without delivering
// it anywhere. The token itself is redacted by the logger.
func NewLogResetSender(log *logger.Logger) ResetTokenSender {
	return &logResetSender{log: log.With("component", "ResetTokenSender")}
}

func (s *logResetSender) SendResetToken(ctx context.Context, user *types.User, token string, expiresAt time.Time) error {
	s.log.Info("password reset token issued", "user_id", user.ID, "token", token, "expires_at", expiresAt)
	return nil
}

type tokenClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type authService struct {
	db     *gorm.DB
	log    *logger.Logger
	users  repos.UserRepo
	sender ResetTokenSender

	secret    []byte
	accessTTL time.Duration
	resetTTL  time.Duration
	cost      int
	now       func() time.Time
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	users repos.UserRepo,
	sender ResetTokenSender,
	cfg AuthConfig,
) AuthService {
	serviceLog := baseLog.With("service", "AuthService")
	if sender == nil {
		sender = NewLogResetSender(baseLog)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &authService{
		db:        db,
		log:       serviceLog,
		users:     users,
		sender:    sender,
		secret:    []byte(cfg.SecretKey),
		accessTTL: cfg.AccessTTL,
		resetTTL:  cfg.ResetTTL,
		cost:      cfg.BcryptCost,
		now:       cfg.Now,
	}
}

func (s *authService) AccessTTL() time.Duration { return s.accessTTL }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Signup(ctx context.Context, name, email, password string) (*types.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, invalidInput("name is required")
	}
	if email == "" {
		return nil, invalidInput("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalidInput("email is malformed")
	}
	if password == "" {
		return nil, invalidInput("password is required")
	}

	exists, err := s.users.EmailExists(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hash, err := hashPassword(password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &types.User{Name: name, Email: email, PasswordHash: hash}
	if _, err := s.users.Create(dbctx.Context{Ctx: ctx}, []*types.User{user}); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user signed up", "user_id", user.ID)
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		burnPasswordCheck(password, s.cost)
		return "", ErrInvalidCredentials
	}
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		burnPasswordCheck(password, s.cost)
		return "", ErrInvalidCredentials
	}
	if !checkPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	tok, _, err := s.issue(user.Email, PurposeAccess, s.accessTTL)
	if err != nil {
		return "", err
	}
	return tok, nil
}

func (s *authService) CurrentUser(ctx context.Context, token string) (*types.User, error) {
	claims, err := s.parse(token, PurposeAccess)
	if err != nil {
		return nil, err
	}
	user, err := s.userByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		s.log.Warn("forgot password lookup failed", "error", err)
		return nil
	}
	if user == nil {
		return nil
	}
	tok, exp, err := s.issue(user.Email, PurposeReset, s.resetTTL)
	if err != nil {
		s.log.Error("issue reset token failed", "user_id", user.ID, "error", err)
		return nil
	}
	if err := s.sender.SendResetToken(ctx, user, tok, exp); err != nil {
		s.log.Warn("deliver reset token failed", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.parse(token, PurposeReset)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return invalidInput("new_password is required")
	}
	user, err := s.userByEmail(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidToken
	}
	hash, err := hashPassword(newPassword, s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(dbctx.Context{Ctx: ctx}, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.Info("password reset", "user_id", user.ID)
	return nil
}

func (s *authService) userByEmail(ctx context.Context, email string) (*types.User, error) {
	users, err := s.users.GetByEmails(dbctx.Context{Ctx: ctx}, []string{email})
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if len(users) == 0 || users[0] == nil {
		return nil, nil
	}
	return users[0], nil
}

func (s *authService) issue(subject, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := tokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tok, exp, nil
}

func (s *authService) parse(token, purpose string) (*tokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Purpose != purpose || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
