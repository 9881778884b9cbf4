// Package auth implements the admin panel's two-step sign-in: a password
// check followed by a one-time email code that is exchanged for a session.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/clinic-admin/internal/notify"
	"github.com/hackgods/clinic-admin/internal/validate"
	"github.com/hackgods/clinic-admin/pkg/logging"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrInvalidResetToken  = errors.New("invalid or expired reset link")
	ErrEmailTaken         = errors.New("email already registered")
)

const (
	otpPrefix       = "auth:otp:"
	attemptsPrefix  = "auth:otp-attempts:"
	sessionPrefix   = "auth:session:"
	resetPrefix     = "auth:reset:"
	codeDigits      = 6
	maxCodeAttempts = 5
)

type Settings struct {
	Secret     string
	SessionTTL time.Duration
	OTPTTL     time.Duration
	ResetTTL   time.Duration
	ResetURL   string
}

// Session is what a verified code is exchanged for.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Admin     *Admin    `json:"admin"`
}

type Service struct {
	repo     Repository
	rdb      *redis.Client
	mailer   notify.EmailSender
	settings Settings
	logger   *logging.Logger
	now      func() time.Time
	cost     int
}

func NewService(repo Repository, rdb *redis.Client, mailer notify.EmailSender, settings Settings, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if mailer == nil {
		mailer = notify.NewStubEmailSender(logger)
	}
	if settings.SessionTTL <= 0 {
		settings.SessionTTL = 12 * time.Hour
	}
	if settings.OTPTTL <= 0 {
		settings.OTPTTL = 5 * time.Minute
	}
	if settings.ResetTTL <= 0 {
		settings.ResetTTL = time.Hour
	}
	return &Service{
		repo:     repo,
		rdb:      rdb,
		mailer:   mailer,
		settings: settings,
		logger:   logger,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

// HashPassword hashes with the service bcrypt cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Register provisions an admin account.
func (s *Service) Register(ctx context.Context, email, name, password string) (*Admin, error) {
	if !validate.Email(email) {
		return nil, validate.Errorf("email must be a valid email address")
	}
	if err := validate.Password(password, password); err != nil {
		return nil, err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, &Admin{Email: email, Name: name, PasswordHash: hash})
}

// SignIn checks the password and, on success, emails a one-time code.
func (s *Service) SignIn(ctx context.Context, email, password string) error {
	admin, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrAdminNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		s.logger.Warn("sign in rejected", "email", normalizeEmail(email))
		return ErrInvalidCredentials
	}
	return s.sendCode(ctx, admin)
}

// SendCode emails a fresh one-time code. Unknown emails are ignored so the
// endpoint does not reveal which addresses exist.
func (s *Service) SendCode(ctx context.Context, email string) error {
	admin, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrAdminNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.sendCode(ctx, admin)
}

func (s *Service) sendCode(ctx context.Context, admin *Admin) error {
	code, err := newCode()
	if err != nil {
		return err
	}
	email := normalizeEmail(admin.Email)
	if err := s.rdb.Set(ctx, otpPrefix+email, code, s.settings.OTPTTL).Err(); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	if err := s.rdb.Del(ctx, attemptsPrefix+email).Err(); err != nil {
		s.logger.Warn("reset code attempts failed", "admin_id", admin.ID, "error", err)
	}
	msg := notify.EmailMessage{
		To:      admin.Email,
		ToName:  admin.Name,
		Subject: "Your sign-in code",
		Body: fmt.Sprintf("Your clinic admin sign-in code is %s. It expires in %d minutes.",
			code, int(s.settings.OTPTTL/time.Minute)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	s.logger.Info("sign-in code sent", "admin_id", admin.ID)
	return nil
}

// VerifyCode consumes the code and opens a session. A code works once. A
// wrong code leaves the stored one in place until maxCodeAttempts failures
// burn it.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*Session, error) {
	key := otpPrefix + normalizeEmail(email)
	stored, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("load code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		s.failedAttempt(ctx, normalizeEmail(email))
		return nil, ErrInvalidCode
	}
	// Only the caller that deletes the key wins a concurrent verify.
	removed, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	if removed == 0 {
		return nil, ErrInvalidCode
	}
	s.rdb.Del(ctx, attemptsPrefix+normalizeEmail(email))

	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	token, claims, err := signSession([]byte(s.settings.Secret), admin, now, s.settings.SessionTTL)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, sessionPrefix+claims.ID, admin.ID.String(), s.settings.SessionTTL).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	s.logger.Info("session opened", "admin_id", admin.ID)
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Admin: admin}, nil
}

// CurrentUser resolves a session token to its admin.
func (s *Service) CurrentUser(ctx context.Context, token string) (*Admin, error) {
	claims, err := s.claims(ctx, token)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.AdminID)
	if err != nil {
		return nil, errors.Join(ErrInvalidSession, err)
	}
	admin, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrAdminNotFound) {
		return nil, ErrInvalidSession
	}
	return admin, err
}

func (s *Service) failedAttempt(ctx context.Context, email string) {
	key := attemptsPrefix + email
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Warn("count code attempt failed", "error", err)
		return
	}
	if n == 1 {
		s.rdb.Expire(ctx, key, s.settings.OTPTTL)
	}
	if n >= maxCodeAttempts {
		if err := s.rdb.Del(ctx, otpPrefix+email, key).Err(); err != nil {
			s.logger.Warn("burn code failed", "error", err)
		}
	}
}

// SignOut revokes the session. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := parseSession([]byte(s.settings.Secret), token, s.now())
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, sessionPrefix+claims.ID).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *Service) claims(ctx context.Context, token string) (*Claims, error) {
	claims, err := parseSession([]byte(s.settings.Secret), token, s.now())
	if err != nil {
		return nil, err
	}
	owner, err := s.rdb.Get(ctx, sessionPrefix+claims.ID).Result()
	if errors.Is(err, redis.Nil) || (err == nil && owner != claims.AdminID) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return claims, nil
}

// SendPasswordReset emails a reset link. Unknown emails are silently ignored.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	admin, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrAdminNotFound) {
		s.logger.Info("password reset for unknown email ignored")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, resetPrefix+token, admin.ID.String(), s.settings.ResetTTL).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	msg := notify.EmailMessage{
		To:      admin.Email,
		ToName:  admin.Name,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Follow this link to choose a new password: %s?token=%s", s.settings.ResetURL, token),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := validate.Password(password, confirm); err != nil {
		return err
	}
	owner, err := s.rdb.GetDel(ctx, resetPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}
	id, err := uuid.Parse(owner)
	if err != nil {
		return ErrInvalidResetToken
	}
	return s.setPassword(ctx, id, password)
}

// UpdatePassword changes the password of a signed-in admin.
func (s *Service) UpdatePassword(ctx context.Context, adminID uuid.UUID, password, confirm string) error {
	if err := validate.Password(password, confirm); err != nil {
		return err
	}
	return s.setPassword(ctx, adminID, password)
}

func (s *Service) setPassword(ctx context.Context, id uuid.UUID, password string) error {
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.logger.Info("password updated", "admin_id", id)
	return nil
}

func newCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
