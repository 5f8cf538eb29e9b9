package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/users"
)

// ResetCodeTTL bounds how long a mailed reset code stays redeemable.
const ResetCodeTTL = 5 * time.Minute

// Mailer delivers a plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RegisterInput is a self-service sign-up. The role is always user.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	FullName string
	Phone    string
	Address  string
}

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *users.User `json:"user"`
}

type Service struct {
	users      *users.Store
	tokens     *Tokens
	challenges ChallengeStore
	mailer     Mailer
	log        *slog.Logger
	nowFunc    func() time.Time
}

func NewService(userStore *users.Store, tokens *Tokens, challenges ChallengeStore, mailer Mailer, log *slog.Logger) *Service {
	return &Service{
		users:      userStore,
		tokens:     tokens,
		challenges: challenges,
		mailer:     mailer,
		log:        log.With(slog.String("component", "auth")),
		nowFunc:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*users.User, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &users.User{
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hash,
		Role:         users.RoleUser,
		FullName:     in.FullName,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        in.Phone,
		Address:      in.Address,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", slog.Uint64("user_id", uint64(u.ID)))
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password, email string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrUserNotFound) {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u := &users.User{Username: username, PasswordHash: hash, Role: users.RoleAdmin, Email: strings.ToLower(email)}
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}
	s.log.Info("bootstrap admin created", slog.String("username", username))
	return nil
}

// Login checks credentials and issues an access token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrUserNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	if !u.Active {
		return nil, apperr.ErrForbidden.WithMessage("account is deactivated")
	}
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(u.PasswordHash, oldPassword) {
		return apperr.ErrInvalidCredentials.WithMessage("current password is incorrect")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// RequestReset mails a one-time code to email. An unknown address succeeds
// silently so the endpoint cannot be used to probe for accounts.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrUserNotFound) {
		s.log.Info("password reset for unknown email ignored")
		return nil
	}
	if err != nil {
		return err
	}
	if !u.Active {
		return nil
	}

	code, err := newResetCode()
	if err != nil {
		return err
	}
	now := s.nowFunc()
	if err := s.challenges.Put(ctx, Challenge{
		Email:     email,
		CodeHash:  hashCode(code),
		ExpiresAt: now.Add(ResetCodeTTL),
		CreatedAt: now,
	}); err != nil {
		return apperr.Storage("store reset challenge", err)
	}

	body := fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, int(ResetCodeTTL.Minutes()))
	if err := s.mailer.Send(ctx, email, "Password reset code", body); err != nil {
		s.log.Error("send reset code failed", slog.Uint64("user_id", uint64(u.ID)), slog.Any("error", err))
		return apperr.New(apperr.KindInternal, "mail_failed", "could not send reset code").Wrap(err)
	}
	return nil
}

// ResetPassword redeems code and sets newPassword. Expired, reused and wrong
// codes all fail with ErrInvalidChallenge, as does any code once the challenge
// has seen MaxResetAttempts wrong ones.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrUserNotFound) {
		return apperr.ErrInvalidChallenge
	}
	if err != nil {
		return err
	}
	if err := s.challenges.Consume(ctx, email, hashCode(strings.TrimSpace(code)), s.nowFunc()); err != nil {
		if errors.Is(err, apperr.ErrInvalidChallenge) {
			s.log.Warn("invalid password reset attempt", slog.Uint64("user_id", uint64(u.ID)))
			return err
		}
		return apperr.Storage("consume reset challenge", err)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.log.Info("password reset", slog.Uint64("user_id", uint64(u.ID)))
	return nil
}

func newResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
