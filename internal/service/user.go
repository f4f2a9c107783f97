package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/auth"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/event"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/repository"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/validator"
)

// tokenTTL bounds verification and password reset links.
const tokenTTL = time.Hour

// IdentityVerifier checks a third-party sign-in credential.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*auth.GoogleIdentity, error)
}

// UserService implements registration, login and account recovery.
type UserService struct {
	users    repository.UserRepository
	jwt      *auth.JWTManager
	google   IdentityVerifier
	composer *mailer.Composer
	sender   mailer.Sender
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	jwt *auth.JWTManager,
	google IdentityVerifier,
	composer *mailer.Composer,
	sender mailer.Sender,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		jwt:      jwt,
		google:   google,
		composer: composer,
		sender:   sender,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register creates an unverified account and mails a verification link. No
// session is issued until the address is verified.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if name == "" {
		return nil, apperrors.InvalidInput("name is required")
	}
	if !validator.StrongPassword(input.Password) {
		return nil, apperrors.InvalidInput("password must have 8+ characters with upper case, lower case and a digit")
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	token, err := s.issueVerification(user)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	if err := s.sendVerification(ctx, user, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Verify marks the account owning token as verified.
func (s *UserService) Verify(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return apperrors.InvalidInput("verification token is required")
	}

	user, err := s.users.GetByVerificationToken(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput("invalid verification token")
		}
		return fmt.Errorf("get user by verification token: %w", err)
	}
	if expired(user.VerificationExpires, s.now()) {
		return apperrors.Gone("verification link expired")
	}

	user.IsVerified = true
	user.VerificationToken, user.VerificationExpires = nil, nil
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("verify user: %w", err)
	}

	s.logger.InfoContext(ctx, "user verified", slog.String("user_id", user.ID))
	return nil
}

// ResendVerification issues a fresh verification link.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user.IsVerified {
		return apperrors.Conflict("ALREADY_VERIFIED", "user is already verified")
	}

	token, err := s.issueVerification(user)
	if err != nil {
		return err
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	if err := s.sendVerification(ctx, user, token); err != nil {
		return apperrors.ServiceUnavailable("could not send verification email")
	}
	return nil
}

// Login checks email and password and issues a session token.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.InvalidInput("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if !user.CanLogin() {
		return nil, apperrors.Forbidden("email must be verified before logging in")
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return s.session(user)
}

// LoginWithGoogle verifies a Google ID token and signs the matching user in,
// linking an existing account by email or creating a verified one.
func (s *UserService) LoginWithGoogle(ctx context.Context, credential string) (*domain.Session, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, apperrors.InvalidInput("credential is required")
	}
	if s.google == nil {
		return nil, apperrors.ServiceUnavailable("google sign-in is not configured")
	}

	identity, err := s.google.Verify(ctx, credential)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidGoogleToken) {
			return nil, apperrors.Unauthorized("invalid google credential")
		}
		return nil, apperrors.ServiceUnavailable("google sign-in unavailable")
	}

	user, err := s.users.GetByGoogleID(ctx, identity.Subject)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		user, err = s.linkOrCreateGoogleUser(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("get user by google id: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in with google", slog.String("user_id", user.ID))
	return s.session(user)
}

func (s *UserService) linkOrCreateGoogleUser(ctx context.Context, identity *auth.GoogleIdentity) (*domain.User, error) {
	now := s.now().UTC()
	subject := identity.Subject

	user, err := s.users.GetByEmail(ctx, normalizeEmail(identity.Email))
	if err == nil {
		user.GoogleID = &subject
		user.IsVerified = true
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("link google account: %w", err)
		}
		s.logger.InfoContext(ctx, "google account linked", slog.String("user_id", user.ID))
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.SplitN(identity.Email, "@", 2)[0]
	}
	user = &domain.User{
		ID:         uuid.New().String(),
		Email:      normalizeEmail(identity.Email),
		Name:       name,
		GoogleID:   &subject,
		Role:       domain.RoleUser,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create google user: %w", err)
	}
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return user, nil
}

// ForgotPassword mails a reset link. Unknown emails succeed silently.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	token, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return err
	}
	expires := s.now().UTC().Add(tokenTTL)
	user.ResetToken, user.ResetExpires = &hash, &expires
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	msg, err := s.composer.PasswordReset(user, token)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return apperrors.ServiceUnavailable("could not send password reset email")
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))
	return nil
}

// ResetPassword sets a new password for the account owning token.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return apperrors.InvalidInput("reset token is required")
	}
	if !validator.StrongPassword(newPassword) {
		return apperrors.InvalidInput("password must have 8+ characters with upper case, lower case and a digit")
	}

	user, err := s.users.GetByResetToken(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput("invalid reset token")
		}
		return fmt.Errorf("get user by reset token: %w", err)
	}
	if expired(user.ResetExpires, s.now()) {
		return apperrors.Gone("reset link expired")
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.ResetToken, user.ResetExpires = nil, nil
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return nil
}

// Me returns the user behind a session.
func (s *UserService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, page pagination.Params) ([]domain.User, int, error) {
	users, total, err := s.users.List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// SendInvoice mails caller-rendered invoice HTML.
func (s *UserService) SendInvoice(ctx context.Context, email, html string) error {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(html) == "" {
		return apperrors.InvalidInput("email and html are required")
	}
	if err := s.sender.Send(ctx, s.composer.Invoice(email, html)); err != nil {
		s.logger.ErrorContext(ctx, "failed to send invoice",
			slog.String("error", err.Error()),
		)
		return apperrors.ServiceUnavailable("could not send invoice")
	}
	return nil
}

func (s *UserService) session(user *domain.User) (*domain.Session, error) {
	token, expiresAt, err := s.jwt.Generate(user)
	if err != nil {
		return nil, err
	}
	return &domain.Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// issueVerification stores a new verification token hash on user and returns
// the raw token.
func (s *UserService) issueVerification(user *domain.User) (string, error) {
	token, hash, err := auth.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	expires := s.now().UTC().Add(tokenTTL)
	user.VerificationToken, user.VerificationExpires = &hash, &expires
	return token, nil
}

func (s *UserService) sendVerification(ctx context.Context, user *domain.User, token string) error {
	msg, err := s.composer.Verification(user, token)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

func expired(at *time.Time, now time.Time) bool {
	return at == nil || !now.Before(*at)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
