package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/docstore"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/metrics"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
)

// UserService implements accounts, credentials and user administration.
type UserService struct {
	users    docstore.Collection[domain.User]
	hasher   *auth.PasswordHasher
	sessions *auth.SessionManager
	mailer   mail.Sender
	assets   storage.Storage
	events   *event.Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewUserService creates a new user service.
func NewUserService(
	users docstore.Collection[domain.User],
	hasher *auth.PasswordHasher,
	sessions *auth.SessionManager,
	mailer mail.Sender,
	assets storage.Storage,
	events *event.Producer,
	m *metrics.Metrics,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		mailer:   mailer,
		assets:   assets,
		events:   events,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// --- Input/Output types ---

// RegisterInput holds the parameters for creating an account. Avatar is
// optional.
type RegisterInput struct {
	Name     string               `json:"name" validate:"required,min=4,max=30"`
	Email    string               `json:"email" validate:"required,email"`
	Password string               `json:"password" validate:"required,min=8"`
	Avatar   *storage.UploadInput `json:"-"`
}

// LoginInput holds login credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordInput holds a reset token and the new password.
type ResetPasswordInput struct {
	Token           string `json:"-"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// UpdatePasswordInput holds a password change for a signed-in user.
type UpdatePasswordInput struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// UpdateProfileInput holds the profile fields a user may change.
type UpdateProfileInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateUserInput holds the fields an admin may change.
type UpdateUserInput struct {
	Name  *string      `json:"name"`
	Email *string      `json:"email"`
	Role  *domain.Role `json:"role"`
}

// Session is an issued session token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResult is a signed-in user with their session.
type AuthResult struct {
	User    *domain.User
	Session Session
}

// --- Auth ---

// Register creates a user account and signs it in.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    s.now().UTC(),
		Version:      1,
	}

	if input.Avatar != nil {
		input.Avatar.Folder = storage.FolderAvatars
		res, err := s.assets.Upload(ctx, input.Avatar)
		if err != nil {
			return nil, fmt.Errorf("upload avatar: %w", err)
		}
		user.Avatar = domain.Image{PublicID: res.ID, URL: res.URL}
	}

	if err := s.users.Insert(ctx, user); err != nil {
		s.dropAsset(ctx, user.Avatar.PublicID)
		if errors.Is(err, docstore.ErrDuplicate) {
			return nil, apperrors.AlreadyExists("user", "email", input.Email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logPublishError(ctx, s.logger, event.TopicUserRegistered, user.ID,
		s.events.PublishUserRegistered(ctx, user))
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))

	return s.signIn(user)
}

// Login verifies credentials and issues a session. Unknown emails and wrong
// passwords fail the same way.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	user, err := s.users.FindOne(ctx, docstore.Filter{docstore.Eq("email", normalizeEmail(input.Email))})
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.metrics.AuthAttempt("login", false)
		s.logger.WarnContext(ctx, "failed login attempt")
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	s.metrics.AuthAttempt("login", true)
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return s.signIn(user)
}

// ForgotPassword stores a fresh reset token for the account with email and
// mails a link built from resetBaseURL. Unknown emails succeed silently. If
// the mail cannot be sent the token is withdrawn.
func (s *UserService) ForgotPassword(ctx context.Context, email, resetBaseURL string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.FindOne(ctx, docstore.Filter{docstore.Eq("email", email)})
	if isNotFound(err) {
		s.logger.InfoContext(ctx, "password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	token, err := auth.IssueResetToken(s.now())
	if err != nil {
		return err
	}
	expiry := token.Expiry.UTC()
	if _, err := s.users.UpdateByID(ctx, user.ID, docstore.Patch{
		"reset_password_token":  token.Hash,
		"reset_password_expiry": expiry,
	}, docstore.UpdateOptions{}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	resetURL := strings.TrimRight(resetBaseURL, "/") + "/" + token.Raw
	if err := s.mailer.Send(ctx, mail.PasswordResetMessage(user.Email, resetURL)); err != nil {
		if _, cerr := s.users.UpdateByID(ctx, user.ID, clearResetToken(), docstore.UpdateOptions{}); cerr != nil {
			s.logger.ErrorContext(ctx, "failed to withdraw reset token",
				slog.String("user_id", user.ID),
				slog.String("error", cerr.Error()),
			)
		}
		s.logger.ErrorContext(ctx, "password reset mail failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return apperrors.MailFailure(err)
	}

	logPublishError(ctx, s.logger, event.TopicPasswordResetRequested, user.ID,
		s.events.PublishPasswordResetRequested(ctx, user))
	s.logger.InfoContext(ctx, "password reset mail sent", slog.String("user_id", user.ID))
	return nil
}

// ResetPassword sets a new password using a reset token and signs the user
// in. A token works once.
func (s *UserService) ResetPassword(ctx context.Context, input ResetPasswordInput) (*AuthResult, error) {
	if input.Token == "" {
		return nil, apperrors.InvalidResetToken()
	}

	user, err := s.users.FindOne(ctx, docstore.Filter{
		docstore.Eq("reset_password_token", auth.HashResetToken(input.Token)),
	})
	if isNotFound(err) {
		s.metrics.AuthAttempt("password_reset", false)
		return nil, apperrors.InvalidResetToken()
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.ResetPasswordExpiry == nil ||
		!auth.ConsumeResetToken(input.Token, user.ResetPasswordToken, *user.ResetPasswordExpiry, s.now()) {
		s.metrics.AuthAttempt("password_reset", false)
		return nil, apperrors.InvalidResetToken()
	}

	if err := validator.Validate(input); err != nil {
		return nil, err
	}
	if input.Password != input.ConfirmPassword {
		return nil, apperrors.InvalidInput("password does not match")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	patch := clearResetToken()
	patch["password_hash"] = hash
	updated, err := s.users.UpdateByID(ctx, user.ID, patch, docstore.UpdateOptions{IfVersion: user.Version})
	if errors.Is(err, docstore.ErrConflict) {
		// Someone else consumed or replaced the token first.
		s.metrics.AuthAttempt("password_reset", false)
		return nil, apperrors.InvalidResetToken()
	}
	if err != nil {
		return nil, fmt.Errorf("reset password: %w", err)
	}

	s.metrics.AuthAttempt("password_reset", true)
	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return s.signIn(updated)
}

// --- Profile ---

// GetProfile returns the user with the given id.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user", userID)
	}
	return u, nil
}

// UpdatePassword changes the password of a signed-in user after checking
// the old one, and issues a new session.
func (s *UserService) UpdatePassword(ctx context.Context, userID string, input UpdatePasswordInput) (*AuthResult, error) {
	if err := validator.Validate(input); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user", userID)
	}
	if !s.hasher.Verify(input.OldPassword, user.PasswordHash) {
		s.metrics.AuthAttempt("password_update", false)
		return nil, apperrors.InvalidInput("old password is incorrect")
	}
	if input.NewPassword != input.ConfirmPassword {
		return nil, apperrors.InvalidInput("password does not match")
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	updated, err := s.users.UpdateByID(ctx, userID, docstore.Patch{"password_hash": hash}, docstore.UpdateOptions{})
	if err != nil {
		return nil, lookupError(err, "user", userID)
	}

	s.metrics.AuthAttempt("password_update", true)
	s.logger.InfoContext(ctx, "password updated", slog.String("user_id", userID))
	return s.signIn(updated)
}

// UpdateProfile changes the name and email of a user.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	patch := docstore.Patch{}
	if input.Name != nil {
		patch["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		patch["email"] = normalizeEmail(*input.Email)
	}
	return s.updateUser(ctx, userID, patch)
}

// UploadAvatar replaces the avatar of a user. The previous image is removed
// once the new one is stored.
func (s *UserService) UploadAvatar(ctx context.Context, userID string, input *storage.UploadInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "user", userID)
	}

	input.Folder = storage.FolderAvatars
	res, err := s.assets.Upload(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	updated, err := s.users.UpdateByID(ctx, userID, docstore.Patch{
		"avatar": domain.Image{PublicID: res.ID, URL: res.URL},
	}, docstore.UpdateOptions{})
	if err != nil {
		s.dropAsset(ctx, res.ID)
		return nil, lookupError(err, "user", userID)
	}
	s.dropAsset(ctx, user.Avatar.PublicID)
	return updated, nil
}

// --- Administration ---

// ListUsers returns one page of users, oldest first.
func (s *UserService) ListUsers(ctx context.Context, params pagination.Params) (*pagination.Result[domain.PublicUser], error) {
	total, err := s.users.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	users, err := s.users.Find(ctx, nil, docstore.FindOptions{
		Skip:  int64(params.Offset()),
		Limit: int64(params.PerPage),
		Sort:  []docstore.Sort{{Field: "created_at"}, {Field: docstore.FieldID}},
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	public := make([]domain.PublicUser, len(users))
	for i := range users {
		public[i] = users[i].Public()
	}
	res := pagination.NewResult(public, int(total), params)
	return &res, nil
}

// GetUser returns the user with the given id.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.GetProfile(ctx, id)
}

// UpdateUser lets an admin change the name, email and role of a user.
func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	patch := docstore.Patch{}
	if input.Name != nil {
		patch["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		patch["email"] = normalizeEmail(*input.Email)
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown role %q", *input.Role))
		}
		patch["role"] = *input.Role
	}
	u, err := s.updateUser(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user updated by admin",
		slog.String("user_id", id),
		slog.String("role", string(u.Role)),
	)
	return u, nil
}

// DeleteUser removes a user and their avatar.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "user", id)
	}
	if err := s.users.DeleteByID(ctx, id); err != nil {
		return lookupError(err, "user", id)
	}
	s.dropAsset(ctx, user.Avatar.PublicID)
	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", id))
	return nil
}

// --- helpers ---

func (s *UserService) updateUser(ctx context.Context, id string, patch docstore.Patch) (*domain.User, error) {
	if len(patch) == 0 {
		return nil, apperrors.InvalidInput("nothing to update")
	}
	u, err := s.users.UpdateByID(ctx, id, patch, docstore.UpdateOptions{Validate: true})
	if errors.Is(err, docstore.ErrDuplicate) {
		email, _ := patch["email"].(string)
		return nil, apperrors.AlreadyExists("user", "email", email)
	}
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *UserService) signIn(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.sessions.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &AuthResult{User: user, Session: Session{Token: token, ExpiresAt: exp}}, nil
}

func (s *UserService) dropAsset(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := s.assets.Delete(ctx, publicID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete asset",
			slog.String("public_id", publicID),
			slog.String("error", err.Error()),
		)
	}
}

func clearResetToken() docstore.Patch {
	return docstore.Patch{
		"reset_password_token":  "",
		"reset_password_expiry": nil,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
