package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/socialhub/internal/events"
	"github.com/socialhub/internal/mail"
	"github.com/socialhub/internal/models"
	"github.com/socialhub/internal/storage"
	"github.com/socialhub/pkg/crypto"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserStore is the user persistence the service depends on
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UsernameTakenByOther(ctx context.Context, username, exceptID string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	SearchByUsername(ctx context.Context, substr string) ([]models.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	ConfirmByEmail(ctx context.Context, email string) error
	SetPasswordByEmail(ctx context.Context, email, passwordHash string) error
	Delete(ctx context.Context, id string) error
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	RemoveFromFollowLists(ctx context.Context, id string) error
	LoadFollows(ctx context.Context, users []models.User) error
	FollowSummaries(ctx context.Context, id string) (following, followers []models.UserSummary, err error)
	PushToken(ctx context.Context, userID, token string, limit int) error
	RemoveToken(ctx context.Context, userID, token string) error
	HasToken(ctx context.Context, userID, token string) (bool, error)
}

// ContentStore is the subset of post/comment persistence used by account deletion
type ContentStore interface {
	DeletePostsByUser(ctx context.Context, userID string) error
	PullLikesFromPosts(ctx context.Context, userID string) error
	PullLikesFromComments(ctx context.Context, userID string) error
	CommentIDsByUser(ctx context.Context, userID string) ([]string, error)
	DeleteCommentsByUser(ctx context.Context, userID string) error
	PullCommentRefs(ctx context.Context, commentIDs []string) error
}

// ImageUpload is an avatar file received with a request
type ImageUpload struct {
	Filename string
	Content  io.Reader
}

// RegisterInput represents the registration request
type RegisterInput struct {
	Username string `json:"username" form:"username" binding:"required,max=50"`
	Email    string `json:"email" form:"email" binding:"required,max=100"`
	Password string `json:"password" form:"password"`
	Title    string `json:"title" form:"title" binding:"max=100"`
	Bio      string `json:"bio" form:"bio"`
}

// UpdateInput represents a profile update; nil fields are left untouched.
// Email, role and confirmation state cannot be changed here.
type UpdateInput struct {
	Username *string `json:"username" form:"username" binding:"omitempty,max=50"`
	Password *string `json:"password" form:"password"`
	Title    *string `json:"title" form:"title" binding:"omitempty,max=100"`
	Bio      *string `json:"bio" form:"bio"`
}

// LoginResult is returned on successful login
type LoginResult struct {
	Token   string `json:"token"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// UserService handles registration, sessions, profiles and the follow graph
type UserService struct {
	users     UserStore
	content   ContentStore
	tokens    *TokenService
	mailer    mail.Sender
	images    storage.ImageStore
	publisher events.Publisher
	throttle  Throttle
	baseURL   string
}

// NewUserService creates a new UserService
func NewUserService(
	users UserStore,
	content ContentStore,
	tokens *TokenService,
	mailer mail.Sender,
	images storage.ImageStore,
	publisher events.Publisher,
	throttle Throttle,
	baseURL string,
) *UserService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &UserService{
		users:     users,
		content:   content,
		tokens:    tokens,
		mailer:    mailer,
		images:    images,
		publisher: publisher,
		throttle:  throttle,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Register creates an unconfirmed user and mails a confirmation link
func (s *UserService) Register(ctx context.Context, req *RegisterInput, image *ImageUpload) (*models.User, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, ErrUsernameRequired
	}
	if req.Password == "" {
		return nil, ErrPasswordRequired
	}
	if !emailPattern.MatchString(req.Email) {
		return nil, ErrInvalidEmail
	}

	exists, err := s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, req.Username)
	}

	exists, err = s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrEmailTaken, req.Email)
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.DefaultRole,
		Title:        req.Title,
		Bio:          req.Bio,
	}

	if image != nil {
		name, err := s.images.Save(ctx, image.Filename, image.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		user.Image = name
	}

	if err := s.users.Create(ctx, user); err != nil {
		s.discardImage(ctx, user.Image)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.IssueEmailToken(PurposeConfirm, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to sign confirmation token: %w", err)
	}
	msg, err := mail.ConfirmationEmail(user.Email, s.baseURL+"/users/confirm/"+token, s.emailTTLHours())
	if err != nil {
		return nil, fmt.Errorf("failed to render confirmation email: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send confirmation email: %w", err)
	}

	s.publish(ctx, events.UserRegistered, user.ID, "")

	user.Following = []string{}
	user.Followers = []string{}
	return user, nil
}

// Confirm marks the account named by a confirmation token as confirmed
func (s *UserService) Confirm(ctx context.Context, token string) error {
	email, err := s.tokens.VerifyEmailToken(PurposeConfirm, token)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Confirmed {
		return nil
	}

	if err := s.users.ConfirmByEmail(ctx, email); err != nil {
		return err
	}

	s.publish(ctx, events.UserConfirmed, user.ID, "")
	return nil
}

// Login checks credentials and issues a new session token
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Confirmed {
		return nil, ErrEmailNotConfirmed
	}

	if !crypto.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.IssueSessionToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	if err := s.users.PushToken(ctx, user.ID, token, models.MaxSessionTokens); err != nil {
		return nil, fmt.Errorf("failed to store session token: %w", err)
	}

	return &LoginResult{
		Token:   token,
		UserID:  user.ID,
		Message: "Welcome " + user.Username,
	}, nil
}

// Authenticate resolves a bearer token to its user. The token must still be
// one of the user's active sessions.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.VerifySessionToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	active, err := s.users.HasToken(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrInvalidToken
	}

	return user, nil
}

// Logout revokes one session token of user
func (s *UserService) Logout(ctx context.Context, user *models.User, token string) error {
	return s.users.RemoveToken(ctx, user.ID, token)
}

// RequestPasswordRecovery mails a password reset link to email
func (s *UserService) RequestPasswordRecovery(ctx context.Context, email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}

	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, "recover:"+strings.ToLower(email))
		if err != nil {
			return err
		}
		if !allowed {
			return ErrTooManyRequests
		}
	}

	token, err := s.tokens.IssueEmailToken(PurposeRecover, email)
	if err != nil {
		return fmt.Errorf("failed to sign recovery token: %w", err)
	}
	msg, err := mail.RecoveryEmail(email, s.baseURL+"/users/resetPassword/"+token, s.emailTTLHours())
	if err != nil {
		return fmt.Errorf("failed to render recovery email: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send recovery email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for the account named by a recovery token
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	email, err := s.tokens.VerifyEmailToken(PurposeRecover, token)
	if err != nil {
		return err
	}
	if password == "" {
		return ErrPasswordRequired
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.SetPasswordByEmail(ctx, email, hash)
}

// UpdateProfile applies the mutable profile fields of req to user.
// Empty username or password values are treated as absent.
func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, req *UpdateInput, image *ImageUpload) (*models.User, error) {
	fields := make(map[string]interface{})

	if req.Username != nil && *req.Username != "" && *req.Username != user.Username {
		taken, err := s.users.UsernameTakenByOther(ctx, *req.Username, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, *req.Username)
		}
		fields["username"] = *req.Username
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		fields["password_hash"] = hash
	}

	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}

	var newImage string
	if image != nil {
		name, err := s.images.Save(ctx, image.Filename, image.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		newImage = name
		fields["image"] = name
	}

	if len(fields) > 0 {
		if err := s.users.Update(ctx, user.ID, fields); err != nil {
			s.discardImage(ctx, newImage)
			if errors.Is(err, ErrDuplicateUser) {
				return nil, fmt.Errorf("%w: %v", ErrUsernameTaken, fields["username"])
			}
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	if newImage != "" && user.Image != "" && user.Image != newImage {
		s.discardImage(ctx, user.Image)
	}

	updated, err := s.users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.loadFollows(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// GetAll returns every user
func (s *UserService) GetAll(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetByID returns a user with following and followers resolved to summaries
func (s *UserService) GetByID(ctx context.Context, id string) (*models.UserProfile, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	following, followers, err := s.users.FollowSummaries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load follows: %w", err)
	}

	return &models.UserProfile{
		User:      *user,
		Following: following,
		Followers: followers,
	}, nil
}

// SearchByUsername returns users whose username contains substr
func (s *UserService) SearchByUsername(ctx context.Context, substr string) ([]models.User, error) {
	users, err := s.users.SearchByUsername(ctx, substr)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

// DeleteAccount removes user and everything it authored or referenced.
// Steps run in order; the first failure aborts the rest.
func (s *UserService) DeleteAccount(ctx context.Context, user *models.User) error {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	if err := s.users.RemoveFromFollowLists(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to remove follows: %w", err)
	}
	if err := s.content.DeletePostsByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete posts: %w", err)
	}
	if err := s.content.PullLikesFromPosts(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to remove post likes: %w", err)
	}
	if err := s.content.PullLikesFromComments(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to remove comment likes: %w", err)
	}

	commentIDs, err := s.content.CommentIDsByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to collect comments: %w", err)
	}
	if err := s.content.DeleteCommentsByUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	if err := s.content.PullCommentRefs(ctx, commentIDs); err != nil {
		return fmt.Errorf("failed to remove comment references: %w", err)
	}

	s.discardImage(ctx, user.Image)

	log.Printf("[UserService] Deleted user %s (%s), %d comments removed", user.ID, user.Username, len(commentIDs))
	s.publish(ctx, events.UserDeleted, user.ID, "")
	return nil
}

// Follow makes user follow targetID and returns the target
func (s *UserService) Follow(ctx context.Context, user *models.User, targetID string) (*models.User, error) {
	if targetID == user.ID {
		return nil, ErrCannotFollowSelf
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.users.Follow(ctx, user.ID, target.ID); err != nil {
		return nil, fmt.Errorf("failed to follow user: %w", err)
	}

	s.publish(ctx, events.UserFollowed, user.ID, target.ID)
	return target, nil
}

// Unfollow removes user's follow of targetID and returns the target
func (s *UserService) Unfollow(ctx context.Context, user *models.User, targetID string) (*models.User, error) {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.users.Unfollow(ctx, user.ID, target.ID); err != nil {
		return nil, fmt.Errorf("failed to unfollow user: %w", err)
	}

	s.publish(ctx, events.UserUnfollowed, user.ID, target.ID)
	return target, nil
}

func (s *UserService) loadFollows(ctx context.Context, user *models.User) error {
	users := []models.User{*user}
	if err := s.users.LoadFollows(ctx, users); err != nil {
		return fmt.Errorf("failed to load follows: %w", err)
	}
	user.Following = users[0].Following
	user.Followers = users[0].Followers
	return nil
}

// discardImage deletes an image best-effort
func (s *UserService) discardImage(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := s.images.Delete(ctx, name); err != nil {
		log.Printf("[UserService] Failed to delete image %s: %v", name, err)
	}
}

func (s *UserService) publish(ctx context.Context, eventType, userID, targetID string) {
	evt := events.Event{
		Type:     eventType,
		UserID:   userID,
		TargetID: targetID,
		At:       time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Printf("[UserService] Failed to publish %s for %s: %v", eventType, userID, err)
	}
}

func (s *UserService) emailTTLHours() int {
	return int(s.tokens.EmailTokenTTL() / time.Hour)
}
