package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/socialhub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already exists")
)

// UserRepository handles user, follow and session token data access
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateUser
	}
	return err
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where(query, args...).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// ExistsByUsername checks if a username is already registered
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// ExistsByEmail checks if an email is already registered
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// UsernameTakenByOther checks if a user other than exceptID owns username
func (r *UserRepository) UsernameTakenByOther(ctx context.Context, username, exceptID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? AND id <> ?", username, exceptID).
		Count(&count).Error
	return count > 0, err
}

// List retrieves all users with their follow lists
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, err
	}
	if err := r.LoadFollows(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// SearchByUsername retrieves users whose username contains substr, case-sensitively
func (r *UserRepository) SearchByUsername(ctx context.Context, substr string) ([]models.User, error) {
	var users []models.User
	pattern := "%" + escapeLike(substr) + "%"
	err := r.db.WithContext(ctx).
		Where("username LIKE ? ESCAPE '\\'", pattern).
		Order("username").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if err := r.LoadFollows(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// Update applies the given column values to a user
func (r *UserRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ConfirmByEmail marks the user owning email as confirmed
func (r *UserRepository) ConfirmByEmail(ctx context.Context, email string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Update("confirmed", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetPasswordByEmail replaces the password hash of the user owning email
func (r *UserRepository) SetPasswordByEmail(ctx context.Context, email, passwordHash string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user and its session tokens
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.SessionToken{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// ListImages returns every image filename referenced by a user
func (r *UserRepository) ListImages(ctx context.Context) ([]string, error) {
	var images []string
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("image <> ''").
		Pluck("image", &images).Error
	return images, err
}

// ---- follows ----

// Follow records that followerID follows followeeID; repeating it is a no-op
func (r *UserRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
}

// Unfollow removes the edge followerID -> followeeID if present
func (r *UserRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
}

// RemoveFromFollowLists drops id from every following and followers list
func (r *UserRepository) RemoveFromFollowLists(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? OR followee_id = ?", id, id).
		Delete(&models.Follow{}).Error
}

// LoadFollows fills Following and Followers of each user in follow order
func (r *UserRepository) LoadFollows(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]string, len(users))
	index := make(map[string]*models.User, len(users))
	for i := range users {
		ids[i] = users[i].ID
		users[i].Following = []string{}
		users[i].Followers = []string{}
		index[users[i].ID] = &users[i]
	}

	var follows []models.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id IN ? OR followee_id IN ?", ids, ids).
		Order("created_at").
		Find(&follows).Error
	if err != nil {
		return err
	}

	for _, f := range follows {
		if u, ok := index[f.FollowerID]; ok {
			u.Following = append(u.Following, f.FolloweeID)
		}
		if u, ok := index[f.FolloweeID]; ok {
			u.Followers = append(u.Followers, f.FollowerID)
		}
	}
	return nil
}

// FollowSummaries resolves the following and followers of id to summaries
func (r *UserRepository) FollowSummaries(ctx context.Context, id string) (following, followers []models.UserSummary, err error) {
	following = []models.UserSummary{}
	followers = []models.UserSummary{}

	err = r.db.WithContext(ctx).Table("user_follows").
		Select("users.id, users.username, users.image").
		Joins("JOIN users ON users.id = user_follows.followee_id").
		Where("user_follows.follower_id = ?", id).
		Order("user_follows.created_at").
		Scan(&following).Error
	if err != nil {
		return nil, nil, err
	}

	err = r.db.WithContext(ctx).Table("user_follows").
		Select("users.id, users.username, users.image").
		Joins("JOIN users ON users.id = user_follows.follower_id").
		Where("user_follows.followee_id = ?", id).
		Order("user_follows.created_at").
		Scan(&followers).Error
	if err != nil {
		return nil, nil, err
	}

	return following, followers, nil
}

// ---- session tokens ----

// PushToken stores token for userID and evicts the oldest tokens beyond limit.
// Both steps run in one transaction.
func (r *UserRepository) PushToken(ctx context.Context, userID, token string, limit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.SessionToken{UserID: userID, Token: token}).Error; err != nil {
			return err
		}

		keep := tx.Model(&models.SessionToken{}).
			Select("id").
			Where("user_id = ?", userID).
			Order("id DESC").
			Limit(limit)

		return tx.Where("user_id = ? AND id NOT IN (?)", userID, keep).
			Delete(&models.SessionToken{}).Error
	})
}

// RemoveToken deletes token from userID's session tokens; absent tokens are ignored
func (r *UserRepository) RemoveToken(ctx context.Context, userID, token string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.SessionToken{}).Error
}

// HasToken reports whether token is still an active session of userID
func (r *UserRepository) HasToken(ctx context.Context, userID, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SessionToken{}).
		Where("user_id = ? AND token = ?", userID, token).
		Count(&count).Error
	return count > 0, err
}

// Tokens returns userID's active session tokens in issuance order
func (r *UserRepository) Tokens(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := r.db.WithContext(ctx).Model(&models.SessionToken{}).
		Where("user_id = ?", userID).
		Order("id").
		Pluck("token", &tokens).Error
	return tokens, err
}

// escapeLike escapes LIKE wildcards so substr matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
