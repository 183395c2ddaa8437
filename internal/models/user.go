package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRole is assigned to every registered user
const DefaultRole = "user"

// MaxSessionTokens is the number of concurrent sessions kept per user
const MaxSessionTokens = 4

// User represents a registered account
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:100;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:20;not null;default:user" json:"role"`
	Confirmed    bool      `gorm:"not null;default:false" json:"confirmed"`
	Image        string    `gorm:"size:255" json:"image,omitempty"`
	Title        string    `gorm:"size:100" json:"title,omitempty"`
	Bio          string    `gorm:"type:text" json:"bio,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Loaded from user_follows, in follow order
	Following []string `gorm:"-" json:"following"`
	Followers []string `gorm:"-" json:"followers"`

	Tokens []SessionToken `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a fresh id when none is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserSummary is the lightweight projection used for follower lists
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Image    string `json:"image,omitempty"`
}

// UserProfile is a user with following/followers resolved to summaries
type UserProfile struct {
	User
	Following []UserSummary `json:"following"`
	Followers []UserSummary `json:"followers"`
}

// Follow is one directed edge: FollowerID follows FolloweeID
type Follow struct {
	FollowerID string    `gorm:"primaryKey;size:36"`
	FolloweeID string    `gorm:"primaryKey;size:36;index"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName specifies the table name for Follow model
func (Follow) TableName() string {
	return "user_follows"
}

// SessionToken is an issued bearer token still accepted for a user.
// ID order is issuance order.
type SessionToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"size:36;index;not null"`
	Token     string    `gorm:"size:512;uniqueIndex;not null"`
	CreatedAt time.Time
}

// TableName specifies the table name for SessionToken model
func (SessionToken) TableName() string {
	return "session_tokens"
}
