package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is authored by a user. Likes and CommentIDs are loaded from their join tables.
type Post struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Body      string    `gorm:"type:text" json:"body"`
	Image     string    `gorm:"size:255" json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Likes      []string `gorm:"-" json:"likes"`
	CommentIDs []string `gorm:"-" json:"comment_ids"`
}

// TableName specifies the table name for Post model
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns a fresh id when none is set
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Comment is authored by a user on a post
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"size:36;index;not null" json:"post_id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Likes []string `gorm:"-" json:"likes"`
}

// TableName specifies the table name for Comment model
func (Comment) TableName() string {
	return "comments"
}

// BeforeCreate assigns a fresh id when none is set
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// PostLike records that UserID liked PostID
type PostLike struct {
	PostID    string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time
}

// TableName specifies the table name for PostLike model
func (PostLike) TableName() string {
	return "post_likes"
}

// CommentLike records that UserID liked CommentID
type CommentLike struct {
	CommentID string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time
}

// TableName specifies the table name for CommentLike model
func (CommentLike) TableName() string {
	return "comment_likes"
}

// PostComment is an entry of a post's comment reference list
type PostComment struct {
	PostID    string `gorm:"primaryKey;size:36"`
	CommentID string `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time
}

// TableName specifies the table name for PostComment model
func (PostComment) TableName() string {
	return "post_comments"
}

// All lists every model for migrations
func All() []interface{} {
	return []interface{}{
		&User{},
		&Follow{},
		&SessionToken{},
		&Post{},
		&Comment{},
		&PostLike{},
		&CommentLike{},
		&PostComment{},
	}
}
