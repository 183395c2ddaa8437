package repository

import (
	"context"
	"errors"

	"github.com/socialhub/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
)

// ContentRepository handles post and comment data access
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new ContentRepository
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// CreatePost creates a new post
func (r *ContentRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// CreateComment creates a comment and appends it to its post's comment list
func (r *ContentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.PostComment{PostID: comment.PostID, CommentID: comment.ID}).Error
	})
}

// LikePost records a like of postID by userID
func (r *ContentRepository) LikePost(ctx context.Context, postID, userID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostLike{PostID: postID, UserID: userID}).Error
}

// LikeComment records a like of commentID by userID
func (r *ContentRepository) LikeComment(ctx context.Context, commentID, userID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CommentLike{CommentID: commentID, UserID: userID}).Error
}

// GetPost retrieves a post with its likes and comment ids
func (r *ContentRepository) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	post.Likes = []string{}
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("post_id = ?", id).Order("created_at").
		Pluck("user_id", &post.Likes).Error
	if err != nil {
		return nil, err
	}

	post.CommentIDs = []string{}
	err = r.db.WithContext(ctx).Model(&models.PostComment{}).
		Where("post_id = ?", id).Order("created_at").
		Pluck("comment_id", &post.CommentIDs).Error
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// GetComment retrieves a comment with its likes
func (r *ContentRepository) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}

	comment.Likes = []string{}
	err := r.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("comment_id = ?", id).Order("created_at").
		Pluck("user_id", &comment.Likes).Error
	if err != nil {
		return nil, err
	}

	return &comment, nil
}

// DeletePostsByUser deletes every post authored by userID along with the
// post's own like and comment-reference rows
func (r *ContentRepository) DeletePostsByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&models.Post{}).Select("id").Where("user_id = ?", userID)

		if err := tx.Where("post_id IN (?)", owned).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN (?)", owned).Delete(&models.PostComment{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.Post{}).Error
	})
}

// PullLikesFromPosts removes userID from the likes of every post
func (r *ContentRepository) PullLikesFromPosts(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PostLike{}).Error
}

// PullLikesFromComments removes userID from the likes of every comment
func (r *ContentRepository) PullLikesFromComments(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CommentLike{}).Error
}

// CommentIDsByUser returns the ids of every comment authored by userID
func (r *ContentRepository) CommentIDsByUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("user_id = ?", userID).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteCommentsByUser deletes every comment authored by userID along with its likes
func (r *ContentRepository) DeleteCommentsByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&models.Comment{}).Select("id").Where("user_id = ?", userID)

		if err := tx.Where("comment_id IN (?)", owned).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.Comment{}).Error
	})
}

// PullCommentRefs removes commentIDs from every post's comment list
func (r *ContentRepository) PullCommentRefs(ctx context.Context, commentIDs []string) error {
	if len(commentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("comment_id IN ?", commentIDs).Delete(&models.PostComment{}).Error
}
