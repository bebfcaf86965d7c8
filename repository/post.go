package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mkraev/inkwell/models"
)

// Scope selects which posts a listing shows: all posts, posts in one group,
// posts by one author, or posts by the authors one viewer follows. Zero
// value means all posts.
type Scope struct {
	GroupID    *uint
	AuthorID   *uint
	FollowedBy *uint
}

// PostRepository defines the data operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// UpdateContent changes only the mutable fields. The author and the
	// creation timestamp are immutable. A nil image leaves the stored
	// image untouched.
	UpdateContent(ctx context.Context, id uint, text string, groupID *uint, image *string) error
	// Delete removes the post and all its comments in one transaction.
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context, scope Scope) (int64, error)
	// List returns posts in scope, newest first, with author and group resolved.
	List(ctx context.Context, scope Scope, limit, offset int) ([]models.Post, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a gorm backed PostRepository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Preload("Author").Preload("Group").First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) UpdateContent(ctx context.Context, id uint, text string, groupID *uint, image *string) error {
	updates := map[string]interface{}{
		"text":     text,
		"group_id": groupID,
	}
	if image != nil {
		updates["image"] = *image
	}
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(updates).Error
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
}

func (r *postRepository) Count(ctx context.Context, scope Scope) (int64, error) {
	var total int64
	err := r.scoped(r.db.WithContext(ctx).Model(&models.Post{}), scope).Count(&total).Error
	return total, err
}

func (r *postRepository) List(ctx context.Context, scope Scope, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.scoped(r.db.WithContext(ctx), scope).
		Preload("Author").
		Preload("Group").
		Order("posts.created_at DESC, posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) scoped(q *gorm.DB, scope Scope) *gorm.DB {
	if scope.GroupID != nil {
		q = q.Where("posts.group_id = ?", *scope.GroupID)
	}
	if scope.AuthorID != nil {
		q = q.Where("posts.author_id = ?", *scope.AuthorID)
	}
	if scope.FollowedBy != nil {
		q = q.Joins("JOIN follows ON follows.author_id = posts.author_id AND follows.user_id = ?", *scope.FollowedBy)
	}
	return q
}
