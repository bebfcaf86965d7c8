package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mkraev/inkwell/models"
)

// FollowRepository defines the data operations for follow relationships.
type FollowRepository interface {
	Exists(ctx context.Context, userID, authorID uint) (bool, error)
	// Follow is idempotent: repeating it for an existing pair is a no-op
	// and never yields a second row.
	Follow(ctx context.Context, userID, authorID uint) error
	// Unfollow of a non-existent relationship is a no-op, not an error.
	Unfollow(ctx context.Context, userID, authorID uint) error
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a gorm backed FollowRepository.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Exists(ctx context.Context, userID, authorID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count).Error
	return count > 0, err
}

func (r *followRepository) Follow(ctx context.Context, userID, authorID uint) error {
	follow := models.Follow{UserID: userID, AuthorID: authorID}
	return r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		FirstOrCreate(&follow).Error
}

func (r *followRepository) Unfollow(ctx context.Context, userID, authorID uint) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{}).Error
}
