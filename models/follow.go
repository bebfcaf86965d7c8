package models

import "time"

// Follow is a directed subscription from a user to an author. The pair is
// unique so repeating a follow never produces a second row. Nothing at this
// layer prevents a user from following themselves.
type Follow struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null;uniqueIndex:idx_follows_user_author" json:"user_id"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:idx_follows_user_author" json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}
