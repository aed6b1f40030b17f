package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a reply on a post. Comments form a tree per post: ParentID is
// nil for top-level comments and otherwise references a comment on the same
// post.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	UserID    *uint          `gorm:"index" json:"user_id,omitempty"`
	PostID    uint           `gorm:"not null;index" json:"post_id"`
	ParentID  *uint          `gorm:"index" json:"parent_id"`
	User      *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Post      *Post          `gorm:"foreignKey:PostID" json:"post,omitempty"`
	Parent    *Comment       `gorm:"foreignKey:ParentID" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsTopLevel reports whether the comment sits at the root of its post's tree.
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil
}
