package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile holds the editable personal details of a user. Each user has at
// most one profile.
type Profile struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;uniqueIndex" json:"user_id"`
	User       User           `gorm:"foreignKey:UserID" json:"user"`
	AvatarHash string         `gorm:"size:128" json:"avatar_hash,omitempty"`
	AvatarURL  string         `json:"avatar_url,omitempty"`
	BirthDate  *time.Time     `gorm:"type:date" json:"birth_date,omitempty"`
	FirstName  string         `gorm:"size:150" json:"first_name"`
	LastName   string         `gorm:"size:150" json:"last_name"`
	Bio        string         `gorm:"type:text" json:"bio"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// FullName joins first and last name, skipping empty parts.
func (p *Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
