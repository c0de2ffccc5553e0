package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a person who can join teams and be assigned tasks.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:72" json:"-"`
	Role      string    `gorm:"size:16;default:user" json:"role"`
	Image     string    `gorm:"size:512" json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Team groups users and owns boards.
type Team struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	Boards  []Board      `gorm:"foreignKey:TeamID" json:"boards,omitempty"`
}

// TeamMember links a user to a team with a role (owner, admin, member).
type TeamMember struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TeamID    string    `gorm:"size:36;not null;uniqueIndex:idx_team_members_team_user" json:"team_id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_team_members_team_user" json:"user_id"`
	Role      string    `gorm:"size:16;not null;default:member" json:"role"`
	CreatedAt time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error       { u.ID = ensureID(u.ID); return nil }
func (t *Team) BeforeCreate(tx *gorm.DB) error       { t.ID = ensureID(t.ID); return nil }
func (m *TeamMember) BeforeCreate(tx *gorm.DB) error { m.ID = ensureID(m.ID); return nil }
