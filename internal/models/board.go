package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Board owns an ordered set of columns and belongs to a team.
type Board struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	TeamID      string    `gorm:"size:36;not null;index" json:"team_id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Team    *Team    `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Columns []Column `gorm:"foreignKey:BoardID" json:"columns,omitempty"`
	Sprints []Sprint `gorm:"foreignKey:BoardID" json:"sprints,omitempty"`
}

// Column is an ordered bucket of tasks. Order is contiguous 0..n-1 within
// the board. WIPLimit is advisory and never enforced by the store.
type Column struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BoardID   string    `gorm:"size:36;not null;index:idx_columns_board_position" json:"board_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Order     int       `gorm:"column:position;not null;index:idx_columns_board_position" json:"order"`
	WIPLimit  *int      `gorm:"column:wip_limit" json:"wip_limit,omitempty"`
	Done      bool      `gorm:"default:false" json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Tasks []Task `gorm:"foreignKey:ColumnID" json:"tasks,omitempty"`
}

// OverWIP reports whether count tasks meet or exceed the column's WIP limit.
func (c *Column) OverWIP(count int) bool {
	return c.WIPLimit != nil && count >= *c.WIPLimit
}

// Sprint is a time-boxed planning window on a board.
type Sprint struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	BoardID   string       `gorm:"size:36;not null;index" json:"board_id"`
	Name      string       `gorm:"size:128;not null" json:"name"`
	Goal      string       `gorm:"type:text" json:"goal,omitempty"`
	StartDate time.Time    `gorm:"not null" json:"start_date"`
	EndDate   time.Time    `gorm:"not null" json:"end_date"`
	Status    SprintStatus `gorm:"size:16;default:planning;index" json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`

	Board *Board `gorm:"foreignKey:BoardID" json:"board,omitempty"`
	Tasks []Task `gorm:"foreignKey:SprintID;constraint:OnDelete:SET NULL" json:"tasks,omitempty"`
}

func (b *Board) BeforeCreate(tx *gorm.DB) error  { b.ID = ensureID(b.ID); return nil }
func (c *Column) BeforeCreate(tx *gorm.DB) error { c.ID = ensureID(c.ID); return nil }
func (s *Sprint) BeforeCreate(tx *gorm.DB) error { s.ID = ensureID(s.ID); return nil }

// ensureID returns id, or a fresh UUID when id is empty.
func ensureID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
