package models

import (
	"time"

	"gorm.io/gorm"
)

// Task is the unit of work. It is placed in exactly one column at a time;
// Order is its position in that column and is contiguous 0..n-1 across the
// column's tasks between operations.
type Task struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	ColumnID    string     `gorm:"size:36;not null;index:idx_tasks_column_position" json:"column_id"`
	Order       int        `gorm:"column:position;not null;index:idx_tasks_column_position" json:"order"`
	Title       string     `gorm:"size:256;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Status      string     `gorm:"size:16;default:to-do" json:"status"`
	Priority    Priority   `gorm:"size:16;default:medium" json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Estimate    *int       `json:"estimate,omitempty"`
	AssigneeID  *string    `gorm:"size:36;index" json:"assignee_id,omitempty"`
	SprintID    *string    `gorm:"size:36;index" json:"sprint_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Column     *Column    `gorm:"foreignKey:ColumnID" json:"column,omitempty"`
	Assignee   *User      `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Sprint     *Sprint    `gorm:"foreignKey:SprintID" json:"sprint,omitempty"`
	Subtasks   []Subtask  `gorm:"foreignKey:TaskID" json:"subtasks"`
	Comments   []Comment  `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
	Activities []Activity `gorm:"foreignKey:TaskID" json:"activities,omitempty"`
	Tags       []Tag      `gorm:"many2many:task_tags" json:"tags"`
}

// Subtask is a checklist item owned by a task.
type Subtask struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID    string    `gorm:"size:36;not null;index" json:"task_id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	Completed bool      `gorm:"default:false" json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is free text left on a task.
type Comment struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TaskID    string    `gorm:"size:36;not null;index" json:"task_id"`
	AuthorID  *string   `gorm:"size:36" json:"author_id,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Author *User `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL" json:"author,omitempty"`
}

// Activity is an append-only history entry for a task. Rows are never
// updated after creation.
type Activity struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	TaskID    string         `gorm:"size:36;not null;index" json:"task_id"`
	UserID    *string        `gorm:"size:36" json:"user_id,omitempty"`
	Action    ActivityAction `gorm:"size:16;not null" json:"action"`
	Details   string         `gorm:"type:text" json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Task *Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
}

// Tag is an interned label shared across tasks.
type Tag struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:64;not null;uniqueIndex" json:"name"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error     { t.ID = ensureID(t.ID); return nil }
func (s *Subtask) BeforeCreate(tx *gorm.DB) error  { s.ID = ensureID(s.ID); return nil }
func (c *Comment) BeforeCreate(tx *gorm.DB) error  { c.ID = ensureID(c.ID); return nil }
func (a *Activity) BeforeCreate(tx *gorm.DB) error { a.ID = ensureID(a.ID); return nil }
