// Package task provides task lifecycle operations and the reordering engine
// that keeps every column's task orders contiguous.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	ColumnID    string
	Title       string
	Description string
	Priority    models.Priority // defaults to medium
	SprintID    string
	AssigneeID  string
	DueDate     *time.Time
	Estimate    *int
	Tags        []string
	ActorID     string // recorded on the "created" activity
}

// UpdateOpts holds the fields to change on a task. Nil fields are left
// alone. An empty AssigneeID clears the assignee; ClearDueDate clears the
// due date.
type UpdateOpts struct {
	Title        *string
	Description  *string
	Priority     *models.Priority
	ColumnID     *string
	AssigneeID   *string
	DueDate      *time.Time
	ClearDueDate bool
	Estimate     *int
}

// Empty reports whether opts changes nothing.
func (o UpdateOpts) Empty() bool {
	return o.Title == nil && o.Description == nil && o.Priority == nil && o.ColumnID == nil &&
		o.AssigneeID == nil && o.DueDate == nil && !o.ClearDueDate && o.Estimate == nil
}

// Create appends a new task to the end of its column. The order is computed
// as max+1 (0 for an empty column) inside the same transaction as the
// insert, with the column row locked so concurrent creations in one column
// cannot compute the same order.
func Create(ctx context.Context, gdb *gorm.DB, opts CreateOpts) (t *models.Task, err error) {
	ctx, end := telemetry.Op(ctx, "task.create", attribute.String("column.id", opts.ColumnID))
	defer func() { end(err) }()

	opts.Title = strings.TrimSpace(opts.Title)
	if opts.Title == "" {
		return nil, apperr.Invalid("title", "is required")
	}
	if opts.Priority == "" {
		opts.Priority = models.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return nil, apperr.Invalid("priority", "%q is not one of %v", opts.Priority, models.Priorities)
	}

	var created models.Task
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		col, err := lockColumn(tx, opts.ColumnID)
		if err != nil {
			return err
		}
		if err := checkActor(tx, opts.ActorID); err != nil {
			return err
		}
		if opts.SprintID != "" {
			if err := checkSprint(tx, opts.SprintID, col.BoardID); err != nil {
				return err
			}
		}
		if opts.AssigneeID != "" {
			if err := checkUser(tx, opts.AssigneeID); err != nil {
				return err
			}
		}

		var maxOrder int
		if err := tx.Model(&models.Task{}).
			Where("column_id = ?", col.ID).
			Select("COALESCE(MAX(position), -1)").
			Scan(&maxOrder).Error; err != nil {
			return fmt.Errorf("max order in column %s: %w", col.ID, err)
		}

		created = models.Task{
			ColumnID:    col.ID,
			Order:       maxOrder + 1,
			Title:       opts.Title,
			Description: opts.Description,
			Status:      models.TaskStatusTodo,
			Priority:    opts.Priority,
			DueDate:     opts.DueDate,
			Estimate:    opts.Estimate,
		}
		if opts.SprintID != "" {
			created.SprintID = &opts.SprintID
		}
		if opts.AssigneeID != "" {
			created.AssigneeID = &opts.AssigneeID
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		if len(opts.Tags) > 0 {
			if err := replaceTags(tx, &created, opts.Tags); err != nil {
				return err
			}
		}
		return logActivity(tx, created.ID, opts.ActorID, models.ActionCreated, "")
	})
	if err != nil {
		return nil, fmt.Errorf("task: create: %w", err)
	}
	return Get(ctx, gdb, created.ID)
}

// Get retrieves a task with its assignee, column, subtasks, comments
// (oldest first), activities (newest first) and tags.
func Get(ctx context.Context, gdb *gorm.DB, id string) (*models.Task, error) {
	var t models.Task
	err := gdb.WithContext(ctx).
		Preload("Assignee").
		Preload("Column").
		Preload("Subtasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Comments.Author").
		Preload("Activities", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Preload("Activities.User").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task: %w", apperr.NotFound("task", id))
		}
		return nil, fmt.Errorf("task: get %s: %w", id, err)
	}
	return &t, nil
}

// ListByColumn returns a column's tasks in order.
func ListByColumn(ctx context.Context, gdb *gorm.DB, columnID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := gdb.WithContext(ctx).
		Where("column_id = ?", columnID).
		Order("position ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list column %s: %w", columnID, err)
	}
	return tasks, nil
}

// Update applies opts to a task and appends an "updated" activity. A column
// change appends the task to the end of the new column and closes the gap
// in the old one.
func Update(ctx context.Context, gdb *gorm.DB, id string, opts UpdateOpts, actorID string) (t *models.Task, err error) {
	ctx, end := telemetry.Op(ctx, "task.update", attribute.String("task.id", id))
	defer func() { end(err) }()

	updates := map[string]interface{}{}
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return nil, apperr.Invalid("title", "must not be empty")
		}
		updates["title"] = title
	}
	if opts.Description != nil {
		updates["description"] = *opts.Description
	}
	if opts.Priority != nil {
		if !opts.Priority.Valid() {
			return nil, apperr.Invalid("priority", "%q is not one of %v", *opts.Priority, models.Priorities)
		}
		updates["priority"] = *opts.Priority
	}
	if opts.DueDate != nil {
		updates["due_date"] = *opts.DueDate
	}
	if opts.ClearDueDate {
		updates["due_date"] = nil
	}
	if opts.Estimate != nil {
		if *opts.Estimate < 0 {
			return nil, apperr.Invalid("estimate", "must not be negative")
		}
		updates["estimate"] = *opts.Estimate
	}

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		cur, err := loadPlacement(tx, id, false)
		if err != nil {
			return err
		}
		if err := checkActor(tx, actorID); err != nil {
			return err
		}
		if opts.AssigneeID != nil {
			if *opts.AssigneeID == "" {
				updates["assignee_id"] = nil
			} else {
				if err := checkUser(tx, *opts.AssigneeID); err != nil {
					return err
				}
				updates["assignee_id"] = *opts.AssigneeID
			}
		}
		if opts.ColumnID != nil && *opts.ColumnID != cur.ColumnID {
			count, err := countTasks(tx, *opts.ColumnID)
			if err != nil {
				return err
			}
			if _, err := move(tx, id, *opts.ColumnID, count, actorID); err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("update fields: %w", err)
			}
		}
		return logActivity(tx, id, actorID, models.ActionUpdated, changedFields(opts))
	})
	if err != nil {
		return nil, fmt.Errorf("task: update %s: %w", id, err)
	}
	return Get(ctx, gdb, id)
}

// Delete removes a task with its subtasks, comments, activities and tag
// links, and closes the gap it leaves in its column.
func Delete(ctx context.Context, gdb *gorm.DB, id string) (boardID string, err error) {
	ctx, end := telemetry.Op(ctx, "task.delete", attribute.String("task.id", id))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		t, err := loadPlacement(tx, id, false)
		if err != nil {
			return err
		}
		col, err := lockColumn(tx, t.ColumnID)
		if err != nil {
			return err
		}
		boardID = col.BoardID
		// Re-read under the column lock for the authoritative position.
		if t, err = loadPlacement(tx, id, true); err != nil {
			return err
		}
		if t.ColumnID != col.ID {
			return apperr.Conflict(fmt.Errorf("task %s changed column concurrently", id))
		}
		if err := deleteChildren(tx, []string{id}); err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return shift(tx, col.ID, -1, "position > ?", t.Order)
	})
	if err != nil {
		return "", fmt.Errorf("task: delete %s: %w", id, err)
	}
	return boardID, nil
}

// DeleteChildren removes the subtasks, comments, activities and tag links
// of the given tasks. It must run inside the caller's transaction.
func DeleteChildren(tx *gorm.DB, taskIDs []string) error {
	return deleteChildren(tx, taskIDs)
}

func deleteChildren(tx *gorm.DB, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	for _, m := range []interface{}{&models.Subtask{}, &models.Comment{}, &models.Activity{}} {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(m).Error; err != nil {
			return fmt.Errorf("delete %T: %w", m, err)
		}
	}
	if err := tx.Exec("DELETE FROM task_tags WHERE task_id IN ?", taskIDs).Error; err != nil {
		return fmt.Errorf("delete task tags: %w", err)
	}
	return nil
}

// SetSprint attaches a task to a sprint on the same board, or detaches it
// when sprintID is empty.
func SetSprint(ctx context.Context, gdb *gorm.DB, taskID, sprintID string) (t *models.Task, err error) {
	ctx, end := telemetry.Op(ctx, "task.sprint", attribute.String("task.id", taskID))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		t, err := loadPlacement(tx, taskID, false)
		if err != nil {
			return err
		}
		var value interface{}
		if sprintID != "" {
			boardID, err := boardOfColumn(tx, t.ColumnID)
			if err != nil {
				return err
			}
			if err := checkSprint(tx, sprintID, boardID); err != nil {
				return err
			}
			value = sprintID
		}
		return tx.Model(&models.Task{}).Where("id = ?", taskID).Update("sprint_id", value).Error
	})
	if err != nil {
		return nil, fmt.Errorf("task: set sprint of %s: %w", taskID, err)
	}
	return Get(ctx, gdb, taskID)
}

// BoardOf returns the board a task currently belongs to.
func BoardOf(ctx context.Context, gdb *gorm.DB, taskID string) (string, error) {
	t, err := loadPlacement(gdb.WithContext(ctx), taskID, false)
	if err != nil {
		return "", fmt.Errorf("task: %w", err)
	}
	id, err := boardOfColumn(gdb.WithContext(ctx), t.ColumnID)
	if err != nil {
		return "", fmt.Errorf("task: %w", err)
	}
	return id, nil
}

func boardOfColumn(tx *gorm.DB, columnID string) (string, error) {
	var col models.Column
	if err := tx.Select("id", "board_id").Where("id = ?", columnID).First(&col).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.NotFound("column", columnID)
		}
		return "", fmt.Errorf("load column %s: %w", columnID, err)
	}
	return col.BoardID, nil
}

// checkSprint verifies the sprint exists and belongs to boardID.
func checkSprint(tx *gorm.DB, sprintID, boardID string) error {
	var s models.Sprint
	if err := tx.Select("id", "board_id").Where("id = ?", sprintID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("sprint", sprintID)
		}
		return fmt.Errorf("load sprint %s: %w", sprintID, err)
	}
	if s.BoardID != boardID {
		return apperr.Invalid("sprint", "sprint %s belongs to another board", sprintID)
	}
	return nil
}

func checkUser(tx *gorm.DB, userID string) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return fmt.Errorf("check user %s: %w", userID, err)
	}
	if n == 0 {
		return apperr.NotFound("user", userID)
	}
	return nil
}

// checkActor verifies that a non-empty acting user exists, so activity
// entries never reference a missing user.
func checkActor(tx *gorm.DB, actorID string) error {
	if actorID == "" {
		return nil
	}
	return checkUser(tx, actorID)
}

// logActivity appends an activity entry. An empty actorID records no user.
func logActivity(tx *gorm.DB, taskID, actorID string, action models.ActivityAction, details string) error {
	a := models.Activity{TaskID: taskID, Action: action, Details: details}
	if actorID != "" {
		a.UserID = &actorID
	}
	if err := tx.Create(&a).Error; err != nil {
		return fmt.Errorf("log %s activity: %w", action, err)
	}
	return nil
}

// changedFields summarises which fields an update touched.
func changedFields(o UpdateOpts) string {
	var f []string
	if o.Title != nil {
		f = append(f, "title")
	}
	if o.Description != nil {
		f = append(f, "description")
	}
	if o.Priority != nil {
		f = append(f, "priority")
	}
	if o.ColumnID != nil {
		f = append(f, "column")
	}
	if o.AssigneeID != nil {
		f = append(f, "assignee")
	}
	if o.DueDate != nil || o.ClearDueDate {
		f = append(f, "due date")
	}
	if o.Estimate != nil {
		f = append(f, "estimate")
	}
	return strings.Join(f, ", ")
}
