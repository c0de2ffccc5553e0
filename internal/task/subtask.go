package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// CreateSubtask adds an unchecked subtask to a task.
func CreateSubtask(ctx context.Context, gdb *gorm.DB, taskID, title string) (sub *models.Subtask, err error) {
	ctx, end := telemetry.Op(ctx, "task.subtask.create", attribute.String("task.id", taskID))
	defer func() { end(err) }()

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Invalid("title", "is required")
	}
	var st models.Subtask
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		if _, err := loadPlacement(tx, taskID, false); err != nil {
			return err
		}
		st = models.Subtask{TaskID: taskID, Title: title}
		return tx.Create(&st).Error
	})
	if err != nil {
		return nil, fmt.Errorf("task: create subtask on %s: %w", taskID, err)
	}
	return &st, nil
}

// ToggleSubtask sets a subtask's completed flag.
func ToggleSubtask(ctx context.Context, gdb *gorm.DB, subtaskID string, completed bool) (sub *models.Subtask, err error) {
	ctx, end := telemetry.Op(ctx, "task.subtask.toggle", attribute.String("subtask.id", subtaskID))
	defer func() { end(err) }()

	var st models.Subtask
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", subtaskID).First(&st).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("subtask", subtaskID)
			}
			return err
		}
		st.Completed = completed
		return tx.Model(&models.Subtask{}).Where("id = ?", subtaskID).Update("completed", completed).Error
	})
	if err != nil {
		return nil, fmt.Errorf("task: toggle subtask %s: %w", subtaskID, err)
	}
	return &st, nil
}

// AddComment appends a comment to a task and records a "commented" activity.
func AddComment(ctx context.Context, gdb *gorm.DB, taskID, authorID, content string) (comment *models.Comment, err error) {
	ctx, end := telemetry.Op(ctx, "task.comment", attribute.String("task.id", taskID))
	defer func() { end(err) }()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("content", "is required")
	}
	var c models.Comment
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		if _, err := loadPlacement(tx, taskID, false); err != nil {
			return err
		}
		c = models.Comment{TaskID: taskID, Content: content}
		if authorID != "" {
			if err := checkUser(tx, authorID); err != nil {
				return err
			}
			c.AuthorID = &authorID
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return logActivity(tx, taskID, authorID, models.ActionCommented, "")
	})
	if err != nil {
		return nil, fmt.Errorf("task: comment on %s: %w", taskID, err)
	}
	return &c, nil
}
