package task

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MoveResult describes the outcome of Move.
type MoveResult struct {
	TaskID       string
	BoardID      string
	FromColumnID string
	ToColumnID   string
	From         int
	To           int
	Moved        bool // false when the task was already at the target
}

// Move places a task at destPosition of column destColumnID, shifting
// siblings so that both the source and destination columns keep orders
// 0..n-1. destPosition may equal the destination's current task count,
// meaning "append at the end".
//
// Every read and write happens in one transaction; on failure nothing is
// committed. Moving a task onto its current position is a no-op. WIP limits
// are not checked.
func Move(ctx context.Context, gdb *gorm.DB, taskID, destColumnID string, destPosition int, actorID string) (res *MoveResult, err error) {
	ctx, end := telemetry.Op(ctx, "task.move",
		attribute.String("task.id", taskID),
		attribute.String("column.id", destColumnID))
	defer func() { end(err) }()

	if destPosition < 0 {
		return nil, apperr.Invalid("position", "must not be negative, got %d", destPosition)
	}

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		r, err := move(tx, taskID, destColumnID, destPosition, actorID)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("task: move %s: %w", taskID, err)
	}

	if res.Moved {
		kind := "reorder"
		if res.FromColumnID != res.ToColumnID {
			kind = "transfer"
		}
		telemetry.TaskMoved(ctx, kind)
	}
	return res, nil
}

func move(tx *gorm.DB, taskID, destColumnID string, to int, actorID string) (*MoveResult, error) {
	t, err := loadPlacement(tx, taskID, false)
	if err != nil {
		return nil, err
	}
	if err := checkActor(tx, actorID); err != nil {
		return nil, err
	}

	cols, err := lockColumns(tx, t.ColumnID, destColumnID)
	if err != nil {
		return nil, err
	}
	dest, ok := cols[destColumnID]
	if !ok {
		return nil, apperr.NotFound("column", destColumnID)
	}
	src, ok := cols[t.ColumnID]
	if !ok {
		return nil, fmt.Errorf("source column %s of task %s missing", t.ColumnID, taskID)
	}
	if src.BoardID != dest.BoardID {
		return nil, apperr.Invalid("column", "destination column %s is on another board", destColumnID)
	}

	// Re-read under the column locks: a concurrent move may have relocated
	// the task between the first read and the lock.
	cur, err := loadPlacement(tx, taskID, true)
	if err != nil {
		return nil, err
	}
	if cur.ColumnID != t.ColumnID {
		return nil, apperr.Conflict(fmt.Errorf("task %s changed column concurrently", taskID))
	}

	count, err := countTasks(tx, destColumnID)
	if err != nil {
		return nil, err
	}
	if to > count {
		return nil, apperr.Invalid("position", "%d out of range [0, %d]", to, count)
	}

	res := &MoveResult{
		TaskID:       taskID,
		BoardID:      dest.BoardID,
		FromColumnID: cur.ColumnID,
		ToColumnID:   destColumnID,
		From:         cur.Order,
	}

	if cur.ColumnID == destColumnID {
		// count includes the task itself, so "append" is the last index.
		if to == count {
			to = count - 1
		}
		res.To = to
		if cur.Order == to {
			return res, nil
		}
		if err := reorder(tx, cur, to); err != nil {
			return nil, err
		}
		res.Moved = true
		return res, nil
	}

	res.To = to
	if err := transfer(tx, cur, destColumnID, to); err != nil {
		return nil, err
	}
	res.Moved = true

	if err := logActivity(tx, taskID, actorID, models.ActionMoved,
		fmt.Sprintf("from %q to %q", src.Name, dest.Name)); err != nil {
		return nil, err
	}
	if dest.Done && !src.Done {
		if err := logActivity(tx, taskID, actorID, models.ActionCompleted, ""); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// reorder moves t within its own column from t.Order to to (to != t.Order).
func reorder(tx *gorm.DB, t *models.Task, to int) error {
	from := t.Order
	if from < to {
		// Siblings in (from, to] slide left into the vacated slot.
		if err := shift(tx, t.ColumnID, -1, "position > ? AND position <= ?", from, to); err != nil {
			return err
		}
	} else {
		// Siblings in [to, from) slide right to open the slot.
		if err := shift(tx, t.ColumnID, +1, "position >= ? AND position < ?", to, from); err != nil {
			return err
		}
	}
	return place(tx, t.ID, t.ColumnID, to)
}

// transfer moves t out of its column and into destColumnID at to.
func transfer(tx *gorm.DB, t *models.Task, destColumnID string, to int) error {
	if err := shift(tx, t.ColumnID, -1, "position > ?", t.Order); err != nil {
		return err
	}
	if err := shift(tx, destColumnID, +1, "position >= ?", to); err != nil {
		return err
	}
	return place(tx, t.ID, destColumnID, to)
}

// shift adds delta to the position of every task in columnID matching cond.
func shift(tx *gorm.DB, columnID string, delta int, cond string, args ...interface{}) error {
	err := tx.Model(&models.Task{}).
		Where("column_id = ?", columnID).
		Where(cond, args...).
		UpdateColumn("position", gorm.Expr("position + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("shift column %s by %d: %w", columnID, delta, err)
	}
	return nil
}

// place sets a task's column and position.
func place(tx *gorm.DB, taskID, columnID string, position int) error {
	err := tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
		"column_id": columnID,
		"position":  position,
	}).Error
	if err != nil {
		return fmt.Errorf("place task %s: %w", taskID, err)
	}
	return nil
}

// loadPlacement reads a task's id, column and position, optionally locking
// the row.
func loadPlacement(tx *gorm.DB, taskID string, lock bool) (*models.Task, error) {
	q := tx.Select("id", "column_id", "position").Where("id = ?", taskID)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t models.Task
	if err := q.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("task", taskID)
		}
		return nil, fmt.Errorf("load task %s: %w", taskID, err)
	}
	return &t, nil
}

// lockColumns loads and row-locks the given columns in id order, so that
// concurrent operations on overlapping columns queue instead of deadlocking.
func lockColumns(tx *gorm.DB, ids ...string) (map[string]*models.Column, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Strings(uniq)

	var cols []models.Column
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", uniq).
		Order("id ASC").
		Find(&cols).Error; err != nil {
		return nil, fmt.Errorf("lock columns: %w", err)
	}
	out := make(map[string]*models.Column, len(cols))
	for i := range cols {
		out[cols[i].ID] = &cols[i]
	}
	return out, nil
}

// lockColumn locks a single column, reporting NotFound if it is missing.
func lockColumn(tx *gorm.DB, id string) (*models.Column, error) {
	cols, err := lockColumns(tx, id)
	if err != nil {
		return nil, err
	}
	col, ok := cols[id]
	if !ok {
		return nil, apperr.NotFound("column", id)
	}
	return col, nil
}

func countTasks(tx *gorm.DB, columnID string) (int, error) {
	var n int64
	if err := tx.Model(&models.Task{}).Where("column_id = ?", columnID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks in column %s: %w", columnID, err)
	}
	return int(n), nil
}
