// Package column manages board columns and keeps their order contiguous
// within each board.
package column

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
	"gorm.io/gorm/clause"
)

// CreateOpts holds parameters for creating a column.
type CreateOpts struct {
	BoardID  string
	Name     string
	WIPLimit *int
	Done     bool
}

// UpdateOpts holds the column fields to change. ClearWIPLimit removes the
// limit; WIPLimit, when set, must be positive.
type UpdateOpts struct {
	Name          *string
	WIPLimit      *int
	ClearWIPLimit bool
	Done          *bool
}

// WIP is the advisory work-in-progress state of a column.
type WIP struct {
	ColumnID string `json:"column_id"`
	Count    int    `json:"count"`
	Limit    *int   `json:"limit,omitempty"`
	Over     bool   `json:"over"`
}

// Create appends a column to the end of its board.
func Create(ctx context.Context, gdb *gorm.DB, opts CreateOpts) (c *models.Column, err error) {
	ctx, end := telemetry.Op(ctx, "column.create", attribute.String("board.id", opts.BoardID))
	defer func() { end(err) }()

	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if err := checkLimit(opts.WIPLimit); err != nil {
		return nil, err
	}

	var col models.Column
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		if err := lockBoard(tx, opts.BoardID); err != nil {
			return err
		}
		var maxOrder int
		if err := tx.Model(&models.Column{}).
			Where("board_id = ?", opts.BoardID).
			Select("COALESCE(MAX(position), -1)").
			Scan(&maxOrder).Error; err != nil {
			return fmt.Errorf("max column order: %w", err)
		}
		col = models.Column{
			BoardID:  opts.BoardID,
			Name:     opts.Name,
			Order:    maxOrder + 1,
			WIPLimit: opts.WIPLimit,
			Done:     opts.Done,
		}
		if err := tx.Create(&col).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return touchBoard(tx, opts.BoardID)
	})
	if err != nil {
		return nil, fmt.Errorf("column: create: %w", err)
	}
	return &col, nil
}

// Get returns a column by id.
func Get(ctx context.Context, gdb *gorm.DB, id string) (*models.Column, error) {
	var col models.Column
	if err := gdb.WithContext(ctx).Where("id = ?", id).First(&col).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("column: %w", apperr.NotFound("column", id))
		}
		return nil, fmt.Errorf("column: get %s: %w", id, err)
	}
	return &col, nil
}

// List returns a board's columns in order.
func List(ctx context.Context, gdb *gorm.DB, boardID string) ([]models.Column, error) {
	var cols []models.Column
	if err := gdb.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("position ASC").
		Find(&cols).Error; err != nil {
		return nil, fmt.Errorf("column: list board %s: %w", boardID, err)
	}
	return cols, nil
}

// Update changes a column's name, WIP limit or done flag.
func Update(ctx context.Context, gdb *gorm.DB, id string, opts UpdateOpts) (c *models.Column, err error) {
	ctx, end := telemetry.Op(ctx, "column.update", attribute.String("column.id", id))
	defer func() { end(err) }()

	updates := map[string]interface{}{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "must not be empty")
		}
		updates["name"] = name
	}
	if opts.WIPLimit != nil {
		if err := checkLimit(opts.WIPLimit); err != nil {
			return nil, err
		}
		updates["wip_limit"] = *opts.WIPLimit
	}
	if opts.ClearWIPLimit {
		updates["wip_limit"] = nil
	}
	if opts.Done != nil {
		updates["done"] = *opts.Done
	}

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		col, err := load(tx, id, false)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Column{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("update: %w", err)
		}
		return touchBoard(tx, col.BoardID)
	})
	if err != nil {
		return nil, fmt.Errorf("column: update %s: %w", id, err)
	}
	return Get(ctx, gdb, id)
}

// Move places a column at position within its board, shifting the others
// so orders stay 0..n-1. position may equal the column count, meaning
// "last".
func Move(ctx context.Context, gdb *gorm.DB, id string, position int) (c *models.Column, err error) {
	ctx, end := telemetry.Op(ctx, "column.move", attribute.String("column.id", id))
	defer func() { end(err) }()

	if position < 0 {
		return nil, apperr.Invalid("position", "must not be negative, got %d", position)
	}
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		col, err := load(tx, id, false)
		if err != nil {
			return err
		}
		if err := lockBoard(tx, col.BoardID); err != nil {
			return err
		}
		if col, err = load(tx, id, true); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Column{}).Where("board_id = ?", col.BoardID).Count(&n).Error; err != nil {
			return fmt.Errorf("count columns: %w", err)
		}
		count := int(n)
		if position > count {
			return apperr.Invalid("position", "%d out of range [0, %d]", position, count)
		}
		if position == count {
			position = count - 1
		}
		from := col.Order
		if from == position {
			return nil
		}
		if from < position {
			err = shift(tx, col.BoardID, -1, "position > ? AND position <= ?", from, position)
		} else {
			err = shift(tx, col.BoardID, +1, "position >= ? AND position < ?", position, from)
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Column{}).Where("id = ?", id).Update("position", position).Error; err != nil {
			return fmt.Errorf("place column: %w", err)
		}
		return touchBoard(tx, col.BoardID)
	})
	if err != nil {
		return nil, fmt.Errorf("column: move %s: %w", id, err)
	}
	return Get(ctx, gdb, id)
}

// Delete removes an empty column and closes the gap in its board. A column
// that still holds tasks is refused with a constraint violation.
func Delete(ctx context.Context, gdb *gorm.DB, id string) (boardID string, err error) {
	ctx, end := telemetry.Op(ctx, "column.delete", attribute.String("column.id", id))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		col, err := load(tx, id, false)
		if err != nil {
			return err
		}
		boardID = col.BoardID
		if err := lockBoard(tx, col.BoardID); err != nil {
			return err
		}
		if col, err = load(tx, id, true); err != nil {
			return err
		}
		var tasks int64
		if err := tx.Model(&models.Task{}).Where("column_id = ?", id).Count(&tasks).Error; err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		if tasks > 0 {
			return apperr.Constraint("column %q still holds %d tasks", col.Name, tasks)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Column{}).Error; err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if err := shift(tx, col.BoardID, -1, "position > ?", col.Order); err != nil {
			return err
		}
		return touchBoard(tx, col.BoardID)
	})
	if err != nil {
		return "", fmt.Errorf("column: delete %s: %w", id, err)
	}
	return boardID, nil
}

// WIPStatus reports the task count of a column against its limit. A column
// at or over its limit is flagged; nothing is refused because of it.
func WIPStatus(ctx context.Context, gdb *gorm.DB, id string) (*WIP, error) {
	col, err := Get(ctx, gdb, id)
	if err != nil {
		return nil, err
	}
	var n int64
	if err := gdb.WithContext(ctx).Model(&models.Task{}).Where("column_id = ?", id).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("column: count tasks in %s: %w", id, err)
	}
	return &WIP{
		ColumnID: id,
		Count:    int(n),
		Limit:    col.WIPLimit,
		Over:     col.OverWIP(int(n)),
	}, nil
}

func checkLimit(limit *int) error {
	if limit != nil && *limit <= 0 {
		return apperr.Invalid("wip_limit", "must be positive, got %d", *limit)
	}
	return nil
}

func load(tx *gorm.DB, id string, lock bool) (*models.Column, error) {
	q := tx.Where("id = ?", id)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var col models.Column
	if err := q.First(&col).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("column", id)
		}
		return nil, fmt.Errorf("load column %s: %w", id, err)
	}
	return &col, nil
}

// lockBoard row-locks a board so column reorders on it are serialised.
func lockBoard(tx *gorm.DB, boardID string) error {
	var b models.Board
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").Where("id = ?", boardID).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("board", boardID)
		}
		return fmt.Errorf("lock board %s: %w", boardID, err)
	}
	return nil
}

func touchBoard(tx *gorm.DB, boardID string) error {
	if err := tx.Model(&models.Board{}).Where("id = ?", boardID).Update("updated_at", time.Now()).Error; err != nil {
		return fmt.Errorf("touch board %s: %w", boardID, err)
	}
	return nil
}

func shift(tx *gorm.DB, boardID string, delta int, cond string, args ...interface{}) error {
	err := tx.Model(&models.Column{}).
		Where("board_id = ?", boardID).
		Where(cond, args...).
		UpdateColumn("position", gorm.Expr("position + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("shift columns of board %s by %d: %w", boardID, delta, err)
	}
	return nil
}
