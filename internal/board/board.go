// Package board manages boards: creation with seeded columns, the nested
// board aggregate, summaries, and cascading deletion.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/config"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/task"
	"github.com/zulandar/scrumban/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateOpts holds parameters for creating a board. Columns seeds the new
// board; when empty, config.DefaultBoardColumns is used.
type CreateOpts struct {
	TeamID      string
	Name        string
	Description string
	Columns     []config.ColumnConfig
}

// UpdateOpts holds the board fields to change.
type UpdateOpts struct {
	Name        *string
	Description *string
}

// Detail is the board aggregate: columns in order with their tasks in
// order, each task with subtasks, assignee and tags, plus the team and the
// active sprint.
type Detail struct {
	models.Board
	ActiveSprint *models.Sprint `json:"active_sprint,omitempty"`
}

// Summary is one row of the board list.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	TeamID       string    `json:"team_id"`
	TeamName     string    `json:"team_name"`
	ActiveSprint string    `json:"active_sprint,omitempty"`
	TaskCount    int       `json:"task_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Create inserts a board and its seed columns in one transaction.
func Create(ctx context.Context, gdb *gorm.DB, opts CreateOpts) (b *models.Board, err error) {
	ctx, end := telemetry.Op(ctx, "board.create", attribute.String("team.id", opts.TeamID))
	defer func() { end(err) }()

	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	cols := opts.Columns
	if len(cols) == 0 {
		cols = config.DefaultBoardColumns
	}

	var board models.Board
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Team{}).Where("id = ?", opts.TeamID).Count(&n).Error; err != nil {
			return fmt.Errorf("check team: %w", err)
		}
		if n == 0 {
			return apperr.NotFound("team", opts.TeamID)
		}

		board = models.Board{TeamID: opts.TeamID, Name: opts.Name, Description: opts.Description}
		if err := tx.Create(&board).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		for i, cc := range cols {
			col := models.Column{BoardID: board.ID, Name: cc.Name, Order: i, Done: cc.Done}
			if cc.WIPLimit > 0 {
				limit := cc.WIPLimit
				col.WIPLimit = &limit
			}
			if err := tx.Create(&col).Error; err != nil {
				return fmt.Errorf("seed column %q: %w", cc.Name, err)
			}
			board.Columns = append(board.Columns, col)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("board: create: %w", err)
	}
	return &board, nil
}

// Get loads the board aggregate.
func Get(ctx context.Context, gdb *gorm.DB, id string) (*Detail, error) {
	gdb = gdb.WithContext(ctx)
	var d Detail
	err := gdb.
		Preload("Team").
		Preload("Columns", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Columns.Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Columns.Tasks.Subtasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Columns.Tasks.Assignee").
		Preload("Columns.Tasks.Tags", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Where("id = ?", id).
		First(&d.Board).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("board: %w", apperr.NotFound("board", id))
		}
		return nil, fmt.Errorf("board: get %s: %w", id, err)
	}

	var active []models.Sprint
	if err := gdb.Where("board_id = ? AND status = ?", id, models.SprintActive).
		Order("start_date DESC").Limit(1).Find(&active).Error; err != nil {
		return nil, fmt.Errorf("board: active sprint of %s: %w", id, err)
	}
	if len(active) > 0 {
		d.ActiveSprint = &active[0]
	}
	return &d, nil
}

// List returns board summaries, most recently updated first. A non-empty
// teamID restricts the list to that team.
func List(ctx context.Context, gdb *gorm.DB, teamID string) ([]Summary, error) {
	var boards []models.Board
	var counts []struct {
		BoardID string
		N       int
	}
	var active []models.Sprint

	g, gctx := errgroup.WithContext(ctx)
	gdb = gdb.WithContext(gctx)
	g.Go(func() error {
		q := gdb.Preload("Team").Order("updated_at DESC")
		if teamID != "" {
			q = q.Where("team_id = ?", teamID)
		}
		return q.Find(&boards).Error
	})
	g.Go(func() error {
		return gdb.Model(&models.Task{}).
			Select("columns.board_id AS board_id, COUNT(*) AS n").
			Joins("JOIN columns ON columns.id = tasks.column_id").
			Group("columns.board_id").
			Scan(&counts).Error
	})
	g.Go(func() error {
		return gdb.Where("status = ?", models.SprintActive).Order("start_date ASC").Find(&active).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("board: list: %w", err)
	}

	taskCount := make(map[string]int, len(counts))
	for _, c := range counts {
		taskCount[c.BoardID] = c.N
	}
	sprintName := make(map[string]string, len(active))
	for _, s := range active {
		sprintName[s.BoardID] = s.Name
	}

	out := make([]Summary, len(boards))
	for i, b := range boards {
		out[i] = Summary{
			ID:           b.ID,
			Name:         b.Name,
			Description:  b.Description,
			TeamID:       b.TeamID,
			ActiveSprint: sprintName[b.ID],
			TaskCount:    taskCount[b.ID],
			UpdatedAt:    b.UpdatedAt,
		}
		if b.Team != nil {
			out[i].TeamName = b.Team.Name
		}
	}
	return out, nil
}

// Update changes a board's name or description.
func Update(ctx context.Context, gdb *gorm.DB, id string, opts UpdateOpts) (out *models.Board, err error) {
	ctx, end := telemetry.Op(ctx, "board.update", attribute.String("board.id", id))
	defer func() { end(err) }()

	updates := map[string]interface{}{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "must not be empty")
		}
		updates["name"] = name
	}
	if opts.Description != nil {
		updates["description"] = *opts.Description
	}

	var b models.Board
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("board", id)
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&b).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("board: update %s: %w", id, err)
	}
	return &b, nil
}

// Delete removes a board together with its columns, tasks (and their
// subtasks, comments, activities and tag links) and sprints.
func Delete(ctx context.Context, gdb *gorm.DB, id string) (err error) {
	ctx, end := telemetry.Op(ctx, "board.delete", attribute.String("board.id", id))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		var b models.Board
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("board", id)
			}
			return fmt.Errorf("lock board: %w", err)
		}

		var columnIDs []string
		if err := tx.Model(&models.Column{}).Where("board_id = ?", id).Pluck("id", &columnIDs).Error; err != nil {
			return fmt.Errorf("list columns: %w", err)
		}
		if len(columnIDs) > 0 {
			var taskIDs []string
			if err := tx.Model(&models.Task{}).Where("column_id IN ?", columnIDs).Pluck("id", &taskIDs).Error; err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			if err := task.DeleteChildren(tx, taskIDs); err != nil {
				return err
			}
			if err := tx.Where("column_id IN ?", columnIDs).Delete(&models.Task{}).Error; err != nil {
				return fmt.Errorf("delete tasks: %w", err)
			}
		}
		if err := tx.Where("board_id = ?", id).Delete(&models.Column{}).Error; err != nil {
			return fmt.Errorf("delete columns: %w", err)
		}
		if err := tx.Where("board_id = ?", id).Delete(&models.Sprint{}).Error; err != nil {
			return fmt.Errorf("delete sprints: %w", err)
		}
		return tx.Delete(&b).Error
	})
	if err != nil {
		return fmt.Errorf("board: delete %s: %w", id, err)
	}
	return nil
}
