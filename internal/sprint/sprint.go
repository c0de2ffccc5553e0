// Package sprint manages sprints on a board: their lifecycle, membership of
// tasks, and progress reporting.
package sprint

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

// CreateOpts holds parameters for creating a sprint.
type CreateOpts struct {
	BoardID   string
	Name      string
	Goal      string
	StartDate time.Time
	EndDate   time.Time
}

// UpdateOpts holds the sprint fields to change.
type UpdateOpts struct {
	Name      *string
	Goal      *string
	StartDate *time.Time
	EndDate   *time.Time
}

// Summary is one row of the sprint list.
type Summary struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Goal      string              `json:"goal,omitempty"`
	StartDate time.Time           `json:"start_date"`
	EndDate   time.Time           `json:"end_date"`
	Status    models.SprintStatus `json:"status"`
	BoardID   string              `json:"board_id"`
	BoardName string              `json:"board_name"`
	TeamName  string              `json:"team_name"`
	TaskCount int                 `json:"task_count"`
	Progress  int                 `json:"progress"`
}

// Detail is a sprint with its board, team and tasks.
type Detail struct {
	models.Sprint
	Progress int `json:"progress"`
}

// Report summarises a sprint's progress and burndown.
type Report struct {
	SprintID       string  `json:"sprint_id"`
	Progress       int     `json:"progress"`
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	IdealCompleted int     `json:"ideal_completed"`
	Pace           Pace    `json:"pace"`
	Burndown       []Point `json:"burndown"`
}

// Create adds a sprint in planning status. The end date must be after the
// start date.
func Create(ctx context.Context, gdb *gorm.DB, opts CreateOpts) (s *models.Sprint, err error) {
	ctx, end := telemetry.Op(ctx, "sprint.create", attribute.String("board.id", opts.BoardID))
	defer func() { end(err) }()

	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if err := checkDates(opts.StartDate, opts.EndDate); err != nil {
		return nil, err
	}

	sp := models.Sprint{
		BoardID:   opts.BoardID,
		Name:      opts.Name,
		Goal:      opts.Goal,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
		Status:    models.SprintPlanning,
	}
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Board{}).Where("id = ?", opts.BoardID).Count(&n).Error; err != nil {
			return fmt.Errorf("check board: %w", err)
		}
		if n == 0 {
			return apperr.NotFound("board", opts.BoardID)
		}
		return tx.Create(&sp).Error
	})
	if err != nil {
		return nil, fmt.Errorf("sprint: create: %w", err)
	}
	return &sp, nil
}

// Update changes a sprint's fields. Dates are validated against the
// stored values of whichever date is not being changed.
func Update(ctx context.Context, gdb *gorm.DB, id string, opts UpdateOpts) (s *models.Sprint, err error) {
	ctx, end := telemetry.Op(ctx, "sprint.update", attribute.String("sprint.id", id))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		cur, err := load(tx, id, true)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if opts.Name != nil {
			name := strings.TrimSpace(*opts.Name)
			if name == "" {
				return apperr.Invalid("name", "must not be empty")
			}
			updates["name"] = name
		}
		if opts.Goal != nil {
			updates["goal"] = *opts.Goal
		}
		start, finish := cur.StartDate, cur.EndDate
		if opts.StartDate != nil {
			start = *opts.StartDate
			updates["start_date"] = start
		}
		if opts.EndDate != nil {
			finish = *opts.EndDate
			updates["end_date"] = finish
		}
		if err := checkDates(start, finish); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Sprint{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sprint: update %s: %w", id, err)
	}
	sp, err := load(gdb.WithContext(ctx), id, false)
	if err != nil {
		return nil, fmt.Errorf("sprint: %w", err)
	}
	return sp, nil
}

// UpdateStatus sets a sprint's status. Activating a sprint completes every
// other active sprint on the same board in the same transaction.
func UpdateStatus(ctx context.Context, gdb *gorm.DB, id string, status models.SprintStatus) (s *models.Sprint, err error) {
	ctx, end := telemetry.Op(ctx, "sprint.status",
		attribute.String("sprint.id", id),
		attribute.String("status", string(status)))
	defer func() { end(err) }()

	if !status.Valid() {
		return nil, apperr.Invalid("status", "%q is not one of planning, active, completed", status)
	}
	var sp *models.Sprint
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		cur, err := load(tx, id, true)
		if err != nil {
			return err
		}
		if status == models.SprintActive {
			if err := tx.Model(&models.Sprint{}).
				Where("board_id = ? AND id <> ? AND status = ?", cur.BoardID, id, models.SprintActive).
				Update("status", models.SprintCompleted).Error; err != nil {
				return fmt.Errorf("complete other active sprints: %w", err)
			}
		}
		if err := tx.Model(&models.Sprint{}).Where("id = ?", id).Update("status", status).Error; err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		cur.Status = status
		sp = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sprint: update status of %s: %w", id, err)
	}
	return sp, nil
}

// Delete detaches the sprint's tasks and removes the sprint. It returns the
// sprint's board.
func Delete(ctx context.Context, gdb *gorm.DB, id string) (boardID string, err error) {
	ctx, end := telemetry.Op(ctx, "sprint.delete", attribute.String("sprint.id", id))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		cur, err := load(tx, id, true)
		if err != nil {
			return err
		}
		boardID = cur.BoardID
		if err := tx.Model(&models.Task{}).Where("sprint_id = ?", id).Update("sprint_id", nil).Error; err != nil {
			return fmt.Errorf("detach tasks: %w", err)
		}
		return tx.Delete(cur).Error
	})
	if err != nil {
		return "", fmt.Errorf("sprint: delete %s: %w", id, err)
	}
	return boardID, nil
}

// Get loads a sprint with its board and team, and its tasks (assignee,
// column, subtasks) ordered by title.
func Get(ctx context.Context, gdb *gorm.DB, id string, now time.Time) (*Detail, error) {
	var d Detail
	err := gdb.WithContext(ctx).
		Preload("Board.Team").
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("title ASC, id ASC") }).
		Preload("Tasks.Assignee").
		Preload("Tasks.Column").
		Preload("Tasks.Subtasks").
		Where("id = ?", id).
		First(&d.Sprint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sprint: %w", apperr.NotFound("sprint", id))
		}
		return nil, fmt.Errorf("sprint: get %s: %w", id, err)
	}
	d.Progress = ComputeProgress(&d.Sprint, now)
	return &d, nil
}

// List returns sprint summaries: active first, then planning, then
// completed, each by end date. A non-empty boardID restricts the list.
func List(ctx context.Context, gdb *gorm.DB, boardID string, now time.Time) ([]Summary, error) {
	q := gdb.WithContext(ctx).
		Preload("Board.Team").
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE status WHEN ? THEN 0 WHEN ? THEN 1 ELSE 2 END, end_date ASC",
			Vars:               []interface{}{models.SprintActive, models.SprintPlanning},
			WithoutParentheses: true,
		}})
	if boardID != "" {
		q = q.Where("board_id = ?", boardID)
	}
	var sprints []models.Sprint
	if err := q.Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("sprint: list: %w", err)
	}

	var counts []struct {
		SprintID string
		N        int
	}
	if err := gdb.WithContext(ctx).Model(&models.Task{}).
		Select("sprint_id, COUNT(*) AS n").
		Where("sprint_id IS NOT NULL").
		Group("sprint_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("sprint: count tasks: %w", err)
	}
	taskCount := make(map[string]int, len(counts))
	for _, c := range counts {
		taskCount[c.SprintID] = c.N
	}

	out := make([]Summary, len(sprints))
	for i := range sprints {
		s := &sprints[i]
		out[i] = Summary{
			ID:        s.ID,
			Name:      s.Name,
			Goal:      s.Goal,
			StartDate: s.StartDate,
			EndDate:   s.EndDate,
			Status:    s.Status,
			BoardID:   s.BoardID,
			TaskCount: taskCount[s.ID],
			Progress:  ComputeProgress(s, now),
		}
		if s.Board != nil {
			out[i].BoardName = s.Board.Name
			if s.Board.Team != nil {
				out[i].TeamName = s.Board.Team.Name
			}
		}
	}
	return out, nil
}

// AvailableTasks returns the tasks on the sprint's board that belong to no
// sprint, ordered by title.
func AvailableTasks(ctx context.Context, gdb *gorm.DB, id string) ([]models.Task, error) {
	gdb = gdb.WithContext(ctx)
	sp, err := load(gdb, id, false)
	if err != nil {
		return nil, fmt.Errorf("sprint: %w", err)
	}
	var tasks []models.Task
	if err := gdb.
		Preload("Assignee").
		Preload("Column").
		Preload("Subtasks").
		Joins("JOIN columns ON columns.id = tasks.column_id").
		Where("columns.board_id = ? AND tasks.sprint_id IS NULL", sp.BoardID).
		Order("tasks.title ASC, tasks.id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("sprint: available tasks for %s: %w", id, err)
	}
	return tasks, nil
}

// BuildReport computes the progress report of a sprint. A task counts as
// completed when its column is flagged done.
func BuildReport(ctx context.Context, gdb *gorm.DB, id string, now time.Time) (*Report, error) {
	gdb = gdb.WithContext(ctx)
	sp, err := load(gdb, id, false)
	if err != nil {
		return nil, fmt.Errorf("sprint: %w", err)
	}

	var total, completed int64
	if err := gdb.Model(&models.Task{}).Where("sprint_id = ?", id).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("sprint: count tasks: %w", err)
	}
	if err := gdb.Model(&models.Task{}).
		Joins("JOIN columns ON columns.id = tasks.column_id").
		Where("tasks.sprint_id = ? AND columns.done = ?", id, true).
		Count(&completed).Error; err != nil {
		return nil, fmt.Errorf("sprint: count completed tasks: %w", err)
	}

	return &Report{
		SprintID:       id,
		Progress:       ComputeProgress(sp, now),
		Total:          int(total),
		Completed:      int(completed),
		IdealCompleted: IdealCompleted(sp, int(total), now),
		Pace:           Evaluate(sp, int(completed), int(total), now),
		Burndown:       GenerateBurndown(sp, int(completed), int(total), now),
	}, nil
}

func checkDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Invalid("dates", "start and end date are required")
	}
	if !end.After(start) {
		return apperr.Invalid("end_date", "must be after the start date")
	}
	return nil
}

func load(tx *gorm.DB, id string, lock bool) (*models.Sprint, error) {
	q := tx.Where("id = ?", id)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sp models.Sprint
	if err := q.First(&sp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sprint", id)
		}
		return nil, fmt.Errorf("load sprint %s: %w", id, err)
	}
	return &sp, nil
}
