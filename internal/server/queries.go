package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrumban/internal/board"
	"github.com/zulandar/scrumban/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// recentLimit caps the activity and board lists on the dashboard.
const recentLimit = 5

// RecentActivity is one line of the dashboard activity feed.
type RecentActivity struct {
	ID        string                `json:"id"`
	TaskID    string                `json:"task_id"`
	Action    models.ActivityAction `json:"action"`
	Message   string                `json:"message"`
	CreatedAt time.Time             `json:"created_at"`
}

// Stats holds the dashboard overview.
type Stats struct {
	Boards           int64            `json:"boards"`
	OpenTasks        int64            `json:"open_tasks"`
	ActiveSprints    int64            `json:"active_sprints"`
	RecentActivities []RecentActivity `json:"recent_activities"`
	RecentBoards     []board.Summary  `json:"recent_boards"`
}

// DashboardStats gathers the overview counts and recent items concurrently.
func DashboardStats(ctx context.Context, gdb *gorm.DB) (*Stats, error) {
	var s Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gdb.WithContext(gctx).Model(&models.Board{}).Count(&s.Boards).Error
	})
	g.Go(func() error {
		// Open means not sitting in a column flagged done.
		return gdb.WithContext(gctx).Model(&models.Task{}).
			Joins("JOIN columns ON columns.id = tasks.column_id").
			Where("columns.done = ?", false).
			Count(&s.OpenTasks).Error
	})
	g.Go(func() error {
		return gdb.WithContext(gctx).Model(&models.Sprint{}).
			Where("status = ?", models.SprintActive).
			Count(&s.ActiveSprints).Error
	})
	g.Go(func() error {
		var acts []models.Activity
		if err := gdb.WithContext(gctx).
			Preload("User").
			Preload("Task").
			Order("created_at DESC, id DESC").
			Limit(recentLimit).
			Find(&acts).Error; err != nil {
			return err
		}
		s.RecentActivities = make([]RecentActivity, len(acts))
		for i := range acts {
			s.RecentActivities[i] = RecentActivity{
				ID:        acts[i].ID,
				TaskID:    acts[i].TaskID,
				Action:    acts[i].Action,
				Message:   describeActivity(&acts[i]),
				CreatedAt: acts[i].CreatedAt,
			}
		}
		return nil
	})
	g.Go(func() error {
		boards, err := board.List(gctx, gdb, "")
		if err != nil {
			return err
		}
		if len(boards) > recentLimit {
			boards = boards[:recentLimit]
		}
		s.RecentBoards = boards
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("server: dashboard stats: %w", err)
	}
	return &s, nil
}

// describeActivity renders an activity as a sentence such as
// `Ada moved "Write docs"`.
func describeActivity(a *models.Activity) string {
	who := "Someone"
	if a.User != nil && a.User.Name != "" {
		who = a.User.Name
	}
	title := "a task"
	if a.Task != nil {
		title = fmt.Sprintf("%q", a.Task.Title)
	}
	switch a.Action {
	case models.ActionCommented:
		return fmt.Sprintf("%s commented on %s", who, title)
	default:
		return fmt.Sprintf("%s %s %s", who, a.Action, title)
	}
}

func (a *api) dashboard(c *gin.Context) {
	s, err := DashboardStats(c.Request.Context(), a.db)
	if err != nil {
		fail(c, "load dashboard", err)
		return
	}
	c.JSON(http.StatusOK, s)
}
