package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/notify"
	"github.com/zulandar/scrumban/internal/sprint"
)

type createSprintRequest struct {
	BoardID   string    `json:"board_id"`
	Name      string    `json:"name"`
	Goal      string    `json:"goal"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type updateSprintRequest struct {
	Name      *string    `json:"name"`
	Goal      *string    `json:"goal"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

type sprintStatusRequest struct {
	Status models.SprintStatus `json:"status"`
}

func (a *api) listSprints(c *gin.Context) {
	list, err := sprint.List(c.Request.Context(), a.db, c.Query("board_id"), a.now())
	if err != nil {
		fail(c, "list sprints", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *api) createSprint(c *gin.Context) {
	var req createSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	s, err := sprint.Create(ctx, a.db, sprint.CreateOpts{
		BoardID:   req.BoardID,
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		fail(c, "create sprint", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, s.BoardID, "sprint created")
	c.JSON(http.StatusCreated, s)
}

func (a *api) getSprint(c *gin.Context) {
	d, err := sprint.Get(c.Request.Context(), a.db, c.Param("id"), a.now())
	if err != nil {
		fail(c, "load sprint", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (a *api) updateSprint(c *gin.Context) {
	var req updateSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	s, err := sprint.Update(ctx, a.db, c.Param("id"), sprint.UpdateOpts{
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		fail(c, "update sprint", err)
		return
	}
	a.stale(ctx, notify.ScopeSprint, s.ID, "sprint updated")
	a.stale(ctx, notify.ScopeBoard, s.BoardID, "sprint updated")
	c.JSON(http.StatusOK, s)
}

func (a *api) updateSprintStatus(c *gin.Context) {
	var req sprintStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	s, err := sprint.UpdateStatus(ctx, a.db, c.Param("id"), req.Status)
	if err != nil {
		fail(c, "update sprint status", err)
		return
	}
	a.stale(ctx, notify.ScopeSprint, s.ID, "status changed")
	a.stale(ctx, notify.ScopeBoard, s.BoardID, "sprint status changed")
	c.JSON(http.StatusOK, s)
}

func (a *api) deleteSprint(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	boardID, err := sprint.Delete(ctx, a.db, id)
	if err != nil {
		fail(c, "delete sprint", err)
		return
	}
	a.stale(ctx, notify.ScopeSprint, id, "sprint deleted")
	a.stale(ctx, notify.ScopeBoard, boardID, "sprint deleted")
	c.Status(http.StatusNoContent)
}

func (a *api) sprintReport(c *gin.Context) {
	r, err := sprint.BuildReport(c.Request.Context(), a.db, c.Param("id"), a.now())
	if err != nil {
		fail(c, "build sprint report", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (a *api) availableTasks(c *gin.Context) {
	tasks, err := sprint.AvailableTasks(c.Request.Context(), a.db, c.Param("id"))
	if err != nil {
		fail(c, "list available tasks", err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
