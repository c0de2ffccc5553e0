package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/notify"
	"github.com/zulandar/scrumban/internal/task"
)

type createTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	SprintID    string          `json:"sprint_id"`
	AssigneeID  string          `json:"assignee_id"`
	DueDate     *time.Time      `json:"due_date"`
	Estimate    *int            `json:"estimate"`
	Tags        []string        `json:"tags"`
}

type updateTaskRequest struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	Priority     *models.Priority `json:"priority"`
	ColumnID     *string          `json:"column_id"`
	AssigneeID   *string          `json:"assignee_id"`
	DueDate      *time.Time       `json:"due_date"`
	ClearDueDate bool             `json:"clear_due_date"`
	Estimate     *int             `json:"estimate"`
}

type moveTaskRequest struct {
	ColumnID string `json:"column_id"`
	Position *int   `json:"position"`
}

type setSprintRequest struct {
	SprintID string `json:"sprint_id"`
}

type setTagsRequest struct {
	Tags []string `json:"tags"`
}

type subtaskRequest struct {
	Title string `json:"title"`
}

type toggleSubtaskRequest struct {
	Completed bool `json:"completed"`
}

type commentRequest struct {
	Content string `json:"content"`
}

func (a *api) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	t, err := task.Create(ctx, a.db, task.CreateOpts{
		ColumnID:    c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		SprintID:    req.SprintID,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		Estimate:    req.Estimate,
		Tags:        req.Tags,
		ActorID:     actor(c),
	})
	if err != nil {
		fail(c, "create task", err)
		return
	}
	if t.Column != nil {
		a.stale(ctx, notify.ScopeBoard, t.Column.BoardID, "task created")
	}
	if t.SprintID != nil {
		a.stale(ctx, notify.ScopeSprint, *t.SprintID, "task created")
	}
	c.JSON(http.StatusCreated, t)
}

func (a *api) getTask(c *gin.Context) {
	t, err := task.Get(c.Request.Context(), a.db, c.Param("id"))
	if err != nil {
		fail(c, "load task", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (a *api) updateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	t, err := task.Update(ctx, a.db, c.Param("id"), task.UpdateOpts{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		ColumnID:     req.ColumnID,
		AssigneeID:   req.AssigneeID,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		Estimate:     req.Estimate,
	}, actor(c))
	if err != nil {
		fail(c, "update task", err)
		return
	}
	if t.Column != nil {
		a.stale(ctx, notify.ScopeBoard, t.Column.BoardID, "task updated")
	}
	c.JSON(http.StatusOK, t)
}

func (a *api) deleteTask(c *gin.Context) {
	ctx := c.Request.Context()
	boardID, err := task.Delete(ctx, a.db, c.Param("id"))
	if err != nil {
		fail(c, "delete task", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, boardID, "task deleted")
	c.Status(http.StatusNoContent)
}

func (a *api) moveTask(c *gin.Context) {
	var req moveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ColumnID == "" || req.Position == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "column_id and position are required"})
		return
	}
	ctx := c.Request.Context()
	res, err := task.Move(ctx, a.db, c.Param("id"), req.ColumnID, *req.Position, actor(c))
	if err != nil {
		fail(c, "move task", err)
		return
	}
	if res.Moved {
		a.stale(ctx, notify.ScopeBoard, res.BoardID, "task moved")
	}
	c.JSON(http.StatusOK, res)
}

func (a *api) setTaskSprint(c *gin.Context) {
	var req setSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	before, err := task.Get(ctx, a.db, c.Param("id"))
	if err != nil {
		fail(c, "update task sprint", err)
		return
	}
	t, err := task.SetSprint(ctx, a.db, c.Param("id"), req.SprintID)
	if err != nil {
		fail(c, "update task sprint", err)
		return
	}
	if before.SprintID != nil {
		a.stale(ctx, notify.ScopeSprint, *before.SprintID, "task left sprint")
	}
	if t.SprintID != nil {
		a.stale(ctx, notify.ScopeSprint, *t.SprintID, "task joined sprint")
	}
	if t.Column != nil {
		a.stale(ctx, notify.ScopeBoard, t.Column.BoardID, "task sprint changed")
	}
	c.JSON(http.StatusOK, t)
}

func (a *api) setTaskTags(c *gin.Context) {
	var req setTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	t, err := task.SetTags(ctx, a.db, c.Param("id"), req.Tags)
	if err != nil {
		fail(c, "update tags", err)
		return
	}
	if t.Column != nil {
		a.stale(ctx, notify.ScopeBoard, t.Column.BoardID, "tags changed")
	}
	c.JSON(http.StatusOK, t)
}

func (a *api) createSubtask(c *gin.Context) {
	var req subtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	st, err := task.CreateSubtask(ctx, a.db, c.Param("id"), req.Title)
	if err != nil {
		fail(c, "create subtask", err)
		return
	}
	a.staleTaskBoard(ctx, st.TaskID, "subtask created")
	c.JSON(http.StatusCreated, st)
}

func (a *api) toggleSubtask(c *gin.Context) {
	var req toggleSubtaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	st, err := task.ToggleSubtask(ctx, a.db, c.Param("id"), req.Completed)
	if err != nil {
		fail(c, "update subtask", err)
		return
	}
	a.staleTaskBoard(ctx, st.TaskID, "subtask toggled")
	c.JSON(http.StatusOK, st)
}

func (a *api) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	cm, err := task.AddComment(ctx, a.db, c.Param("id"), actor(c), req.Content)
	if err != nil {
		fail(c, "add comment", err)
		return
	}
	a.staleTaskBoard(ctx, cm.TaskID, "comment added")
	c.JSON(http.StatusCreated, cm)
}
