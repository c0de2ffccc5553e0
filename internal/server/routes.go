package server

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrumban/internal/notify"
	"github.com/zulandar/scrumban/internal/task"
)

// actorHeader carries the id of the user performing a request.
const actorHeader = "X-User-ID"

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, a *api) {
	r := router.Group("/api")

	r.GET("/boards", a.listBoards)
	r.POST("/boards", a.createBoard)
	r.GET("/boards/:id", a.getBoard)
	r.PATCH("/boards/:id", a.updateBoard)
	r.DELETE("/boards/:id", a.deleteBoard)
	r.POST("/boards/:id/columns", a.createColumn)

	r.PATCH("/columns/:id", a.updateColumn)
	r.POST("/columns/:id/move", a.moveColumn)
	r.DELETE("/columns/:id", a.deleteColumn)
	r.GET("/columns/:id/wip", a.columnWIP)
	r.POST("/columns/:id/tasks", a.createTask)

	r.GET("/tasks/:id", a.getTask)
	r.PATCH("/tasks/:id", a.updateTask)
	r.DELETE("/tasks/:id", a.deleteTask)
	r.POST("/tasks/:id/move", a.moveTask)
	r.PUT("/tasks/:id/sprint", a.setTaskSprint)
	r.PUT("/tasks/:id/tags", a.setTaskTags)
	r.POST("/tasks/:id/subtasks", a.createSubtask)
	r.POST("/tasks/:id/comments", a.addComment)
	r.PATCH("/subtasks/:id", a.toggleSubtask)

	r.GET("/sprints", a.listSprints)
	r.POST("/sprints", a.createSprint)
	r.GET("/sprints/:id", a.getSprint)
	r.PATCH("/sprints/:id", a.updateSprint)
	r.PUT("/sprints/:id/status", a.updateSprintStatus)
	r.DELETE("/sprints/:id", a.deleteSprint)
	r.GET("/sprints/:id/report", a.sprintReport)
	r.GET("/sprints/:id/available-tasks", a.availableTasks)

	r.GET("/teams", a.listTeams)
	r.POST("/teams", a.createTeam)
	r.GET("/teams/:id", a.getTeam)
	r.DELETE("/teams/:id", a.deleteTeam)
	r.POST("/teams/:id/members", a.addMember)
	r.PATCH("/teams/:id/members/:userId", a.updateMemberRole)
	r.DELETE("/teams/:id/members/:userId", a.removeMember)

	r.GET("/users", a.listUsers)
	r.POST("/users", a.createUser)
	r.DELETE("/users/:id", a.deleteUser)

	r.GET("/dashboard", a.dashboard)
	r.GET("/events", a.events)
}

func actor(c *gin.Context) string {
	return c.GetHeader(actorHeader)
}

// stale signals that a view must be re-fetched. It is called only after the
// mutation has committed.
func (a *api) stale(ctx context.Context, scope notify.Scope, id, reason string) {
	a.hub.Stale(ctx, scope, id, reason)
	if scope != notify.ScopeDashboard {
		a.hub.Stale(ctx, notify.ScopeDashboard, "", reason)
	}
}

// staleTaskBoard signals the board holding taskID.
func (a *api) staleTaskBoard(ctx context.Context, taskID, reason string) {
	boardID, err := task.BoardOf(ctx, a.db, taskID)
	if err != nil {
		slog.WarnContext(ctx, "resolve board for notification", "task", taskID, "err", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, boardID, reason)
}
