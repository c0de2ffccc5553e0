package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrumban/internal/notify"
	"github.com/zulandar/scrumban/internal/team"
	"github.com/zulandar/scrumban/internal/user"
)

type createTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type memberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

func (a *api) listTeams(c *gin.Context) {
	list, err := team.List(c.Request.Context(), a.db)
	if err != nil {
		fail(c, "list teams", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *api) createTeam(c *gin.Context) {
	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	t, err := team.Create(ctx, a.db, team.CreateOpts{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     actor(c),
	})
	if err != nil {
		fail(c, "create team", err)
		return
	}
	a.stale(ctx, notify.ScopeTeam, t.ID, "team created")
	c.JSON(http.StatusCreated, t)
}

func (a *api) getTeam(c *gin.Context) {
	t, err := team.Get(c.Request.Context(), a.db, c.Param("id"))
	if err != nil {
		fail(c, "load team", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (a *api) deleteTeam(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := team.Delete(ctx, a.db, id); err != nil {
		fail(c, "delete team", err)
		return
	}
	a.stale(ctx, notify.ScopeTeam, id, "team deleted")
	c.Status(http.StatusNoContent)
}

func (a *api) addMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	m, err := team.AddMember(ctx, a.db, c.Param("id"), req.UserID, req.Role)
	if err != nil {
		fail(c, "add member", err)
		return
	}
	a.stale(ctx, notify.ScopeTeam, m.TeamID, "member added")
	a.stale(ctx, notify.ScopeUser, m.UserID, "joined team")
	c.JSON(http.StatusCreated, m)
}

func (a *api) updateMemberRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	m, err := team.UpdateMemberRole(ctx, a.db, c.Param("id"), c.Param("userId"), req.Role)
	if err != nil {
		fail(c, "update member role", err)
		return
	}
	a.stale(ctx, notify.ScopeTeam, m.TeamID, "member role changed")
	c.JSON(http.StatusOK, m)
}

func (a *api) removeMember(c *gin.Context) {
	ctx := c.Request.Context()
	teamID, userID := c.Param("id"), c.Param("userId")
	if err := team.RemoveMember(ctx, a.db, teamID, userID); err != nil {
		fail(c, "remove member", err)
		return
	}
	a.stale(ctx, notify.ScopeTeam, teamID, "member removed")
	a.stale(ctx, notify.ScopeUser, userID, "left team")
	c.Status(http.StatusNoContent)
}

func (a *api) listUsers(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		out interface{}
		err error
	)
	if q := c.Query("q"); q != "" {
		out, err = user.Search(ctx, a.db, q)
	} else {
		out, err = user.List(ctx, a.db)
	}
	if err != nil {
		fail(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	u, err := user.Create(ctx, a.db, user.CreateOpts{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Image:    req.Image,
	})
	if err != nil {
		fail(c, "create user", err)
		return
	}
	a.stale(ctx, notify.ScopeUser, u.ID, "user created")
	c.JSON(http.StatusCreated, u)
}

func (a *api) deleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := user.Delete(ctx, a.db, id); err != nil {
		fail(c, "delete user", err)
		return
	}
	a.stale(ctx, notify.ScopeUser, id, "user deleted")
	c.Status(http.StatusNoContent)
}
