package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/scrumban/internal/board"
	"github.com/zulandar/scrumban/internal/column"
	"github.com/zulandar/scrumban/internal/notify"
)

type createBoardRequest struct {
	TeamID      string `json:"team_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateBoardRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type createColumnRequest struct {
	Name     string `json:"name"`
	WIPLimit *int   `json:"wip_limit"`
	Done     bool   `json:"done"`
}

type updateColumnRequest struct {
	Name          *string `json:"name"`
	WIPLimit      *int    `json:"wip_limit"`
	ClearWIPLimit bool    `json:"clear_wip_limit"`
	Done          *bool   `json:"done"`
}

type positionRequest struct {
	Position *int `json:"position"`
}

func (a *api) listBoards(c *gin.Context) {
	list, err := board.List(c.Request.Context(), a.db, c.Query("team_id"))
	if err != nil {
		fail(c, "list boards", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *api) createBoard(c *gin.Context) {
	var req createBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	b, err := board.Create(ctx, a.db, board.CreateOpts{
		TeamID:      req.TeamID,
		Name:        req.Name,
		Description: req.Description,
		Columns:     a.columns,
	})
	if err != nil {
		fail(c, "create board", err)
		return
	}
	a.stale(ctx, notify.ScopeTeam, b.TeamID, "board created")
	c.JSON(http.StatusCreated, b)
}

func (a *api) getBoard(c *gin.Context) {
	d, err := board.Get(c.Request.Context(), a.db, c.Param("id"))
	if err != nil {
		fail(c, "load board", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (a *api) updateBoard(c *gin.Context) {
	var req updateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	b, err := board.Update(ctx, a.db, c.Param("id"), board.UpdateOpts{Name: req.Name, Description: req.Description})
	if err != nil {
		fail(c, "update board", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, b.ID, "board updated")
	c.JSON(http.StatusOK, b)
}

func (a *api) deleteBoard(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := board.Delete(ctx, a.db, id); err != nil {
		fail(c, "delete board", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, id, "board deleted")
	c.Status(http.StatusNoContent)
}

func (a *api) createColumn(c *gin.Context) {
	var req createColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	col, err := column.Create(ctx, a.db, column.CreateOpts{
		BoardID:  c.Param("id"),
		Name:     req.Name,
		WIPLimit: req.WIPLimit,
		Done:     req.Done,
	})
	if err != nil {
		fail(c, "create column", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, col.BoardID, "column created")
	c.JSON(http.StatusCreated, col)
}

func (a *api) updateColumn(c *gin.Context) {
	var req updateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	col, err := column.Update(ctx, a.db, c.Param("id"), column.UpdateOpts{
		Name:          req.Name,
		WIPLimit:      req.WIPLimit,
		ClearWIPLimit: req.ClearWIPLimit,
		Done:          req.Done,
	})
	if err != nil {
		fail(c, "update column", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, col.BoardID, "column updated")
	c.JSON(http.StatusOK, col)
}

func (a *api) moveColumn(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Position == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "position is required"})
		return
	}
	ctx := c.Request.Context()
	col, err := column.Move(ctx, a.db, c.Param("id"), *req.Position)
	if err != nil {
		fail(c, "move column", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, col.BoardID, "column moved")
	c.JSON(http.StatusOK, col)
}

func (a *api) deleteColumn(c *gin.Context) {
	ctx := c.Request.Context()
	boardID, err := column.Delete(ctx, a.db, c.Param("id"))
	if err != nil {
		fail(c, "delete column", err)
		return
	}
	a.stale(ctx, notify.ScopeBoard, boardID, "column deleted")
	c.Status(http.StatusNoContent)
}

func (a *api) columnWIP(c *gin.Context) {
	w, err := column.WIPStatus(c.Request.Context(), a.db, c.Param("id"))
	if err != nil {
		fail(c, "load column", err)
		return
	}
	c.JSON(http.StatusOK, w)
}
