package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/notify"
	"gorm.io/gorm"
)

type testAPI struct {
	t      *testing.T
	db     *gorm.DB
	hub    *notify.Hub
	router http.Handler
	user   models.User
	team   models.Team
}

type boardBody struct {
	ID      string `json:"id"`
	Columns []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Tasks []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Order int    `json:"order"`
		} `json:"tasks"`
	} `json:"columns"`
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gdb, err := db.OpenMemory()
	require.NoError(t, err)

	hub := notify.NewHub(16)
	router, err := NewRouter(StartOpts{DB: gdb, Hub: hub, Heartbeat: 50 * time.Millisecond})
	require.NoError(t, err)

	ta := &testAPI{t: t, db: gdb, hub: hub, router: router}
	ta.user = models.User{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, gdb.Create(&ta.user).Error)
	ta.team = models.Team{Name: "Core"}
	require.NoError(t, gdb.Create(&ta.team).Error)
	return ta
}

func (ta *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	ta.t.Helper()
	return ta.doAs(ta.user.ID, method, path, body)
}

// doAs sends a request on behalf of actorID.
func (ta *testAPI) doAs(actorID, method, path string, body any) *httptest.ResponseRecorder {
	ta.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ta.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(actorHeader, actorID)
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)
	return w
}

func (ta *testAPI) decode(w *httptest.ResponseRecorder, v any) {
	ta.t.Helper()
	require.NoError(ta.t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (ta *testAPI) createBoard(name string) boardBody {
	ta.t.Helper()
	w := ta.do(http.MethodPost, "/api/boards", map[string]string{"team_id": ta.team.ID, "name": name})
	require.Equal(ta.t, http.StatusCreated, w.Code, w.Body.String())
	var b boardBody
	ta.decode(w, &b)
	return ta.getBoard(b.ID)
}

func (ta *testAPI) getBoard(id string) boardBody {
	ta.t.Helper()
	w := ta.do(http.MethodGet, "/api/boards/"+id, nil)
	require.Equal(ta.t, http.StatusOK, w.Code, w.Body.String())
	var b boardBody
	ta.decode(w, &b)
	return b
}

func (ta *testAPI) createTask(columnID, title string) string {
	ta.t.Helper()
	w := ta.do(http.MethodPost, "/api/columns/"+columnID+"/tasks", map[string]any{"title": title})
	require.Equal(ta.t, http.StatusCreated, w.Code, w.Body.String())
	var task models.Task
	ta.decode(w, &task)
	return task.ID
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestNewRouter_NilDB(t *testing.T) {
	_, err := NewRouter(StartOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is required")
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is required")
}

func TestCreateBoard_SeedsDefaultColumns(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")

	var names []string
	for _, c := range b.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Backlog", "In Progress", "In Review", "Done"}, names)
}

func TestCreateBoard_UnknownTeam(t *testing.T) {
	ta := newTestAPI(t)
	w := ta.do(http.MethodPost, "/api/boards", map[string]string{"team_id": "nope", "name": "X"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "failed to create board: not found", errorOf(t, w))
}

func TestMalformedBody(t *testing.T) {
	ta := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/boards", strings.NewReader("{"))
	w := httptest.NewRecorder()
	ta.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", errorOf(t, w))
}

func TestMoveTask(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")
	backlog, done := b.Columns[0].ID, b.Columns[3].ID
	a := ta.createTask(backlog, "A")
	ta.createTask(backlog, "B")
	c := ta.createTask(backlog, "C")

	w := ta.do(http.MethodPost, "/api/tasks/"+c+"/move", map[string]any{"column_id": backlog, "position": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ta.do(http.MethodPost, "/api/tasks/"+a+"/move", map[string]any{"column_id": done, "position": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := ta.getBoard(b.ID)
	var backlogTitles []string
	for i, task := range got.Columns[0].Tasks {
		assert.Equal(t, i, task.Order)
		backlogTitles = append(backlogTitles, task.Title)
	}
	assert.Equal(t, []string{"C", "B"}, backlogTitles)
	require.Len(t, got.Columns[3].Tasks, 1)
	assert.Equal(t, "A", got.Columns[3].Tasks[0].Title)
}

func TestMoveTask_ErrorMapping(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")
	backlog := b.Columns[0].ID
	task := ta.createTask(backlog, "A")

	tests := []struct {
		name   string
		taskID string
		body   map[string]any
		status int
	}{
		{"missing position", task, map[string]any{"column_id": backlog}, http.StatusBadRequest},
		{"negative position", task, map[string]any{"column_id": backlog, "position": -1}, http.StatusBadRequest},
		{"past the end", task, map[string]any{"column_id": backlog, "position": 5}, http.StatusBadRequest},
		{"unknown task", "nope", map[string]any{"column_id": backlog, "position": 0}, http.StatusNotFound},
		{"unknown column", task, map[string]any{"column_id": "nope", "position": 0}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ta.do(http.MethodPost, "/api/tasks/"+tt.taskID+"/move", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, errorOf(t, w))
		})
	}
}

func TestUnknownActor_NotFound(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")
	backlog, doing := b.Columns[0].ID, b.Columns[1].ID
	id := ta.createTask(backlog, "A")

	w := ta.doAs("ghost", http.MethodPost, "/api/tasks/"+id+"/move", map[string]any{"column_id": doing, "position": 0})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = ta.doAs("ghost", http.MethodPost, "/api/columns/"+backlog+"/tasks", map[string]string{"title": "B"})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	cols := ta.getBoard(b.ID).Columns
	assert.Len(t, cols[0].Tasks, 1)
	assert.Empty(t, cols[1].Tasks)
}

func TestDeleteColumn_WithTasksIsConstraint(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")
	ta.createTask(b.Columns[0].ID, "A")

	w := ta.do(http.MethodDelete, "/api/columns/"+b.Columns[0].ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ta.do(http.MethodDelete, "/api/columns/"+b.Columns[2].ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Len(t, ta.getBoard(b.ID).Columns, 3)
}

func TestTaskDetailRoutes(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")
	id := ta.createTask(b.Columns[0].ID, "A")

	w := ta.do(http.MethodPost, "/api/tasks/"+id+"/subtasks", map[string]string{"title": "step"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var st models.Subtask
	ta.decode(w, &st)

	w = ta.do(http.MethodPatch, "/api/subtasks/"+st.ID, map[string]bool{"completed": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ta.do(http.MethodPost, "/api/tasks/"+id+"/comments", map[string]string{"content": "looks good"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ta.do(http.MethodPut, "/api/tasks/"+id+"/tags", map[string][]string{"tags": {"API", "api", "ui"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ta.do(http.MethodGet, "/api/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var task models.Task
	ta.decode(w, &task)
	require.Len(t, task.Subtasks, 1)
	assert.True(t, task.Subtasks[0].Completed)
	require.Len(t, task.Comments, 1)
	assert.Equal(t, "looks good", task.Comments[0].Content)
	assert.Len(t, task.Tags, 2)
}

func TestUpdateTask_InvalidPriority(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")
	id := ta.createTask(b.Columns[0].ID, "A")

	w := ta.do(http.MethodPatch, "/api/tasks/"+id, map[string]string{"priority": "critical"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "priority")
}

func TestSprintLifecycle(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")
	id := ta.createTask(b.Columns[0].ID, "A")

	start := time.Now().UTC().Truncate(24 * time.Hour)
	w := ta.do(http.MethodPost, "/api/sprints", map[string]any{
		"board_id":   b.ID,
		"name":       "Sprint 1",
		"start_date": start,
		"end_date":   start.Add(14 * 24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s models.Sprint
	ta.decode(w, &s)
	assert.Equal(t, models.SprintPlanning, s.Status)

	w = ta.do(http.MethodGet, "/api/sprints/"+s.ID+"/available-tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail []models.Task
	ta.decode(w, &avail)
	assert.Len(t, avail, 1)

	w = ta.do(http.MethodPut, "/api/tasks/"+id+"/sprint", map[string]string{"sprint_id": s.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ta.do(http.MethodPut, "/api/sprints/"+s.ID+"/status", map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ta.do(http.MethodGet, "/api/sprints/"+s.ID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report struct {
		Total     int    `json:"total"`
		Completed int    `json:"completed"`
		Pace      string `json:"pace"`
	}
	ta.decode(w, &report)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 0, report.Completed)

	w = ta.do(http.MethodPut, "/api/sprints/"+s.ID+"/status", map[string]string{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ta.do(http.MethodDelete, "/api/sprints/"+s.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTeamMembers(t *testing.T) {
	ta := newTestAPI(t)
	w := ta.do(http.MethodPost, "/api/teams", map[string]string{"name": "Platform"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var team models.Team
	ta.decode(w, &team)

	other := models.User{Name: "Grace", Email: "grace@example.com"}
	require.NoError(t, ta.db.Create(&other).Error)

	w = ta.do(http.MethodPost, "/api/teams/"+team.ID+"/members", map[string]string{"user_id": other.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ta.do(http.MethodPost, "/api/teams/"+team.ID+"/members", map[string]string{"user_id": other.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ta.do(http.MethodDelete, "/api/teams/"+team.ID+"/members/"+ta.user.ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "owner cannot be removed")

	w = ta.do(http.MethodDelete, "/api/teams/"+team.ID+"/members/"+other.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUsers_Search(t *testing.T) {
	ta := newTestAPI(t)
	w := ta.do(http.MethodGet, "/api/users?q=ADA", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.User
	ta.decode(w, &users)
	require.Len(t, users, 1)
	assert.Equal(t, ta.user.ID, users[0].ID)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestDashboard(t *testing.T) {
	ta := newTestAPI(t)
	b := ta.createBoard("Roadmap")
	a := ta.createTask(b.Columns[0].ID, "Write docs")
	ta.createTask(b.Columns[0].ID, "Ship")

	w := ta.do(http.MethodPost, "/api/tasks/"+a+"/move", map[string]any{"column_id": b.Columns[3].ID, "position": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ta.do(http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var s Stats
	ta.decode(w, &s)
	assert.EqualValues(t, 1, s.Boards)
	assert.EqualValues(t, 1, s.OpenTasks)
	assert.EqualValues(t, 0, s.ActiveSprints)
	require.Len(t, s.RecentBoards, 1)
	assert.Equal(t, "Roadmap", s.RecentBoards[0].Name)
	require.NotEmpty(t, s.RecentActivities)

	var messages []string
	for _, act := range s.RecentActivities {
		messages = append(messages, act.Message)
	}
	assert.Contains(t, messages, `Ada completed "Write docs"`)
}

func TestDescribeActivity(t *testing.T) {
	task := &models.Task{Title: "Fix login"}
	tests := []struct {
		act  models.Activity
		want string
	}{
		{models.Activity{Action: models.ActionCreated, User: &models.User{Name: "Ada"}, Task: task}, `Ada created "Fix login"`},
		{models.Activity{Action: models.ActionCommented, Task: task}, `Someone commented on "Fix login"`},
		{models.Activity{Action: models.ActionMoved}, "Someone moved a task"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeActivity(&tt.act))
	}
}

func TestMutationPublishesStale(t *testing.T) {
	ta := newTestAPI(t)
	ch, cancel := ta.hub.Subscribe()
	defer cancel()

	b := ta.createBoard("Roadmap")
	drain(ch)

	ta.createTask(b.Columns[0].ID, "A")
	var scopes []notify.Scope
	for _, ev := range drain(ch) {
		scopes = append(scopes, ev.Scope)
		if ev.Scope == notify.ScopeBoard {
			assert.Equal(t, b.ID, ev.ID)
		}
	}
	assert.Contains(t, scopes, notify.ScopeBoard)
	assert.Contains(t, scopes, notify.ScopeDashboard)
}

func TestFailedMutationPublishesNothing(t *testing.T) {
	ta := newTestAPI(t)
	ch, cancel := ta.hub.Subscribe()
	defer cancel()

	w := ta.do(http.MethodPost, "/api/tasks/nope/move", map[string]any{"column_id": "x", "position": 0})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, drain(ch))
}

func drain(ch <-chan notify.Event) []notify.Event {
	var out []notify.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEvents_Stream(t *testing.T) {
	ta := newTestAPI(t)
	srv := httptest.NewServer(ta.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()

	next := func() string {
		t.Helper()
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed")
			return ev
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	require.Equal(t, "connected", next())

	ta.hub.Stale(ctx, notify.ScopeBoard, "b1", "task moved")
	seen := map[string]bool{}
	for !seen["stale"] || !seen["heartbeat"] {
		seen[next()] = true
	}
}
