package task

import (
	"context"
	"testing"

	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
)

// testDB creates an in-memory SQLite database with all tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return gdb
}

// fixture is a team with one board whose columns are named by the caller.
type fixture struct {
	db    *gorm.DB
	board models.Board
	cols  []models.Column
	user  models.User
}

func newFixture(t *testing.T, columns ...string) *fixture {
	t.Helper()
	return newFixtureOn(t, testDB(t), columns...)
}

func newFixtureOn(t *testing.T, gdb *gorm.DB, columns ...string) *fixture {
	t.Helper()
	f := &fixture{db: gdb}

	f.user = models.User{Name: "Ana", Email: "ana@example.com"}
	team := models.Team{Name: "Core"}
	if err := gdb.Create(&f.user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := gdb.Create(&team).Error; err != nil {
		t.Fatalf("create team: %v", err)
	}
	f.board = models.Board{TeamID: team.ID, Name: "Roadmap"}
	if err := gdb.Create(&f.board).Error; err != nil {
		t.Fatalf("create board: %v", err)
	}
	for i, name := range columns {
		col := models.Column{BoardID: f.board.ID, Name: name, Order: i, Done: name == "Done"}
		if err := gdb.Create(&col).Error; err != nil {
			t.Fatalf("create column %s: %v", name, err)
		}
		f.cols = append(f.cols, col)
	}
	return f
}

// addTasks creates tasks with the given titles at the end of column idx and
// returns their ids keyed by title.
func (f *fixture) addTasks(t *testing.T, idx int, titles ...string) map[string]string {
	t.Helper()
	ids := make(map[string]string, len(titles))
	for _, title := range titles {
		tk, err := Create(context.Background(), f.db, CreateOpts{ColumnID: f.cols[idx].ID, Title: title})
		if err != nil {
			t.Fatalf("Create(%s): %v", title, err)
		}
		ids[title] = tk.ID
	}
	return ids
}

// titles returns the task titles of a column in position order and fails
// the test if the positions are not exactly 0..n-1.
func titles(t *testing.T, gdb *gorm.DB, columnID string) []string {
	t.Helper()
	var tasks []models.Task
	if err := gdb.Where("column_id = ?", columnID).Order("position ASC").Find(&tasks).Error; err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	out := make([]string, len(tasks))
	for i, tk := range tasks {
		if tk.Order != i {
			t.Fatalf("column %s: task %q at position %d, want %d (orders not contiguous)", columnID, tk.Title, tk.Order, i)
		}
		out[i] = tk.Title
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func assertColumn(t *testing.T, gdb *gorm.DB, col models.Column, want ...string) {
	t.Helper()
	got := titles(t, gdb, col.ID)
	if want == nil {
		want = []string{}
	}
	if !equal(got, want) {
		t.Errorf("column %s = %v, want %v", col.Name, got, want)
	}
}

func activities(t *testing.T, gdb *gorm.DB, taskID string) []models.Activity {
	t.Helper()
	var acts []models.Activity
	if err := gdb.Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&acts).Error; err != nil {
		t.Fatalf("list activities: %v", err)
	}
	return acts
}

func hasAction(acts []models.Activity, action models.ActivityAction) bool {
	for _, a := range acts {
		if a.Action == action {
			return true
		}
	}
	return false
}

// recordSpans installs a tracer provider that records finished spans for
// the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func spanNames(rec *tracetest.SpanRecorder) map[string]bool {
	out := map[string]bool{}
	for _, s := range rec.Ended() {
		out[s.Name()] = true
	}
	return out
}
