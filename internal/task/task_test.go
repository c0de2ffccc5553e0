package task

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/models"
)

func TestCreate_AppendsToColumn(t *testing.T) {
	f := newFixture(t, "Todo")
	ctx := context.Background()

	first, err := Create(ctx, f.db, CreateOpts{ColumnID: f.cols[0].ID, Title: "First"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Order != 0 {
		t.Errorf("first Order = %d, want 0", first.Order)
	}
	if first.Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want %q", first.Priority, models.PriorityMedium)
	}
	if first.Status != models.TaskStatusTodo {
		t.Errorf("Status = %q, want %q", first.Status, models.TaskStatusTodo)
	}

	second, err := Create(ctx, f.db, CreateOpts{ColumnID: f.cols[0].ID, Title: "Second", Priority: models.PriorityUrgent})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.Order != 1 {
		t.Errorf("second Order = %d, want 1", second.Order)
	}
	assertColumn(t, f.db, f.cols[0], "First", "Second")
}

func TestCreate_AfterMoveUsesMaxPlusOne(t *testing.T) {
	f := newFixture(t, "X", "Y")
	ids := f.addTasks(t, 0, "A", "B", "C")
	if _, err := Move(context.Background(), f.db, ids["A"], f.cols[1].ID, 0, ""); err != nil {
		t.Fatalf("Move: %v", err)
	}
	f.addTasks(t, 0, "D")
	assertColumn(t, f.db, f.cols[0], "B", "C", "D")
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, "Todo")
	ctx := context.Background()

	tests := []struct {
		name string
		opts CreateOpts
		kind error
	}{
		{"blank title", CreateOpts{ColumnID: f.cols[0].ID, Title: "   "}, apperr.ErrInvalidArgument},
		{"bad priority", CreateOpts{ColumnID: f.cols[0].ID, Title: "x", Priority: "critical"}, apperr.ErrInvalidArgument},
		{"missing column", CreateOpts{ColumnID: "nope", Title: "x"}, apperr.ErrNotFound},
		{"missing sprint", CreateOpts{ColumnID: f.cols[0].ID, Title: "x", SprintID: "nope"}, apperr.ErrNotFound},
		{"missing assignee", CreateOpts{ColumnID: f.cols[0].ID, Title: "x", AssigneeID: "nope"}, apperr.ErrNotFound},
		{"missing actor", CreateOpts{ColumnID: f.cols[0].ID, Title: "x", ActorID: "ghost"}, apperr.ErrNotFound},
		{"long tag", CreateOpts{ColumnID: f.cols[0].ID, Title: "x", Tags: []string{strings.Repeat("t", 65)}}, apperr.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(ctx, f.db, tt.opts)
			if !errors.Is(err, tt.kind) {
				t.Errorf("Create error = %v, want %v", err, tt.kind)
			}
		})
	}
	assertColumn(t, f.db, f.cols[0])
}

func TestCreate_SprintFromOtherBoard(t *testing.T) {
	f := newFixture(t, "Todo")
	other := models.Board{TeamID: f.board.TeamID, Name: "Other"}
	f.db.Create(&other)
	sp := models.Sprint{BoardID: other.ID, Name: "S1"}
	f.db.Create(&sp)

	_, err := Create(context.Background(), f.db, CreateOpts{ColumnID: f.cols[0].ID, Title: "x", SprintID: sp.ID})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("Create error = %v, want ErrInvalidArgument", err)
	}
}

func TestCreate_WithTagsAndActivity(t *testing.T) {
	f := newFixture(t, "Todo")
	tk, err := Create(context.Background(), f.db, CreateOpts{
		ColumnID:   f.cols[0].ID,
		Title:      "Tagged",
		AssigneeID: f.user.ID,
		Tags:       []string{"Bug", " ui ", "bug"},
		ActorID:    f.user.ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(tk.Tags) != 2 || tk.Tags[0].Name != "bug" || tk.Tags[1].Name != "ui" {
		t.Errorf("Tags = %+v, want [bug ui]", tk.Tags)
	}
	if tk.Assignee == nil || tk.Assignee.ID != f.user.ID {
		t.Errorf("Assignee = %+v, want %s", tk.Assignee, f.user.ID)
	}
	if len(tk.Activities) != 1 || tk.Activities[0].Action != models.ActionCreated {
		t.Errorf("Activities = %+v, want one created entry", tk.Activities)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, "Todo")
	_, err := Get(context.Background(), f.db, "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestUpdate_Fields(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A")

	title := "  Renamed "
	prio := models.PriorityHigh
	est := 5
	tk, err := Update(context.Background(), f.db, ids["A"], UpdateOpts{
		Title:      &title,
		Priority:   &prio,
		Estimate:   &est,
		AssigneeID: &f.user.ID,
	}, f.user.ID)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if tk.Title != "Renamed" {
		t.Errorf("Title = %q, want %q", tk.Title, "Renamed")
	}
	if tk.Priority != models.PriorityHigh {
		t.Errorf("Priority = %q, want high", tk.Priority)
	}
	if tk.Estimate == nil || *tk.Estimate != 5 {
		t.Errorf("Estimate = %v, want 5", tk.Estimate)
	}
	if tk.AssigneeID == nil || *tk.AssigneeID != f.user.ID {
		t.Errorf("AssigneeID = %v, want %s", tk.AssigneeID, f.user.ID)
	}

	var updated *models.Activity
	for i := range tk.Activities {
		if tk.Activities[i].Action == models.ActionUpdated {
			updated = &tk.Activities[i]
		}
	}
	if updated == nil {
		t.Fatal("missing updated activity")
	}
	if updated.Details != "title, priority, assignee, estimate" {
		t.Errorf("updated details = %q", updated.Details)
	}

	none := ""
	tk, err = Update(context.Background(), f.db, ids["A"], UpdateOpts{AssigneeID: &none}, "")
	if err != nil {
		t.Fatalf("Update clear assignee: %v", err)
	}
	if tk.AssigneeID != nil {
		t.Errorf("AssigneeID = %v, want nil", *tk.AssigneeID)
	}
}

func TestUpdate_ColumnChangeAppends(t *testing.T) {
	f := newFixture(t, "X", "Y")
	ids := f.addTasks(t, 0, "A", "B", "C")
	f.addTasks(t, 1, "D")

	col := f.cols[1].ID
	tk, err := Update(context.Background(), f.db, ids["A"], UpdateOpts{ColumnID: &col}, "")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if tk.ColumnID != col || tk.Order != 1 {
		t.Errorf("task at %s/%d, want %s/1", tk.ColumnID, tk.Order, col)
	}
	assertColumn(t, f.db, f.cols[0], "B", "C")
	assertColumn(t, f.db, f.cols[1], "D", "A")
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A")

	blank := " "
	bad := models.Priority("whenever")
	neg := -1
	missing := "nope"
	tests := []struct {
		name string
		id   string
		opts UpdateOpts
		kind error
	}{
		{"blank title", ids["A"], UpdateOpts{Title: &blank}, apperr.ErrInvalidArgument},
		{"bad priority", ids["A"], UpdateOpts{Priority: &bad}, apperr.ErrInvalidArgument},
		{"negative estimate", ids["A"], UpdateOpts{Estimate: &neg}, apperr.ErrInvalidArgument},
		{"missing assignee", ids["A"], UpdateOpts{AssigneeID: &missing}, apperr.ErrNotFound},
		{"missing column", ids["A"], UpdateOpts{ColumnID: &missing}, apperr.ErrNotFound},
		{"missing task", "nope", UpdateOpts{}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Update(context.Background(), f.db, tt.id, tt.opts, "")
			if !errors.Is(err, tt.kind) {
				t.Errorf("Update error = %v, want %v", err, tt.kind)
			}
		})
	}
	renamed := "B"
	if _, err := Update(context.Background(), f.db, ids["A"], UpdateOpts{Title: &renamed}, "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Update with unknown actor error = %v, want ErrNotFound", err)
	}
	assertColumn(t, f.db, f.cols[0], "A")
}

func TestDelete_ClosesGap(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A", "B", "C")
	if _, err := CreateSubtask(context.Background(), f.db, ids["B"], "sub"); err != nil {
		t.Fatalf("CreateSubtask: %v", err)
	}
	if _, err := SetTags(context.Background(), f.db, ids["B"], []string{"x"}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}

	boardID, err := Delete(context.Background(), f.db, ids["B"])
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if boardID != f.board.ID {
		t.Errorf("boardID = %q, want %q", boardID, f.board.ID)
	}
	assertColumn(t, f.db, f.cols[0], "A", "C")

	for _, m := range []interface{}{&models.Subtask{}, &models.Activity{}} {
		var n int64
		f.db.Model(m).Where("task_id = ?", ids["B"]).Count(&n)
		if n != 0 {
			t.Errorf("%T rows left for deleted task: %d", m, n)
		}
	}
	var links int64
	f.db.Table("task_tags").Where("task_id = ?", ids["B"]).Count(&links)
	if links != 0 {
		t.Errorf("task_tags rows left: %d", links)
	}

	if _, err := Delete(context.Background(), f.db, ids["B"]); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestSetSprint(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A")
	sp := models.Sprint{BoardID: f.board.ID, Name: "S1"}
	f.db.Create(&sp)

	tk, err := SetSprint(context.Background(), f.db, ids["A"], sp.ID)
	if err != nil {
		t.Fatalf("SetSprint: %v", err)
	}
	if tk.SprintID == nil || *tk.SprintID != sp.ID {
		t.Errorf("SprintID = %v, want %s", tk.SprintID, sp.ID)
	}

	tk, err = SetSprint(context.Background(), f.db, ids["A"], "")
	if err != nil {
		t.Fatalf("SetSprint detach: %v", err)
	}
	if tk.SprintID != nil {
		t.Errorf("SprintID = %v, want nil", *tk.SprintID)
	}

	if _, err := SetSprint(context.Background(), f.db, ids["A"], "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SetSprint missing sprint error = %v, want ErrNotFound", err)
	}
}

func TestBoardOf(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A")
	got, err := BoardOf(context.Background(), f.db, ids["A"])
	if err != nil {
		t.Fatalf("BoardOf: %v", err)
	}
	if got != f.board.ID {
		t.Errorf("BoardOf = %q, want %q", got, f.board.ID)
	}
}

func TestSubtasks(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A")
	ctx := context.Background()

	st, err := CreateSubtask(ctx, f.db, ids["A"], "write tests")
	if err != nil {
		t.Fatalf("CreateSubtask: %v", err)
	}
	if st.Completed {
		t.Error("new subtask should not be completed")
	}

	st, err = ToggleSubtask(ctx, f.db, st.ID, true)
	if err != nil {
		t.Fatalf("ToggleSubtask: %v", err)
	}
	if !st.Completed {
		t.Error("Completed = false after toggle")
	}

	tk, _ := Get(ctx, f.db, ids["A"])
	if len(tk.Subtasks) != 1 || !tk.Subtasks[0].Completed {
		t.Errorf("Subtasks = %+v", tk.Subtasks)
	}

	if _, err := CreateSubtask(ctx, f.db, ids["A"], ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("blank subtask error = %v, want ErrInvalidArgument", err)
	}
	if _, err := CreateSubtask(ctx, f.db, "nope", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("subtask on missing task error = %v, want ErrNotFound", err)
	}
	if _, err := ToggleSubtask(ctx, f.db, "nope", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("toggle missing subtask error = %v, want ErrNotFound", err)
	}
}

func TestAddComment(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A")
	ctx := context.Background()

	c, err := AddComment(ctx, f.db, ids["A"], f.user.ID, "looks good")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if c.AuthorID == nil || *c.AuthorID != f.user.ID {
		t.Errorf("AuthorID = %v, want %s", c.AuthorID, f.user.ID)
	}

	tk, _ := Get(ctx, f.db, ids["A"])
	if len(tk.Comments) != 1 || tk.Comments[0].Author == nil || tk.Comments[0].Author.Name != "Ana" {
		t.Errorf("Comments = %+v", tk.Comments)
	}
	if !hasAction(tk.Activities, models.ActionCommented) {
		t.Error("missing commented activity")
	}

	if _, err := AddComment(ctx, f.db, ids["A"], "", " "); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("blank comment error = %v, want ErrInvalidArgument", err)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"", "  "}, []string{}},
		{[]string{"B", "a", "b "}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := NormalizeTags(tt.in)
		if !equal(got, tt.want) {
			t.Errorf("NormalizeTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetTags_InternsAndReplaces(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A", "B")
	ctx := context.Background()

	if _, err := SetTags(ctx, f.db, ids["A"], []string{"backend", "bug"}); err != nil {
		t.Fatalf("SetTags A: %v", err)
	}
	if _, err := SetTags(ctx, f.db, ids["B"], []string{"bug"}); err != nil {
		t.Fatalf("SetTags B: %v", err)
	}
	var n int64
	f.db.Model(&models.Tag{}).Count(&n)
	if n != 2 {
		t.Errorf("tag rows = %d, want 2 (interned)", n)
	}

	tk, err := SetTags(ctx, f.db, ids["A"], []string{"frontend"})
	if err != nil {
		t.Fatalf("SetTags replace: %v", err)
	}
	if len(tk.Tags) != 1 || tk.Tags[0].Name != "frontend" {
		t.Errorf("Tags = %+v, want [frontend]", tk.Tags)
	}

	tk, err = SetTags(ctx, f.db, ids["A"], nil)
	if err != nil {
		t.Fatalf("SetTags clear: %v", err)
	}
	if len(tk.Tags) != 0 {
		t.Errorf("Tags = %+v, want none", tk.Tags)
	}
}

func TestMutations_RecordSpans(t *testing.T) {
	f := newFixture(t, "Todo")
	ids := f.addTasks(t, 0, "A")
	sp := models.Sprint{BoardID: f.board.ID, Name: "S1"}
	if err := f.db.Create(&sp).Error; err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	rec := recordSpans(t)
	ctx := context.Background()

	if _, err := SetSprint(ctx, f.db, ids["A"], sp.ID); err != nil {
		t.Fatalf("SetSprint: %v", err)
	}
	if _, err := SetTags(ctx, f.db, ids["A"], []string{"api"}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	st, err := CreateSubtask(ctx, f.db, ids["A"], "step")
	if err != nil {
		t.Fatalf("CreateSubtask: %v", err)
	}
	if _, err := ToggleSubtask(ctx, f.db, st.ID, true); err != nil {
		t.Fatalf("ToggleSubtask: %v", err)
	}
	if _, err := AddComment(ctx, f.db, ids["A"], f.user.ID, "note"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	got := spanNames(rec)
	for _, want := range []string{"task.sprint", "task.tags", "task.subtask.create", "task.subtask.toggle", "task.comment"} {
		if !got[want] {
			t.Errorf("missing span %q, got %v", want, got)
		}
	}
}
