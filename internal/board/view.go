package board

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// View is a disposable working copy of a board's layout for drag
// feedback. Moves are applied to it speculatively and it is rebuilt from
// the store after every committed mutation. It is never used to decide
// whether a move is valid; the store alone does that.
type View struct {
	mu      sync.Mutex
	boardID string
	columns []ViewColumn
}

// ViewColumn is one column of a View.
type ViewColumn struct {
	ID       string
	Name     string
	WIPLimit *int
	Tasks    []ViewTask
}

// ViewTask is one card of a ViewColumn.
type ViewTask struct {
	ID    string
	Title string
}

// Preview is the result of a speculative move.
type Preview struct {
	Applied bool
	// OverWIP is a soft warning: the destination column is at or over its
	// WIP limit after the move.
	OverWIP bool
}

// NewView builds a view from a board aggregate.
func NewView(d *Detail) *View {
	v := &View{}
	v.Reset(d)
	return v
}

// LoadView fetches the board aggregate and builds a view from it.
func LoadView(ctx context.Context, gdb *gorm.DB, boardID string) (*View, error) {
	d, err := Get(ctx, gdb, boardID)
	if err != nil {
		return nil, err
	}
	return NewView(d), nil
}

// Reset discards local state and rebuilds the view from d.
func (v *View) Reset(d *Detail) {
	cols := make([]ViewColumn, len(d.Columns))
	for i, c := range d.Columns {
		vc := ViewColumn{ID: c.ID, Name: c.Name, WIPLimit: c.WIPLimit, Tasks: make([]ViewTask, len(c.Tasks))}
		for j, t := range c.Tasks {
			vc.Tasks[j] = ViewTask{ID: t.ID, Title: t.Title}
		}
		cols[i] = vc
	}
	v.mu.Lock()
	v.boardID = d.ID
	v.columns = cols
	v.mu.Unlock()
}

// Refresh reloads the view from the store.
func (v *View) Refresh(ctx context.Context, gdb *gorm.DB) error {
	v.mu.Lock()
	id := v.boardID
	v.mu.Unlock()
	d, err := Get(ctx, gdb, id)
	if err != nil {
		return fmt.Errorf("board: refresh view: %w", err)
	}
	v.Reset(d)
	return nil
}

// BoardID returns the id of the board the view mirrors.
func (v *View) BoardID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.boardID
}

// Apply moves a card locally. Positions past the end of the destination
// are clamped to an append; unknown tasks or columns leave the view alone
// and report Applied false.
func (v *View) Apply(taskID, destColumnID string, position int) Preview {
	v.mu.Lock()
	defer v.mu.Unlock()

	src, idx := v.locate(taskID)
	dst := v.column(destColumnID)
	if src < 0 || dst < 0 {
		return Preview{}
	}
	card := v.columns[src].Tasks[idx]
	v.columns[src].Tasks = append(v.columns[src].Tasks[:idx], v.columns[src].Tasks[idx+1:]...)

	tasks := v.columns[dst].Tasks
	if position < 0 {
		position = 0
	}
	if position > len(tasks) {
		position = len(tasks)
	}
	tasks = append(tasks, ViewTask{})
	copy(tasks[position+1:], tasks[position:])
	tasks[position] = card
	v.columns[dst].Tasks = tasks

	limit := v.columns[dst].WIPLimit
	return Preview{Applied: true, OverWIP: limit != nil && len(tasks) >= *limit}
}

// Columns returns a copy of the current layout.
func (v *View) Columns() []ViewColumn {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ViewColumn, len(v.columns))
	for i, c := range v.columns {
		c.Tasks = append([]ViewTask(nil), c.Tasks...)
		out[i] = c
	}
	return out
}

// Locate returns the column and index of a card in the view.
func (v *View) Locate(taskID string) (columnID string, position int, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, i := v.locate(taskID)
	if c < 0 {
		return "", 0, false
	}
	return v.columns[c].ID, i, true
}

func (v *View) locate(taskID string) (int, int) {
	for c := range v.columns {
		for i, t := range v.columns[c].Tasks {
			if t.ID == taskID {
				return c, i
			}
		}
	}
	return -1, -1
}

func (v *View) column(id string) int {
	for i := range v.columns {
		if v.columns[i].ID == id {
			return i
		}
	}
	return -1
}
