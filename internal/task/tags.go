package task

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// NormalizeTags lower-cases, trims and de-duplicates tag names, returning
// them sorted. Empty names are dropped.
func NormalizeTags(names []string) []string {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SetTags replaces a task's tag set. Tags are interned: each distinct name
// is stored once and shared between tasks.
func SetTags(ctx context.Context, gdb *gorm.DB, taskID string, names []string) (t *models.Task, err error) {
	ctx, end := telemetry.Op(ctx, "task.tags", attribute.String("task.id", taskID))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		if _, err := loadPlacement(tx, taskID, false); err != nil {
			return err
		}
		return replaceTags(tx, &models.Task{ID: taskID}, names)
	})
	if err != nil {
		return nil, fmt.Errorf("task: set tags of %s: %w", taskID, err)
	}
	return Get(ctx, gdb, taskID)
}

func replaceTags(tx *gorm.DB, t *models.Task, names []string) error {
	tags, err := internTags(tx, NormalizeTags(names))
	if err != nil {
		return err
	}
	assoc := tx.Model(t).Association("Tags")
	if len(tags) == 0 {
		err = assoc.Clear()
	} else {
		err = assoc.Replace(tags)
	}
	if err != nil {
		return fmt.Errorf("replace tags: %w", err)
	}
	t.Tags = tags
	return nil
}

// internTags returns the tag rows for names, creating missing ones.
func internTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, n := range names {
		if len(n) > 64 {
			return nil, apperr.Invalid("tag", "%q longer than 64 characters", n)
		}
		tag := models.Tag{Name: n}
		if err := tx.Where(models.Tag{Name: n}).FirstOrCreate(&tag).Error; err != nil {
			return nil, fmt.Errorf("intern tag %q: %w", n, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
