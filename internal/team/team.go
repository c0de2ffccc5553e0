// Package team manages teams and their membership.
package team

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a team. OwnerID becomes the
// team's owner.
type CreateOpts struct {
	Name        string
	Description string
	OwnerID     string
}

// Summary is one row of the team list.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Members     int    `json:"members"`
	Boards      int    `json:"boards"`
}

// Create adds a team with its creator as owner.
func Create(ctx context.Context, gdb *gorm.DB, opts CreateOpts) (out *models.Team, err error) {
	ctx, end := telemetry.Op(ctx, "team.create")
	defer func() { end(err) }()

	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if opts.OwnerID == "" {
		return nil, apperr.Invalid("owner", "is required")
	}

	t := models.Team{Name: opts.Name, Description: opts.Description}
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		if err := checkUser(tx, opts.OwnerID); err != nil {
			return err
		}
		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		owner := models.TeamMember{TeamID: t.ID, UserID: opts.OwnerID, Role: models.RoleOwner}
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		t.Members = []models.TeamMember{owner}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("team: create: %w", err)
	}
	return &t, nil
}

// Get loads a team with its members (and their users) and its boards.
func Get(ctx context.Context, gdb *gorm.DB, id string) (*models.Team, error) {
	var t models.Team
	err := gdb.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Members.User").
		Preload("Boards", func(db *gorm.DB) *gorm.DB { return db.Order("updated_at DESC") }).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("team: %w", apperr.NotFound("team", id))
		}
		return nil, fmt.Errorf("team: get %s: %w", id, err)
	}
	return &t, nil
}

// List returns every team by name with member and board counts.
func List(ctx context.Context, gdb *gorm.DB) ([]Summary, error) {
	gdb = gdb.WithContext(ctx)
	var teams []models.Team
	if err := gdb.Order("name ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("team: list: %w", err)
	}

	type count struct {
		TeamID string
		N      int
	}
	var members, boards []count
	if err := gdb.Model(&models.TeamMember{}).Select("team_id, COUNT(*) AS n").Group("team_id").Scan(&members).Error; err != nil {
		return nil, fmt.Errorf("team: count members: %w", err)
	}
	if err := gdb.Model(&models.Board{}).Select("team_id, COUNT(*) AS n").Group("team_id").Scan(&boards).Error; err != nil {
		return nil, fmt.Errorf("team: count boards: %w", err)
	}
	index := func(cs []count) map[string]int {
		m := make(map[string]int, len(cs))
		for _, c := range cs {
			m[c.TeamID] = c.N
		}
		return m
	}
	nm, nb := index(members), index(boards)

	out := make([]Summary, len(teams))
	for i, t := range teams {
		out[i] = Summary{ID: t.ID, Name: t.Name, Description: t.Description, Members: nm[t.ID], Boards: nb[t.ID]}
	}
	return out, nil
}

// Delete removes a team and its memberships. A team that still owns boards
// is refused.
func Delete(ctx context.Context, gdb *gorm.DB, id string) (err error) {
	ctx, end := telemetry.Op(ctx, "team.delete", attribute.String("team.id", id))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		t, err := load(tx, id)
		if err != nil {
			return err
		}
		var boards int64
		if err := tx.Model(&models.Board{}).Where("team_id = ?", id).Count(&boards).Error; err != nil {
			return fmt.Errorf("count boards: %w", err)
		}
		if boards > 0 {
			return apperr.Constraint("team %q still owns %d board(s)", t.Name, boards)
		}
		if err := tx.Where("team_id = ?", id).Delete(&models.TeamMember{}).Error; err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		return tx.Delete(t).Error
	})
	if err != nil {
		return fmt.Errorf("team: delete %s: %w", id, err)
	}
	return nil
}

// AddMember adds a user to a team as admin or member (the default).
func AddMember(ctx context.Context, gdb *gorm.DB, teamID, userID, role string) (member *models.TeamMember, err error) {
	ctx, end := telemetry.Op(ctx, "team.member.add", attribute.String("team.id", teamID))
	defer func() { end(err) }()

	if role == "" {
		role = models.RoleMember
	}
	if err := checkRole(role); err != nil {
		return nil, err
	}
	m := models.TeamMember{TeamID: teamID, UserID: userID, Role: role}
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		if _, err := load(tx, teamID); err != nil {
			return err
		}
		if err := checkUser(tx, userID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.TeamMember{}).Where("team_id = ? AND user_id = ?", teamID, userID).Count(&n).Error; err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if n > 0 {
			return apperr.Constraint("user is already a member of this team")
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return nil, fmt.Errorf("team: add member %s to %s: %w", userID, teamID, err)
	}
	return &m, nil
}

// RemoveMember removes a user from a team. The owner cannot be removed.
func RemoveMember(ctx context.Context, gdb *gorm.DB, teamID, userID string) (err error) {
	ctx, end := telemetry.Op(ctx, "team.member.remove", attribute.String("team.id", teamID))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		m, err := membership(tx, teamID, userID)
		if err != nil {
			return err
		}
		if m.Role == models.RoleOwner {
			return apperr.Constraint("the team owner cannot be removed")
		}
		return tx.Delete(m).Error
	})
	if err != nil {
		return fmt.Errorf("team: remove member %s from %s: %w", userID, teamID, err)
	}
	return nil
}

// UpdateMemberRole changes a member's role to admin or member. The owner's
// role cannot be changed.
func UpdateMemberRole(ctx context.Context, gdb *gorm.DB, teamID, userID, role string) (member *models.TeamMember, err error) {
	ctx, end := telemetry.Op(ctx, "team.member.role", attribute.String("team.id", teamID))
	defer func() { end(err) }()

	if err := checkRole(role); err != nil {
		return nil, err
	}
	var out *models.TeamMember
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		m, err := membership(tx, teamID, userID)
		if err != nil {
			return err
		}
		if m.Role == models.RoleOwner {
			return apperr.Constraint("the team owner's role cannot be changed")
		}
		if err := tx.Model(m).Update("role", role).Error; err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		m.Role = role
		out = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("team: update role of %s in %s: %w", userID, teamID, err)
	}
	return out, nil
}

func checkRole(role string) error {
	if role != models.RoleAdmin && role != models.RoleMember {
		return apperr.Invalid("role", "%q is not one of admin, member", role)
	}
	return nil
}

func load(tx *gorm.DB, id string) (*models.Team, error) {
	var t models.Team
	if err := tx.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("team", id)
		}
		return nil, fmt.Errorf("load team %s: %w", id, err)
	}
	return &t, nil
}

func membership(tx *gorm.DB, teamID, userID string) (*models.TeamMember, error) {
	if _, err := load(tx, teamID); err != nil {
		return nil, err
	}
	var m models.TeamMember
	if err := tx.Where("team_id = ? AND user_id = ?", teamID, userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("member", userID)
		}
		return nil, fmt.Errorf("load member: %w", err)
	}
	return &m, nil
}

func checkUser(tx *gorm.DB, id string) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("check user %s: %w", id, err)
	}
	if n == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}
