// Package user manages user accounts.
package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// SearchLimit caps the number of users Search returns.
const SearchLimit = 10

var bcryptCost = bcrypt.DefaultCost

// CreateOpts holds parameters for creating a user.
type CreateOpts struct {
	Name     string
	Email    string
	Password string
	Role     string // defaults to user
	Image    string
}

// Create adds a user. Emails are unique and compared case-insensitively;
// the password is stored as a bcrypt hash.
func Create(ctx context.Context, gdb *gorm.DB, opts CreateOpts) (created *models.User, err error) {
	ctx, end := telemetry.Op(ctx, "user.create")
	defer func() { end(err) }()

	opts.Name = strings.TrimSpace(opts.Name)
	opts.Email = strings.ToLower(strings.TrimSpace(opts.Email))
	if opts.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if _, err := mail.ParseAddress(opts.Email); err != nil {
		return nil, apperr.Invalid("email", "%q is not a valid address", opts.Email)
	}
	if len(opts.Password) < 8 {
		return nil, apperr.Invalid("password", "must be at least 8 characters")
	}
	if opts.Role == "" {
		opts.Role = RoleUser
	}
	if opts.Role != RoleUser && opts.Role != RoleAdmin {
		return nil, apperr.Invalid("role", "%q is not one of user, admin", opts.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcryptCost)
	if err != nil {
		return nil, apperr.Invalid("password", "%v", err)
	}

	u := models.User{Name: opts.Name, Email: opts.Email, Password: string(hash), Role: opts.Role, Image: opts.Image}
	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", opts.Email).Count(&n).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if n > 0 {
			return apperr.Constraint("a user with email %s already exists", opts.Email)
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		return nil, fmt.Errorf("user: create: %w", err)
	}
	return &u, nil
}

// Get returns a user by id.
func Get(ctx context.Context, gdb *gorm.DB, id string) (*models.User, error) {
	var u models.User
	if err := gdb.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %w", apperr.NotFound("user", id))
		}
		return nil, fmt.Errorf("user: get %s: %w", id, err)
	}
	return &u, nil
}

// List returns every user by name.
func List(ctx context.Context, gdb *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := gdb.WithContext(ctx).Order("name ASC, email ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user: list: %w", err)
	}
	return users, nil
}

// Search returns up to SearchLimit users whose name or email contains
// term, ignoring case.
func Search(ctx context.Context, gdb *gorm.DB, term string) ([]models.User, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	var users []models.User
	if err := gdb.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like).
		Order("name ASC").
		Limit(SearchLimit).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user: search %q: %w", term, err)
	}
	return users, nil
}

// Delete removes a user. It is refused while the user belongs to a team or
// is assigned a task. Comments and activities keep their text but lose the
// link to the user.
func Delete(ctx context.Context, gdb *gorm.DB, id string) (err error) {
	ctx, end := telemetry.Op(ctx, "user.delete", attribute.String("user.id", id))
	defer func() { end(err) }()

	err = db.Transact(ctx, gdb, func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Where("id = ?", id).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("user", id)
			}
			return err
		}

		var memberships, assigned int64
		if err := tx.Model(&models.TeamMember{}).Where("user_id = ?", id).Count(&memberships).Error; err != nil {
			return fmt.Errorf("count memberships: %w", err)
		}
		if memberships > 0 {
			return apperr.Constraint("user %s is still a member of %d team(s)", u.Email, memberships)
		}
		if err := tx.Model(&models.Task{}).Where("assignee_id = ?", id).Count(&assigned).Error; err != nil {
			return fmt.Errorf("count assigned tasks: %w", err)
		}
		if assigned > 0 {
			return apperr.Constraint("user %s is still assigned %d task(s)", u.Email, assigned)
		}

		if err := tx.Model(&models.Comment{}).Where("author_id = ?", id).Update("author_id", nil).Error; err != nil {
			return fmt.Errorf("unlink comments: %w", err)
		}
		if err := tx.Model(&models.Activity{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return fmt.Errorf("unlink activities: %w", err)
		}
		return tx.Delete(&u).Error
	})
	if err != nil {
		return fmt.Errorf("user: delete %s: %w", id, err)
	}
	return nil
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}
