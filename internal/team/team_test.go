package team

import (
	"context"
	"errors"
	"testing"

	"github.com/zulandar/scrumban/internal/apperr"
	"github.com/zulandar/scrumban/internal/db"
	"github.com/zulandar/scrumban/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, name string) models.User {
	t.Helper()
	u := models.User{Name: name, Email: name + "@example.com"}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestCreate_OwnerMembership(t *testing.T) {
	gdb := testDB(t)
	owner := seedUser(t, gdb, "ana")

	tm, err := Create(context.Background(), gdb, CreateOpts{Name: "Core", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := Get(context.Background(), gdb, tm.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].Role != models.RoleOwner || got.Members[0].User == nil || got.Members[0].User.Name != "ana" {
		t.Errorf("Members = %+v, want ana as owner", got.Members)
	}

	if _, err := Create(context.Background(), gdb, CreateOpts{Name: "X", OwnerID: "nope"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing owner error = %v, want ErrNotFound", err)
	}
	if _, err := Create(context.Background(), gdb, CreateOpts{OwnerID: owner.ID}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("blank name error = %v, want ErrInvalidArgument", err)
	}
}

func TestMembers(t *testing.T) {
	gdb := testDB(t)
	ctx := context.Background()
	owner := seedUser(t, gdb, "ana")
	bob := seedUser(t, gdb, "bob")
	tm, _ := Create(ctx, gdb, CreateOpts{Name: "Core", OwnerID: owner.ID})

	m, err := AddMember(ctx, gdb, tm.ID, bob.ID, "")
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if m.Role != models.RoleMember {
		t.Errorf("Role = %q, want member", m.Role)
	}
	if _, err := AddMember(ctx, gdb, tm.ID, bob.ID, models.RoleAdmin); !errors.Is(err, apperr.ErrConstraintViolation) {
		t.Errorf("duplicate AddMember error = %v, want ErrConstraintViolation", err)
	}
	if _, err := AddMember(ctx, gdb, tm.ID, bob.ID, models.RoleOwner); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("owner role error = %v, want ErrInvalidArgument", err)
	}

	m, err = UpdateMemberRole(ctx, gdb, tm.ID, bob.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateMemberRole: %v", err)
	}
	if m.Role != models.RoleAdmin {
		t.Errorf("Role = %q, want admin", m.Role)
	}

	if _, err := UpdateMemberRole(ctx, gdb, tm.ID, owner.ID, models.RoleMember); !errors.Is(err, apperr.ErrConstraintViolation) {
		t.Errorf("owner role change error = %v, want ErrConstraintViolation", err)
	}
	if err := RemoveMember(ctx, gdb, tm.ID, owner.ID); !errors.Is(err, apperr.ErrConstraintViolation) {
		t.Errorf("owner removal error = %v, want ErrConstraintViolation", err)
	}
	if err := RemoveMember(ctx, gdb, tm.ID, bob.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := RemoveMember(ctx, gdb, tm.ID, bob.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second RemoveMember error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	gdb := testDB(t)
	ctx := context.Background()
	owner := seedUser(t, gdb, "ana")
	bob := seedUser(t, gdb, "bob")
	core, _ := Create(ctx, gdb, CreateOpts{Name: "Core", OwnerID: owner.ID})
	Create(ctx, gdb, CreateOpts{Name: "Apps", OwnerID: owner.ID})
	AddMember(ctx, gdb, core.ID, bob.ID, "")
	gdb.Create(&models.Board{TeamID: core.ID, Name: "b"})

	list, err := List(ctx, gdb)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Apps" || list[1].Name != "Core" {
		t.Fatalf("List = %+v", list)
	}
	if list[1].Members != 2 || list[1].Boards != 1 {
		t.Errorf("Core summary = %+v, want 2 members 1 board", list[1])
	}
}

func TestDelete(t *testing.T) {
	gdb := testDB(t)
	ctx := context.Background()
	owner := seedUser(t, gdb, "ana")
	tm, _ := Create(ctx, gdb, CreateOpts{Name: "Core", OwnerID: owner.ID})
	board := models.Board{TeamID: tm.ID, Name: "b"}
	gdb.Create(&board)

	if err := Delete(ctx, gdb, tm.ID); !errors.Is(err, apperr.ErrConstraintViolation) {
		t.Fatalf("Delete with boards error = %v, want ErrConstraintViolation", err)
	}
	gdb.Delete(&board)
	if err := Delete(ctx, gdb, tm.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var n int64
	gdb.Model(&models.TeamMember{}).Count(&n)
	if n != 0 {
		t.Errorf("members remaining = %d, want 0", n)
	}
	if _, err := Get(ctx, gdb, tm.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
}
