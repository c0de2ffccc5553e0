//go:build integration

package task

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/scrumban/internal/config"
	"github.com/zulandar/scrumban/internal/db"
	"gorm.io/gorm"
)

// mysqlDB connects to the server named by SB_TEST_MYSQL_ADDR (host:port,
// user root, empty password unless SB_TEST_MYSQL_PASSWORD is set), creates a
// throwaway database and migrates it. The database is dropped on cleanup.
func mysqlDB(t *testing.T) *gorm.DB {
	t.Helper()
	addr := os.Getenv("SB_TEST_MYSQL_ADDR")
	if addr == "" {
		t.Skip("SB_TEST_MYSQL_ADDR not set")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("parse SB_TEST_MYSQL_ADDR: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Driver:   config.DriverMySQL,
		Host:     host,
		Port:     port,
		User:     "root",
		Password: os.Getenv("SB_TEST_MYSQL_PASSWORD"),
		Name:     fmt.Sprintf("sb_test_%d", time.Now().UnixNano()),
	}

	admin, err := db.ConnectAdmin(cfg)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	if err := db.CreateDatabase(admin, cfg.Name); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	t.Cleanup(func() { db.DropDatabase(admin, cfg.Name) })

	gdb, err := db.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return gdb
}

func TestIntegration_ConcurrentMoves(t *testing.T) {
	f := newFixtureOn(t, mysqlDB(t), "X", "Y", "Z")
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	ids := f.addTasks(t, 0, names...)

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				id := ids[names[(w+i)%len(names)]]
				col := f.cols[(w*i)%len(f.cols)].ID
				if _, err := Move(context.Background(), f.db, id, col, 0, ""); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent move: %v", err)
	}

	// titles fails on any gap or duplicate position.
	total := 0
	for _, col := range f.cols {
		total += len(titles(t, f.db, col.ID))
	}
	if total != len(names) {
		t.Errorf("tasks across columns = %d, want %d", total, len(names))
	}
}

func TestIntegration_ConcurrentCreates(t *testing.T) {
	f := newFixtureOn(t, mysqlDB(t), "Backlog")

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			if _, err := Create(context.Background(), f.db, CreateOpts{
				ColumnID: f.cols[0].ID,
				Title:    fmt.Sprintf("task %d", w),
			}); err != nil {
				t.Errorf("Create: %v", err)
			}
		}(w)
	}
	wg.Wait()

	if got := len(titles(t, f.db, f.cols[0].ID)); got != 10 {
		t.Errorf("tasks = %d, want 10", got)
	}
}
