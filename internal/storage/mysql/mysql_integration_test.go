//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"bookingsync/internal/domain"
	mysqlrepo "bookingsync/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string    { return &s }
func pint(i int) *int          { return &i }
func ptime(t time.Time) *time.Time { return &t }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=bookingsync",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "bookingsync")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

// ---------- the test ----------
func TestRepo_MySQL_UpsertFindRoundtrip(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	arrival := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	departure := time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)

	b := domain.Booking{
		ExternalID:     "77001",
		GuestName:      "Jane Smith",
		Phone:          "+3214126449",
		Email:          "jane@example.com",
		Status:         "confirmed",
		BusinessStatus: string(domain.StatusFutureConfirmed),
		PropertyName:   pstr("Seaside Villa"),
		ArrivalDate:    ptime(arrival),
		DepartureDate:  ptime(departure),
		NumNights:      4,
		TotalPersons:   pint(2),
		TotalCharges:   "100.00",
		TotalPayments:  "30.00",
		Balance:        "70.00",
		Channel:        "Direct",
		Messages: []domain.Message{
			{ID: "m1", Text: "hello", Timestamp: arrival, Origin: "guest", Read: false},
		},
		LastSyncedAt: time.Now().UTC().Truncate(time.Second),
		RawJSON:      []byte(`{"id":77001}`),
	}

	created, err := repo.Upsert(ctx, b)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !created {
		t.Fatal("first upsert should report created")
	}

	// Second upsert for the same external id must update, not duplicate.
	b.GuestName = "Jane A. Smith"
	b.TotalPayments = "100.00"
	b.Balance = "0.00"
	created, err = repo.Upsert(ctx, b)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if created {
		t.Fatal("second upsert should report updated")
	}

	got, err := repo.FindByExternalID(ctx, "77001")
	if err != nil {
		t.Fatalf("FindByExternalID: %v", err)
	}
	if got.GuestName != "Jane A. Smith" {
		t.Fatalf("guest name not updated: %q", got.GuestName)
	}
	if got.Balance != "0.00" {
		t.Fatalf("balance = %q, want 0.00", got.Balance)
	}
	if got.PropertyName == nil || *got.PropertyName != "Seaside Villa" {
		t.Fatalf("unexpected property name: %v", got.PropertyName)
	}
	if len(got.Messages) != 1 || got.Messages[0].ID != "m1" {
		t.Fatalf("messages did not round-trip: %+v", got.Messages)
	}
	if got.ArrivalDate == nil || !got.ArrivalDate.Equal(arrival) {
		t.Fatalf("arrival did not round-trip: %v", got.ArrivalDate)
	}

	if _, err := repo.FindByExternalID(ctx, "no-such-id"); err != domain.ErrNotFound {
		t.Fatalf("missing booking: got %v, want ErrNotFound", err)
	}
}
