package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-ambeo/migrations"
)

// setupTestRepo opens a migrated SQLite database in a temp directory.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "ambeo.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func testSoundbar(id, name string) *Soundbar {
	return &Soundbar{
		ID:           id,
		Name:         name,
		Model:        ambeo.ModelMax,
		Serial:       "SN-" + id,
		Firmware:     "2.1.0",
		Host:         "192.168.1.40",
		Port:         80,
		Family:       ambeo.FamilyEspresso,
		Capabilities: []ambeo.Capability{ambeo.CapAmbeoLogo, ambeo.CapStandby},
	}
}

func TestSQLiteRepository_UpsertAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	s := testSoundbar("lounge", "Lounge")
	if err := repo.Upsert(ctx, s); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "lounge")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Manufacturer != ambeo.Manufacturer {
		t.Errorf("Manufacturer = %q, want %q", got.Manufacturer, ambeo.Manufacturer)
	}
	if got.HealthStatus != HealthUnknown {
		t.Errorf("HealthStatus = %q, want unknown", got.HealthStatus)
	}
	if got.Family != ambeo.FamilyEspresso || !got.HasCapability(ambeo.CapAmbeoLogo) {
		t.Errorf("family/capabilities = %q %v", got.Family, got.Capabilities)
	}
	if got.CreatedAt.IsZero() || got.LastSeen != nil {
		t.Errorf("CreatedAt = %v, LastSeen = %v", got.CreatedAt, got.LastSeen)
	}
}

func TestSQLiteRepository_UpsertKeepsHealth(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, testSoundbar("lounge", "Lounge")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	seen := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.UpdateHealth(ctx, "lounge", HealthOnline, seen); err != nil {
		t.Fatalf("UpdateHealth() error = %v", err)
	}

	moved := testSoundbar("lounge", "Lounge")
	moved.Host = "192.168.1.41"
	moved.Capabilities = nil
	if err := repo.Upsert(ctx, moved); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "lounge")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Host != "192.168.1.41" {
		t.Errorf("Host = %q, want updated", got.Host)
	}
	if got.HealthStatus != HealthOnline || got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Errorf("health = %q %v, want online at %v", got.HealthStatus, got.LastSeen, seen)
	}
	if got.Capabilities == nil || len(got.Capabilities) != 0 {
		t.Errorf("Capabilities = %#v, want empty", got.Capabilities)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, s := range []*Soundbar{testSoundbar("b", "Bedroom"), testSoundbar("a", "Kitchen"), testSoundbar("c", "Attic")} {
		if err := repo.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert(%s) error = %v", s.ID, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"Attic", "Bedroom", "Kitchen"}
	if len(list) != len(want) {
		t.Fatalf("List() len = %d, want %d", len(list), len(want))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("List()[%d] = %q, want %q", i, list[i].Name, name)
		}
	}
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrSoundbarNotFound) {
		t.Errorf("GetByID() error = %v, want ErrSoundbarNotFound", err)
	}
	if err := repo.UpdateHealth(ctx, "missing", HealthOnline, time.Now()); !errors.Is(err, ErrSoundbarNotFound) {
		t.Errorf("UpdateHealth() error = %v, want ErrSoundbarNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrSoundbarNotFound) {
		t.Errorf("Delete() error = %v, want ErrSoundbarNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, testSoundbar("lounge", "Lounge")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Delete(ctx, "lounge"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "lounge"); !errors.Is(err, ErrSoundbarNotFound) {
		t.Errorf("GetByID() after delete error = %v", err)
	}
}

func TestSQLiteRepository_Validation(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Soundbar)
		want   error
	}{
		{"missing id", func(s *Soundbar) { s.ID = "" }, ErrInvalidSoundbar},
		{"missing name", func(s *Soundbar) { s.Name = "" }, ErrInvalidName},
		{"missing host", func(s *Soundbar) { s.Host = "" }, ErrInvalidHost},
		{"bad port", func(s *Soundbar) { s.Port = 70000 }, ErrInvalidHost},
		{"bad health", func(s *Soundbar) { s.HealthStatus = "sleepy" }, ErrInvalidHealthStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSoundbar("lounge", "Lounge")
			tt.mutate(s)
			if err := repo.Upsert(ctx, s); !errors.Is(err, tt.want) {
				t.Errorf("Upsert() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := repo.UpdateHealth(ctx, "lounge", "sleepy", time.Now()); !errors.Is(err, ErrInvalidHealthStatus) {
		t.Errorf("UpdateHealth() error = %v, want ErrInvalidHealthStatus", err)
	}
}
