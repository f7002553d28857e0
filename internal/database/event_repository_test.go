package database

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"aircal/models"
)

// setupTestDB creates a new test database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeEvent(owner string, titleID int64, season, episode int, day string) models.ReconciledEvent {
	return models.ReconciledEvent{
		OwnerID:   owner,
		TitleID:   titleID,
		MediaType: models.MediaTypeSeries,
		Season:    season,
		Episode:   episode,
		Day:       day,
		TitleName: fmt.Sprintf("Show %d", titleID),
	}
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	db, err := NewDB(Config{DatabasePath: dbPath})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()
}

func TestUpsertEvents_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Events

	aired := time.Date(2025, 3, 3, 2, 0, 0, 0, time.UTC)
	events := make([]models.ReconciledEvent, 0, 5)
	for i := 1; i <= 5; i++ {
		ev := makeEvent("user1", 100, 1, i, fmt.Sprintf("2025-03-%02d", i))
		if i == 1 {
			ev.AiredAt = &aired
			ev.EpisodeName = "Pilot"
		}
		events = append(events, ev)
	}

	if err := repo.UpsertEvents("user1", events); err != nil {
		t.Fatalf("UpsertEvents failed: %v", err)
	}

	got, err := repo.ListEventsForOwner("user1")
	if err != nil {
		t.Fatalf("ListEventsForOwner failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %d", len(got))
	}
	if got[0].Day != "2025-03-01" || got[0].EpisodeName != "Pilot" {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if got[0].AiredAt == nil || !got[0].AiredAt.Equal(aired) {
		t.Errorf("expected precise instant to round-trip, got %v", got[0].AiredAt)
	}
	if got[4].AiredAt != nil {
		t.Errorf("expected nil instant for date-only event")
	}
}

func TestUpsertEvents_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Events

	ev := makeEvent("user1", 100, 1, 1, "2025-03-01")
	for i := 0; i < 2; i++ {
		if err := repo.UpsertEvents("user1", []models.ReconciledEvent{ev}); err != nil {
			t.Fatalf("UpsertEvents (%d) failed: %v", i, err)
		}
	}

	got, err := repo.ListEventsForOwner("user1")
	if err != nil {
		t.Fatalf("ListEventsForOwner failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected exactly 1 record after duplicate upsert, got %d", len(got))
	}
}

func TestUpsertEvents_LastWriteWins(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Events

	first := makeEvent("user1", 100, 1, 1, "2025-03-01")
	first.EpisodeName = "Old Name"
	aired := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	first.AiredAt = &aired
	if err := repo.UpsertEvents("user1", []models.ReconciledEvent{first}); err != nil {
		t.Fatalf("UpsertEvents failed: %v", err)
	}

	// Same key, all value columns replaced including clearing the instant.
	second := makeEvent("user1", 100, 1, 1, "2025-03-08")
	if err := repo.UpsertEvents("user1", []models.ReconciledEvent{second}); err != nil {
		t.Fatalf("UpsertEvents failed: %v", err)
	}

	got, err := repo.ListEventsForOwner("user1")
	if err != nil {
		t.Fatalf("ListEventsForOwner failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Day != "2025-03-08" || got[0].EpisodeName != "" || got[0].AiredAt != nil {
		t.Errorf("expected full replacement, got %+v", got[0])
	}
}

func TestUpsertEvents_ChunkedLargeBatch(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Events

	// More events than one chunk holds.
	n := repo.chunkSize*2 + 17
	events := make([]models.ReconciledEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, makeEvent("user1", int64(i+1), 1, 1, "2025-03-01"))
	}

	if err := repo.UpsertEvents("user1", events); err != nil {
		t.Fatalf("UpsertEvents failed: %v", err)
	}
	got, err := repo.ListEventsForOwner("user1")
	if err != nil {
		t.Fatalf("ListEventsForOwner failed: %v", err)
	}
	if len(got) != n {
		t.Errorf("expected %d events, got %d", n, len(got))
	}
}

func TestDeleteEventsForOwner_ScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Events

	if err := repo.UpsertEvents("user1", []models.ReconciledEvent{makeEvent("user1", 100, 1, 1, "2025-03-01")}); err != nil {
		t.Fatalf("UpsertEvents failed: %v", err)
	}
	if err := repo.UpsertEvents("user2", []models.ReconciledEvent{makeEvent("user2", 100, 1, 1, "2025-03-01")}); err != nil {
		t.Fatalf("UpsertEvents failed: %v", err)
	}

	if err := repo.DeleteEventsForOwner("user1"); err != nil {
		t.Fatalf("DeleteEventsForOwner failed: %v", err)
	}

	got1, _ := repo.ListEventsForOwner("user1")
	got2, _ := repo.ListEventsForOwner("user2")
	if len(got1) != 0 {
		t.Errorf("expected user1 events gone, got %d", len(got1))
	}
	if len(got2) != 1 {
		t.Errorf("expected user2 events untouched, got %d", len(got2))
	}
}

func TestFullSyncFlag(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Events

	done, err := repo.FullSyncDone("user1")
	if err != nil {
		t.Fatalf("FullSyncDone failed: %v", err)
	}
	if done {
		t.Error("expected flag unset for a fresh owner")
	}

	if err := repo.SetFullSyncDone("user1", true); err != nil {
		t.Fatalf("SetFullSyncDone failed: %v", err)
	}
	done, _ = repo.FullSyncDone("user1")
	if !done {
		t.Error("expected flag set")
	}

	if err := repo.SetFullSyncDone("user1", false); err != nil {
		t.Fatalf("SetFullSyncDone failed: %v", err)
	}
	done, _ = repo.FullSyncDone("user1")
	if done {
		t.Error("expected flag cleared")
	}
}

func TestCalendarEpoch(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Events

	epoch, err := repo.CalendarEpoch("user1")
	if err != nil {
		t.Fatalf("CalendarEpoch failed: %v", err)
	}
	if epoch != 0 {
		t.Errorf("expected epoch 0 for fresh owner, got %d", epoch)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := repo.BumpCalendarEpoch("user1")
		if err != nil {
			t.Fatalf("BumpCalendarEpoch failed: %v", err)
		}
		if got != want {
			t.Errorf("expected epoch %d, got %d", want, got)
		}
	}

	// Other owners keep their own marker.
	other, _ := repo.CalendarEpoch("user2")
	if other != 0 {
		t.Errorf("expected user2 epoch 0, got %d", other)
	}
}
