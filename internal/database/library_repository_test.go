package database

import (
	"testing"

	"aircal/models"
)

func seriesTitle(id int64, name string) models.TrackedTitle {
	return models.TrackedTitle{
		TMDBID:    id,
		MediaType: models.MediaTypeSeries,
		Name:      name,
	}
}

func TestAddTitle_Validation(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Library

	if err := repo.AddTitle("", seriesTitle(1, "x")); err == nil {
		t.Error("expected error for empty owner")
	}
	if err := repo.AddTitle("user1", models.TrackedTitle{MediaType: models.MediaTypeSeries}); err == nil {
		t.Error("expected error for missing title id")
	}
	if err := repo.AddTitle("user1", models.TrackedTitle{TMDBID: 1, MediaType: "podcast"}); err == nil {
		t.Error("expected error for unknown media type")
	}
}

func TestAddTitle_UpsertRefreshesMetadata(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Library

	first := seriesTitle(100, "Old Name")
	first.TVDBID = 5
	if err := repo.AddTitle("user1", first); err != nil {
		t.Fatalf("AddTitle failed: %v", err)
	}

	second := seriesTitle(100, "New Name")
	second.TVDBID = 5
	second.PosterURL = "https://img/poster.jpg"
	if err := repo.AddTitle("user1", second); err != nil {
		t.Fatalf("AddTitle failed: %v", err)
	}

	titles, err := repo.ListTitles("user1")
	if err != nil {
		t.Fatalf("ListTitles failed: %v", err)
	}
	if len(titles) != 1 {
		t.Fatalf("expected 1 title, got %d", len(titles))
	}
	if titles[0].Name != "New Name" || titles[0].PosterURL != "https://img/poster.jpg" {
		t.Errorf("expected metadata refresh, got %+v", titles[0])
	}
}

func TestRemoveTitle_DeletesEventsToo(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Library.AddTitle("user1", seriesTitle(100, "Keep")); err != nil {
		t.Fatalf("AddTitle failed: %v", err)
	}
	if err := db.Library.AddTitle("user1", seriesTitle(200, "Drop")); err != nil {
		t.Fatalf("AddTitle failed: %v", err)
	}
	events := []models.ReconciledEvent{
		makeEvent("user1", 100, 1, 1, "2025-03-01"),
		makeEvent("user1", 200, 1, 1, "2025-03-02"),
	}
	if err := db.Events.UpsertEvents("user1", events); err != nil {
		t.Fatalf("UpsertEvents failed: %v", err)
	}

	if err := db.Library.RemoveTitle("user1", 200, models.MediaTypeSeries); err != nil {
		t.Fatalf("RemoveTitle failed: %v", err)
	}

	titles, _ := db.Library.ListTitles("user1")
	if len(titles) != 1 || titles[0].TMDBID != 100 {
		t.Errorf("expected only title 100 tracked, got %+v", titles)
	}
	remaining, _ := db.Events.ListEventsForOwner("user1")
	if len(remaining) != 1 || remaining[0].TitleID != 100 {
		t.Errorf("expected only events for title 100, got %+v", remaining)
	}
}

func TestListTitles_OrderAndOwnerScope(t *testing.T) {
	db := setupTestDB(t)
	repo := db.Library

	for _, id := range []int64{300, 100, 200} {
		if err := repo.AddTitle("user1", seriesTitle(id, "s")); err != nil {
			t.Fatalf("AddTitle failed: %v", err)
		}
	}
	if err := repo.AddTitle("user2", seriesTitle(999, "other")); err != nil {
		t.Fatalf("AddTitle failed: %v", err)
	}

	titles, err := repo.ListTitles("user1")
	if err != nil {
		t.Fatalf("ListTitles failed: %v", err)
	}
	if len(titles) != 3 {
		t.Fatalf("expected 3 titles, got %d", len(titles))
	}
	for _, title := range titles {
		if title.TMDBID == 999 {
			t.Error("user2's title leaked into user1's list")
		}
	}
}
