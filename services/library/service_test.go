package library

import (
	"errors"
	"testing"

	"aircal/models"
)

type mockTitleStore struct {
	titles    map[string][]models.TrackedTitle
	addErr    error
	removeErr error
}

func newMockTitleStore() *mockTitleStore {
	return &mockTitleStore{titles: make(map[string][]models.TrackedTitle)}
}

func (m *mockTitleStore) AddTitle(owner string, title models.TrackedTitle) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.titles[owner] = append(m.titles[owner], title)
	return nil
}

func (m *mockTitleStore) RemoveTitle(owner string, tmdbID int64, mediaType string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	kept := m.titles[owner][:0]
	for _, t := range m.titles[owner] {
		if t.TMDBID != tmdbID || t.MediaType != mediaType {
			kept = append(kept, t)
		}
	}
	m.titles[owner] = kept
	return nil
}

func (m *mockTitleStore) ListTitles(owner string) ([]models.TrackedTitle, error) {
	return m.titles[owner], nil
}

type mockEpochStore struct {
	bumps map[string]int64
	err   error
}

func newMockEpochStore() *mockEpochStore {
	return &mockEpochStore{bumps: make(map[string]int64)}
}

func (m *mockEpochStore) BumpCalendarEpoch(owner string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.bumps[owner]++
	return m.bumps[owner], nil
}

func TestAdd_BumpsEpoch(t *testing.T) {
	titles := newMockTitleStore()
	epochs := newMockEpochStore()
	svc := NewService(titles, epochs)

	title := models.TrackedTitle{TMDBID: 100, MediaType: models.MediaTypeSeries, Name: "Show"}
	if err := svc.Add("user1", title); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if epochs.bumps["user1"] != 1 {
		t.Errorf("expected 1 epoch bump, got %d", epochs.bumps["user1"])
	}
	got, _ := svc.List("user1")
	if len(got) != 1 || got[0].TMDBID != 100 {
		t.Errorf("unexpected list: %+v", got)
	}
}

func TestAdd_StoreErrorSkipsEpoch(t *testing.T) {
	titles := newMockTitleStore()
	titles.addErr = errors.New("disk full")
	epochs := newMockEpochStore()
	svc := NewService(titles, epochs)

	err := svc.Add("user1", models.TrackedTitle{TMDBID: 100, MediaType: models.MediaTypeSeries})
	if err == nil {
		t.Fatal("expected error")
	}
	if epochs.bumps["user1"] != 0 {
		t.Error("epoch should not bump when add fails")
	}
}

func TestRemove_BumpsEpoch(t *testing.T) {
	titles := newMockTitleStore()
	epochs := newMockEpochStore()
	svc := NewService(titles, epochs)

	title := models.TrackedTitle{TMDBID: 100, MediaType: models.MediaTypeSeries}
	if err := svc.Add("user1", title); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := svc.Remove("user1", 100, models.MediaTypeSeries); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if epochs.bumps["user1"] != 2 {
		t.Errorf("expected 2 epoch bumps, got %d", epochs.bumps["user1"])
	}
	got, _ := svc.List("user1")
	if len(got) != 0 {
		t.Errorf("expected empty list, got %+v", got)
	}
}

func TestAdd_EpochFailureIsNonFatal(t *testing.T) {
	titles := newMockTitleStore()
	epochs := newMockEpochStore()
	epochs.err = errors.New("locked")
	svc := NewService(titles, epochs)

	if err := svc.Add("user1", models.TrackedTitle{TMDBID: 100, MediaType: models.MediaTypeSeries}); err != nil {
		t.Fatalf("Add should succeed despite epoch failure, got: %v", err)
	}
}
