package library

import (
	"fmt"
	"log"

	"aircal/models"
)

// TitleStore persists an owner's tracked titles.
type TitleStore interface {
	AddTitle(owner string, title models.TrackedTitle) error
	RemoveTitle(owner string, tmdbID int64, mediaType string) error
	ListTitles(owner string) ([]models.TrackedTitle, error)
}

// EpochStore advances the owner's calendar cache marker.
type EpochStore interface {
	BumpCalendarEpoch(owner string) (int64, error)
}

// Service manages each owner's tracked-title list. Mutations bump the
// owner's calendar epoch so readers can tell their cached view is stale.
type Service struct {
	titles TitleStore
	epochs EpochStore
}

func NewService(titles TitleStore, epochs EpochStore) *Service {
	return &Service{titles: titles, epochs: epochs}
}

// Add tracks a title for the owner.
func (s *Service) Add(owner string, title models.TrackedTitle) error {
	if err := s.titles.AddTitle(owner, title); err != nil {
		return fmt.Errorf("add title: %w", err)
	}
	if _, err := s.epochs.BumpCalendarEpoch(owner); err != nil {
		log.Printf("[library] failed to bump epoch for %s after add: %v", owner, err)
	}
	return nil
}

// Remove untracks a title and drops its cached calendar events.
func (s *Service) Remove(owner string, tmdbID int64, mediaType string) error {
	if err := s.titles.RemoveTitle(owner, tmdbID, mediaType); err != nil {
		return fmt.Errorf("remove title: %w", err)
	}
	if _, err := s.epochs.BumpCalendarEpoch(owner); err != nil {
		log.Printf("[library] failed to bump epoch for %s after remove: %v", owner, err)
	}
	return nil
}

// List returns the owner's tracked titles.
func (s *Service) List(owner string) ([]models.TrackedTitle, error) {
	return s.titles.ListTitles(owner)
}
