package models

import "time"

// Candidate sources, in no particular order; precedence lives in the reconciler.
const (
	SourcePrimary = "primary"
	SourceAirtime = "precise-airtime"
	SourceHistory = "history"
)

// Normalized movie release subtypes. Providers report a wider set
// (premiere, limited, physical, ...); adapters collapse them to these two.
const (
	ReleaseTheatrical = "theatrical"
	ReleaseDigital    = "digital"
)

// CandidateDate is one provider's opinion about when a unit airs or releases.
// Raw is either a date-only string (YYYY-MM-DD) or a full RFC 3339 timestamp
// with offset. Ephemeral: produced and consumed within one reconciliation pass.
type CandidateDate struct {
	Source      string `json:"source"`
	Raw         string `json:"raw"`
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
	ReleaseType string `json:"releaseType,omitempty"` // movies: "theatrical" | "digital"
	Country     string `json:"country,omitempty"`     // movies: ISO 3166-1 country of the release
}

// ReconciledEvent is the single authoritative calendar entry for one
// (owner, title, media type, season, episode) key. Day is the calendar day
// in the owner's configured timezone; AiredAt is set only when some provider
// supplied a full timestamp.
type ReconciledEvent struct {
	OwnerID     string     `json:"ownerId"`
	TitleID     int64      `json:"titleId"`
	MediaType   string     `json:"mediaType"`
	Season      int        `json:"season"`
	Episode     int        `json:"episode"`
	Day         string     `json:"day"` // YYYY-MM-DD
	AiredAt     *time.Time `json:"airedAt,omitempty"`
	ReleaseType string     `json:"releaseType,omitempty"`
	TitleName   string     `json:"titleName,omitempty"`
	EpisodeName string     `json:"episodeName,omitempty"`
	PosterURL   string     `json:"posterUrl,omitempty"`
	BackdropURL string     `json:"backdropUrl,omitempty"`
}

// Sync run states.
const (
	SyncStateIdle      = "idle"
	SyncStateRunning   = "running"
	SyncStateCompleted = "completed"
	SyncStateCancelled = "cancelled"
	SyncStateFailed    = "failed"
)

// SyncProgress is the observable state of one full-sync run. Current only
// advances at batch boundaries and is monotonic within a run.
type SyncProgress struct {
	RunID      string    `json:"runId,omitempty"`
	State      string    `json:"state"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
}
