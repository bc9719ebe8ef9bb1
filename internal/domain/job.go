package domain

import "time"

// JobMode enumerates supported generation modes. The core treats the mode as
// opaque beyond prompt selection; the closed set mirrors what the generation
// provider accepts.
type JobMode string

const (
	JobModeStudioWhite    JobMode = "studio_white"
	JobModeModelTryon     JobMode = "model_tryon"
	JobModeLifestyleScene JobMode = "lifestyle_scene"
)

// ValidMode reports whether m is a member of the closed mode set.
func ValidMode(m JobMode) bool {
	switch m {
	case JobModeStudioWhite, JobModeModelTryon, JobModeLifestyleScene:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status is absorbing. Jobs never leave a
// terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// transitions is the single source of truth for allowed status moves.
// PROCESSING -> QUEUED is the stale-sweep requeue path; everything else is
// forward-only.
var transitions = map[JobStatus]map[JobStatus]bool{
	JobStatusQueued: {
		JobStatusProcessing: true,
	},
	JobStatusProcessing: {
		JobStatusQueued:    true,
		JobStatusCompleted: true,
		JobStatusFailed:    true,
	},
	JobStatusCompleted: {},
	JobStatusFailed:    {},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	return transitions[from][to]
}

// Job encapsulates one generation request for one owner.
type Job struct {
	ID             string
	OwnerID        string
	Mode           JobMode
	Status         JobStatus
	InputURL       string
	PromptOverride string
	PromptParams   []byte // opaque payload forwarded to the generation provider
	ResultURLs     []string
	ThumbnailURL   string
	ProviderJobID  string
	RetryCount     int
	ErrorMessage   string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}
