package analyses

import (
	"time"

	"matching-backend/internal/matcher"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	ModeMatch  = "match"
	ModeFinder = "finder"
)

// Submission is everything the pipeline needs to process a job later. It is
// persisted with the job row so processing can happen in-process or on a
// worker, the dispatch path does not change the semantics.
type Submission struct {
	Document       []byte               `json:"document,omitempty"`
	FileName       string               `json:"fileName,omitempty"`
	AnonymizedText string               `json:"anonymizedText,omitempty"`
	Criteria       *matcher.JobCriteria `json:"criteria,omitempty"`
	Jobs           []matcher.FinderJob  `json:"jobs,omitempty"`
	Limit          int                  `json:"limit,omitempty"`
}

// Analysis represents one matching job.
type Analysis struct {
	ID           string         `json:"id"`
	InstallID    string         `json:"installId"`
	Plan         string         `json:"plan"`
	Mode         string         `json:"mode"`
	Status       string         `json:"status"`
	FileType     string         `json:"fileType,omitempty"`
	Submission   Submission     `json:"-"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
}

// Terminal reports whether the job already reached a final status.
func (a Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}
