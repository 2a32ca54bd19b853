package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Category buckets a match score.
type Category string

const (
	CategoryLow    Category = "low"
	CategoryMedium Category = "medium"
	CategoryHigh   Category = "high"
)

// CategoryForScore maps a score to its category band.
func CategoryForScore(score int) Category {
	switch {
	case score <= 40:
		return CategoryLow
	case score <= 70:
		return CategoryMedium
	default:
		return CategoryHigh
	}
}

// ClampScore forces a score into the 0-100 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Details carries the optional breakdown of a match result.
type Details struct {
	MatchedSkills   []string `json:"matchedSkills"`
	MissingSkills   []string `json:"missingSkills"`
	Recommendations []string `json:"recommendations"`
}

// Result is one CV-against-job score.
type Result struct {
	Score    int      `json:"score"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Details  *Details `json:"details,omitempty"`
}

// JobCriteria describes the posting a CV is matched against.
type JobCriteria struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Requirements   []string `json:"requirements"`
	NiceToHave     []string `json:"niceToHave"`
	Location       string   `json:"location"`
	EmploymentType string   `json:"employmentType"`
}

// Validate checks that the criteria carry enough substance to score against.
// Requirements drive the MUST-HAVE weighting, so at least one non-blank entry
// is mandatory.
func (c JobCriteria) Validate() error {
	for _, r := range c.Requirements {
		if strings.TrimSpace(r) != "" {
			return nil
		}
	}
	return fmt.Errorf("job criteria need at least one requirement")
}

// JobID tolerates both string and numeric identifiers on the wire.
type JobID string

func (id *JobID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = JobID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = JobID(n.String())
		return nil
	}
	return fmt.Errorf("job id must be a string or number")
}

func (id JobID) String() string {
	return string(id)
}

// FinderJob is one posting in a job-finder batch.
type FinderJob struct {
	JobCriteria
	ID       JobID  `json:"id"`
	URL      string `json:"url"`
	ApplyURL string `json:"applyUrl"`
}

// FinderMatch is one scored posting in a finder result, best first.
type FinderMatch struct {
	JobID    string   `json:"jobId"`
	Title    string   `json:"title"`
	Score    int      `json:"score"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	URL      string   `json:"url,omitempty"`
	ApplyURL string   `json:"applyUrl,omitempty"`
}

// FinderResult holds the ranked matches for a finder run.
type FinderResult struct {
	Matches []FinderMatch `json:"matches"`
}

// Scorer produces match results from anonymized CV content.
type Scorer interface {
	Score(ctx context.Context, cvText string, job JobCriteria) (Result, error)
	ScoreImage(ctx context.Context, image []byte, mimeType string, job JobCriteria) (Result, error)
	ScoreAll(ctx context.Context, cvText string, jobs []FinderJob, limit int) (FinderResult, error)
}
