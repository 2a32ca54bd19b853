package matcher

import (
	"strings"
	"testing"
)

func TestBuildPromptOrdersRequirements(t *testing.T) {
	job := JobCriteria{
		Title:        "Backend Engineer",
		Description:  "Build APIs.",
		Requirements: []string{"5 years Go", "PostgreSQL"},
		NiceToHave:   []string{"Kubernetes"},
	}
	prompt := BuildPrompt("cv text here", job, false)

	mustIdx := strings.Index(prompt, "MUST-HAVE requirements:")
	niceIdx := strings.Index(prompt, "Nice-to-have:")
	if mustIdx < 0 || niceIdx < 0 {
		t.Fatalf("missing requirement sections:\n%s", prompt)
	}
	if mustIdx > niceIdx {
		t.Error("MUST-HAVE section should come before nice-to-have")
	}
	if !strings.Contains(prompt, "cv text here") {
		t.Error("cv text missing from prompt")
	}
	if !strings.Contains(prompt, "- 41-70: medium fit") {
		t.Error("category bands missing from prompt")
	}
}

func TestBuildPromptImageMode(t *testing.T) {
	prompt := BuildPrompt("", JobCriteria{Title: "X"}, true)
	if !strings.Contains(prompt, "attached as an image") {
		t.Error("image pointer missing")
	}
}

func TestBuildFinderPromptListsAllJobs(t *testing.T) {
	jobs := finderJobs()
	prompt := BuildFinderPrompt("cv text", jobs, 5)

	for _, job := range jobs {
		if !strings.Contains(prompt, "id: "+job.ID.String()) {
			t.Errorf("job %s missing from prompt", job.ID)
		}
	}
	if !strings.Contains(prompt, "at most 5 entries") {
		t.Error("limit missing from prompt")
	}
}

func TestJobCriteriaValidate(t *testing.T) {
	if err := (JobCriteria{}).Validate(); err == nil {
		t.Error("empty criteria should be invalid")
	}
	if err := (JobCriteria{Title: "DBA", Description: "runs databases"}).Validate(); err == nil {
		t.Error("criteria without requirements should be invalid")
	}
	if err := (JobCriteria{Requirements: []string{"  "}}).Validate(); err == nil {
		t.Error("criteria with only blank requirements should be invalid")
	}
	if err := (JobCriteria{Requirements: []string{"Go"}}).Validate(); err != nil {
		t.Errorf("requirements-only criteria should be valid: %v", err)
	}
	if err := (JobCriteria{Title: "X", Requirements: []string{"SQL"}}).Validate(); err != nil {
		t.Errorf("criteria with a requirement should be valid: %v", err)
	}
}
