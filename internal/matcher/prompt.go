package matcher

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the model as a recruiter for every scoring call.
const SystemPrompt = "You are an experienced recruiting expert. You evaluate how well a candidate's CV fits a job posting. You are strict about MUST-HAVE requirements and fair about nice-to-have criteria. You always answer with JSON only, no prose around it."

const resultSchema = `{
  "score": <integer 0-100>,
  "category": "<low|medium|high>",
  "message": "<2-3 sentences addressed to the candidate>",
  "details": {
    "matchedSkills": ["..."],
    "missingSkills": ["..."],
    "recommendations": ["..."]
  }
}`

const categoryBands = `Score bands:
- 0-40: low fit, essential requirements are missing
- 41-70: medium fit, most requirements covered with gaps
- 71-100: high fit, requirements covered`

// BuildPrompt renders the single-job scoring prompt. When the CV arrives as a
// redacted image the text section is replaced with a pointer to the attached
// image.
func BuildPrompt(cvText string, job JobCriteria, cvIsImage bool) string {
	var b strings.Builder

	b.WriteString("Evaluate the following CV against the job posting.\n\n")
	writeJobSection(&b, job)

	b.WriteString("\n## CV\n")
	if cvIsImage {
		b.WriteString("The CV is attached as an image. Read it carefully, including layout elements such as tables and columns.\n")
	} else {
		b.WriteString(cvText)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(categoryBands)
	b.WriteString("\n\nMUST-HAVE requirements weigh much more than nice-to-have criteria. A CV missing several MUST-HAVE requirements cannot score above 40.\n")
	b.WriteString("\nRespond with exactly this JSON structure and nothing else:\n")
	b.WriteString(resultSchema)
	b.WriteString("\n")

	return b.String()
}

// BuildFinderPrompt renders the multi-job ranking prompt.
func BuildFinderPrompt(cvText string, jobs []FinderJob, limit int) string {
	var b strings.Builder

	b.WriteString("Evaluate the following CV against each of the job postings below, then rank the postings by fit.\n")

	for i, job := range jobs {
		fmt.Fprintf(&b, "\n## Job %d (id: %s)\n", i+1, job.ID)
		writeJobSection(&b, job.JobCriteria)
	}

	b.WriteString("\n## CV\n")
	b.WriteString(cvText)
	b.WriteString("\n\n")
	b.WriteString(categoryBands)
	fmt.Fprintf(&b, "\n\nRespond with a JSON array of at most %d entries, best match first, and nothing else:\n", limit)
	b.WriteString(`[{"jobId": "<id>", "title": "<job title>", "score": <0-100>, "category": "<low|medium|high>", "message": "<1-2 sentences>"}]`)
	b.WriteString("\n")

	return b.String()
}

func writeJobSection(b *strings.Builder, job JobCriteria) {
	b.WriteString("### Job posting\n")
	if job.Title != "" {
		fmt.Fprintf(b, "Title: %s\n", job.Title)
	}
	if job.Location != "" {
		fmt.Fprintf(b, "Location: %s\n", job.Location)
	}
	if job.EmploymentType != "" {
		fmt.Fprintf(b, "Employment type: %s\n", job.EmploymentType)
	}
	if job.Description != "" {
		fmt.Fprintf(b, "Description:\n%s\n", job.Description)
	}
	if len(job.Requirements) > 0 {
		b.WriteString("MUST-HAVE requirements:\n")
		for _, r := range job.Requirements {
			fmt.Fprintf(b, "- %s\n", r)
		}
	}
	if len(job.NiceToHave) > 0 {
		b.WriteString("Nice-to-have:\n")
		for _, r := range job.NiceToHave {
			fmt.Fprintf(b, "- %s\n", r)
		}
	}
}
