package matcher

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// FallbackMessage is returned when the model reply cannot be parsed at all.
const FallbackMessage = "We could not fully evaluate the match this time. Based on a partial assessment this looks like a medium fit. Please try again in a moment."

var defaultMessages = map[Category]string{
	CategoryLow:    "The CV covers only a small part of the job requirements.",
	CategoryMedium: "The CV covers a fair share of the job requirements, with some gaps.",
	CategoryHigh:   "The CV is a strong match for the job requirements.",
}

func fallbackResult() Result {
	return Result{
		Score:    50,
		Category: CategoryMedium,
		Message:  FallbackMessage,
	}
}

// extractJSON strips a markdown code fence if the model wrapped its reply in
// one, otherwise returns the trimmed raw text.
func extractJSON(raw string) string {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// coerceScore accepts the score however the model rendered it. Anything
// unusable counts as zero.
func coerceScore(v any) int {
	switch n := v.(type) {
	case float64:
		return ClampScore(int(n))
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return ClampScore(int(f))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return ClampScore(int(f))
	default:
		return 0
	}
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ParseResult turns a model reply into a Result. It never fails: a reply that
// cannot be parsed yields the neutral fallback so a flaky model response does
// not fail the whole job. The category is always derived from the score,
// whatever the model claimed.
func ParseResult(raw string) Result {
	var payload map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return fallbackResult()
	}

	score := coerceScore(payload["score"])
	category := CategoryForScore(score)

	message, _ := payload["message"].(string)
	if strings.TrimSpace(message) == "" {
		message = defaultMessages[category]
	}

	// A parsed reply always carries details, empty arrays when the model
	// omitted them. Only the unparsable fallback has none.
	rawDetails, _ := payload["details"].(map[string]any)
	return Result{
		Score:    score,
		Category: category,
		Message:  message,
		Details: &Details{
			MatchedSkills:   stringSlice(rawDetails["matchedSkills"]),
			MissingSkills:   stringSlice(rawDetails["missingSkills"]),
			Recommendations: stringSlice(rawDetails["recommendations"]),
		},
	}
}

// ParseFinderResult turns a model reply into ranked finder matches. Job
// metadata (title, urls) is restored from the submitted postings by id. An
// unparsable reply yields zero matches rather than an error.
func ParseFinderResult(raw string, jobs []FinderJob, limit int) FinderResult {
	text := extractJSON(raw)

	var items []map[string]any
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		var wrapper struct {
			Matches []map[string]any `json:"matches"`
		}
		if err := json.Unmarshal([]byte(text), &wrapper); err != nil || wrapper.Matches == nil {
			return FinderResult{Matches: []FinderMatch{}}
		}
		items = wrapper.Matches
	}

	byID := make(map[string]FinderJob, len(jobs))
	for _, job := range jobs {
		byID[job.ID.String()] = job
	}

	matches := make([]FinderMatch, 0, len(items))
	for _, item := range items {
		jobID := scalarString(item["jobId"])
		if jobID == "" {
			continue
		}

		score := coerceScore(item["score"])
		category := CategoryForScore(score)
		message, _ := item["message"].(string)
		if strings.TrimSpace(message) == "" {
			message = defaultMessages[category]
		}

		match := FinderMatch{
			JobID:    jobID,
			Score:    score,
			Category: category,
			Message:  message,
		}
		if title, ok := item["title"].(string); ok {
			match.Title = title
		}
		if job, ok := byID[jobID]; ok {
			if match.Title == "" {
				match.Title = job.Title
			}
			match.URL = job.URL
			match.ApplyURL = job.ApplyURL
		}
		matches = append(matches, match)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return FinderResult{Matches: matches}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return fmt.Sprint(s)
	default:
		return fmt.Sprint(s)
	}
}
