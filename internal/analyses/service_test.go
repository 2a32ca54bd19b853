package analyses

import (
	"context"
	"errors"
	"strings"
	"testing"

	"matching-backend/internal/anonymizer"
	"matching-backend/internal/matcher"
	"matching-backend/internal/queue"
	"matching-backend/internal/usage"
)

type fakeScorer struct {
	result       matcher.Result
	finderResult matcher.FinderResult
	err          error
	scoreCalls   int
	imageCalls   int
	finderCalls  int
}

func (f *fakeScorer) Score(_ context.Context, _ string, _ matcher.JobCriteria) (matcher.Result, error) {
	f.scoreCalls++
	return f.result, f.err
}

func (f *fakeScorer) ScoreImage(_ context.Context, _ []byte, _ string, _ matcher.JobCriteria) (matcher.Result, error) {
	f.imageCalls++
	return f.result, f.err
}

func (f *fakeScorer) ScoreAll(_ context.Context, _ string, _ []matcher.FinderJob, _ int) (matcher.FinderResult, error) {
	f.finderCalls++
	return f.finderResult, f.err
}

type fakeAnonymizer struct {
	content anonymizer.Content
	err     error
	calls   int
}

func (f *fakeAnonymizer) Anonymize(_ context.Context, _ string, _ []byte) (anonymizer.Content, error) {
	f.calls++
	return f.content, f.err
}

type captureQueue struct {
	messages []queue.Message
	err      error
}

func (q *captureQueue) Send(_ context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

func textContent(text string) anonymizer.Content {
	return anonymizer.Content{Type: anonymizer.TypeText, Text: text, OriginalType: "pdf"}
}

func goodResult() matcher.Result {
	return matcher.Result{Score: 82, Category: matcher.CategoryHigh, Message: "Strong fit."}
}

func testCriteria() matcher.JobCriteria {
	return matcher.JobCriteria{Title: "Backend Engineer", Requirements: []string{"Go"}}
}

func newTestService(scorer matcher.Scorer, anon Anonymizer) (*Service, *captureQueue) {
	q := &captureQueue{}
	return &Service{
		Repo:       NewMemoryRepo(),
		Usage:      usage.NewService(),
		Anonymizer: anon,
		Scorer:     scorer,
		Queue:      q,
	}, q
}

func startJob(t *testing.T, s *Service) Analysis {
	t.Helper()
	analysis, err := s.Start(context.Background(), "1001", "ai_addon", StartInput{
		FileName: "cv.pdf",
		Document: []byte("%PDF-1.4 fake"),
		Criteria: testCriteria(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return analysis
}

func TestStartCreatesPendingAndEnqueues(t *testing.T) {
	s, q := newTestService(&fakeScorer{result: goodResult()}, &fakeAnonymizer{content: textContent("cv text")})

	analysis := startJob(t, s)

	if analysis.Status != StatusPending {
		t.Errorf("status = %s, want pending", analysis.Status)
	}
	if len(q.messages) != 1 || q.messages[0].JobID != analysis.ID {
		t.Fatalf("expected one queued message for job, got %+v", q.messages)
	}

	stored, err := s.Get(context.Background(), analysis.ID, "1001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != StatusPending {
		t.Errorf("stored status = %s", stored.Status)
	}
}

func TestStartRecordsDeclaredMediaType(t *testing.T) {
	s, _ := newTestService(&fakeScorer{result: goodResult()}, &fakeAnonymizer{content: textContent("cv")})

	analysis, err := s.Start(context.Background(), "1001", "ai_addon", StartInput{
		FileName:    "cv.pdf",
		ContentType: "application/pdf; charset=binary",
		Document:    []byte("%PDF-1.4 fake"),
		Criteria:    testCriteria(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if analysis.FileType != "application/pdf" {
		t.Errorf("fileType = %q, want declared media type", analysis.FileType)
	}

	analysis, err = s.Start(context.Background(), "1001", "ai_addon", StartInput{
		FileName: "cv.DOCX",
		Document: []byte("doc"),
		Criteria: testCriteria(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if analysis.FileType != "docx" {
		t.Errorf("fileType = %q, want extension fallback", analysis.FileType)
	}
}

func TestStartValidation(t *testing.T) {
	s, _ := newTestService(&fakeScorer{result: goodResult()}, &fakeAnonymizer{content: textContent("cv")})

	_, err := s.Start(context.Background(), "1001", "ai_addon", StartInput{Criteria: testCriteria()})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("missing document: err = %v", err)
	}

	_, err = s.Start(context.Background(), "1001", "ai_addon", StartInput{Document: []byte("x")})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("empty criteria: err = %v", err)
	}

	_, err = s.Start(context.Background(), "1001", "ai_addon", StartInput{
		Document: []byte("x"),
		Criteria: matcher.JobCriteria{Title: "DBA", Description: "runs databases"},
	})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("criteria without requirements: err = %v", err)
	}
	if jobs, listErr := s.List(context.Background(), "1001", 10, 0); listErr != nil || len(jobs) != 0 {
		t.Fatalf("expected no job rows after rejections, got %d (%v)", len(jobs), listErr)
	}
}

func TestStartRejectedWhenQuotaExhausted(t *testing.T) {
	s, q := newTestService(&fakeScorer{result: goodResult()}, &fakeAnonymizer{content: textContent("cv")})

	for i := 0; i < usage.LimitForPlan("ai_addon"); i++ {
		if _, err := s.Usage.Increment(context.Background(), "1001", "ai_addon"); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}

	_, err := s.Start(context.Background(), "1001", "ai_addon", StartInput{
		Document: []byte("x"),
		Criteria: testCriteria(),
	})
	if !errors.Is(err, usage.ErrLimitReached) {
		t.Fatalf("err = %v, want ErrLimitReached", err)
	}
	if len(q.messages) != 0 {
		t.Error("rejected submission must not enqueue")
	}
}

func TestProcessAnalysisCompletesAndConsumesQuota(t *testing.T) {
	scorer := &fakeScorer{result: goodResult()}
	s, _ := newTestService(scorer, &fakeAnonymizer{content: textContent("cv text")})

	analysis := startJob(t, s)
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}

	stored, err := s.Get(context.Background(), analysis.ID, "1001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if stored.CompletedAt == nil || stored.StartedAt == nil {
		t.Error("expected timestamps on completed job")
	}
	if score, ok := stored.Result["score"].(float64); !ok || int(score) != 82 {
		t.Errorf("result score = %v", stored.Result["score"])
	}
	if scorer.scoreCalls != 1 {
		t.Errorf("score calls = %d", scorer.scoreCalls)
	}

	u, err := s.Usage.Get(context.Background(), "1001", "ai_addon")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if u.Used != 1 {
		t.Errorf("used = %d, want 1 after completion", u.Used)
	}
}

func TestProcessAnalysisIsIdempotent(t *testing.T) {
	s, _ := newTestService(&fakeScorer{result: goodResult()}, &fakeAnonymizer{content: textContent("cv")})

	analysis := startJob(t, s)
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("first ProcessAnalysis: %v", err)
	}
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("second ProcessAnalysis: %v", err)
	}

	u, _ := s.Usage.Get(context.Background(), "1001", "ai_addon")
	if u.Used != 1 {
		t.Errorf("used = %d, redelivery must not double-count", u.Used)
	}
}

func TestProcessAnalysisAnonymizerFailure(t *testing.T) {
	anon := &fakeAnonymizer{err: &anonymizer.Error{StatusCode: 500, Message: "presidio down"}}
	s, _ := newTestService(&fakeScorer{result: goodResult()}, anon)

	analysis := startJob(t, s)
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err == nil {
		t.Fatal("expected processing error")
	}

	stored, _ := s.Get(context.Background(), analysis.ID, "1001")
	if stored.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if stored.ErrorMessage == nil || !strings.Contains(*stored.ErrorMessage, "anonymize") {
		t.Errorf("error message = %v", stored.ErrorMessage)
	}

	u, _ := s.Usage.Get(context.Background(), "1001", "ai_addon")
	if u.Used != 0 {
		t.Errorf("used = %d, failed job must not consume quota", u.Used)
	}
}

func TestProcessAnalysisEmptyTextFails(t *testing.T) {
	s, _ := newTestService(&fakeScorer{result: goodResult()}, &fakeAnonymizer{content: textContent("   ")})

	analysis := startJob(t, s)
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err == nil {
		t.Fatal("expected processing error")
	}

	stored, _ := s.Get(context.Background(), analysis.ID, "1001")
	if stored.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
}

func TestProcessAnalysisScoresImages(t *testing.T) {
	scorer := &fakeScorer{result: goodResult()}
	anon := &fakeAnonymizer{content: anonymizer.Content{
		Type:      anonymizer.TypeImage,
		Image:     []byte{0x89, 'P', 'N', 'G'},
		ImageMime: "image/png",
	}}
	s, _ := newTestService(scorer, anon)

	analysis := startJob(t, s)
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}

	if scorer.imageCalls != 1 || scorer.scoreCalls != 0 {
		t.Errorf("image calls = %d, score calls = %d", scorer.imageCalls, scorer.scoreCalls)
	}
}

func TestPreAnonymizedTextSkipsAnonymizer(t *testing.T) {
	scorer := &fakeScorer{result: goodResult()}
	s, _ := newTestService(scorer, nil)

	analysis, err := s.Start(context.Background(), "1001", "ai_addon", StartInput{
		AnonymizedText: "already redacted cv",
		Criteria:       testCriteria(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}

	stored, _ := s.Get(context.Background(), analysis.ID, "1001")
	if stored.Status != StatusCompleted {
		t.Fatalf("status = %s", stored.Status)
	}
}

func TestFinderFlow(t *testing.T) {
	scorer := &fakeScorer{finderResult: matcher.FinderResult{Matches: []matcher.FinderMatch{
		{JobID: "101", Title: "Backend Engineer", Score: 88, Category: matcher.CategoryHigh, Message: "Great fit."},
	}}}
	s, _ := newTestService(scorer, &fakeAnonymizer{content: textContent("cv text")})

	analysis, err := s.StartFinder(context.Background(), "1001", "ai_addon", FinderInput{
		Document: []byte("%PDF"),
		Jobs:     []matcher.FinderJob{{ID: "101", JobCriteria: matcher.JobCriteria{Title: "Backend Engineer"}}},
	})
	if err != nil {
		t.Fatalf("StartFinder: %v", err)
	}
	if analysis.Submission.Limit != DefaultFinderLimit {
		t.Errorf("limit = %d, want default %d", analysis.Submission.Limit, DefaultFinderLimit)
	}

	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}
	stored, _ := s.Get(context.Background(), analysis.ID, "1001")
	if stored.Status != StatusCompleted {
		t.Fatalf("status = %s", stored.Status)
	}
	matches, ok := stored.Result["matches"].([]any)
	if !ok || len(matches) != 1 {
		t.Fatalf("matches = %v", stored.Result["matches"])
	}

	u, _ := s.Usage.Get(context.Background(), "1001", "ai_addon")
	if u.Used != 1 {
		t.Errorf("used = %d, finder batch counts as one analysis", u.Used)
	}
}

func TestStartFinderRequiresJobs(t *testing.T) {
	s, _ := newTestService(&fakeScorer{}, &fakeAnonymizer{content: textContent("cv")})

	_, err := s.StartFinder(context.Background(), "1001", "ai_addon", FinderInput{
		Document: []byte("x"),
	})
	if !errors.Is(err, ErrNoJobs) {
		t.Fatalf("err = %v, want ErrNoJobs", err)
	}
}

func TestStartFinderCapsLimit(t *testing.T) {
	s, _ := newTestService(&fakeScorer{}, &fakeAnonymizer{content: textContent("cv")})

	analysis, err := s.StartFinder(context.Background(), "1001", "ai_addon", FinderInput{
		Document: []byte("x"),
		Jobs:     []matcher.FinderJob{{ID: "1", JobCriteria: matcher.JobCriteria{Title: "X"}}},
		Limit:    50,
	})
	if err != nil {
		t.Fatalf("StartFinder: %v", err)
	}
	if analysis.Submission.Limit != MaxFinderLimit {
		t.Errorf("limit = %d, want capped %d", analysis.Submission.Limit, MaxFinderLimit)
	}
}

func TestFinderRejectsImageContent(t *testing.T) {
	anon := &fakeAnonymizer{content: anonymizer.Content{Type: anonymizer.TypeImage, Image: []byte{1}, ImageMime: "image/png"}}
	s, _ := newTestService(&fakeScorer{}, anon)

	analysis, err := s.StartFinder(context.Background(), "1001", "ai_addon", FinderInput{
		Document: []byte("x"),
		Jobs:     []matcher.FinderJob{{ID: "1", JobCriteria: matcher.JobCriteria{Title: "X"}}},
	})
	if err != nil {
		t.Fatalf("StartFinder: %v", err)
	}
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err == nil {
		t.Fatal("expected failure for scanned CV in finder mode")
	}
	stored, _ := s.Get(context.Background(), analysis.ID, "1001")
	if stored.Status != StatusFailed {
		t.Fatalf("status = %s", stored.Status)
	}
}

func TestGetScopedToInstall(t *testing.T) {
	s, _ := newTestService(&fakeScorer{result: goodResult()}, &fakeAnonymizer{content: textContent("cv")})

	analysis := startJob(t, s)

	if _, err := s.Get(context.Background(), analysis.ID, "2002"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign install should see not found, got %v", err)
	}
}

func TestDispatchFallsBackWhenQueueFails(t *testing.T) {
	s, q := newTestService(&fakeScorer{result: goodResult()}, &fakeAnonymizer{content: textContent("cv")})
	q.err = errors.New("sqs unavailable")

	analysis := startJob(t, s)

	// The fallback goroutine races the assertion; process synchronously to
	// confirm the job is still completable.
	if err := s.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("ProcessAnalysis: %v", err)
	}
	stored, _ := s.Get(context.Background(), analysis.ID, "1001")
	if stored.Status != StatusCompleted {
		t.Fatalf("status = %s", stored.Status)
	}
}

func TestSanitizeError(t *testing.T) {
	err := errors.New("line one\nline two\r\n" + strings.Repeat("x", 600))
	msg := sanitizeError(err)
	if strings.ContainsAny(msg, "\n\r") {
		t.Error("sanitized message contains newlines")
	}
	if len(msg) > 500 {
		t.Errorf("sanitized message length = %d", len(msg))
	}
}
