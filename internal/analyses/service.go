package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"matching-backend/internal/anonymizer"
	"matching-backend/internal/audit"
	"matching-backend/internal/matcher"
	"matching-backend/internal/queue"
	"matching-backend/internal/shared/metrics"
	"matching-backend/internal/shared/telemetry"
	"matching-backend/internal/usage"
)

const (
	DefaultFinderLimit = 5
	MaxFinderLimit     = 10
)

// Anonymizer redacts PII from an uploaded document.
type Anonymizer interface {
	Anonymize(ctx context.Context, fileName string, data []byte) (anonymizer.Content, error)
}

// Service contains the matching pipeline business logic.
type Service struct {
	Repo       Repo
	Usage      *usage.Service
	Anonymizer Anonymizer
	Scorer     matcher.Scorer
	Queue      queue.Client
	Audit      audit.Recorder
}

// StartInput is a single-job match submission. ContentType is the upload's
// declared media type, when the client sent one.
type StartInput struct {
	FileName       string
	ContentType    string
	Document       []byte
	AnonymizedText string
	Criteria       matcher.JobCriteria
}

// FinderInput is a multi-job ranking submission.
type FinderInput struct {
	FileName       string
	ContentType    string
	Document       []byte
	AnonymizedText string
	Jobs           []matcher.FinderJob
	Limit          int
}

// Start accepts a match job. The quota is checked up front but only consumed
// when the job completes: a rejected or failed job never costs quota.
func (s *Service) Start(ctx context.Context, installID, plan string, in StartInput) (Analysis, error) {
	if installID == "" {
		return Analysis{}, fmt.Errorf("%w: install id is required", ErrInvalid)
	}
	if len(in.Document) == 0 && strings.TrimSpace(in.AnonymizedText) == "" {
		return Analysis{}, fmt.Errorf("%w: a CV file or anonymized text is required", ErrInvalid)
	}
	if err := in.Criteria.Validate(); err != nil {
		return Analysis{}, fmt.Errorf("%w: %s", ErrInvalid, err)
	}

	analysis := Analysis{
		ID:        uuid.NewString(),
		InstallID: installID,
		Plan:      plan,
		Mode:      ModeMatch,
		Status:    StatusPending,
		FileType:  fileType(in.ContentType, in.FileName),
		Submission: Submission{
			Document:       in.Document,
			FileName:       in.FileName,
			AnonymizedText: in.AnonymizedText,
			Criteria:       &in.Criteria,
		},
		CreatedAt: time.Now().UTC(),
	}
	return s.accept(ctx, analysis)
}

// StartFinder accepts a job-finder submission. The whole batch counts as one
// analysis against the quota.
func (s *Service) StartFinder(ctx context.Context, installID, plan string, in FinderInput) (Analysis, error) {
	if installID == "" {
		return Analysis{}, fmt.Errorf("%w: install id is required", ErrInvalid)
	}
	if len(in.Document) == 0 && strings.TrimSpace(in.AnonymizedText) == "" {
		return Analysis{}, fmt.Errorf("%w: a CV file or anonymized text is required", ErrInvalid)
	}
	if len(in.Jobs) == 0 {
		return Analysis{}, ErrNoJobs
	}

	limit := in.Limit
	if limit <= 0 {
		limit = DefaultFinderLimit
	}
	if limit > MaxFinderLimit {
		limit = MaxFinderLimit
	}

	analysis := Analysis{
		ID:        uuid.NewString(),
		InstallID: installID,
		Plan:      plan,
		Mode:      ModeFinder,
		Status:    StatusPending,
		FileType:  fileType(in.ContentType, in.FileName),
		Submission: Submission{
			Document:       in.Document,
			FileName:       in.FileName,
			AnonymizedText: in.AnonymizedText,
			Jobs:           in.Jobs,
			Limit:          limit,
		},
		CreatedAt: time.Now().UTC(),
	}
	return s.accept(ctx, analysis)
}

func (s *Service) accept(ctx context.Context, analysis Analysis) (Analysis, error) {
	if s.Usage != nil {
		if _, err := s.Usage.CheckAndReserve(ctx, analysis.InstallID, analysis.Plan); err != nil {
			if errors.Is(err, usage.ErrLimitReached) {
				metrics.IncQuotaRejected()
			}
			return Analysis{}, err
		}
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	s.dispatch(ctx, analysis.ID)
	return analysis, nil
}

// dispatch hands the job to the worker queue when one is configured,
// otherwise processes it on a detached goroutine.
func (s *Service) dispatch(ctx context.Context, jobID string) {
	if s.Queue != nil {
		msg := queue.Message{
			JobID:      jobID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		err := s.Queue.Send(ctx, msg)
		if err == nil {
			return
		}
		telemetry.Warn("analysis.enqueue_failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"job_id":     jobID,
			"error":      err.Error(),
		})
	}
	go s.processAsync(backgroundWithRequestID(ctx), jobID)
}

// Get returns a job scoped to its install.
func (s *Service) Get(ctx context.Context, jobID, installID string) (Analysis, error) {
	if jobID == "" || installID == "" {
		return Analysis{}, fmt.Errorf("%w: job id and install id are required", ErrInvalid)
	}
	return s.Repo.GetByID(ctx, jobID, installID)
}

// List returns an install's jobs newest-first.
func (s *Service) List(ctx context.Context, installID string, limit, offset int) ([]Analysis, error) {
	if installID == "" {
		return nil, fmt.Errorf("%w: install id is required", ErrInvalid)
	}
	return s.Repo.ListByInstall(ctx, installID, limit, offset)
}

func (s *Service) processAsync(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failJob(ctx, jobID, "", fmt.Errorf("panic: %v", r), nil)
		}
	}()
	_ = s.ProcessAnalysis(ctx, jobID)
}

// ProcessAnalysis runs the anonymize/score/persist pipeline for one job. It
// is idempotent: a job that already reached a terminal status is left alone,
// so a redelivered queue message cannot double-process.
func (s *Service) ProcessAnalysis(ctx context.Context, jobID string) error {
	analysis, err := s.Repo.GetForProcessing(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		s.failJob(ctx, jobID, "", fmt.Errorf("job lookup: %w", err), nil)
		return err
	}
	if analysis.Terminal() {
		return nil
	}

	startedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, jobID, StatusProcessing, nil, nil, &startedAt, nil); err != nil {
		if errors.Is(err, ErrTerminal) {
			return nil
		}
		s.failJob(ctx, jobID, analysis.InstallID, fmt.Errorf("set processing: %w", err), &startedAt)
		return err
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"install_id":        analysis.InstallID,
		"job_id":            analysis.ID,
		"mode":              analysis.Mode,
		"status":            StatusProcessing,
		"status_transition": "pending->processing",
	})

	content, err := s.resolveContent(ctx, analysis)
	if err != nil {
		s.failJob(ctx, jobID, analysis.InstallID, err, &startedAt)
		return err
	}

	result, err := s.score(ctx, analysis, content)
	if err != nil {
		s.failJob(ctx, jobID, analysis.InstallID, err, &startedAt)
		return err
	}

	completedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, jobID, StatusCompleted, result, nil, nil, &completedAt); err != nil {
		if errors.Is(err, ErrTerminal) {
			return nil
		}
		s.failJob(ctx, jobID, analysis.InstallID, fmt.Errorf("set result: %w", err), &startedAt)
		return err
	}

	if s.Usage != nil {
		if _, err := s.Usage.Increment(ctx, analysis.InstallID, analysis.Plan); err != nil {
			telemetry.Warn("analysis.usage_increment_failed", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"install_id": analysis.InstallID,
				"job_id":     analysis.ID,
				"error":      err.Error(),
			})
		}
	}
	if s.Audit != nil {
		s.Audit.Record(ctx, analysis.InstallID, "analysis.completed", map[string]any{
			"jobId": analysis.ID,
			"mode":  analysis.Mode,
		})
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"install_id":        analysis.InstallID,
		"job_id":            analysis.ID,
		"mode":              analysis.Mode,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return nil
}

// resolveContent returns the redacted content to score. Pre-anonymized text
// skips the anonymizer entirely.
func (s *Service) resolveContent(ctx context.Context, analysis Analysis) (anonymizer.Content, error) {
	if text := strings.TrimSpace(analysis.Submission.AnonymizedText); text != "" {
		return anonymizer.Content{Type: anonymizer.TypeText, Text: text}, nil
	}
	if s.Anonymizer == nil {
		return anonymizer.Content{}, errors.New("anonymizer not configured")
	}

	content, err := s.Anonymizer.Anonymize(ctx, analysis.Submission.FileName, analysis.Submission.Document)
	if err != nil {
		return anonymizer.Content{}, fmt.Errorf("anonymize: %w", err)
	}
	if !content.IsImage() && strings.TrimSpace(content.Text) == "" {
		return anonymizer.Content{}, errors.New("document contained no extractable text")
	}
	return content, nil
}

func (s *Service) score(ctx context.Context, analysis Analysis, content anonymizer.Content) (map[string]any, error) {
	if s.Scorer == nil {
		return nil, errors.New("scorer not configured")
	}

	switch analysis.Mode {
	case ModeFinder:
		if content.IsImage() {
			return nil, errors.New("scanned documents are not supported for the job finder")
		}
		res, err := s.Scorer.ScoreAll(ctx, content.Text, analysis.Submission.Jobs, analysis.Submission.Limit)
		if err != nil {
			return nil, fmt.Errorf("score jobs: %w", err)
		}
		return toResultMap(res)
	default:
		var criteria matcher.JobCriteria
		if analysis.Submission.Criteria != nil {
			criteria = *analysis.Submission.Criteria
		}
		var res matcher.Result
		var err error
		if content.IsImage() {
			res, err = s.Scorer.ScoreImage(ctx, content.Image, content.ImageMime, criteria)
		} else {
			res, err = s.Scorer.Score(ctx, content.Text, criteria)
		}
		if err != nil {
			return nil, fmt.Errorf("score cv: %w", err)
		}
		return toResultMap(res)
	}
}

// failJob marks a job failed. The write uses a fresh context so a cancelled
// request cannot leave the job stuck in processing.
func (s *Service) failJob(ctx context.Context, jobID, installID string, err error, startedAt *time.Time) {
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.UpdateStatus(context.Background(), jobID, StatusFailed, nil, &msg, startedAt, &completedAt); updateErr != nil {
		if errors.Is(updateErr, ErrTerminal) {
			return
		}
		telemetry.Error("analysis.fail_write", map[string]any{
			"job_id": jobID,
			"error":  updateErr.Error(),
			"cause":  msg,
		})
	}
	if s.Audit != nil {
		s.Audit.Record(context.Background(), installID, "analysis.failed", map[string]any{
			"jobId": jobID,
			"error": msg,
		})
	}
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"install_id":        installID,
		"job_id":            jobID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error":             msg,
	})
}

func toResultMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return out, nil
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

// sanitizeError flattens an error into a single log- and API-safe line.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

// fileType prefers the upload's declared media type, falling back to the
// lowercased filename extension.
func fileType(contentType, fileName string) string {
	if ct := strings.TrimSpace(contentType); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
		return strings.ToLower(ct)
	}
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 || idx == len(fileName)-1 {
		return ""
	}
	return strings.ToLower(fileName[idx+1:])
}
