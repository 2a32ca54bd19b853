package analyses

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"matching-backend/internal/matcher"
	"matching-backend/internal/shared/server/middleware"
	"matching-backend/internal/shared/server/respond"
	"matching-backend/internal/shared/util"
	"matching-backend/internal/usage"
)

// MaxUploadBytes caps CV uploads at 10 MiB.
const MaxUploadBytes = 10 << 20

// Handler exposes the matching endpoints.
type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

// Register attaches analysis routes to the router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/analysis/upload", h.upload)
	rg.POST("/analysis/job-finder", h.jobFinder)
	rg.GET("/analysis/:id", h.get)
	rg.GET("/analysis", h.list)
}

func (h *Handler) upload(c *gin.Context) {
	installID, plan, ok := identity(c)
	if !ok {
		return
	}

	fileName, contentType, document, ok := readUpload(c)
	if !ok {
		return
	}
	anonymizedText := c.PostForm("anonymized_text")
	if len(document) == 0 && strings.TrimSpace(anonymizedText) == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "a CV file or anonymized_text is required", nil)
		return
	}

	jobField := c.PostForm("job")
	if strings.TrimSpace(jobField) == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "job field is required", nil)
		return
	}
	var criteria matcher.JobCriteria
	if err := json.Unmarshal([]byte(jobField), &criteria); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "job field must be valid JSON", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Service.Start(ctx, installID, plan, StartInput{
		FileName:       fileName,
		ContentType:    contentType,
		Document:       document,
		AnonymizedText: anonymizedText,
		Criteria:       criteria,
	})
	if err != nil {
		h.writeStartError(c, err)
		return
	}

	c.Set("jobId", analysis.ID)
	respond.Accepted(c, gin.H{
		"job_id":  analysis.ID,
		"status":  analysis.Status,
		"message": "Analysis started. Poll the status endpoint for the result.",
	})
}

func (h *Handler) jobFinder(c *gin.Context) {
	installID, plan, ok := identity(c)
	if !ok {
		return
	}

	fileName, contentType, document, ok := readUpload(c)
	if !ok {
		return
	}
	anonymizedText := c.PostForm("anonymized_text")
	if len(document) == 0 && strings.TrimSpace(anonymizedText) == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "a CV file or anonymized_text is required", nil)
		return
	}

	jobsField := c.PostForm("jobs")
	var jobs []matcher.FinderJob
	if strings.TrimSpace(jobsField) != "" {
		if err := json.Unmarshal([]byte(jobsField), &jobs); err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_request", "jobs field must be a JSON array", nil)
			return
		}
	}
	if len(jobs) == 0 {
		respond.Error(c, http.StatusBadRequest, "no_jobs", "no job postings provided", nil)
		return
	}

	limit := 0
	if raw := c.PostForm("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_request", "limit must be a number", nil)
			return
		}
		limit = n
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Service.StartFinder(ctx, installID, plan, FinderInput{
		FileName:       fileName,
		ContentType:    contentType,
		Document:       document,
		AnonymizedText: anonymizedText,
		Jobs:           jobs,
		Limit:          limit,
	})
	if err != nil {
		h.writeStartError(c, err)
		return
	}

	c.Set("jobId", analysis.ID)
	respond.Accepted(c, gin.H{
		"job_id":  analysis.ID,
		"status":  analysis.Status,
		"message": "Job search started. Poll the status endpoint for the result.",
	})
}

func (h *Handler) get(c *gin.Context) {
	installID, _, ok := identity(c)
	if !ok {
		return
	}
	jobID := c.Param("id")
	c.Set("jobId", jobID)

	analysis, err := h.Service.Get(c.Request.Context(), jobID, installID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		if errors.Is(err, ErrInvalid) {
			respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal", "unable to load analysis", nil)
		return
	}

	payload := gin.H{
		"job_id":     analysis.ID,
		"status":     analysis.Status,
		"created_at": analysis.CreatedAt,
	}
	switch analysis.Status {
	case StatusCompleted:
		payload["result"] = analysis.Result
		if analysis.CompletedAt != nil {
			payload["completed_at"] = analysis.CompletedAt
		}
	case StatusFailed:
		msg := "analysis failed"
		if analysis.ErrorMessage != nil && *analysis.ErrorMessage != "" {
			msg = *analysis.ErrorMessage
		}
		payload["error"] = msg
	}

	respond.OK(c, payload)
}

func (h *Handler) list(c *gin.Context) {
	installID, _, ok := identity(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Service.List(c.Request.Context(), installID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "unable to list analyses", nil)
		return
	}

	summaries := make([]gin.H, 0, len(items))
	for _, a := range items {
		summaries = append(summaries, gin.H{
			"job_id":     a.ID,
			"mode":       a.Mode,
			"status":     a.Status,
			"created_at": a.CreatedAt,
		})
	}
	respond.OK(c, gin.H{"analyses": summaries})
}

func (h *Handler) writeStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusTooManyRequests, "quota_exceeded", "monthly analysis quota exhausted", nil)
	case errors.Is(err, ErrNoJobs):
		respond.Error(c, http.StatusBadRequest, "no_jobs", "no job postings provided", nil)
	case errors.Is(err, ErrInvalid):
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal", "unable to start analysis", nil)
	}
}

func identity(c *gin.Context) (installID, plan string, ok bool) {
	installID = middleware.InstallIDFromContext(c)
	if installID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing install identity", nil)
		return "", "", false
	}
	if lic, found := middleware.LicenseFromContext(c); found {
		plan = lic.PlanName
	}
	return installID, plan, true
}

// readUpload pulls the optional multipart file, enforcing the size cap. A
// missing file is not an error here, callers may accept anonymized_text
// instead. contentType is the part's declared media type, when present.
func readUpload(c *gin.Context) (fileName, contentType string, data []byte, ok bool) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", "", nil, true
		}
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid multipart form", nil)
		return "", "", nil, false
	}
	if header.Size > MaxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 10 MiB limit", nil)
		return "", "", nil, false
	}

	file, err := header.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unable to read uploaded file", nil)
		return "", "", nil, false
	}
	defer file.Close()

	data, err = io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unable to read uploaded file", nil)
		return "", "", nil, false
	}
	if len(data) > MaxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 10 MiB limit", nil)
		return "", "", nil, false
	}

	fileName, err = util.SanitizeFileName(header.Filename)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid file name", nil)
		return "", "", nil, false
	}
	return fileName, header.Header.Get("Content-Type"), data, true
}
