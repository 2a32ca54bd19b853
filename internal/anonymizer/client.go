package anonymizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Error describes a failed anonymization call. StatusCode is zero for
// transport-level failures.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("anonymizer: status %d: %s", e.StatusCode, e.Message)
	}
	return "anonymizer: " + e.Message
}

// Client calls the PII anonymization service.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(baseURL, apiKey, language string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		language:   language,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type jsonResponse struct {
	Type           string   `json:"type"`
	OriginalType   string   `json:"original_type"`
	AnonymizedText string   `json:"anonymized_text"`
	PIIFound       []string `json:"pii_found"`
}

// Anonymize sends a document for PII redaction. The service decides whether
// the document yields text or a redacted image; both shapes come back as a
// Content. Failures are never retried here, the caller fails the job.
func (c *Client) Anonymize(ctx context.Context, fileName string, data []byte) (Content, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return Content{}, &Error{Message: "build request: " + err.Error()}
	}
	if _, err := part.Write(data); err != nil {
		return Content{}, &Error{Message: "build request: " + err.Error()}
	}
	_ = writer.WriteField("output_format", "auto")
	if c.language != "" {
		_ = writer.WriteField("language", c.language)
	}
	if err := writer.Close(); err != nil {
		return Content{}, &Error{Message: "build request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/anonymize", &body)
	if err != nil {
		return Content{}, &Error{Message: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Content{}, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Content{}, &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return Content{}, &Error{Message: "read response: " + err.Error()}
		}
		var parsed jsonResponse
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return Content{}, &Error{Message: "parse response: " + err.Error()}
		}
		content := Content{
			Type:         parsed.Type,
			OriginalType: parsed.OriginalType,
			Text:         parsed.AnonymizedText,
			PIIFound:     parsed.PIIFound,
		}
		if content.Type == "" {
			content.Type = TypeText
		}
		return content, nil

	case strings.HasPrefix(contentType, "image/"), strings.HasPrefix(contentType, "application/pdf"):
		payload, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
		if err != nil {
			return Content{}, &Error{Message: "read response: " + err.Error()}
		}
		return Content{
			Type:         TypeImage,
			OriginalType: resp.Header.Get("X-Original-Type"),
			Image:        payload,
			ImageMime:    contentType,
		}, nil

	default:
		return Content{}, &Error{StatusCode: resp.StatusCode, Message: "unexpected content type " + contentType}
	}
}
