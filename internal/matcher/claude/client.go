package claude

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"matching-backend/internal/matcher"
)

const maxTokens = 1024

// Client scores CVs against job postings via the Anthropic API.
type Client struct {
	client anthropic.Client
	model  string
}

var _ matcher.Scorer = (*Client)(nil)

func NewClient(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Score evaluates one redacted CV text against one job posting.
func (c *Client) Score(ctx context.Context, cvText string, job matcher.JobCriteria) (matcher.Result, error) {
	prompt := matcher.BuildPrompt(cvText, job, false)
	raw, err := c.complete(ctx, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	})
	if err != nil {
		return matcher.Result{}, err
	}
	return matcher.ParseResult(raw), nil
}

// ScoreImage evaluates a redacted CV image against one job posting.
func (c *Client) ScoreImage(ctx context.Context, image []byte, mimeType string, job matcher.JobCriteria) (matcher.Result, error) {
	prompt := matcher.BuildPrompt("", job, true)
	encoded := base64.StdEncoding.EncodeToString(image)
	raw, err := c.complete(ctx, []anthropic.MessageParam{
		anthropic.NewUserMessage(
			anthropic.NewImageBlockBase64(mimeType, encoded),
			anthropic.NewTextBlock(prompt),
		),
	})
	if err != nil {
		return matcher.Result{}, err
	}
	return matcher.ParseResult(raw), nil
}

// ScoreAll evaluates one redacted CV text against a batch of postings and
// returns the ranked matches.
func (c *Client) ScoreAll(ctx context.Context, cvText string, jobs []matcher.FinderJob, limit int) (matcher.FinderResult, error) {
	prompt := matcher.BuildFinderPrompt(cvText, jobs, limit)
	raw, err := c.complete(ctx, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	})
	if err != nil {
		return matcher.FinderResult{}, err
	}
	return matcher.ParseFinderResult(raw, jobs, limit), nil
}

func (c *Client) complete(ctx context.Context, messages []anthropic.MessageParam) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		System: []anthropic.TextBlockParam{
			{Text: matcher.SystemPrompt},
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("claude response contained no text")
	}
	return b.String(), nil
}
