package license

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Install mirrors the licensing API's install record.
type Install struct {
	ID        json.Number `json:"id"`
	PlanID    json.Number `json:"plan_id"`
	LicenseID json.Number `json:"license_id"`
	SecretKey string      `json:"secret_key"`
	URL       string      `json:"url"`
}

// Plan mirrors the licensing API's plan record.
type Plan struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

// Client talks to the licensing backend with developer-scope credentials.
type Client struct {
	baseURL    string
	devID      string
	productID  string
	secretKey  string
	httpClient *http.Client
}

// NewClient constructs a licensing API client.
func NewClient(baseURL, devID, productID, secretKey string) (*Client, error) {
	if strings.TrimSpace(devID) == "" || strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("LICENSING_DEV_ID and LICENSING_PRODUCT_ID are required")
	}
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("LICENSING_SECRET_KEY is required")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		devID:      devID,
		productID:  productID,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// GetInstall fetches install details, including the install secret key.
func (c *Client) GetInstall(ctx context.Context, installID string) (Install, error) {
	var install Install
	path := fmt.Sprintf("/developers/%s/plugins/%s/installs/%s.json", c.devID, c.productID, installID)
	if err := c.getJSON(ctx, path, &install); err != nil {
		return Install{}, err
	}
	return install, nil
}

// GetPlan fetches plan details.
func (c *Client) GetPlan(ctx context.Context, planID string) (Plan, error) {
	var plan Plan
	path := fmt.Sprintf("/developers/%s/plugins/%s/plans/%s.json", c.devID, c.productID, planID)
	if err := c.getJSON(ctx, path, &plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.devID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("licensing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("licensing response read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("licensing api status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("licensing response parse: %w", err)
	}
	return nil
}
