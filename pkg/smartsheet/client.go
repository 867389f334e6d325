package smartsheet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the public API endpoint
const DefaultBaseURL = "https://api.smartsheet.com/2.0"

// DefaultMaxDownloadBytes caps attachment downloads
const DefaultMaxDownloadBytes = 25 << 20

// Config configures a Client
type Config struct {
	BaseURL          string
	AccessToken      string
	Timeout          time.Duration
	MaxDownloadBytes int64
}

// Client talks to the spreadsheet API
type Client struct {
	baseURL     string
	api         *http.Client
	download    *http.Client
	maxDownload int64
	logger      logrus.FieldLogger
}

// NewClient creates a client. API calls carry the access token; downloads
// go to pre-signed URLs and do not.
func NewClient(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("smartsheet access token is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxDownload := cfg.MaxDownloadBytes
	if maxDownload <= 0 {
		maxDownload = DefaultMaxDownloadBytes
	}

	transport := otelhttp.NewTransport(http.DefaultTransport)
	api := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"}),
			Base:   transport,
		},
	}

	return &Client{
		baseURL:     baseURL,
		api:         api,
		download:    &http.Client{Timeout: timeout, Transport: transport},
		maxDownload: maxDownload,
		logger:      logger,
	}, nil
}

// GetSheet fetches a sheet with all columns and rows. Rows carry their
// attachment metadata.
func (c *Client) GetSheet(ctx context.Context, sheetID string) (*Sheet, error) {
	var sheet Sheet
	if err := c.get(ctx, "/sheets/"+url.PathEscape(sheetID)+"?include=attachments", &sheet); err != nil {
		return nil, fmt.Errorf("failed to get sheet %s: %w", sheetID, err)
	}
	c.logger.WithFields(logrus.Fields{
		"sheet_id": sheetID,
		"columns":  len(sheet.Columns),
		"rows":     len(sheet.Rows),
	}).Debug("fetched sheet")
	return &sheet, nil
}

// ListRowAttachments lists the attachments of one row
func (c *Client) ListRowAttachments(ctx context.Context, sheetID string, rowID int64) ([]Attachment, error) {
	var page struct {
		Data []Attachment `json:"data"`
	}
	path := fmt.Sprintf("/sheets/%s/rows/%d/attachments", url.PathEscape(sheetID), rowID)
	if err := c.get(ctx, path, &page); err != nil {
		return nil, fmt.Errorf("failed to list attachments for row %d: %w", rowID, err)
	}
	return page.Data, nil
}

// GetAttachment fetches attachment metadata including a temporary download URL
func (c *Client) GetAttachment(ctx context.Context, sheetID string, attachmentID int64) (*Attachment, error) {
	var a Attachment
	path := fmt.Sprintf("/sheets/%s/attachments/%d", url.PathEscape(sheetID), attachmentID)
	if err := c.get(ctx, path, &a); err != nil {
		return nil, fmt.Errorf("failed to get attachment %d: %w", attachmentID, err)
	}
	return &a, nil
}

// Download fetches the content behind a download URL
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read attachment: %w", err)
	}
	if int64(len(data)) > c.maxDownload {
		return nil, "", fmt.Errorf("attachment exceeds %d bytes", c.maxDownload)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
