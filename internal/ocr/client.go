// Package ocr adapts the external OCR.space text-extraction service.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/extract"
)

// TextSource yields the plain text of a document file. Implemented by Client;
// tests substitute a stub.
type TextSource interface {
	Text(ctx context.Context, path string) (string, error)
}

// Client calls the OCR.space parse endpoint for scanned documents. With an
// empty API key it falls back to local extraction, which handles
// embedded-text PDFs and DOCX but not scans.
type Client struct {
	endpoint  string
	apiKey    string
	http      *http.Client
	extractor *extract.Extractor
	logger    *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient returns a Client for the given endpoint and API key.
func NewClient(endpoint, apiKey string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:  endpoint,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: timeout},
		extractor: extract.NewExtractor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ocrResponse is the shape of the OCR.space parse response.
type ocrResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// Text returns the plain text of the document at path. The external call is
// used only when an API key is configured; otherwise local extraction runs.
// Failures wrap caseerr.ErrParse.
func (c *Client) Text(ctx context.Context, path string) (string, error) {
	if c.apiKey == "" {
		text, err := c.extractor.Extract(path)
		if err != nil {
			return "", fmt.Errorf("%w: local extraction: %v", caseerr.ErrParse, err)
		}
		return text, nil
	}
	text, err := c.remoteText(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", caseerr.ErrParse, err)
	}
	return text, nil
}

func (c *Client) remoteText(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	_ = mw.WriteField("apikey", c.apiKey)
	_ = mw.WriteField("OCREngine", "2")
	_ = mw.WriteField("language", "eng")
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, string(b))
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if out.IsErroredOnProcessing {
		return "", fmt.Errorf("ocr processing error: %v", out.ErrorMessage)
	}
	if len(out.ParsedResults) == 0 {
		return "", fmt.Errorf("ocr returned no results")
	}
	var buf bytes.Buffer
	for i, r := range out.ParsedResults {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(r.ParsedText)
	}
	if c.logger != nil {
		c.logger.Debug("ocr extracted text", zap.String("file", filepath.Base(path)), zap.Int("chars", buf.Len()))
	}
	return buf.String(), nil
}
