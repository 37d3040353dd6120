// Package classifier wraps the external MRI classification HTTP service.
package classifier

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/config"
)

const classifyPath = "/classify"

// Client posts scan images to the external classification endpoint.
// One outbound call per classification, no internal retry: a failed call
// surfaces as an error and the caller decides whether to resubmit.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(cfg config.ClassifierConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.Named("classifier"),
	}
}

// Classify uploads the raw image bytes as a multipart form and validates
// the response shape at the boundary. The returned Result carries the
// verbatim body in Raw.
func (c *Client) Classify(ctx context.Context, filename string, image []byte) (*Result, error) {
	ctx, span := otel.Tracer("classifier").Start(ctx, "classifier.Classify")
	defer span.End()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("writing image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+classifyPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("classifier request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Err: err}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("classifier returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	result.Raw = body

	// An MRI-positive response without its classification block is a
	// contract violation, not a recordable outcome.
	if result.IsMRI && result.Analysis == nil {
		return nil, fmt.Errorf("%w: isMRI response lacks dementiaAnalysis", ErrMalformedResponse)
	}

	c.logger.Info("classification completed",
		zap.Bool("is_mri", result.IsMRI),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("image_bytes", len(image)))

	return &result, nil
}
