// Package backend talks to a remote analysis service over HTTP.
package backend

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

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/analysis"
	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/config"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
	"cognivox-server/pkg/version"
)

// maxResponseBytes caps how much of a response body is read
const maxResponseBytes = 4 << 20

// AnalyzeResponse is the body returned by POST /analyze-speech
type AnalyzeResponse struct {
	Status   string          `json:"status"`
	Analysis analysis.Result `json:"analysis"`
}

// Client calls the remote analysis backend
type Client struct {
	logger  *logrus.Entry
	baseURL string
	userID  string
	http    *http.Client
}

// NewClient creates a backend client from configuration
func NewClient(logger *logrus.Logger, cfg *config.BackendConfig) *Client {
	return &Client{
		logger:  logger.WithField("component", "backend_client"),
		baseURL: strings.TrimRight(cfg.URL, "/"),
		userID:  cfg.UserID,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Name identifies the remote backend in metrics and logs
func (c *Client) Name() string {
	return "remote"
}

// Analyze sends blob to the backend as the configured user
func (c *Client) Analyze(ctx context.Context, blob []byte) (analysis.Result, error) {
	done := metrics.ObserveAnalysisLatency(c.Name())
	resp, err := c.AnalyzeSpeech(ctx, blob, c.userID)
	done()
	if err != nil {
		metrics.RecordAnalysis(c.Name(), "error", 0)
		return analysis.Result{}, err
	}
	metrics.RecordAnalysis(c.Name(), "success", resp.Analysis.StressScore)
	return resp.Analysis, nil
}

// AnalyzeSpeech posts blob as the multipart "audio" field together with
// user_id. Any non-2xx answer is a backend error.
func (c *Client) AnalyzeSpeech(ctx context.Context, blob []byte, userID string) (*AnalyzeResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	filename := "recording.webm"
	if audio.IsWAV(blob) {
		filename = "recording.wav"
	}
	fw, err := w.CreateFormFile("audio", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(blob); err != nil {
		return nil, err
	}
	if err := w.WriteField("user_id", userID); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze-speech", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).Error("Backend request failed")
		return nil, fmt.Errorf("%w: %w", cerrors.NewBackendError(0, ""), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.WithError(err).Error("Failed to read backend response")
		return nil, fmt.Errorf("%w: read response: %w", cerrors.NewBackendError(resp.StatusCode, ""), err)
	}
	c.logger.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"bytes":       len(blob),
	}).Debug("Backend responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithField("status", resp.StatusCode).Error("Backend returned an error status")
		return nil, cerrors.NewBackendError(resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out AnalyzeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", cerrors.NewBackendError(resp.StatusCode, ""), err)
	}
	return &out, nil
}

// PostJSON posts payload as JSON to url and decodes the answer into out
// when out is non-nil. Non-2xx answers carry the status in the error.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return cerrors.NewInvalidInput(fmt.Sprintf("payload is not JSON-encodable: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Error("Backend call failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithFields(logrus.Fields{"url": url, "status": resp.StatusCode}).Error("Backend call failed")
		return cerrors.New(fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)).
			WithCode("BACKEND_ERROR").
			WithField("status_code", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
