// Package mlclient calls the external plant-disease image classifier.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Smehapavi/AgriNex/internal/domain"
	"github.com/Smehapavi/AgriNex/pkg/metrics"
)

// ServiceName identifies the classifier in upstream errors.
const ServiceName = "ml service"

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config holds the configuration for the Client.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.APIMetrics // Optional
	// URL is the classifier base URL; requests go to URL + "/predict".
	URL     string
	Timeout time.Duration
	// HTTPClient overrides the default client; its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client classifies plant images.
type Client struct {
	logger     *slog.Logger
	metrics    *metrics.APIMetrics
	endpoint   string
	httpClient *http.Client
}

// New creates a new Client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("ml client config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.URL == "" {
		return nil, errors.New("ml service url cannot be empty")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		endpoint:   strings.TrimRight(cfg.URL, "/") + "/predict",
		httpClient: httpClient,
	}, nil
}

// response is the classifier's reply.
type response struct {
	Prediction *struct {
		Status   string   `json:"status"`
		Disease  *string  `json:"disease"`
		Severity string   `json:"severity"`
		Score    *float64 `json:"confidence"`
	} `json:"prediction"`
	Error string `json:"error"`
}

// Predict uploads image as the multipart field "image" and converts the classification
// into a Prediction ready to be appended. Every failure, including a malformed reply, is
// returned as a *domain.UpstreamError.
func (c *Client) Predict(ctx context.Context, filename string, image []byte) (p domain.Prediction, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.MLRequestDuration.Observe(time.Since(start).Seconds())
			c.metrics.MLRequestsTotal.WithLabelValues(metrics.StatusLabel(err)).Inc()
		}
	}()

	if len(image) == 0 {
		return domain.Prediction{}, &domain.ValidationError{Field: "image", Reason: "no image uploaded"}
	}

	if filename == "" {
		filename = "upload.jpg"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return domain.Prediction{}, fmt.Errorf("failed to write image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.Prediction{}, fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ml request failed", "endpoint", c.endpoint, "error", err)
		return domain.Prediction{}, &domain.UpstreamError{Service: ServiceName, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Prediction{}, &domain.UpstreamError{Service: ServiceName, StatusCode: resp.StatusCode, Err: err}
	}

	var decoded response
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		c.logger.Error("ml service rejected request", "status_code", resp.StatusCode, "error", msg)
		return domain.Prediction{}, &domain.UpstreamError{
			Service:    ServiceName,
			StatusCode: resp.StatusCode,
			Err:        errors.New(msg),
		}
	}

	if decodeErr != nil {
		return domain.Prediction{}, &domain.UpstreamError{Service: ServiceName, Err: fmt.Errorf("failed to decode response: %w", decodeErr)}
	}

	p, err = toPrediction(decoded)
	if err != nil {
		return domain.Prediction{}, &domain.UpstreamError{Service: ServiceName, Err: err}
	}

	c.logger.Debug("image classified",
		"disease", p.DiseaseName,
		"severity", p.Severity.String(),
		"status", p.Status.String(),
	)
	return p, nil
}

func toPrediction(r response) (domain.Prediction, error) {
	if r.Prediction == nil {
		return domain.Prediction{}, errors.New("response has no prediction")
	}
	pr := r.Prediction

	status, err := domain.ParsePlantStatus(pr.Status)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("unexpected status %q", pr.Status)
	}

	p := domain.Prediction{Status: status}
	if pr.Score != nil {
		p.Confidence = *pr.Score
		if p.Confidence <= 1 {
			p.Confidence *= 100
		}
	}

	if status == domain.PlantHealthy {
		p.DiseaseName = "Healthy"
		p.Severity = domain.SeverityLow
		p.Recommendation = "Continue regular monitoring"
		return p, nil
	}

	if pr.Disease == nil || *pr.Disease == "" {
		return domain.Prediction{}, errors.New("unhealthy prediction without disease")
	}
	p.DiseaseName = *pr.Disease

	severity, err := domain.ParseSeverity(pr.Severity)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("unexpected severity %q", pr.Severity)
	}
	p.Severity = severity
	p.Recommendation = recommendationFor(severity)
	return p, nil
}

func recommendationFor(s domain.Severity) string {
	switch {
	case s.AtLeast(domain.SeverityHigh):
		return "Immediate fungicide treatment required"
	case s == domain.SeverityMedium:
		return "Monitor and treat if condition worsens"
	default:
		return "Continue regular monitoring"
	}
}
