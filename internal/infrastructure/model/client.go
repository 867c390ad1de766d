// Package model talks to a TensorFlow Serving REST endpoint.
package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kakitori/kakitori-api/internal/api/metrics"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// ErrUnavailable is returned when the model server reports no servable version.
var ErrUnavailable = errors.New("model not available")

// Config holds the model server settings. URL is the model resource, e.g.
// http://localhost:8501/v1/models/kakitori.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client implements ports.Model over HTTP.
type Client struct {
	url  string
	http *http.Client
	log  zerolog.Logger
}

type predictRequest struct {
	Instances ports.Tensor `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error"`
}

type statusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// New creates a Client without contacting the server.
func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:  strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Load creates a Client and verifies that the model is being served.
func Load(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("model url is empty")
	}
	c := New(cfg, log)
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	log.Info().Str("url", c.url).Msg("model loaded")
	return c, nil
}

// Ping checks the model status endpoint for an AVAILABLE version.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("model status: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("model status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model status: %s: %s", resp.Status, readSnippet(resp.Body))
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("model status: decode: %w", err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return ErrUnavailable
}

// Predict sends one instance batch and returns the first row of scores.
func (c *Client) Predict(ctx context.Context, input ports.Tensor) (scores []float32, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.InferenceDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(predictRequest{Instances: input})
	if err != nil {
		return nil, fmt.Errorf("model predict: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+":predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("model predict: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model predict: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model predict: %s: %s", resp.Status, readSnippet(resp.Body))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("model predict: decode: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("model predict: %s", out.Error)
	}
	if len(out.Predictions) == 0 {
		return nil, errors.New("model predict: empty predictions")
	}
	return out.Predictions[0], nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
