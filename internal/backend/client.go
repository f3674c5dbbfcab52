// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package backend implements the client for the remote generative-AI backend.
// Each invocation is a single timed HTTP call; failures are classified into a
// structured error taxonomy at this boundary so that the routing layer never
// needs to inspect raw message text.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/storylens/storylens/internal/config"
)

// CallRequest describes a single generation/analysis call.
type CallRequest struct {
	// Model is the tier identifier the call is addressed to.
	Model string

	// Prompt is the instruction text sent to the backend.
	Prompt string

	// ImageData holds optional inline image bytes for vision calls.
	ImageData []byte

	// ImageMIME is the MIME type of ImageData when present.
	ImageMIME string

	// Timeout is the client-enforced deadline for the whole call.
	Timeout time.Duration
}

// CallResult is the outcome of a successful backend call.
type CallResult struct {
	// Text is the raw model output.
	Text string `json:"text"`

	// Model is the tier that actually served the call.
	Model string `json:"model"`

	// Latency is the wall-clock duration of the call.
	Latency time.Duration `json:"latency"`

	// Confidence is the backend-reported confidence, 0 when absent.
	Confidence float64 `json:"confidence"`
}

// generatePayload is the outbound request body.
type generatePayload struct {
	Model  string        `json:"model"`
	Prompt string        `json:"prompt"`
	Image  *imagePayload `json:"image,omitempty"`
}

type imagePayload struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Caller executes a single backend call. Satisfied by *Client; the routing
// executors accept this interface so tests can substitute scripted backends.
type Caller interface {
	Call(ctx context.Context, req CallRequest) (*CallResult, error)
}

// Client talks to the generative backend over HTTP.
type Client struct {
	baseURL      string
	apiKey       string
	modelVersion string
	httpClient   *http.Client
}

// NewClient creates a backend client from configuration. The http.Client
// carries no global timeout; deadlines are enforced per call via context.
func NewClient(cfg config.BackendConfig) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		modelVersion: cfg.ModelVersion,
		httpClient:   &http.Client{},
	}
}

// Call performs exactly one timed call against the backend. There is no
// retry at this layer; retry-once semantics live in the fallback executor.
func (c *Client) Call(ctx context.Context, req CallRequest) (result *CallResult, err error) {
	start := time.Now()

	payload := generatePayload{
		Model:  req.Model,
		Prompt: req.Prompt,
	}
	if len(req.ImageData) > 0 {
		payload.Image = &imagePayload{
			Data:     base64.StdEncoding.EncodeToString(req.ImageData),
			MIMEType: req.ImageMIME,
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, Model: req.Model, msg: err.Error()}
	}
	if c.modelVersion != "" {
		body, _ = sjson.SetBytes(body, "version", c.modelVersion)
	}

	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Model: req.Model, msg: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpReq.Header.Set("User-Agent", "storylens-backend-client")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err, req.Model)
	}
	defer func() {
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("backend client: close response body error: %v", errClose)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransport(err, req.Model)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		log.Debugf("backend call failed, status: %d, body: %s", httpResp.StatusCode, truncateForLog(respBody))
		return nil, classifyStatus(httpResp.StatusCode, req.Model, string(respBody))
	}

	servedModel := gjson.GetBytes(respBody, "model").String()
	if servedModel == "" {
		servedModel = req.Model
	}
	return &CallResult{
		Text:       gjson.GetBytes(respBody, "output.text").String(),
		Model:      servedModel,
		Latency:    time.Since(start),
		Confidence: gjson.GetBytes(respBody, "output.confidence").Float(),
	}, nil
}

// truncateForLog bounds error bodies before they reach the debug log.
func truncateForLog(b []byte) string {
	const limit = 512
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "...(truncated)"
}
