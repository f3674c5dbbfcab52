// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storylens/storylens/internal/backend"
	"github.com/storylens/storylens/internal/guardrails"
	"github.com/storylens/storylens/internal/prompts"
)

// AnalyzeOptions tunes the image-analysis output.
type AnalyzeOptions struct {
	// Detail is the verbosity tier: short, medium or long. Defaults to medium.
	Detail string `json:"detail"`

	// Tags requests a style tag list in the response.
	Tags bool `json:"tags"`

	// OCR switches to the OCR-aware caption variant. Set from the request
	// header, not the body.
	OCR bool `json:"-"`
}

// AnalyzeImageInput is the analyze-image request body. Exactly one of
// ImageData and ImageURL must be set.
type AnalyzeImageInput struct {
	// ImageData holds inline image bytes (base64 in JSON).
	ImageData []byte `json:"image_data,omitempty"`

	// ImageURL references an image by HTTPS URL.
	ImageURL string `json:"image_url,omitempty"`

	// MIMEType is the image MIME type, e.g. "image/png".
	MIMEType string `json:"mime_type"`

	// Mode selects the latency/quality tradeoff; the X-Storylens-Mode
	// header overrides it.
	Mode string `json:"mode"`

	Options AnalyzeOptions `json:"options"`
}

// AnalyzeImageResponse is the structured analyze-image result.
type AnalyzeImageResponse struct {
	Caption    string                   `json:"caption"`
	Objects    []guardrails.ObjectCount `json:"objects"`
	Tags       []string                 `json:"tags,omitempty"`
	Setting    string                   `json:"setting"`
	Confidence float64                  `json:"confidence"`
	Model      string                   `json:"model"`
	Raw        string                   `json:"raw"`
}

// AnalyzeImage runs the full image-analysis lifecycle. Validation failures
// return before any backend call or metrics record; every failure after
// resolution is recorded before it is returned.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, in AnalyzeImageInput) (*AnalyzeImageResponse, error) {
	mode, err := normalizeMode(in.Mode)
	if err != nil {
		return nil, err
	}
	detail := strings.ToLower(strings.TrimSpace(in.Options.Detail))
	if detail == "" {
		detail = string(guardrails.DetailMedium)
	}
	if !guardrails.ValidDetail(detail) {
		return nil, invalidInputf("unknown detail tier %q: want short, medium or long", detail)
	}

	imageData, err := o.resolveImageSource(ctx, in)
	if err != nil {
		return nil, err
	}
	mimeType := in.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(imageData)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, invalidInputf("unsupported MIME type %q", mimeType)
	}

	decision := o.resolver.Resolve(mode, detail)
	prompt := prompts.AnalyzeImage(detail, in.Options.Tags, in.Options.OCR)
	promptTokens := o.countTokens(prompt)

	start := time.Now()
	result, err := o.invoke(ctx, decision, backend.CallRequest{
		Prompt:    prompt,
		ImageData: imageData,
		ImageMIME: mimeType,
		Timeout:   decision.Timeout,
	})
	o.record(ctx, "analyze-image", decision, promptTokens, result, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	resp := &AnalyzeImageResponse{
		Caption:    guardrails.TrimToDetail(result.Text, guardrails.Detail(detail)),
		Objects:    guardrails.ExtractObjects(result.Text),
		Setting:    guardrails.ExtractSetting(result.Text),
		Confidence: result.Confidence,
		Model:      result.Model,
		Raw:        result.Text,
	}
	if in.Options.Tags {
		resp.Tags = guardrails.ExtractTags(result.Text)
	}
	return resp, nil
}

// resolveImageSource validates the image source and yields the inline bytes,
// fetching the HTTPS URL client-side when that is how the image was given.
// The configured payload cap applies to both inline and fetched data.
func (o *Orchestrator) resolveImageSource(ctx context.Context, in AnalyzeImageInput) ([]byte, error) {
	hasData := len(in.ImageData) > 0
	hasURL := strings.TrimSpace(in.ImageURL) != ""
	switch {
	case hasData && hasURL:
		return nil, invalidInputf("image_data and image_url are mutually exclusive")
	case !hasData && !hasURL:
		return nil, invalidInputf("one of image_data or image_url is required")
	}

	if hasData {
		if len(in.ImageData) > o.limits.MaxPayloadBytes {
			return nil, invalidInputf("image payload exceeds the %d byte limit", o.limits.MaxPayloadBytes)
		}
		return in.ImageData, nil
	}

	parsed, err := url.Parse(in.ImageURL)
	if err != nil || parsed.Host == "" {
		return nil, invalidInputf("image_url is not a valid URL")
	}
	if parsed.Scheme != "https" {
		return nil, invalidInputf("image_url must use https")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.ImageURL, nil)
	if err != nil {
		return nil, invalidInputf("image_url is not fetchable: %v", err)
	}
	resp, err := o.fetchClient.Do(req)
	if err != nil {
		return nil, invalidInputf("image fetch failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, invalidInputf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(o.limits.MaxPayloadBytes)+1))
	if err != nil {
		return nil, invalidInputf("image fetch failed: %v", err)
	}
	if len(data) > o.limits.MaxPayloadBytes {
		return nil, invalidInputf("fetched image exceeds the %d byte limit", o.limits.MaxPayloadBytes)
	}
	if len(data) == 0 {
		return nil, invalidInputf("fetched image is empty")
	}
	return data, nil
}
