// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/storylens/storylens/internal/config"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(config.BackendConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	})
}

func TestClientCall(t *testing.T) {
	t.Run("parses a successful response", func(t *testing.T) {
		var gotAuth, gotPath string
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			gotBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"model":"relay-flash-001","output":{"text":"a red bicycle","confidence":0.93}}`))
		}))
		defer srv.Close()

		client := newTestClient(srv)
		res, err := client.Call(context.Background(), CallRequest{
			Model:   "relay-flash",
			Prompt:  "describe the image",
			Timeout: time.Second,
		})
		require.NoError(t, err)

		assert.Equal(t, "a red bicycle", res.Text)
		assert.Equal(t, "relay-flash-001", res.Model)
		assert.Equal(t, 0.93, res.Confidence)
		assert.Greater(t, res.Latency, time.Duration(0))

		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, "/v1/generate", gotPath)
		assert.Equal(t, "relay-flash", gjson.GetBytes(gotBody, "model").String())
		assert.Equal(t, "describe the image", gjson.GetBytes(gotBody, "prompt").String())
		assert.False(t, gjson.GetBytes(gotBody, "image").Exists())
	})

	t.Run("inlines image data as base64", func(t *testing.T) {
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"output":{"text":"ok"}}`))
		}))
		defer srv.Close()

		client := newTestClient(srv)
		_, err := client.Call(context.Background(), CallRequest{
			Model:     "relay-flash",
			Prompt:    "describe",
			ImageData: []byte{0x01, 0x02, 0x03},
			ImageMIME: "image/png",
		})
		require.NoError(t, err)

		assert.Equal(t, "AQID", gjson.GetBytes(gotBody, "image.data").String())
		assert.Equal(t, "image/png", gjson.GetBytes(gotBody, "image.mime_type").String())
	})

	t.Run("forwards the configured model version", func(t *testing.T) {
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"output":{"text":"ok"}}`))
		}))
		defer srv.Close()

		client := NewClient(config.BackendConfig{BaseURL: srv.URL, ModelVersion: "2026-07"})
		_, err := client.Call(context.Background(), CallRequest{Model: "relay-flash", Prompt: "p"})
		require.NoError(t, err)
		assert.Equal(t, "2026-07", gjson.GetBytes(gotBody, "version").String())
	})

	t.Run("falls back to the requested model name when absent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"output":{"text":"ok"}}`))
		}))
		defer srv.Close()

		res, err := newTestClient(srv).Call(context.Background(), CallRequest{Model: "relay-pro", Prompt: "p"})
		require.NoError(t, err)
		assert.Equal(t, "relay-pro", res.Model)
	})

	t.Run("makes exactly one request per call", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newTestClient(srv).Call(context.Background(), CallRequest{Model: "relay-flash", Prompt: "p"})
		require.Error(t, err)
		assert.Equal(t, int32(1), hits.Load(), "retry lives in the routing layer, not here")
	})
}

func TestClientClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   Kind
	}{
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"auth invalid", http.StatusUnauthorized, KindAuthInvalid},
		{"forbidden", http.StatusForbidden, KindForbidden},
		{"bad request", http.StatusBadRequest, KindBadRequest},
		{"server error", http.StatusInternalServerError, KindServerError},
		{"bad gateway", http.StatusBadGateway, KindServerError},
		{"unclassified", http.StatusTeapot, KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"upstream said no"}`))
			}))
			defer srv.Close()

			_, err := newTestClient(srv).Call(context.Background(), CallRequest{Model: "relay-flash", Prompt: "p"})
			require.Error(t, err)

			var be *Error
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tc.kind, be.Kind)
			assert.Equal(t, tc.status, be.Status)
			assert.Equal(t, "relay-flash", be.Model)
			assert.NotEmpty(t, be.Hint())
		})
	}

	t.Run("client-enforced deadline classifies as timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"output":{"text":"too late"}}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv).Call(context.Background(), CallRequest{
			Model:   "relay-flash",
			Prompt:  "p",
			Timeout: 30 * time.Millisecond,
		})
		require.Error(t, err)
		assert.True(t, IsKind(err, KindTimeout))
	})

	t.Run("connection failure classifies as unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := newTestClient(srv).Call(context.Background(), CallRequest{Model: "relay-flash", Prompt: "p"})
		require.Error(t, err)
		assert.Equal(t, KindUnknown, KindOf(err))
	})
}

func TestIsKind(t *testing.T) {
	err := &Error{Kind: KindRateLimited, Status: 429, Model: "relay-flash"}
	assert.True(t, IsKind(err, KindRateLimited))
	assert.False(t, IsKind(err, KindTimeout))
	assert.False(t, IsKind(nil, KindRateLimited))
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
}
