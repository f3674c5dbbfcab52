// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the structured failure code produced by the backend client
// boundary. Call sites branch on Kind, never on raw message text.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindAuthInvalid Kind = "auth_invalid"
	KindForbidden   Kind = "forbidden"
	KindBadRequest  Kind = "bad_request"
	KindServerError Kind = "server_error"
	KindTimeout     Kind = "timeout"
	KindUnknown     Kind = "unknown"
)

// hints maps each failure kind to a remediation hint surfaced alongside
// the error message.
var hints = map[Kind]string{
	KindRateLimited: "backend rate limit reached; wait before retrying",
	KindAuthInvalid: "backend rejected the API key; verify credentials",
	KindForbidden:   "the API key lacks access to the requested model tier",
	KindBadRequest:  "the backend rejected the request payload; check the input",
	KindServerError: "the backend reported an internal error; the fallback tier may succeed",
	KindTimeout:     "the call exceeded its client-side timeout; retry with quality mode or a shorter prompt",
	KindUnknown:     "unclassified backend failure; inspect the server logs",
}

// Error is a classified backend call failure.
type Error struct {
	// Kind is the structured failure code.
	Kind Kind

	// Status is the upstream HTTP status, 0 for transport-level failures.
	Status int

	// Model is the tier the failed call was addressed to.
	Model string

	msg string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend: %s (model %s, status %d): %s", e.Kind, e.Model, e.Status, e.msg)
	}
	return fmt.Sprintf("backend: %s (model %s): %s", e.Kind, e.Model, e.msg)
}

// Hint returns the remediation hint for this failure kind.
func (e *Error) Hint() string {
	return hints[e.Kind]
}

// classifyStatus converts a non-2xx upstream status into a classified Error.
// This is the single classification point for HTTP-level failures.
func classifyStatus(status int, model, body string) *Error {
	var kind Kind
	switch {
	case status == 429:
		kind = KindRateLimited
	case status == 401:
		kind = KindAuthInvalid
	case status == 403:
		kind = KindForbidden
	case status == 400:
		kind = KindBadRequest
	case status >= 500:
		kind = KindServerError
	default:
		kind = KindUnknown
	}
	return &Error{Kind: kind, Status: status, Model: model, msg: body}
}

// classifyTransport converts a transport-level failure into a classified
// Error. Client-enforced timeouts are reported as KindTimeout, distinct from
// upstream server errors.
func classifyTransport(err error, model string) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Model: model, msg: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Model: model, msg: err.Error()}
	}
	return &Error{Kind: KindUnknown, Model: model, msg: err.Error()}
}

// IsKind reports whether err is a backend Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == kind
}

// KindOf returns the failure kind of err, or KindUnknown when err is not a
// classified backend error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}
