// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry and response-mapping decisions.
type Kind int

const (
	KindUnknown Kind = iota

	// Embedding failures.
	KindInvalidInput
	KindProviderUnavailable
	KindTokenLimit
	KindProviderAPI

	// Search failures.
	KindEmptyQuery
	KindIndexNotReady

	// Index failures.
	KindEntityNotFound
	KindDimensionMismatch

	// Storage and cache failures.
	KindStore
	KindSerialization
	KindConnection

	// System failures.
	KindTimeout
)

// String returns a stable identifier for the kind, suitable for error
// response bodies and log fields.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindTokenLimit:
		return "token_limit_exceeded"
	case KindProviderAPI:
		return "provider_api_error"
	case KindEmptyQuery:
		return "empty_query"
	case KindIndexNotReady:
		return "index_not_ready"
	case KindEntityNotFound:
		return "entity_not_found"
	case KindDimensionMismatch:
		return "dimension_mismatch"
	case KindStore:
		return "store_error"
	case KindSerialization:
		return "serialization_error"
	case KindConnection:
		return "connection_error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// retryable reports whether operations failing with this kind may succeed
// on a bounded retry.
func (k Kind) retryable() bool {
	switch k {
	case KindTokenLimit, KindProviderAPI, KindStore, KindConnection:
		return true
	default:
		return false
	}
}

// Error is a classified failure. It wraps an underlying cause so callers
// can branch on Kind with KindOf while errors.Is/As keep working.
type Error struct {
	Kind Kind
	Op   string // Operation that failed, e.g. "badger.Upsert"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err as a classified Error.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef creates a classified Error from a format string.
func Ef(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or KindUnknown when err carries
// no classification.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// Retryable reports whether err is worth one bounded retry with backoff.
// Unclassified errors are not retried.
func Retryable(err error) bool {
	return KindOf(err).retryable()
}

// Domain validation errors.
var (
	// ErrEmptyText indicates text submitted for embedding was empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidMemberID indicates a non-positive member ID.
	ErrInvalidMemberID = errors.New("member id must be positive")

	// ErrInvalidEmbedding indicates a MemberEmbedding failed validation.
	ErrInvalidEmbedding = errors.New("invalid member embedding")

	// ErrEmptyModelVersion indicates a missing model version tag.
	ErrEmptyModelVersion = errors.New("model version cannot be empty")
)
