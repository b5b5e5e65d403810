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

import "fmt"

// ValidateMemberEmbedding validates a MemberEmbedding according to domain rules.
//
// Validation rules:
//   - MemberID must be positive
//   - Vector must have exactly EmbeddingDim elements
//   - SearchableText must not be empty
//   - ModelVersion must not be empty
func ValidateMemberEmbedding(e *MemberEmbedding) error {
	if e == nil {
		return fmt.Errorf("%w: embedding is nil", ErrInvalidEmbedding)
	}

	if e.MemberID == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrInvalidMemberID)
	}

	if len(e.Vector) != EmbeddingDim {
		return Ef(KindDimensionMismatch, "core.ValidateMemberEmbedding",
			"expected dimension %d, got %d", EmbeddingDim, len(e.Vector))
	}

	if e.SearchableText == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrEmptyText)
	}

	if e.ModelVersion == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, ErrEmptyModelVersion)
	}

	return nil
}

// ValidateEvent validates a ReindexEvent before processing.
func ValidateEvent(ev *ReindexEvent) error {
	if ev == nil {
		return Ef(KindInvalidInput, "core.ValidateEvent", "event is nil")
	}
	if ev.MemberID == 0 {
		return E(KindInvalidInput, "core.ValidateEvent", ErrInvalidMemberID)
	}
	switch ev.EventType {
	case EventCreated, EventUpdated, EventDeleted:
		return nil
	default:
		return Ef(KindInvalidInput, "core.ValidateEvent", "unknown event type %q", ev.EventType)
	}
}
