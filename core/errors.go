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

// Error kinds. Every error surfaced by the services wraps exactly one of these
// so callers can branch with errors.Is.
var (
	// ErrValidation indicates malformed input. Nothing was written.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the entity is absent or belongs to another owner.
	// The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrStorage indicates the underlying store failed.
	ErrStorage = errors.New("storage failure")

	// ErrExternalService indicates an embedding or synthesis call failed.
	ErrExternalService = errors.New("external service failure")

	// ErrEmbeddingUnavailable indicates the embedding service could not produce a vector.
	ErrEmbeddingUnavailable = fmt.Errorf("%w: embedding unavailable", ErrExternalService)

	// ErrSynthesisUnavailable indicates the synthesis service could not produce a document.
	ErrSynthesisUnavailable = fmt.Errorf("%w: synthesis unavailable", ErrExternalService)
)

// Validation failures
var (
	// ErrEmptyOwner indicates the owner identifier is blank or malformed.
	ErrEmptyOwner = errors.New("owner is required")

	// ErrNoMessages indicates an ingestion request carried no messages.
	ErrNoMessages = errors.New("messages cannot be empty")

	// ErrEmptyContent indicates a message has no content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates a message role other than user or assistant.
	ErrInvalidRole = errors.New("invalid role")

	// ErrInvalidSource indicates an unknown conversation source.
	ErrInvalidSource = errors.New("invalid source")

	// ErrInvalidBinderName indicates a binder name that is blank or too long.
	ErrInvalidBinderName = errors.New("invalid binder name")

	// ErrDescriptionTooLong indicates a binder description over the limit.
	ErrDescriptionTooLong = errors.New("description too long")

	// ErrEmptyQuery indicates a blank search query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmptyID indicates a blank entity identifier.
	ErrEmptyID = errors.New("id is required")
)
