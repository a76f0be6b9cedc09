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

package storage

import (
	"errors"
	"fmt"

	"github.com/poiesic/chatbinder/core"
)

var (
	// ErrNotFound indicates that the requested record was not found,
	// or that it exists under a different owner.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey indicates a uniqueness constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict indicates a concurrent write touched the same keys.
	// The operation can be retried.
	ErrConflict = errors.New("write conflict")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)

// DomainError maps a repository error onto the core error kinds.
// ErrNotFound becomes core.ErrNotFound and any other failure becomes
// core.ErrStorage. The original error stays in the chain.
func DomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %w", core.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
}
