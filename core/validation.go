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
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxBinderNameLength is the maximum binder name length in characters.
	MaxBinderNameLength = 255

	// MaxBinderDescriptionLength is the maximum binder description length in characters.
	MaxBinderDescriptionLength = 1000
)

// ValidateOwner checks an owner identifier.
// Owners are opaque but must be non-blank and free of NUL bytes,
// which the store uses as a key separator.
func ValidateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" || strings.ContainsRune(owner, 0) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyOwner)
	}
	return nil
}

// ValidateID checks that an entity identifier is present.
func ValidateID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s: %w", ErrValidation, name, ErrEmptyID)
	}
	return nil
}

// ValidateRole checks that a role is user or assistant.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}

// ParseSource resolves a source name. Empty input yields DefaultSource.
// Names match exactly: "Claude" and " claude" are rejected.
func ParseSource(s string) (Source, error) {
	switch src := Source(s); src {
	case "":
		return DefaultSource, nil
	case SourceChatGPT, SourceClaude, SourceGemini:
		return src, nil
	default:
		return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidSource, s)
	}
}

// ValidateMessages validates an ingestion message list.
//
// Validation rules:
//   - at least one message
//   - every role is user or assistant
//   - every content is non-empty
func ValidateMessages(messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNoMessages)
	}
	for i, m := range messages {
		if err := ValidateRole(m.Role); err != nil {
			return fmt.Errorf("%w: message %d: %w", ErrValidation, i, err)
		}
		if m.Content == "" {
			return fmt.Errorf("%w: message %d: %w", ErrValidation, i, ErrEmptyContent)
		}
	}
	return nil
}

// ValidateBinderFields checks a binder name and description.
// The name is trimmed before checking; lengths are counted in characters.
func ValidateBinderFields(name, description string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 || n > MaxBinderNameLength {
		return fmt.Errorf("%w: %w: must be 1-%d characters", ErrValidation, ErrInvalidBinderName, MaxBinderNameLength)
	}
	if utf8.RuneCountInString(description) > MaxBinderDescriptionLength {
		return fmt.Errorf("%w: %w: at most %d characters", ErrValidation, ErrDescriptionTooLong, MaxBinderDescriptionLength)
	}
	return nil
}

// ValidateQuery checks a search query.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyQuery)
	}
	return nil
}
