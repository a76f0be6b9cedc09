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

// Package storage provides the storage abstraction layer for chatbinder.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic. The badger sub-package provides the BadgerDB implementation
// used in production and, in memory mode, in tests.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - ChatRepository: chats, their chunks and chunk embeddings
//   - BinderRepository: binders, binder/chat associations and merge history
//   - CheckpointRepository: progress markers for resumable jobs
//
// Every read or delete of an owned entity takes the owner identifier and treats
// a foreign entity exactly like a missing one (ErrNotFound).
//
// # Consistency
//
// Each repository call runs in a single transaction. The store enforces the
// uniqueness of (chat, chunk index), of (binder, chat) and of one embedding per
// chunk. Concurrent writers touching the same keys are rejected with ErrConflict
// rather than serialized by in-process locks.
//
// # Context Support
//
// All repository methods accept context.Context. Pass context.Background() for
// operations without specific timeout requirements.
package storage
