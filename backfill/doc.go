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

// Package backfill generates embeddings for chunks that were stored without one.
//
// Ingestion makes a single best-effort embedding attempt per chunk. When the
// embedding service was unavailable, the Backfiller walks the remaining
// chunks in batches, retries failed requests with exponential backoff, and
// stores each usable vector exactly once. Progress is written to an
// io.Writer and checkpointed so interrupted runs resume.
package backfill
