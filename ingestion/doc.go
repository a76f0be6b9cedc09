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

// Package ingestion turns exported conversations into stored chats.
//
// Pipeline.Ingest validates the request, creates the chat, splits the
// messages into chunks with the chunker package, and stores each chunk in
// order. Every stored chunk gets one embedding attempt on an ants worker
// pool, bounded by a timeout.
//
// Only validation and chat creation fail the call. A chunk that cannot be
// written is skipped, and a chunk whose embedding fails stays stored without
// one. IngestWithReport exposes these per-chunk outcomes.
package ingestion
