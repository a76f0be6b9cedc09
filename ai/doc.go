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

// Package ai provides abstractions for the AI services used by chat binders.
//
// Two services are defined:
//
//   - Embedder: Generates vector embeddings for stored chunks
//   - Synthesizer: Produces a structured document from a binder's conversations
//
// AIProvider aggregates both so callers can initialize them in one place.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible implementation built on langchaingo
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and inspect call counts.
//
// # Configuration
//
//	cfg := ai.NewConfig(
//	    ai.WithAPIToken(os.Getenv("OPENAI_API_KEY")),
//	    ai.WithSynthesisModel("gpt-4o-mini"),
//	)
//	provider, err := openai.NewProvider(cfg)
package ai
