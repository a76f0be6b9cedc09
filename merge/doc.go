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

// Package merge synthesizes a binder's conversations into one document.
//
// The merger assembles the binder's chats into markdown, sends a bounded
// prefix of it to an ai.Synthesizer with a fixed six-section prompt, and
// falls back to the untruncated raw content when synthesis fails. Every
// merge of a non-empty binder is appended to the binder's history.
package merge
