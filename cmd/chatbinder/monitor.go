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

package main

import (
	"fmt"
	"io"

	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/search"
)

// verboseMonitor prints each search stage to w.
type verboseMonitor struct {
	w io.Writer
}

var _ search.SearchMonitor = (*verboseMonitor)(nil)

func (m *verboseMonitor) Start(owner, query string) {
	fmt.Fprintf(m.w, "Searching %q for owner %s\n", query, owner)
}

func (m *verboseMonitor) AfterBinderSearch(binders []*core.Binder) {
	fmt.Fprintf(m.w, "Binder matches: %d\n", len(binders))
	for _, b := range binders {
		fmt.Fprintf(m.w, "  %s  %s\n", b.ID, b.Name)
	}
}

func (m *verboseMonitor) ContentSearchSkipped() {
	fmt.Fprintln(m.w, "Content search skipped: owner has no chats")
}

func (m *verboseMonitor) AfterContentSearch(hits []*core.ChunkWithChatSummary) {
	fmt.Fprintf(m.w, "Content matches: %d\n", len(hits))
	for _, h := range hits {
		fmt.Fprintf(m.w, "  %s  %s (chunk %d)\n", h.Chat.ID, h.Chat.Title, h.Chunk.Index)
	}
}

func (m *verboseMonitor) Finish(results []*search.Result) {
	fmt.Fprintf(m.w, "Results: %d\n", len(results))
}
