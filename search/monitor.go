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

package search

import "github.com/poiesic/chatbinder/core"

// SearchMonitor observes the stages of a search. It is intended for
// diagnostics such as `chatbinder search --verbose`.
type SearchMonitor interface {
	Start(owner, query string)
	AfterBinderSearch(binders []*core.Binder)
	ContentSearchSkipped()
	AfterContentSearch(hits []*core.ChunkWithChatSummary)
	Finish(results []*Result)
}

type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                                 {}
func (n *noopMonitor) AfterBinderSearch(_ []*core.Binder)                {}
func (n *noopMonitor) ContentSearchSkipped()                             {}
func (n *noopMonitor) AfterContentSearch(_ []*core.ChunkWithChatSummary) {}
func (n *noopMonitor) Finish(_ []*Result)                                {}
