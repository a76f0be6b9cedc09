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

package badger

// Repositories bundles the repositories sharing one backend.
type Repositories struct {
	Backend     *Backend
	Chats       *ChatRepository
	Binders     *BinderRepository
	Checkpoints *CheckpointRepository
}

// OpenRepositories opens a backend and every repository on top of it.
// An empty path with inMemory set opens a throwaway in-memory store.
func OpenRepositories(path string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	chatRepo, err := NewChatRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	binderRepo, err := NewBinderRepository(backend)
	if err != nil {
		chatRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Backend:     backend,
		Chats:       chatRepo,
		Binders:     binderRepo,
		Checkpoints: NewCheckpointRepository(backend),
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("", true)
}

// Close releases the repositories and then the backend.
func (r *Repositories) Close() error {
	var firstErr error
	if err := r.Binders.Close(); err != nil {
		firstErr = err
	}
	if err := r.Chats.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.Backend.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
