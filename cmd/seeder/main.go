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
	"bufio"
	"context"
	"fmt"
	"iter"
	"log"
	"log/slog"
	"os"

	"github.com/poiesic/chatbinder"
	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/ai/mock"
	"github.com/poiesic/chatbinder/ai/openai"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/ingestion"
	"github.com/urfave/cli/v2"
)

var sentences = []string{
	"The quick brown fox jumps over the lazy dog.",
	"A gentle breeze rustled the leaves of the old oak tree.",
	"She found a hidden key in the dusty attic.",
	"Rain drummed on the rooftop, creating a soothing rhythm.",
	"The ancient library held stories that never faded.",
	"A mysterious map led them to a forgotten treasure.",
	"The old clock chimed thirteen times in an abandoned town.",
	"The lighthouse beam cut through fog, guiding sailors safely.",
	"He carved a wooden boat from a single piece of oak.",
	"They tasted fresh bread baked just before dawn.",
	"The abandoned lighthouse still broadcasts its warning every third Tuesday.",
	"Seventeen geese unanimously voted to relocate the pond.",
	"The cat debugged the production database at 3 AM.",
	"Documentation exists in a superposition until observed.",
	"The rubber duck solved the halting problem but won't tell anyone.",
	"The cache invalidation problem solved itself out of spite.",
	"The race condition won by not participating.",
	"The mutex died of loneliness.",
	"Git blame pointed at everyone simultaneously.",
	"The debugger needed debugging.",
	"The thread pool went for a swim.",
	"Immutable data structures quietly changed their minds.",
	"The watchdog timer fell asleep.",
	"The fork bomb chose peaceful coexistence.",
}

func main() {
	app := &cli.App{
		Name:  "seeder",
		Usage: "Load synthetic conversations into a chatbinder database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"CHATBINDER_DB"},
				Value:   "./chatbinder_db",
			},
			&cli.StringFlag{
				Name:    "owner",
				Usage:   "Owner of the seeded chats",
				EnvVars: []string{"CHATBINDER_OWNER"},
				Value:   "demo",
			},
			&cli.StringFlag{
				Name:  "src",
				Usage: "File of seed lines, one message per line",
			},
			&cli.IntFlag{
				Name:  "turns",
				Usage: "Messages per seeded conversation",
				Value: 6,
			},
			&cli.StringFlag{
				Name:  "binder",
				Usage: "Name of the binder holding the seeded chats",
				Value: "Seeded conversations",
			},
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Use deterministic local embeddings instead of the embedding service",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API token for the embedding and synthesis services",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "OpenAI-compatible service host URL",
				EnvVars: []string{"CHATBINDER_AI_HOST"},
				Value:   ai.DefaultHost,
			},
		},
		Action: seed,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// conversations groups lines into requests of turns messages with alternating roles.
// Blank lines are skipped.
func conversations(source iter.Seq[string], turns int) iter.Seq[ingestion.IngestRequest] {
	return func(yield func(ingestion.IngestRequest) bool) {
		n := 0
		var messages []core.Message
		flush := func() bool {
			if len(messages) == 0 {
				return true
			}
			n++
			req := ingestion.IngestRequest{
				Title:    fmt.Sprintf("Seeded conversation %d", n),
				Source:   core.SourceChatGPT,
				Messages: messages,
			}
			messages = nil
			return yield(req)
		}

		for line := range source {
			if line == "" {
				continue
			}
			role := core.RoleUser
			if len(messages)%2 == 1 {
				role = core.RoleAssistant
			}
			messages = append(messages, core.Message{Role: role, Content: line})
			if len(messages) == turns && !flush() {
				return
			}
		}
		flush()
	}
}

func openDatabase(c *cli.Context) (*chatbinder.Database, error) {
	opts := []chatbinder.DatabaseOption{chatbinder.WithLogger(slog.Default())}
	if c.Bool("offline") {
		cfg := ai.NewConfig(ai.WithEmbeddingDimensions(mock.DefaultDimensions), ai.WithEmbeddingModel("offline"))
		opts = append(opts, chatbinder.WithAIConfig(cfg), chatbinder.WithAIProvider(mock.NewMockProvider()))
	} else {
		cfg := ai.NewConfig(ai.WithHost(c.String("host")), ai.WithAPIToken(c.String("api-key")))
		provider, err := openai.NewProvider(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chatbinder.WithAIConfig(cfg), chatbinder.WithAIProvider(provider))
	}
	return chatbinder.NewDatabase(c.String("db"), opts...)
}

func seed(c *cli.Context) error {
	ctx := context.Background()
	owner := c.String("owner")
	if err := core.ValidateOwner(owner); err != nil {
		return err
	}
	if c.Int("turns") < 1 {
		return fmt.Errorf("turns must be greater than 0")
	}

	var source iter.Seq[string]
	if path := c.String("src"); path != "" {
		var err error
		source, err = linesFromFile(path)
		if err != nil {
			return err
		}
	} else {
		source = linesFromSlice(sentences)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := db.Binders().Create(ctx, owner, c.String("binder"), "Synthetic conversations for local demos")
	if err != nil {
		return err
	}

	count := 0
	for req := range conversations(source, c.Int("turns")) {
		chat, err := db.Chats().Ingest(ctx, owner, req, b.ID)
		if err != nil {
			return err
		}
		count++
		slog.Info("seeded chat", "chat_id", chat.ID, "title", chat.Title)
	}

	slog.Info("seeding complete", "owner", owner, "binder_id", b.ID, "chats", count)
	return nil
}
