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
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/chatbinder"
	"github.com/poiesic/chatbinder/ai"
	"github.com/poiesic/chatbinder/ai/openai"
	"github.com/poiesic/chatbinder/backfill"
	"github.com/poiesic/chatbinder/ingestion"
	"github.com/urfave/cli/v2"
)

// providerFactory builds the AI provider from the configured flags.
type providerFactory func(cfg *ai.Config) (ai.AIProvider, error)

// app holds the output streams and the provider factory shared by all commands.
type app struct {
	out         io.Writer
	progress    io.Writer
	newProvider providerFactory
}

func main() {
	a := &app{out: os.Stdout, progress: os.Stderr, newProvider: openai.NewProvider}
	if err := a.cli().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func (a *app) cli() *cli.App {
	return &cli.App{
		Name:  "chatbinder",
		Usage: "Organize exported AI conversations into searchable binders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"CHATBINDER_DB"},
				Value:   "./chatbinder_db",
			},
			&cli.StringFlag{
				Name:    "owner",
				Aliases: []string{"o"},
				Usage:   "Owner whose chats and binders are accessed",
				EnvVars: []string{"CHATBINDER_OWNER"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API token for the embedding and synthesis services",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				EnvVars: []string{"CHATBINDER_EMBEDDING_HOST"},
				Value:   ai.DefaultHost,
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"CHATBINDER_EMBEDDING_MODEL"},
				Value:   ai.DefaultEmbeddingModel,
			},
			&cli.IntFlag{
				Name:    "embedding-dimensions",
				Usage:   "Required embedding width; 0 accepts any width",
				EnvVars: []string{"CHATBINDER_EMBEDDING_DIMENSIONS"},
				Value:   ai.DefaultEmbeddingDimensions,
			},
			&cli.StringFlag{
				Name:    "synthesis-host",
				Usage:   "Synthesis service host URL",
				EnvVars: []string{"CHATBINDER_SYNTHESIS_HOST"},
				Value:   ai.DefaultHost,
			},
			&cli.StringFlag{
				Name:    "synthesis-model",
				Usage:   "Synthesis model name",
				EnvVars: []string{"CHATBINDER_SYNTHESIS_MODEL"},
				Value:   ai.DefaultSynthesisModel,
			},
			&cli.IntFlag{
				Name:  "pool-size",
				Usage: "Number of concurrent embedding requests during ingestion",
				Value: ingestion.DefaultPoolSize,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest an exported conversation from a JSON file",
				ArgsUsage: " ",
				Action:    a.ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON file holding one conversation or an array of them (- for stdin)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "binder",
						Aliases: []string{"b"},
						Usage:   "Binder to add the ingested chats to",
					},
				},
			},
			{
				Name:  "chats",
				Usage: "Inspect ingested chats",
				Subcommands: []*cli.Command{
					{Name: "list", Usage: "List chats, newest first", Action: a.chatsListCommand},
					{Name: "show", Usage: "Show a chat with its chunks", ArgsUsage: "CHAT_ID", Action: a.chatsShowCommand},
					{Name: "delete", Usage: "Delete a chat", ArgsUsage: "CHAT_ID", Action: a.chatsDeleteCommand},
				},
			},
			{
				Name:  "binders",
				Usage: "Manage binders",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "Create a binder",
						ArgsUsage: "NAME",
						Action:    a.bindersCreateCommand,
						Flags:     []cli.Flag{descriptionFlag()},
					},
					{Name: "list", Usage: "List binders with chat counts", Action: a.bindersListCommand},
					{Name: "show", Usage: "Show a binder with its chats", ArgsUsage: "BINDER_ID", Action: a.bindersShowCommand},
					{
						Name:      "rename",
						Usage:     "Rename a binder",
						ArgsUsage: "BINDER_ID NAME",
						Action:    a.bindersRenameCommand,
						Flags:     []cli.Flag{descriptionFlag()},
					},
					{Name: "add", Usage: "Add a chat to a binder", ArgsUsage: "BINDER_ID CHAT_ID", Action: a.bindersAddCommand},
					{Name: "remove", Usage: "Remove a chat from a binder", ArgsUsage: "BINDER_ID CHAT_ID", Action: a.bindersRemoveCommand},
					{Name: "delete", Usage: "Delete a binder", ArgsUsage: "BINDER_ID", Action: a.bindersDeleteCommand},
					{Name: "merge", Usage: "Merge a binder's chats into one document", ArgsUsage: "BINDER_ID", Action: a.bindersMergeCommand},
					{Name: "history", Usage: "List a binder's merged documents", ArgsUsage: "BINDER_ID", Action: a.bindersHistoryCommand},
				},
			},
			{
				Name:      "search",
				Usage:     "Search binders and chat content",
				ArgsUsage: "QUERY",
				Action:    a.searchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "verbose",
						Usage: "Print each search stage to stderr",
					},
				},
			},
			{
				Name:   "backfill",
				Usage:  "Generate embeddings for chunks stored without one",
				Action: a.backfillCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per request",
						Value: backfill.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func descriptionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "description",
		Usage: "Binder description",
	}
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithAPIToken(c.String("api-key")),
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithEmbeddingDimensions(c.Int("embedding-dimensions")),
		ai.WithSynthesisHost(c.String("synthesis-host")),
		ai.WithSynthesisModel(c.String("synthesis-model")),
	)
}

// openDatabase opens the database named by --db with the configured AI provider.
func (a *app) openDatabase(c *cli.Context) (*chatbinder.Database, error) {
	dbPath := c.String("db")
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	aiConfig := aiConfigFromFlags(c)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	provider, err := a.newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}

	db, err := chatbinder.NewDatabase(dbPath,
		chatbinder.WithAIConfig(aiConfig),
		chatbinder.WithAIProvider(provider),
		chatbinder.WithEmbeddingPoolSize(c.Int("pool-size")),
		chatbinder.WithLogger(slog.Default()),
	)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
