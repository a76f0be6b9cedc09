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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poiesic/chatbinder"
	"github.com/poiesic/chatbinder/backfill"
	"github.com/poiesic/chatbinder/core"
	"github.com/poiesic/chatbinder/ingestion"
	"github.com/poiesic/chatbinder/search"
	"github.com/urfave/cli/v2"
)

// withDatabase opens the database, runs fn and closes the database.
func (a *app) withDatabase(c *cli.Context, fn func(db *chatbinder.Database) error) error {
	db, err := a.openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireOwner(c *cli.Context) (string, error) {
	owner := c.String("owner")
	if err := core.ValidateOwner(owner); err != nil {
		return "", fmt.Errorf("--owner is required: %w", err)
	}
	return owner, nil
}

// args returns exactly n positional arguments.
func args(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("expected %d argument(s): %s", n, c.Command.ArgsUsage)
	}
	return c.Args().Slice(), nil
}

// readIngestRequests decodes a single conversation or an array of them.
func readIngestRequests(r io.Reader) ([]ingestion.IngestRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []ingestion.IngestRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, fmt.Errorf("failed to parse conversations: %w", err)
		}
		return reqs, nil
	}

	var req ingestion.IngestRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return []ingestion.IngestRequest{req}, nil
}

func (a *app) ingestCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if path := c.String("file"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	reqs, err := readIngestRequests(in)
	if err != nil {
		return err
	}

	return a.withDatabase(c, func(db *chatbinder.Database) error {
		ingested := make([]*core.Chat, 0, len(reqs))
		for i, req := range reqs {
			chat, err := db.Chats().Ingest(c.Context, owner, req, c.String("binder"))
			if chat != nil {
				ingested = append(ingested, chat)
			}
			if err != nil {
				if printErr := a.printJSON(ingested); printErr != nil {
					return printErr
				}
				return fmt.Errorf("conversation %d: %w", i, err)
			}
		}
		return a.printJSON(ingested)
	})
}

func (a *app) chatsListCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		chats, err := db.Chats().List(c.Context, owner)
		if err != nil {
			return err
		}
		return a.printJSON(chats)
	})
}

func (a *app) chatsShowCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		contents, err := db.Chats().Get(c.Context, owner, argv[0])
		if err != nil {
			return err
		}
		return a.printJSON(contents)
	})
}

func (a *app) chatsDeleteCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		if err := db.Chats().Delete(c.Context, owner, argv[0]); err != nil {
			return err
		}
		return a.printJSON(map[string]string{"deleted": argv[0]})
	})
}

func (a *app) bindersCreateCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		b, err := db.Binders().Create(c.Context, owner, argv[0], c.String("description"))
		if err != nil {
			return err
		}
		return a.printJSON(b)
	})
}

func (a *app) bindersListCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		binders, err := db.Binders().List(c.Context, owner)
		if err != nil {
			return err
		}
		return a.printJSON(binders)
	})
}

func (a *app) bindersShowCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		contents, err := db.Binders().Get(c.Context, owner, argv[0])
		if err != nil {
			return err
		}
		return a.printJSON(contents)
	})
}

func (a *app) bindersRenameCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		b, err := db.Binders().Rename(c.Context, owner, argv[0], argv[1], c.String("description"))
		if err != nil {
			return err
		}
		return a.printJSON(b)
	})
}

func (a *app) bindersAddCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		assoc, err := db.Binders().AddChat(c.Context, owner, argv[0], argv[1])
		if err != nil {
			return err
		}
		return a.printJSON(assoc)
	})
}

func (a *app) bindersRemoveCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		if err := db.Binders().RemoveChat(c.Context, owner, argv[0], argv[1]); err != nil {
			return err
		}
		return a.printJSON(map[string]string{"binder_id": argv[0], "removed": argv[1]})
	})
}

func (a *app) bindersDeleteCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		if err := db.Binders().Delete(c.Context, owner, argv[0]); err != nil {
			return err
		}
		return a.printJSON(map[string]string{"deleted": argv[0]})
	})
}

func (a *app) bindersMergeCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		result, err := db.Binders().Merge(c.Context, owner, argv[0])
		if err != nil {
			return err
		}
		return a.printJSON(result)
	})
}

func (a *app) bindersHistoryCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		docs, err := db.Binders().History(c.Context, owner, argv[0])
		if err != nil {
			return err
		}
		return a.printJSON(docs)
	})
}

func (a *app) searchCommand(c *cli.Context) error {
	owner, err := requireOwner(c)
	if err != nil {
		return err
	}
	query := strings.Join(c.Args().Slice(), " ")
	return a.withDatabase(c, func(db *chatbinder.Database) error {
		var monitor search.SearchMonitor
		if c.Bool("verbose") {
			monitor = &verboseMonitor{w: a.progress}
		}
		results, err := db.Search().SearchWithMonitor(c.Context, owner, query, monitor)
		if err != nil {
			return err
		}
		return a.printJSON(results)
	})
}

func (a *app) backfillCommand(c *cli.Context) error {
	config := backfill.ConfigFromAI(aiConfigFromFlags(c))
	config.BatchSize = c.Int("batch-size")
	config.ReportInterval = c.Int("report-interval")
	config.MaxRetries = c.Int("max-retries")
	config.RetryDelay = c.Duration("retry-delay")

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	return a.withDatabase(c, func(db *chatbinder.Database) error {
		fmt.Fprintf(a.progress, "Database: %s\n", c.String("db"))
		fmt.Fprintf(a.progress, "Embedding host: %s\n", c.String("embedding-host"))
		fmt.Fprintf(a.progress, "Embedding model: %s\n", config.Model)
		fmt.Fprintln(a.progress)

		backfiller, err := db.NewBackfiller(config, a.progress)
		if err != nil {
			return err
		}
		stats, err := backfiller.Run(c.Context)
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
		return a.printJSON(stats)
	})
}
