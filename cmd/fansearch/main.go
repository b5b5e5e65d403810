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
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/fansearch"
	"github.com/poiesic/fansearch/ai"
	"github.com/poiesic/fansearch/core"
	"github.com/poiesic/fansearch/member"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "fansearch",
		Usage: "Semantic search service for fan-site members",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the search API and consume member change events",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Address to serve the HTTP API on",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:     "member-service",
						Usage:    "Base URL of the member CRUD service",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "nats",
						Usage: "NATS server URL; omit to disable event-driven reindexing",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "https://api.openai.com/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: core.DefaultModelVersion,
					},
					&cli.StringFlag{
						Name:    "api-token",
						Usage:   "Embedding provider API token",
						EnvVars: []string{"FANSEARCH_API_TOKEN"},
						Value:   "none",
					},
				},
			},
			{
				Name:      "warm",
				Usage:     "Index a batch of members by ID",
				ArgsUsage: "MEMBER_ID [MEMBER_ID...]",
				Action:    warmCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "member-service",
						Usage:    "Base URL of the member CRUD service",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed even when content is unchanged",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "https://api.openai.com/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: core.DefaultModelVersion,
					},
					&cli.StringFlag{
						Name:    "api-token",
						Usage:   "Embedding provider API token",
						EnvVars: []string{"FANSEARCH_API_TOKEN"},
						Value:   "none",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func warmCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one member ID is required")
	}
	memberIDs := make([]uint64, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid member ID %q", arg)
		}
		memberIDs = append(memberIDs, id)
	}

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithToken(c.String("api-token")),
	)
	source := member.NewHTTPSource(c.String("member-service"))

	svc, err := fansearch.NewService(c.String("db"), source,
		fansearch.WithAIConfig(aiConfig),
		fansearch.WithModelVersion(c.String("embedding-model")),
	)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Close()

	receipts, err := svc.Indexer().IndexBatch(c.Context, memberIDs, c.Bool("force"))
	if err != nil {
		return err
	}
	for _, receipt := range receipts {
		slog.Info("warmed member", "memberID", receipt.MemberID, "status", receipt.Status)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithToken(c.String("api-token")),
	)

	source := member.NewHTTPSource(c.String("member-service"))

	opts := []fansearch.ServiceOption{
		fansearch.WithAIConfig(aiConfig),
		fansearch.WithModelVersion(c.String("embedding-model")),
	}
	if natsURL := c.String("nats"); natsURL != "" {
		opts = append(opts, fansearch.WithNATSURL(natsURL))
	}

	svc, err := fansearch.NewService(c.String("db"), source, opts...)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := svc.Server()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(c.String("listen"))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "err", err)
		}
	}

	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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
		return fmt.Errorf("invalid log level: %s", levelStr)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}
