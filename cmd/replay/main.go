package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ManuelReschke/PayHook/app/models"
	"github.com/ManuelReschke/PayHook/internal/pkg/env"
	"github.com/ManuelReschke/PayHook/internal/pkg/service"
	"github.com/ManuelReschke/PayHook/internal/pkg/webhook"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	services, err := service.Setup()
	if err != nil {
		log.Fatalf("Failed to set up webhook services: %v", err)
	}

	code := run(context.Background(), services, os.Args[1:])
	if err := services.Close(); err != nil {
		log.Printf("Failed to close services: %v", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, services *service.Services, args []string) int {
	failures := 0

	switch args[0] {
	case "id":
		if len(args) < 2 {
			log.Printf("Please provide a ledger entry id")
			return 1
		}
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			log.Printf("Invalid ledger entry id: %v", err)
			return 1
		}
		if !report(services.Pipeline.Replay(ctx, uint(id))) {
			failures++
		}

	case "failed", "stuck":
		provider, limit, ok := listArgs(args[1:])
		if !ok {
			return 1
		}

		var (
			entries []models.WebhookLedgerEntry
			err     error
		)
		if args[0] == "failed" {
			entries, err = services.Ledger.ListFailed(ctx, provider, limit)
		} else {
			entries, err = services.Ledger.ListStale(ctx, provider, time.Now().Add(-webhook.StaleAfter), limit)
		}
		if err != nil {
			log.Printf("Failed to list %s webhooks: %v", args[0], err)
			return 1
		}
		log.Printf("Replaying %d %s webhooks", len(entries), args[0])
		for _, entry := range entries {
			if entry.NonRetryable {
				log.Printf("Skipping entry %d (%s): %s", entry.ID, entry.Provider, entry.LastError())
				continue
			}
			if !report(services.Pipeline.Replay(ctx, entry.ID)) {
				failures++
			}
		}

	default:
		printUsage()
		return 1
	}

	if failures > 0 {
		log.Printf("%d replays failed", failures)
		return 2
	}
	return 0
}

// listArgs parses the optional [provider] [limit] arguments.
func listArgs(args []string) (string, int, bool) {
	provider := ""
	if len(args) > 0 {
		p, err := webhook.ParseProvider(args[0])
		if err != nil {
			log.Printf("%v", err)
			return "", 0, false
		}
		provider = string(p)
	}
	limit := webhook.DefaultFailedLimit
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			log.Printf("Invalid limit: %s", args[1])
			return "", 0, false
		}
		limit = n
	}
	return provider, limit, true
}

func report(res *webhook.Result) bool {
	log.Printf("Entry %d event %s: %d %s (%d attempts, %dms)",
		res.EntryID, res.EventID, res.HTTPStatus, res.Message, res.Attempts, res.ProcessingTimeMs())
	return res.HTTPStatus < 500 && res.HTTPStatus != 404
}

func printUsage() {
	fmt.Println("Usage: go run cmd/replay/main.go [command]")
	fmt.Println("Commands:")
	fmt.Println("  id <entryID>                - replay one ledger entry")
	fmt.Println("  failed [provider] [limit]   - replay retryable FAILED entries, most recent first")
	fmt.Println("  stuck [provider] [limit]    - replay entries left RECEIVED or PROCESSING, oldest first")
}
