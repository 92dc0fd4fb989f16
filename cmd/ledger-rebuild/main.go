// ledger-rebuild recomputes every card balance from first principles. Safe to
// run at any time: recompute is idempotent and ignores the advisory log.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/ledger-rebuild
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/models"
	"bitbucket.org/mmdatafocus/fieldops_backend/workflow"
)

func main() {
	cardId := flag.Int("card-id", 0, "Optional: rebuild only one card. 0 rebuilds all.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if *cardId > 0 {
		balance, err := workflow.RecomputeCardBalance(ctx, *cardId, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rebuild card %d: %v\n", *cardId, err)
			os.Exit(1)
		}
		fmt.Printf("card %d: current_balance=%s\n", *cardId, balance.String())
		return
	}

	cards, err := models.GetBankCards(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list cards: %v\n", err)
		os.Exit(1)
	}
	for _, card := range cards {
		balance, err := workflow.RecomputeCardBalance(ctx, card.ID, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rebuild card %d (%s): %v\n", card.ID, card.Name, err)
			os.Exit(1)
		}
		fmt.Printf("card %d (%s): current_balance=%s\n", card.ID, card.Name, balance.String())
	}
	fmt.Printf("rebuilt %d cards\n", len(cards))
}
