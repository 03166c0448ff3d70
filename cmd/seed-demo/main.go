// seed-demo writes the demo product master, recipes and one completed batch to the configured store.
// An existing snapshot is never overwritten.
//
// Usage (from backend directory):
//
//	STATE_STORE=sqlite SQLITE_PATH=./manufacturing.db go run ./cmd/seed-demo
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/manufacturing_backend/config"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"bitbucket.org/mmdatafocus/manufacturing_backend/workflow"
)

func main() {
	stateKey := flag.String("state-key", config.StateKey(), "Optional: state key to seed")
	flag.Parse()

	ctx := context.Background()
	repo, closeRepo, err := workflow.OpenSnapshotRepository(ctx, config.StateStore())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open state store: %v\n", err)
		os.Exit(1)
	}
	defer closeRepo()

	existing, err := repo.Load(ctx, *stateKey)
	if err == nil {
		fmt.Printf("state %q already exists at version %d; nothing to do\n", *stateKey, existing.Version)
		return
	}
	if !errors.Is(err, models.ErrSnapshotMissing) {
		fmt.Fprintf(os.Stderr, "load snapshot: %v\n", err)
		os.Exit(1)
	}

	state, err := models.DefaultManufacturingState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build demo state: %v\n", err)
		os.Exit(1)
	}
	version, err := repo.Save(ctx, *stateKey, 0, state, state.StockLedger.Entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "save demo state: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded state=%s version=%d products=%d recipes=%d entries=%d\n",
		*stateKey, version, len(state.Products), len(state.Recipes.AllIds), len(state.StockLedger.Entries))
}
