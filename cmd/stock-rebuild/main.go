// stock-rebuild recomputes the stock balance cache from the ledger and reports ledger integrity problems.
//
// Usage (from backend directory):
//
//	STATE_STORE=mysql DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/stock-rebuild
//	go run ./cmd/stock-rebuild -dry-run
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
	stateKey := flag.String("state-key", config.StateKey(), "Optional: state key to rebuild")
	dryRun := flag.Bool("dry-run", false, "Only report drift and integrity problems, do not save")
	flag.Parse()

	ctx := context.Background()
	if config.RedisConfigured() {
		config.ConnectRedisWithRetry(ctx)
	}
	repo, closeRepo, err := workflow.OpenSnapshotRepository(ctx, config.StateStore())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open state store: %v\n", err)
		os.Exit(1)
	}
	defer closeRepo()

	snapshot, err := repo.Load(ctx, *stateKey)
	if errors.Is(err, models.ErrSnapshotMissing) {
		fmt.Fprintf(os.Stderr, "no snapshot stored under %q\n", *stateKey)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load snapshot: %v\n", err)
		os.Exit(1)
	}

	state := snapshot.State
	recomputed := models.RecalculateStockBalances(state.StockLedger.Entries)
	drifted := !recomputed.Equal(state.StockBalances)
	fmt.Printf("state=%s version=%d entries=%d productions=%d balances_drifted=%t\n",
		*stateKey, snapshot.Version, len(state.StockLedger.Entries), len(state.Productions.AllIds), drifted)

	for _, problem := range models.VerifyLedgerIntegrity(state) {
		fmt.Printf("integrity: %s\n", problem)
	}

	if *dryRun || !drifted {
		return
	}

	ctrl := workflow.NewProductionController(workflow.ControllerOptions{
		StateKey:   *stateKey,
		Repository: repo,
		Locker:     config.GetRedisLock(),
		Logger:     config.GetLogger(),
	})
	if err := ctrl.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "load controller: %v\n", err)
		os.Exit(1)
	}
	if _, err := ctrl.RebuildStockBalances(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("balances rebuilt; state=%s version=%d\n", *stateKey, ctrl.Version())
}
