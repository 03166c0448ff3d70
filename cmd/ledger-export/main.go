// ledger-export writes the stock ledger, a stock summary and the production batches to an XLSX workbook,
// optionally uploading it to GCS_BUCKET.
//
// Usage (from backend directory):
//
//	go run ./cmd/ledger-export -out ledger.xlsx
//	GCS_BUCKET=... go run ./cmd/ledger-export -upload -prefix exports/manufacturing
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/config"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models/reports"
	"bitbucket.org/mmdatafocus/manufacturing_backend/utils"
	"bitbucket.org/mmdatafocus/manufacturing_backend/workflow"
)

func main() {
	stateKey := flag.String("state-key", config.StateKey(), "Optional: state key to export")
	out := flag.String("out", "", "Optional: output file (default manufacturing-ledger-<timestamp>.xlsx)")
	upload := flag.Bool("upload", false, "Upload the workbook to GCS_BUCKET")
	prefix := flag.String("prefix", "exports/manufacturing", "Optional: GCS object prefix")
	flag.Parse()

	ctx := context.Background()
	repo, closeRepo, err := workflow.OpenSnapshotRepository(ctx, config.StateStore())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open state store: %v\n", err)
		os.Exit(1)
	}
	defer closeRepo()

	snapshot, err := repo.Load(ctx, *stateKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load snapshot %q: %v\n", *stateKey, err)
		os.Exit(1)
	}

	f, err := reports.BuildLedgerWorkbook(snapshot.State)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build workbook: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	filename := strings.TrimSpace(*out)
	if filename == "" {
		filename = fmt.Sprintf("manufacturing-ledger-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	}
	if err := f.SaveAs(filename); err != nil {
		fmt.Fprintf(os.Stderr, "save workbook: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("exported state=%s version=%d entries=%d to %s\n",
		*stateKey, snapshot.Version, len(snapshot.State.StockLedger.Entries), filename)

	if !*upload {
		return
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode workbook: %v\n", err)
		os.Exit(1)
	}
	objectName := path.Join(*prefix, *stateKey, filepath.Base(filename))
	location, err := utils.UploadBytesToGCS(ctx, objectName, buf.Bytes(), reports.XlsxContentType())
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("uploaded to %s\n", location)
}
