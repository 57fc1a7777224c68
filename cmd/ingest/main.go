// Command ingest loads exported CSV datasets into the PostgreSQL
// transaction store.
//
// Usage:
//
//	ingest -data ./dataset                       # category CSVs + "token transfers/" shards
//	ingest -labels train.csv -source kaggle      # ground-truth labels
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rawblock/wallet-gnn/internal/db"
	"github.com/rawblock/wallet-gnn/internal/store"
	"github.com/rawblock/wallet-gnn/pkg/models"
)

func main() {
	var (
		dataDir    = flag.String("data", "", "dataset directory with category CSV files")
		labelsPath = flag.String("labels", "", "ADDRESS,LABEL CSV to upsert into address_labels")
		source     = flag.String("source", "csv", "source tag stored with imported labels")
	)
	flag.Parse()

	_ = godotenv.Load()
	if *dataDir == "" && *labelsPath == "" {
		log.Fatal("FATAL: nothing to do, pass -data and/or -labels")
	}

	dbConn, err := db.Connect(requireEnv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer dbConn.Close()
	if err := dbConn.InitSchema(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dataDir != "" {
		if err := importDataset(ctx, dbConn, *dataDir); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
	}
	if *labelsPath != "" {
		if err := importLabels(ctx, dbConn, *labelsPath, *source); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
	}

	counts, err := dbConn.CountRows(ctx)
	if err != nil {
		log.Printf("Warning: could not count rows: %v", err)
		return
	}
	for _, cat := range models.Categories {
		log.Printf("[Import] %s now holds %d rows", cat, counts[cat.String()])
	}
}

func importDataset(ctx context.Context, dbConn *db.PostgresStore, dir string) error {
	files, err := store.DatasetFiles(dir)
	if err != nil {
		return err
	}
	for _, cat := range models.Categories {
		for _, path := range files[cat] {
			rows, err := store.ReadFile(path, cat)
			if err != nil {
				return err
			}
			n, err := dbConn.ImportRows(ctx, cat, rows)
			if err != nil {
				return err
			}
			log.Printf("[Import] %s: copied %d of %d rows into %s", path, n, len(rows), cat)
		}
	}
	return nil
}

func importLabels(ctx context.Context, dbConn *db.PostgresStore, path, source string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	labels, err := store.ReadLabels(f)
	if err != nil {
		return err
	}
	for _, l := range labels {
		if err := dbConn.SaveLabel(ctx, l.Address, int(l.Label), source); err != nil {
			return err
		}
	}
	log.Printf("[Import] Upserted %d labels from %s", len(labels), path)
	return nil
}

// requireEnv reads a required environment variable and exits if it is not set.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}
