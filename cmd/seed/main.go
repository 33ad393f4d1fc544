// Command seed imports numbers into the pool from a CSV file of
// "phone,access_token" rows. Duplicates already in the pool are skipped.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/numvault/numvault/internal/config"
	"github.com/numvault/numvault/internal/infra"
	"github.com/numvault/numvault/internal/ledger"
	"github.com/numvault/numvault/internal/logging"
)

func main() {
	file := flag.String("file", "numbers.csv", "CSV file with phone,access_token rows")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL must be set to seed numbers")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := ledger.NewPostgresStore(db, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("open csv", "file", *file, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 2

	var added, skipped int
	rows, err := reader.ReadAll()
	if err != nil {
		logger.Error("read csv", "file", *file, "error", err)
		os.Exit(1)
	}
	for _, row := range rows {
		phone, token := row[0], row[1]
		if _, err := store.AddNumber(ctx, phone, token); err != nil {
			if errors.Is(err, ledger.ErrNumberExists) {
				logger.Info("skipping duplicate number", "phone", phone)
				skipped++
				continue
			}
			logger.Error("add number", "phone", phone, "error", err)
			os.Exit(1)
		}
		logger.Info("added number", "phone", phone)
		added++
	}

	logger.Info("seed finished", "added", added, "skipped", skipped)
}
