package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

type saleRecord struct {
	ID       int
	Region   string
	Product  string
	Amount   float64
	Date     string
	Quantity int
}

// Region values match the default filter vocabulary so filter questions
// return rows out of the box.
var sampleSales = []saleRecord{
	{1, "paris", "Product A", 1240.50, "2024-01-15", 10},
	{2, "marseille", "Product B", 890.25, "2024-01-16", 7},
	{3, "toulouse", "Product A", 720.00, "2024-01-17", 6},
	{4, "lyon", "Product C", 680.75, "2024-01-18", 5},
	{5, "lyon", "Product B", 950.30, "2024-01-19", 8},
	{6, "paris", "Product C", 1100.00, "2024-01-20", 9},
	{7, "marseille", "Product A", 765.40, "2024-01-21", 6},
	{8, "toulouse", "Product B", 890.60, "2024-01-22", 7},
	{9, "lyon", "Product A", 920.25, "2024-01-23", 8},
	{10, "paris", "Product C", 1150.75, "2024-01-24", 10},
}

const createSalesTable = `
CREATE TABLE IF NOT EXISTS sales (
	id INTEGER PRIMARY KEY,
	region TEXT NOT NULL,
	product TEXT NOT NULL,
	amount REAL NOT NULL,
	date TEXT NOT NULL,
	quantity INTEGER NOT NULL
)`

// SeedSampleData creates the demo sales table and fills it. Re-running it
// leaves exactly the sample rows in place.
func SeedSampleData(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createSalesTable); err != nil {
		return fmt.Errorf("create sales table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO sales (id, region, product, amount, date, quantity) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range sampleSales {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Region, r.Product, r.Amount, r.Date, r.Quantity); err != nil {
			return fmt.Errorf("insert sale %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Info().Int("rows", len(sampleSales)).Msg("created sample sales data")
	return nil
}
