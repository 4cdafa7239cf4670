// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"stockpile/internal/core/entity"
	"stockpile/internal/core/id"
	"stockpile/internal/core/types"
	"stockpile/internal/domain/ledger"
	"stockpile/internal/infrastructure/storage/postgres"
	"stockpile/internal/infrastructure/storage/postgres/catalog_repo"
	"stockpile/internal/infrastructure/storage/postgres/ledger_repo"
	"stockpile/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := seedDemoData(ctx, pool, log); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	log.Info("seeding completed successfully")
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	log.Info("seeding demo data...")

	// 1. Seed Locations
	locations := []struct {
		name      string
		address   string
		lType     string
		isDefault bool
	}{
		{"Main Warehouse", "12 Dock Road", "warehouse", true},
		{"Downtown Store", "5 Market Street", "store", false},
		{"Transit Hub", "Virtual", "transit", false},
	}

	locationIDs := make(map[string]id.ID)

	for i, l := range locations {
		locID := id.New()
		code := fmt.Sprintf("LOC-%03d", i+1)
		commandTag, err := pool.Pool.Exec(ctx, `
			INSERT INTO cat_locations (id, code, name, type, address, is_active, is_default, version, deletion_mark, attributes)
			VALUES ($1, $2, $3, $4, $5, true, $6, 1, false, '{}')
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, locID, code, l.name, l.lType, l.address, l.isDefault)
		if err != nil {
			log.Warnw("failed to seed location", "name", l.name, "error", err)
			continue
		}

		// If conflict, fetch the existing ID so stock seeding still works.
		if commandTag.RowsAffected() == 0 {
			err = pool.Pool.QueryRow(ctx, `
				SELECT id FROM cat_locations WHERE code = $1 AND deletion_mark = FALSE
			`, code).Scan(&locID)
			if err != nil {
				log.Warnw("failed to fetch existing location id", "code", code, "error", err)
				continue
			}
		}

		locationIDs[code] = locID
	}

	// 2. Seed Products
	products := []struct {
		name        string
		sku         string
		barcode     string
		pType       string
		unit        string
		minStock    float64
		trackBatch  bool
		trackExpiry bool
	}{
		{"Coffee Beans 1kg", "COF-1000", "4600000000001", "goods", "pcs", 20, true, true},
		{"Paper Cups 250ml (50pk)", "CUP-250", "4600000000002", "goods", "pack", 50, false, false},
		{"Whole Milk 1L", "MLK-100", "4600000000003", "goods", "pcs", 30, true, true},
		{"Espresso Machine Cleaner", "CLN-001", "4600000000004", "goods", "pcs", 5, false, false},
		{"Barista Training", "TRN-001", "", "service", "pcs", 0, false, false},
	}

	productIDs := make(map[string]id.ID)

	for i, p := range products {
		prodID := id.New()
		code := fmt.Sprintf("PRD-%05d", i+1)
		commandTag, err := pool.Pool.Exec(ctx, `
			INSERT INTO cat_products (id, code, name, type, sku, barcode, unit, min_stock, max_stock, track_batch, track_expiry, version, deletion_mark, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, 1, false, '{}')
			ON CONFLICT (code) WHERE deletion_mark = FALSE DO NOTHING
		`, prodID, code, p.name, p.pType, p.sku, p.barcode, p.unit,
			types.NewQuantityFromFloat64(p.minStock), p.trackBatch, p.trackExpiry)
		if err != nil {
			log.Warnw("failed to seed product", "name", p.name, "error", err)
			continue
		}

		if commandTag.RowsAffected() == 0 {
			err = pool.Pool.QueryRow(ctx, `
				SELECT id FROM cat_products WHERE code = $1 AND deletion_mark = FALSE
			`, code).Scan(&prodID)
			if err != nil {
				log.Warnw("failed to fetch existing product id", "code", code, "error", err)
				continue
			}
		}

		productIDs[p.sku] = prodID
	}

	// 3. Seed Batches for batch-tracked products
	now := time.Now()
	batches := []struct {
		sku         string
		batchNumber string
		unitCost    string
		expiresIn   time.Duration
	}{
		{"COF-1000", "B-2026-001", "11.50", 90 * 24 * time.Hour},
		{"COF-1000", "B-2026-002", "12.00", 180 * 24 * time.Hour},
		{"MLK-100", "B-2026-010", "0.85", 7 * 24 * time.Hour},
	}

	batchIDs := make(map[string]id.ID)

	for _, b := range batches {
		productID, ok := productIDs[b.sku]
		if !ok {
			continue
		}

		unitCost, err := types.NewMoneyFromString(b.unitCost)
		if err != nil {
			log.Warnw("invalid unit cost", "batch", b.batchNumber, "error", err)
			continue
		}

		batchID := id.New()
		expiresAt := now.Add(b.expiresIn)
		commandTag, err := pool.Pool.Exec(ctx, `
			INSERT INTO cat_batches (id, product_id, batch_number, unit_cost, manufactured_at, expires_at, version, deletion_mark, attributes)
			VALUES ($1, $2, $3, $4, $5, $6, 1, false, '{}')
			ON CONFLICT (product_id, batch_number) WHERE deletion_mark = FALSE DO NOTHING
		`, batchID, productID, b.batchNumber, unitCost, now, expiresAt)
		if err != nil {
			log.Warnw("failed to seed batch", "batch", b.batchNumber, "error", err)
			continue
		}

		if commandTag.RowsAffected() == 0 {
			err = pool.Pool.QueryRow(ctx, `
				SELECT id FROM cat_batches WHERE product_id = $1 AND batch_number = $2 AND deletion_mark = FALSE
			`, productID, b.batchNumber).Scan(&batchID)
			if err != nil {
				log.Warnw("failed to fetch existing batch id", "batch", b.batchNumber, "error", err)
				continue
			}
		}

		batchIDs[b.batchNumber] = batchID
	}

	// 4. Seed Stock
	// Goes through the ledger service so every cell gets its initial
	// log entry and replay stays consistent.
	txManager := postgres.NewTxManager(pool)
	productRepo := catalog_repo.NewProductRepo(txManager)
	stockRepo := ledger_repo.NewStockRepo(txManager)
	ledgerService := ledger.NewService(stockRepo, productRepo, txManager)

	stock := []struct {
		sku         string
		location    string
		batchNumber string
		quantity    float64
	}{
		{"COF-1000", "LOC-001", "B-2026-001", 120},
		{"COF-1000", "LOC-001", "B-2026-002", 200},
		{"COF-1000", "LOC-002", "B-2026-001", 15},
		{"CUP-250", "LOC-001", "", 400},
		{"CUP-250", "LOC-002", "", 60},
		{"MLK-100", "LOC-002", "B-2026-010", 48},
		{"CLN-001", "LOC-001", "", 12},
	}

	for _, s := range stock {
		productID, ok := productIDs[s.sku]
		if !ok {
			continue
		}
		locationID, ok := locationIDs[s.location]
		if !ok {
			continue
		}

		key := entity.CellKey{ProductID: productID, LocationID: locationID}
		if s.batchNumber != "" {
			batchID, ok := batchIDs[s.batchNumber]
			if !ok {
				continue
			}
			key.BatchID = &batchID
		}

		if _, err := ledgerService.CreateCell(ctx, key, types.NewQuantityFromFloat64(s.quantity), "seed"); err != nil {
			log.Warnw("failed to seed stock cell",
				"sku", s.sku,
				"location", s.location,
				"batch", s.batchNumber,
				"error", err,
			)
		}
	}

	log.Info("demo data seeded successfully")
	return nil
}
