package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"storefront-agent/internal/db"

	"github.com/joho/godotenv"
)

// Applies every migrations/*.sql file in name order. The files are written
// to be re-runnable.
func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		fmt.Printf("Failed to connect to DB: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil || len(files) == 0 {
		fmt.Println("No migrations found; run from the repository root.")
		os.Exit(1)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlFile, err := os.ReadFile(f)
		if err != nil {
			fmt.Printf("Failed to read sql file: %v\n", err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(sqlFile)); err != nil {
			fmt.Printf("Migration %s failed: %v\n", f, err)
			os.Exit(1)
		}
		fmt.Printf("Applied %s\n", filepath.Base(f))
	}
	fmt.Println("Migration successful.")
}
