package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/zukhriddin2012/c-space-niya-sub004/common/database"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/config"
)

func main() {
	dryRun := pflag.Bool("dry-run", false, "print statements without executing them")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [--dry-run] <migration_file.sql>...\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	for _, file := range pflag.Args() {
		sqlContent, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("Failed to read migration file: %v", err)
		}
		statements := splitStatements(string(sqlContent))
		if *dryRun {
			for i, stmt := range statements {
				fmt.Printf("-- %s statement %d/%d\n%s;\n\n", file, i+1, len(statements), stmt)
			}
			continue
		}
		apply(cfg, file, statements)
	}
	fmt.Println("✅ Migration completed successfully!")
}

func apply(cfg *config.Config, file string, statements []string) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()
	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	for i, stmt := range statements {
		fmt.Printf("Executing %s statement %d/%d...\n", file, i+1, len(statements))
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			log.Fatalf("Failed to execute statement %d: %v\nStatement: %s", i+1, err, stmt[:min(100, len(stmt))])
		}
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit %s: %v", file, err)
	}
	fmt.Printf("✅ %s applied (%d statements)\n\n", file, len(statements))
}

// splitStatements drops line comments and splits on semicolons.
func splitStatements(sqlContent string) []string {
	var kept []string
	for _, line := range strings.Split(sqlContent, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	var out []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
