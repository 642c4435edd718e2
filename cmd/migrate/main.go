package main

import (
	"database/sql"
	"flag"
	"log"

	"gatewaymon/internal/migrations"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	dbPath := flag.String("db", "./gatewaymon.db", "Path to the database file")
	migrationsDir := flag.String("migrations", "", "Override the migrations directory")
	flag.Parse()

	if *migrationsDir != "" {
		migrations.MigrationsDir = *migrationsDir
	}

	db, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.RunMigrations(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.Printf("migrations applied to %s", *dbPath)
}
