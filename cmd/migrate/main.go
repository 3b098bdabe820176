package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/samirrijal/geoagg/internal/adapters/postgres"
	"github.com/samirrijal/geoagg/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down [steps]|version>")
	}

	cfg, err := config.Load("geoagg-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dsn := cfg.Database.DSN()

	switch os.Args[1] {
	case "up":
		if err := postgres.MigrateUp(dsn); err != nil {
			log.Fatal(err)
		}
		log.Println("all migrations applied")
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil {
				log.Fatalf("steps must be a number: %v", err)
			}
		}
		if err := postgres.MigrateDown(dsn, steps); err != nil {
			log.Fatal(err)
		}
		log.Printf("rolled back %d migration(s)", steps)
	case "version":
		v, dirty, err := postgres.MigrationVersion(dsn)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("version %d (dirty: %v)\n", v, dirty)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}
