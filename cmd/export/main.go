package main

import (
	"context"
	"flag"
	"log"
	"time"

	"rumen-monitor/internal/export"
	"rumen-monitor/pkg/monitordb"
)

// One-shot export of a reading window from an existing monitor database,
// for re-running a window the service missed or slicing data ad hoc.
func main() {
	var (
		dbPath = flag.String("db", "data/monitor.sqlite", "path to sqlite database file")
		out    = flag.String("out", "", "output CSV path (required)")
		from   = flag.String("from", "", "window start, RFC3339 (required)")
		to     = flag.String("to", "", "window end, RFC3339 (default: now)")
	)
	flag.Parse()

	if *out == "" || *from == "" {
		log.Fatal("-out and -from are required")
	}

	start, err := time.Parse(time.RFC3339, *from)
	if err != nil {
		log.Fatalf("parse -from: %v", err)
	}
	end := time.Now().UTC()
	if *to != "" {
		end, err = time.Parse(time.RFC3339, *to)
		if err != nil {
			log.Fatalf("parse -to: %v", err)
		}
	}

	client, err := monitordb.Open(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	readings, err := client.ListReadings(ctx, start, end)
	if err != nil {
		log.Fatalf("list readings: %v", err)
	}
	if len(readings) == 0 {
		log.Printf("no readings in [%s, %s), nothing written", start, end)
		return
	}

	if err := export.WriteCSV(*out, readings); err != nil {
		log.Fatalf("write csv: %v", err)
	}
	log.Printf("wrote %d readings to %s", len(readings), *out)
}
