// Command statdump prints an aggregate snapshot computed straight from a
// history database file. Useful for inspecting a service's durable state
// offline without a running instance.
//
// Usage:
//
//	go run ./cmd/statdump -db /tmp/smoke-watching/history.db -window-days 7
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"sort"
	"time"

	"github.com/sperola37/smoke-watching/internal/adapter/sqlite"
	"github.com/sperola37/smoke-watching/internal/observability"
	"github.com/sperola37/smoke-watching/internal/stats"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "", "path to the history SQLite file (required)")
	windowDays := flag.Int("window-days", stats.DefaultWindowDays, "trailing window size in days")
	timezone := flag.String("timezone", "", "IANA timezone for hour/weekday bucketing; empty means local")
	flag.Parse()

	if *dbPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -db")
	}

	loc := time.Local
	if *timezone != "" {
		parsed, err := time.LoadLocation(*timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", *timezone, err)
		}
		loc = parsed
	}

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	engine := stats.New(store, slog.Default(), observability.NewMetrics(), loc)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot, err := engine.ComputeSnapshot(ctx, time.Now(), *windowDays)
	if err != nil {
		return fmt.Errorf("compute snapshot: %w", err)
	}

	fmt.Printf("window: %s .. %s (%s)\n",
		snapshot.WindowStart.In(loc).Format(time.RFC3339),
		snapshot.WindowEnd.In(loc).Format(time.RFC3339),
		loc)

	fmt.Println("\nalerts per location:")
	addresses := make([]string, 0, len(snapshot.PerLocationCounts))
	for address := range snapshot.PerLocationCounts {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	total := 0
	for _, address := range addresses {
		count := snapshot.PerLocationCounts[address]
		total += count
		fmt.Printf("  %-40s %d\n", address, count)
	}
	if total == 0 {
		fmt.Println("  (no alerts in window)")
	}

	fmt.Println("\nalerts per weekday:")
	for d := time.Sunday; d <= time.Saturday; d++ {
		fmt.Printf("  %-9s %d\n", d, snapshot.WeekdayCounts[d])
	}

	fmt.Println("\nalerts per hour of day:")
	var hours [24]int
	for _, p := range snapshot.HourOfDayPoints {
		hours[p.Hour]++
	}
	for h, count := range hours {
		if count == 0 {
			continue
		}
		fmt.Printf("  %02d:00  %d\n", h, count)
	}

	fmt.Printf("\ntotal alerts in window: %d\n", total)
	return nil
}
